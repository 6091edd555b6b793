package main

import (
	"fmt"
	"os"
	"path/filepath"

	"searchdock/cmd/searchdock/ui"

	"github.com/spf13/cobra"
)

// defaultStackDocument is the starter descriptor: a single-node
// Elasticsearch with security disabled for local development, its data on a
// named volume, and a health check budget wide enough for a cold JVM start
// (10s interval, 12 retries).
const defaultStackDocument = `name: search

services:
  elasticsearch:
    image: docker.elastic.co/elasticsearch/elasticsearch:8.14.3
    container_name: searchdock-elasticsearch
    environment:
      - discovery.type=single-node
      - xpack.security.enabled=false
    ports:
      - "9200:9200"
    volumes:
      - esdata:/usr/share/elasticsearch/data
    healthcheck:
      test: ["CMD-SHELL", "curl -fsS http://localhost:9200/_cluster/health || exit 1"]
      interval: 10s
      timeout: 5s
      retries: 12

volumes:
  esdata:
    driver: local
`

func initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a starter stack document for a single-node search engine",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			path := filepath.Join(dir, "stack.yaml")

			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				}
			}

			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(defaultStackDocument), 0o644); err != nil {
				return fmt.Errorf("write stack document: %w", err)
			}

			fmt.Println(ui.SuccessMsg("wrote %s", ui.Accent(path)))
			fmt.Print(ui.KeyValues("  ",
				ui.KV("stack", "search"),
				ui.KV("service", "elasticsearch"),
				ui.KV("endpoint", "http://localhost:9200"),
			))
			fmt.Println(ui.Muted("edit the document, then run: searchdock up"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing stack.yaml")
	return cmd
}
