package main

import (
	"fmt"

	"searchdock/internal/deploy"

	"github.com/spf13/cobra"
)

func logsCmd(flags *globalFlags) *cobra.Command {
	var lines int

	cmd := &cobra.Command{
		Use:   "logs <service>",
		Short: "Print recent log output for a stack service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := args[0]

			cfg, err := flags.resolve()
			if err != nil {
				return err
			}

			stack, err := loadStack(cmd.Context(), cfg, flags, nil)
			if err != nil {
				return err
			}

			store, err := openState(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			rows, err := store.ListContainersByStack(cmd.Context(), stack.Name)
			if err != nil {
				return err
			}
			var row *deploy.ContainerRow
			for i := range rows {
				if rows[i].Service == service {
					row = &rows[i]
					break
				}
			}
			if row == nil {
				return fmt.Errorf("no recorded container for service %q in stack %q", service, stack.Name)
			}

			rt, err := newRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			out, err := rt.ContainerLogs(cmd.Context(), row.ContainerName, lines)
			if err != nil {
				return err
			}
			if out != "" {
				fmt.Println(out)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 100, "Number of trailing log lines to show")
	return cmd
}
