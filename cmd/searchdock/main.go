package main

import (
	"fmt"
	"os"

	"searchdock/cmd/searchdock/ui"
	"searchdock/internal/logging"
	"searchdock/internal/support/buildinfo"

	"github.com/spf13/cobra"
)

func main() {
	var (
		debug   bool
		noColor bool
	)
	var flags globalFlags

	if err := logging.Configure(logging.LevelWarn); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "searchdock",
		Short:         "Deploy and manage single-host search engine stacks",
		Version:       buildinfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelWarn
			if debug {
				level = logging.LevelDebug
			}
			if err := logging.Configure(level); err != nil {
				return err
			}
			ui.ConfigureInteraction(noColor)
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable styled output")

	// Stack selection flags — available to all subcommands.
	root.PersistentFlags().StringVarP(&flags.stackFile, "file", "f", "", "Stack document to operate on (defaults to config, then ./stack.yaml)")
	root.PersistentFlags().StringVar(&flags.stackName, "stack", "", "Override the stack name from the document")
	root.PersistentFlags().StringVar(&flags.statePath, "state", "", "State database path (defaults to config)")
	root.PersistentFlags().StringVar(&flags.dockerHost, "host", "", "Docker engine address (defaults to config, then environment)")

	root.AddCommand(initCmd())
	root.AddCommand(validateCmd(&flags))
	root.AddCommand(planCmd(&flags))
	root.AddCommand(upCmd(&flags))
	root.AddCommand(downCmd(&flags))
	root.AddCommand(statusCmd(&flags))
	root.AddCommand(logsCmd(&flags))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
