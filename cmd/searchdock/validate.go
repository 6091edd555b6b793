package main

import (
	"errors"
	"fmt"
	"time"

	"searchdock/cmd/searchdock/ui"
	"searchdock/internal/spec"

	"github.com/spf13/cobra"
)

// defaultStartupFloor is the slowest cold start the validator tolerates
// without complaint. JVM-based engines routinely need over a minute on
// first boot.
const defaultStartupFloor = 90 * time.Second

func validateCmd(flags *globalFlags) *cobra.Command {
	var startupFloor time.Duration

	cmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a stack document against deployment rules",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolve()
			if err != nil {
				return err
			}

			stack, err := loadStack(cmd.Context(), cfg, flags, args)
			if err != nil {
				return err
			}

			err = spec.Validate(stack, spec.ValidateOptions{MinStartupBudget: startupFloor})
			var verr *spec.ValidationError
			if errors.As(err, &verr) {
				for _, v := range verr.Violations {
					fmt.Println(ui.ErrorMsg("%s", v))
				}
				return fmt.Errorf("stack %q has %d violation(s)", stack.Name, len(verr.Violations))
			}
			if err != nil {
				return err
			}

			fmt.Println(ui.SuccessMsg("stack %s is valid", ui.Accent(stack.Name)))
			fmt.Print(ui.KeyValues("  ",
				ui.KV("services", fmt.Sprintf("%d", len(stack.Services))),
				ui.KV("volumes", fmt.Sprintf("%d", len(stack.Volumes))),
			))
			return nil
		},
	}

	cmd.Flags().DurationVar(&startupFloor, "startup-floor", defaultStartupFloor, "Minimum health check budget required of every service")
	return cmd
}
