package main

import (
	"fmt"

	"searchdock/cmd/searchdock/ui"
	"searchdock/internal/deploy"
	"searchdock/internal/spec"

	"github.com/spf13/cobra"
)

func downCmd(flags *globalFlags) *cobra.Command {
	var removeVolumes bool

	cmd := &cobra.Command{
		Use:   "down [file]",
		Short: "Stop and remove a stack's containers",
		Long: `Stop and remove every container the stack owns. Named volumes are
kept so data survives; pass --volumes to delete them too.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolve()
			if err != nil {
				return err
			}

			stack, err := loadStack(cmd.Context(), cfg, flags, args)
			if err != nil {
				return err
			}

			store, err := openState(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			stores := deploy.Stores{Containers: store, Deployments: store}

			rt, err := newRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			var volumes []spec.VolumeSpec
			if removeVolumes {
				volumes = stack.Volumes
			}

			if err := deploy.RemoveStack(cmd.Context(), rt, stores, stack.Name, volumes, deploy.SystemClock{}); err != nil {
				return err
			}

			fmt.Println(ui.SuccessMsg("stack %s removed", ui.Accent(stack.Name)))
			if removeVolumes {
				fmt.Println(ui.WarnMsg("deleted %d volume(s)", len(volumes)))
			} else if len(stack.Volumes) > 0 {
				fmt.Println(ui.Muted("volumes kept; rerun with --volumes to delete data"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&removeVolumes, "volumes", false, "Also delete the stack's named volumes")
	return cmd
}
