package main

import (
	"context"
	"fmt"

	"searchdock/cmd/searchdock/ui"
	"searchdock/internal/deploy"

	"github.com/spf13/cobra"
)

func statusCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [file]",
		Short: "Show recorded and observed state for a stack",
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

			store, err := openState(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			rt, err := newRuntime(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			latest, found, err := store.LatestDeployment(cmd.Context(), stack.Name)
			if err != nil {
				return err
			}
			if !found {
				fmt.Println(ui.WarnMsg("stack %s has never been deployed", ui.Accent(stack.Name)))
				return nil
			}

			fmt.Println(ui.InfoMsg("stack %s", ui.Accent(stack.Name)))
			fmt.Print(ui.KeyValues("  ",
				ui.KV("deploy", latest.ID),
				ui.KV("status", latest.Status.String()),
				ui.KV("updated", latest.UpdatedAt),
			))

			rows, err := store.ListContainersByStack(cmd.Context(), stack.Name)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Println(ui.Muted("no containers recorded"))
				return nil
			}

			tableRows := make([][]string, 0, len(rows))
			for _, row := range rows {
				tableRows = append(tableRows, statusRow(cmd.Context(), rt, row))
			}
			fmt.Println(ui.Table(
				[]string{"SERVICE", "CONTAINER", "STATE", "HEALTH", "IMAGE"},
				tableRows,
			))
			return nil
		},
	}
	return cmd
}

func statusRow(ctx context.Context, rt deploy.ContainerRuntime, row deploy.ContainerRow) []string {
	info, err := rt.ContainerInspect(ctx, row.ContainerName)
	if err != nil {
		return []string{row.Service, row.ContainerName, ui.ErrorStyle.Render("error"), "-", "-"}
	}
	if !info.Exists {
		return []string{row.Service, row.ContainerName, ui.ErrorStyle.Render("missing"), "-", "-"}
	}

	state := ui.ErrorStyle.Render("stopped")
	if info.Running {
		state = ui.Success("running")
	}
	return []string{row.Service, row.ContainerName, state, ui.Health(info.Health), info.Image}
}
