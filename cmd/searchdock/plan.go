package main

import (
	"fmt"
	"strconv"

	"searchdock/cmd/searchdock/ui"
	"searchdock/internal/deploy"
	"searchdock/internal/spec"

	"github.com/spf13/cobra"
)

func planCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan [file]",
		Short: "Show what up would change without touching the engine",
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
			if err := spec.Validate(stack, spec.ValidateOptions{}); err != nil {
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

			rows, err := store.ListContainersByStack(cmd.Context(), stack.Name)
			if err != nil {
				return err
			}
			state, err := inspectAll(cmd.Context(), rt, rows)
			if err != nil {
				return err
			}

			plan := deploy.BuildPlan(stack, rows, state)
			printPlan(plan)
			return nil
		},
	}
	return cmd
}

func printPlan(plan deploy.Plan) {
	fmt.Println(ui.InfoMsg("plan for stack %s", ui.Accent(plan.Stack)))

	counts := map[deploy.ChangeKind]int{}
	tableRows := make([][]string, 0, len(plan.Services))
	for _, svc := range plan.Services {
		counts[svc.Action]++
		tableRows = append(tableRows, []string{
			svc.Name,
			formatAction(svc.Action),
			svc.ContainerName,
			svc.Reason,
		})
	}

	fmt.Println(ui.Table([]string{"SERVICE", "ACTION", "CONTAINER", "REASON"}, tableRows))
	fmt.Print(ui.KeyValues("  ",
		ui.KV("create", strconv.Itoa(counts[deploy.Create])),
		ui.KV("restart", strconv.Itoa(counts[deploy.NeedsRestart])),
		ui.KV("recreate", strconv.Itoa(counts[deploy.NeedsRecreate])),
		ui.KV("remove", strconv.Itoa(counts[deploy.Remove])),
		ui.KV("up to date", strconv.Itoa(counts[deploy.UpToDate])),
	))

	if plan.ChangeCount() == 0 {
		fmt.Println(ui.SuccessMsg("no changes needed"))
	}
}

func formatAction(kind deploy.ChangeKind) string {
	switch kind {
	case deploy.Create:
		return ui.Success("create")
	case deploy.NeedsRestart:
		return ui.Warn("restart")
	case deploy.NeedsRecreate:
		return ui.Warn("recreate")
	case deploy.Remove:
		return ui.ErrorStyle.Render("remove")
	case deploy.UpToDate:
		return ui.Muted("up to date")
	default:
		return kind.String()
	}
}
