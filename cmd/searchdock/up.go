package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"searchdock/cmd/searchdock/ui"
	"searchdock/internal/deploy"
	"searchdock/internal/docker"
	"searchdock/internal/probe"
	"searchdock/internal/spec"

	"github.com/spf13/cobra"
)

const deployEventsBufferCapacity = 256

func upCmd(flags *globalFlags) *cobra.Command {
	var (
		startupFloor time.Duration
		dryRun       bool
		wait         bool
		waitTimeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "up [file]",
		Short: "Deploy a stack document to the local engine",
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
			if err := spec.Validate(stack, spec.ValidateOptions{MinStartupBudget: startupFloor}); err != nil {
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

			rows, err := store.ListContainersByStack(cmd.Context(), stack.Name)
			if err != nil {
				return err
			}
			state, err := inspectAll(cmd.Context(), rt, rows)
			if err != nil {
				return err
			}

			plan := deploy.BuildPlan(stack, rows, state)
			if dryRun {
				printPlan(plan)
				return nil
			}
			if plan.ChangeCount() == 0 {
				fmt.Println(ui.SuccessMsg("stack %s is up to date", ui.Accent(stack.Name)))
				return nil
			}

			fmt.Fprintln(os.Stderr, ui.InfoMsg("deploying stack %s", ui.Accent(stack.Name)))
			events := make(chan deploy.ProgressEvent, deployEventsBufferCapacity)
			done := make(chan struct{})
			go func() {
				defer close(done)
				for ev := range events {
					line, ok := formatDeployEvent(ev)
					if !ok {
						continue
					}
					fmt.Fprintln(os.Stderr, line)
				}
			}()

			health := docker.NewHealthMonitor(rt)
			result, err := deploy.Apply(cmd.Context(), rt, stores, health, plan, deploy.SystemClock{}, events)
			close(events)
			<-done
			if err != nil {
				var derr *deploy.DeployError
				if errors.As(err, &derr) {
					fmt.Fprintln(os.Stderr, ui.ErrorMsg("%s", derr.Message))
					fmt.Fprintln(os.Stderr, ui.WarnMsg("deploy phase: %s", derr.Phase))
				}
				return err
			}

			fmt.Println(ui.SuccessMsg("stack %s deployed", ui.Accent(stack.Name)))
			fmt.Print(ui.KeyValues("  ",
				ui.KV("deploy", result.DeployID),
				ui.KV("status", result.Status.String()),
				ui.KV("containers", fmt.Sprintf("%d", len(result.Containers))),
			))

			if wait {
				return waitEndpoints(cmd, stack, waitTimeout)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&startupFloor, "startup-floor", defaultStartupFloor, "Minimum health check budget required of every service")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan only; do not apply changes")
	cmd.Flags().BoolVar(&wait, "wait", false, "After deploy, poll published HTTP endpoints until they answer")
	cmd.Flags().DurationVar(&waitTimeout, "wait-timeout", 150*time.Second, "How long --wait polls before giving up")
	return cmd
}

// waitEndpoints probes the first published port of every service from the
// host side. The engine health check already passed; this confirms the
// port mapping works end to end.
func waitEndpoints(cmd *cobra.Command, stack spec.StackSpec, timeout time.Duration) error {
	for _, svc := range stack.Services {
		url, ok := endpointURL(svc)
		if !ok {
			continue
		}
		fmt.Fprintln(os.Stderr, ui.InfoMsg("waiting for %s at %s", svc.Name, ui.Accent(url)))
		if err := probe.WaitHTTP(cmd.Context(), url, timeout, 0); err != nil {
			return fmt.Errorf("service %s endpoint: %w", svc.Name, err)
		}
		fmt.Println(ui.SuccessMsg("service %s answering at %s", ui.Accent(svc.Name), url))
	}
	return nil
}

// endpointURL returns the probe target for a service: the first port with a
// fixed host side. Engine-assigned (zero) host ports are unknowable here.
func endpointURL(svc spec.ServiceSpec) (string, bool) {
	for _, p := range svc.Ports {
		if p.HostPort == 0 {
			continue
		}
		return fmt.Sprintf("http://localhost:%d/", p.HostPort), true
	}
	return "", false
}

func formatDeployEvent(ev deploy.ProgressEvent) (string, bool) {
	switch ev.Type {
	case "image_pulled":
		if strings.TrimSpace(ev.Message) == "" {
			return "", false
		}
		return ui.InfoMsg("pulled image %s", ui.Accent(ev.Message)), true
	case "volume_ensured":
		return ui.InfoMsg("ensured volume %s", ui.Accent(ev.Message)), true
	case "container_created":
		return ui.InfoMsg("created container %s", eventTarget(ev)), true
	case "container_started":
		return ui.SuccessMsg("started container %s", eventTarget(ev)), true
	case "container_removed":
		return ui.InfoMsg("removed container %s", eventTarget(ev)), true
	case "health_check_passed":
		return ui.SuccessMsg("healthy container %s", eventTarget(ev)), true
	case "rollback_started":
		return ui.WarnMsg("rolling back"), true
	case "deploy_complete":
		if strings.TrimSpace(ev.Message) == "" {
			return ui.SuccessMsg("deploy complete"), true
		}
		return ui.SuccessMsg("deploy complete %s", ui.Accent(ev.Message)), true
	case "deploy_failed":
		return ui.ErrorMsg("deploy failed: %s", strings.TrimSpace(ev.Message)), true
	default:
		return "", false
	}
}

func eventTarget(ev deploy.ProgressEvent) string {
	container := strings.TrimSpace(ev.Container)
	service := strings.TrimSpace(ev.Service)
	switch {
	case container != "" && service != "":
		return ui.Accent(container) + " for " + ui.Accent(service)
	case container != "":
		return ui.Accent(container)
	case service != "":
		return ui.Accent(service)
	default:
		return "-"
	}
}
