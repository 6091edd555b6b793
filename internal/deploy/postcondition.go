package deploy

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// assertPostcondition re-reads engine state after an apply and verifies that
// every expected container exists, runs, and carries the expected image.
func assertPostcondition(ctx context.Context, rt ContainerRuntime, plan Plan) ([]ContainerResult, error) {
	expected := expectedContainers(plan)
	if len(expected) == 0 {
		return nil, nil
	}

	actual, err := rt.ContainerList(ctx, map[string]string{LabelStack: plan.Stack})
	if err != nil {
		return nil, &DeployError{
			Stack:   plan.Stack,
			Phase:   DeployErrorPhasePostcondition,
			Message: fmt.Sprintf("read engine state: %v", err),
		}
	}

	rows, mismatches := compareState(actual, expected)
	if mismatches == 0 {
		return rows, nil
	}
	return rows, &DeployError{
		Stack:   plan.Stack,
		Phase:   DeployErrorPhasePostcondition,
		Message: "container state mismatch",
	}
}

func compareState(actual []ContainerListEntry, expected []ContainerResult) ([]ContainerResult, int) {
	actualByName := make(map[string]ContainerListEntry, len(actual))
	for _, entry := range actual {
		actualByName[entry.Name] = entry
	}

	rows := make([]ContainerResult, 0, len(expected))
	mismatches := 0
	for _, want := range expected {
		got := ContainerResult{
			Service:       want.Service,
			ContainerName: want.ContainerName,
			Expected:      fmt.Sprintf("running image=%s", want.Expected),
		}

		entry, ok := actualByName[want.ContainerName]
		switch {
		case !ok:
			got.Actual = "missing"
		case !entry.Running:
			got.Actual = fmt.Sprintf("stopped image=%s", entry.Image)
		case entry.Image != want.Expected:
			got.Actual = fmt.Sprintf("running image=%s", entry.Image)
		default:
			got.Actual = fmt.Sprintf("running image=%s", entry.Image)
			got.Match = true
		}
		if !got.Match {
			mismatches++
		}
		rows = append(rows, got)
	}

	return rows, mismatches
}

func expectedContainers(plan Plan) []ContainerResult {
	out := make([]ContainerResult, 0, len(plan.Services))
	for _, svc := range plan.Services {
		if svc.Action == Remove {
			continue
		}
		image := strings.TrimSpace(svc.Spec.Image)
		if image == "" || svc.ContainerName == "" {
			continue
		}
		out = append(out, ContainerResult{
			Service:       svc.Name,
			ContainerName: svc.ContainerName,
			Expected:      image,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContainerName < out[j].ContainerName })
	return out
}
