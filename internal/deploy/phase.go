package deploy

import (
	"encoding/json"
	"fmt"
	"strings"
)

type DeployPhase uint8

const (
	DeployInProgress DeployPhase = iota + 1
	DeploySucceeded
	DeployFailed
	DeployRemoved
)

func (p DeployPhase) String() string {
	switch p {
	case DeployInProgress:
		return "in_progress"
	case DeploySucceeded:
		return "succeeded"
	case DeployFailed:
		return "failed"
	case DeployRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

func (p DeployPhase) IsValid() bool {
	switch p {
	case DeployInProgress, DeploySucceeded, DeployFailed, DeployRemoved:
		return true
	default:
		return false
	}
}

func (p DeployPhase) MarshalJSON() ([]byte, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("invalid deploy phase: %d", p)
	}
	return json.Marshal(p.String())
}

func (p *DeployPhase) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	next, ok := ParseDeployPhase(raw)
	if !ok {
		return fmt.Errorf("invalid deploy phase: %q", raw)
	}
	*p = next
	return nil
}

func ParseDeployPhase(raw string) (DeployPhase, bool) {
	switch strings.TrimSpace(raw) {
	case "in_progress":
		return DeployInProgress, true
	case "succeeded":
		return DeploySucceeded, true
	case "failed":
		return DeployFailed, true
	case "removed":
		return DeployRemoved, true
	default:
		return 0, false
	}
}

// DeployErrorPhase locates where in the apply pipeline a failure happened.
type DeployErrorPhase uint8

const (
	DeployErrorPhasePreFlight DeployErrorPhase = iota + 1
	DeployErrorPhasePrePull
	DeployErrorPhaseVolume
	DeployErrorPhaseExecute
	DeployErrorPhaseHealth
	DeployErrorPhasePostcondition
	DeployErrorPhasePostFlight
)

func (p DeployErrorPhase) String() string {
	switch p {
	case DeployErrorPhasePreFlight:
		return "preflight"
	case DeployErrorPhasePrePull:
		return "prepull"
	case DeployErrorPhaseVolume:
		return "volume"
	case DeployErrorPhaseExecute:
		return "execute"
	case DeployErrorPhaseHealth:
		return "health"
	case DeployErrorPhasePostcondition:
		return "postcondition"
	case DeployErrorPhasePostFlight:
		return "postflight"
	default:
		return "unknown"
	}
}

func (p DeployErrorPhase) IsValid() bool {
	switch p {
	case DeployErrorPhasePreFlight,
		DeployErrorPhasePrePull,
		DeployErrorPhaseVolume,
		DeployErrorPhaseExecute,
		DeployErrorPhaseHealth,
		DeployErrorPhasePostcondition,
		DeployErrorPhasePostFlight:
		return true
	default:
		return false
	}
}
