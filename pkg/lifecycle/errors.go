package lifecycle

import (
	"fmt"

	"github.com/bollardhq/bollard/pkg/types"
)

// PhaseError identifies which ordinal and which phase a lifecycle
// operation failed in. The controller never continues past a failed
// ordinal, so one PhaseError describes the whole failure.
type PhaseError struct {
	Phase   types.Phase
	Ordinal int
	Err     error
}

func (e *PhaseError) Error() string {
	if e.Ordinal > 0 {
		return fmt.Sprintf("replica %d: %s failed: %v", e.Ordinal, e.Phase, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

func phaseErr(phase types.Phase, ordinal int, err error) *PhaseError {
	return &PhaseError{Phase: phase, Ordinal: ordinal, Err: err}
}
