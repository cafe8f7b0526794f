/*
Package lifecycle implements the replica lifecycle controller: the
state machines that take one application from its current replica set to
the planned one.

# Fresh deploy

Per ordinal 1..N:

	Pending -> Starting -> HealthChecking -> Healthy | Failed

Each replica binds its permanent port (basePort+ordinal-1) and is health
checked with the short timeout. The first failure abandons the remaining
ordinals; healthy replicas keep running for the operator to retry around.

# Rolling restart

Per ordinal 1..N:

	OldRunning -> NewStarting -> NewHealthChecking -> NewHealthy
	           -> OldStopping -> OldStopped -> Finalizing -> Done

The replacement starts on a staging port above the scale range (so it
never collides with the running original) and is health checked with the
long warmup timeout. A replacement that never turns healthy is discarded,
the original keeps serving, and the whole restart aborts: fail closed.
An ordinal is never left with zero verified replicas. A settling delay
separates ordinals.

Everything is strictly sequential and single-threaded; the only blocking
operations are the bounded health-check polls and the settling delay.
Failures are PhaseErrors naming the ordinal and phase.
*/
package lifecycle
