package types

import (
	"fmt"
	"time"
)

// AppType selects the deployment behavior for an application.
type AppType string

const (
	AppTypeRails  AppType = "rails"
	AppTypeNextjs AppType = "nextjs"
)

// App describes one deployable application as configured by the operator.
type App struct {
	Name          string
	Type          AppType
	RepoURL       string
	Branch        string
	Domain        string
	AltDomains    []string // alternate/internal domains covered by the same certificate
	Scale         int      // desired replica count for fresh deploys
	BasePort      int      // host port of ordinal 1; ordinal n binds basePort+n-1
	ContainerPort int      // port the app listens on inside the container
	HealthPath    string   // HTTP path polled during health checks
	Env           []string
}

// ReplicaName returns the canonical container name for an ordinal.
// The naming convention is the single source of truth for topology
// discovery: every run re-derives the replica set by listing containers
// matching it.
func (a *App) ReplicaName(ordinal int) string {
	return fmt.Sprintf("%s_web_%d", a.Name, ordinal)
}

// HostPort returns the permanent host port for an ordinal.
func (a *App) HostPort(ordinal int) int {
	return a.BasePort + ordinal - 1
}

// StagingPort returns the first free port above the scale range, used by
// the temporary replica during a rolling restart so it never collides with
// the still-running original.
func (a *App) StagingPort(scale int) int {
	return a.BasePort + scale
}

// Domains returns the full domain set the certificate must cover,
// primary first.
func (a *App) Domains() []string {
	out := make([]string, 0, 1+len(a.AltDomains))
	out = append(out, a.Domain)
	out = append(out, a.AltDomains...)
	return out
}

// ReplicaState tracks where a replica is in its lifecycle.
type ReplicaState string

const (
	ReplicaStateUnknown   ReplicaState = "unknown"
	ReplicaStateHealthy   ReplicaState = "healthy"
	ReplicaStateUnhealthy ReplicaState = "unhealthy"
	ReplicaStateFailed    ReplicaState = "failed"
)

// Replica is one named, numbered running instance of an application.
// Replicas are never persisted; they are reconstructed each run by querying
// the container runtime for names matching the convention.
type Replica struct {
	AppName     string
	Ordinal     int // 1-based, stable across restarts
	HostPort    int
	ContainerID string
	State       ReplicaState
}

// PlanKind distinguishes the two deployment modes.
type PlanKind string

const (
	PlanFreshDeploy    PlanKind = "fresh-deploy"
	PlanRollingRestart PlanKind = "rolling-restart"
	// PlanUnknown marks a run that failed before a plan was computed.
	PlanUnknown PlanKind = "unknown"
)

// DeploymentPlan is the ephemeral decision computed once per invocation.
// For a rolling restart the replica count always matches what is observed
// running, never a newly requested scale.
type DeploymentPlan struct {
	Kind     PlanKind
	Replicas int
	Image    string
}

// Backend is one load-balancer target.
type Backend struct {
	Host string
	Port int
}

func (b Backend) Addr() string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}

// UpstreamSet is the ordered backend list for one application. It must
// always equal the set of currently healthy replicas; it is recomputed and
// republished after every successful replica transition.
type UpstreamSet struct {
	AppName  string
	Domain   string
	Backends []Backend
}

// CertAction records what the certificate guardian did on a run.
type CertAction string

const (
	CertObtained CertAction = "obtained"
	CertExpanded CertAction = "expanded"
	CertValid    CertAction = "valid"
	CertSkipped  CertAction = "skipped"
	CertFailed   CertAction = "failed"
)

// CertificateRecord describes the TLS certificate covering a domain group.
// The authority owns the underlying state; this is a per-run snapshot.
type CertificateRecord struct {
	Name    string
	Domains []string
	Expiry  time.Time
}

// Covers reports whether the certificate covers every domain in want.
func (c *CertificateRecord) Covers(want []string) bool {
	if c == nil {
		return false
	}
	have := make(map[string]bool, len(c.Domains))
	for _, d := range c.Domains {
		have[d] = true
	}
	for _, d := range want {
		if !have[d] {
			return false
		}
	}
	return true
}

// CertResult is the guardian's verdict for one domain group.
type CertResult struct {
	Action  CertAction
	Message string
	Domains []string // domains at fault for Skipped, full target set otherwise
}

// Phase identifies where in a deployment an error occurred.
type Phase string

const (
	PhasePlan     Phase = "plan"
	PhasePull     Phase = "pull"
	PhaseBuild    Phase = "build"
	PhaseMigrate  Phase = "migrate"
	PhaseStart    Phase = "start"
	PhaseHealth   Phase = "health-check"
	PhaseStopOld  Phase = "stop-old"
	PhaseFinalize Phase = "finalize"
	PhasePublish  Phase = "publish"
	PhaseCert     Phase = "certificate"
)

// DeployReport is the aggregated outcome returned to the caller.
type DeployReport struct {
	ID            string
	AppName       string
	Plan          *DeploymentPlan
	StartedAt     time.Time
	FinishedAt    time.Time
	Succeeded     bool
	FailedPhase   Phase
	FailedOrdinal int // 0 when not ordinal-specific
	Error         string
	CertResult    *CertResult
}

// Summary renders the one-line human-readable verdict.
func (r *DeployReport) Summary() string {
	if r.Succeeded {
		return fmt.Sprintf("%s: %s of %d replica(s) succeeded (image %s)",
			r.AppName, r.Plan.Kind, r.Plan.Replicas, r.Plan.Image)
	}
	if r.FailedOrdinal > 0 {
		return fmt.Sprintf("%s: %s failed at ordinal %d during %s: %s",
			r.AppName, r.Plan.Kind, r.FailedOrdinal, r.FailedPhase, r.Error)
	}
	return fmt.Sprintf("%s: deployment failed during %s: %s", r.AppName, r.FailedPhase, r.Error)
}

// ReleaseRecord is the structured history entry persisted per deployment.
type ReleaseRecord struct {
	ID         string    `json:"id"`
	AppName    string    `json:"app_name"`
	Image      string    `json:"image"`
	Replicas   int       `json:"replicas"`
	Kind       PlanKind  `json:"kind"`
	Succeeded  bool      `json:"succeeded"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
