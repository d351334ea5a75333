package types

import "time"

// DeploymentState is the blue/green upgrade state machine of §4.6/§4.7.
type DeploymentState string

const (
	DeployIdle        DeploymentState = "idle"
	DeployStarting    DeploymentState = "starting"
	DeployReady       DeploymentState = "ready"
	DeploySwitched    DeploymentState = "switched"
	DeployRollingBack DeploymentState = "rolling_back"
)

// RegistryDaemon is one entry in RegistryRecord.Daemons, keyed by
// boot_id.
type RegistryDaemon struct {
	Host       string    `json:"host"`
	Port       int       `json:"port"`
	PID        int       `json:"pid"`
	Version    string    `json:"version"`
	StartTS    time.Time `json:"start_ts"`
	LastSeenTS time.Time `json:"last_seen_ts"`
	Draining   bool      `json:"draining"`
}

// RegistryWorkspace is one entry in RegistryRecord.Workspaces, keyed by
// canonicalized workspace path.
type RegistryWorkspace struct {
	BootID       string    `json:"boot_id"`
	LastActiveTS time.Time `json:"last_active_ts"`
	HTTPHost     string    `json:"http_host"`
	HTTPPort     int       `json:"http_port"`
}

// RegistryDeployment is the generation-stamped deployment block.
type RegistryDeployment struct {
	Generation       uint64          `json:"generation"`
	State            DeploymentState `json:"state"`
	ActiveBootID     string          `json:"active_boot_id"`
	CandidateBootID  string          `json:"candidate_boot_id"`
	OldBootID        string          `json:"old_boot_id"`
	SwitchTS         time.Time       `json:"switch_ts"`
	HealthFailStreak int             `json:"health_fail_streak"`
	RollbackReason   string          `json:"rollback_reason"`
}

// RegistryRecord is the single JSON document that is the SSOT for which
// daemon serves which workspace and where the gateway lives.
type RegistryRecord struct {
	SchemaVersion int                          `json:"version"`
	Daemons       map[string]RegistryDaemon     `json:"daemons"`
	Workspaces    map[string]RegistryWorkspace  `json:"workspaces"`
	Deployment    RegistryDeployment            `json:"deployment"`
}

// NewRegistryRecord returns an empty v2 record.
func NewRegistryRecord() *RegistryRecord {
	return &RegistryRecord{
		SchemaVersion: 2,
		Daemons:       make(map[string]RegistryDaemon),
		Workspaces:    make(map[string]RegistryWorkspace),
		Deployment:    RegistryDeployment{State: DeployIdle},
	}
}
