package model

import "time"

// DeploymentState is the aggregate health of the coordinator.
type DeploymentState string

const (
	// DeploymentRunning means every component is initialized and reachable.
	DeploymentRunning DeploymentState = "running"
	// DeploymentDegraded means at least one component failed its probe.
	DeploymentDegraded DeploymentState = "degraded"
)

// Component names reported in DeploymentStatus.
const (
	ComponentJobManager      = "job_manager"
	ComponentServiceRegistry = "service_registry"
)

// ComponentStatus reports the health of one coordinator subsystem.
type ComponentStatus struct {
	Name        string `json:"name"`
	Initialized bool   `json:"initialized"`
	Reachable   bool   `json:"reachable"`
	Error       string `json:"error,omitempty"`
}

// Healthy reports whether the component is both initialized and reachable.
func (c ComponentStatus) Healthy() bool {
	return c.Initialized && c.Reachable
}

// DeploymentStatus is the coordinator's self-report of its subsystems.
type DeploymentStatus struct {
	Status       DeploymentState   `json:"status"`
	Components   []ComponentStatus `json:"components"`
	Jobs         JobStats          `json:"jobs"`
	LiveServices int               `json:"live_services"`
	CheckedAt    time.Time         `json:"checked_at"`
}

// DeploymentInfo is static build and runtime metadata.
type DeploymentInfo struct {
	Name            string    `json:"name"`
	Version         string    `json:"version"`
	Commit          string    `json:"commit"`
	BuildDate       string    `json:"build_date"`
	GoVersion       string    `json:"go_version"`
	RegistryBackend string    `json:"registry_backend"`
	StartedAt       time.Time `json:"started_at"`
}
