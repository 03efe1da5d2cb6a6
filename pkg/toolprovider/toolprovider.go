// Package toolprovider defines the uniform façade for external capabilities
// agents invoke (spec §4.11): VCS, Deploy, Database provisioning, and
// Browser test. Every operation is idempotent on a project-scoped key where
// possible and returns an opaque result passed unchanged to agents.
package toolprovider

import (
	"context"
)

// CommitRequest describes a single commit operation.
type CommitRequest struct {
	ProjectID string
	Message   string
	Files     map[string]string // path -> content
}

// DeployResult is the opaque response from Deploy/Redeploy.
type DeployResult struct {
	URL      string
	BuildLog string
	Success  bool
}

// DatabaseProject is the opaque response from CreateDatabaseProject, whose
// fields are durably linked into Orchestrator State's project_metadata
// (spec §4.11 "Durable linkage").
type DatabaseProject struct {
	ProjectID     string
	ConnectionURL string
	PooledURL     string
	Region        string
	BranchID      string
	DBName        string
}

// BrowserTestResult reports the outcome of one scripted browser scenario.
type BrowserTestResult struct {
	Pass     bool
	Failures []string
}

// Provider is the uniform façade every capability implements. Each
// operation returns how long it took and a trace_id for telemetry
// correlation alongside its (opaque) result.
type Provider interface {
	CreateRepo(ctx context.Context, projectID, name string) (result any, durationMS int64, traceID string, err error)
	Commit(ctx context.Context, req CommitRequest) (result any, durationMS int64, traceID string, err error)
	ReadFile(ctx context.Context, projectID, path string) (content string, durationMS int64, traceID string, err error)

	Deploy(ctx context.Context, projectID string, artifactBundle []byte) (result *DeployResult, durationMS int64, traceID string, err error)
	Redeploy(ctx context.Context, projectID string) (result *DeployResult, durationMS int64, traceID string, err error)

	CreateDatabaseProject(ctx context.Context, projectID string) (result *DatabaseProject, durationMS int64, traceID string, err error)

	RunScenario(ctx context.Context, url string, steps []string) (result *BrowserTestResult, durationMS int64, traceID string, err error)
}
