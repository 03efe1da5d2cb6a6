// Package fake is an in-memory, deterministic Provider used by workflow
// tests, grounded on the teacher's internal/mocks package naming and shape:
// no network calls, no randomness, every operation succeeds unless
// explicitly configured to fail.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"agentcore/pkg/toolprovider"
)

// Provider is a scriptable fake satisfying toolprovider.Provider.
type Provider struct {
	mu sync.Mutex

	repos   map[string]map[string]string // projectID -> path -> content
	deploys map[string]*toolprovider.DeployResult

	DeployShouldFail  bool
	DeployBuildLog    string
	ScenarioShouldPass bool
	ScenarioFailures  []string
}

// New builds an empty fake Provider with scenarios passing by default.
func New() *Provider {
	return &Provider{
		repos:              make(map[string]map[string]string),
		deploys:            make(map[string]*toolprovider.DeployResult),
		ScenarioShouldPass: true,
	}
}

func (p *Provider) CreateRepo(ctx context.Context, projectID, name string) (any, int64, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.repos[projectID]; !ok {
		p.repos[projectID] = make(map[string]string)
	}
	return map[string]string{"name": name, "project_id": projectID}, 1, uuid.NewString(), nil
}

func (p *Provider) Commit(ctx context.Context, req toolprovider.CommitRequest) (any, int64, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	files, ok := p.repos[req.ProjectID]
	if !ok {
		files = make(map[string]string)
		p.repos[req.ProjectID] = files
	}
	for path, content := range req.Files {
		files[path] = content
	}
	return map[string]string{"message": req.Message, "files_changed": fmt.Sprintf("%d", len(req.Files))}, 1, uuid.NewString(), nil
}

func (p *Provider) ReadFile(ctx context.Context, projectID, path string) (string, int64, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	files, ok := p.repos[projectID]
	if !ok {
		return "", 1, uuid.NewString(), fmt.Errorf("fake: no repo for project %s", projectID)
	}
	content, ok := files[path]
	if !ok {
		return "", 1, uuid.NewString(), fmt.Errorf("fake: no file %s in project %s", path, projectID)
	}
	return content, 1, uuid.NewString(), nil
}

func (p *Provider) Deploy(ctx context.Context, projectID string, artifactBundle []byte) (*toolprovider.DeployResult, int64, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := &toolprovider.DeployResult{
		URL:      fmt.Sprintf("https://%s.example-deploy.test", projectID),
		BuildLog: p.DeployBuildLog,
		Success:  !p.DeployShouldFail,
	}
	p.deploys[projectID] = result
	return result, 5, uuid.NewString(), nil
}

func (p *Provider) Redeploy(ctx context.Context, projectID string) (*toolprovider.DeployResult, int64, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev, ok := p.deploys[projectID]
	if !ok {
		return nil, 1, uuid.NewString(), fmt.Errorf("fake: no prior deploy for project %s", projectID)
	}
	result := &toolprovider.DeployResult{URL: prev.URL, BuildLog: p.DeployBuildLog, Success: !p.DeployShouldFail}
	p.deploys[projectID] = result
	return result, 5, uuid.NewString(), nil
}

func (p *Provider) CreateDatabaseProject(ctx context.Context, projectID string) (*toolprovider.DatabaseProject, int64, string, error) {
	return &toolprovider.DatabaseProject{
		ProjectID:     projectID,
		ConnectionURL: fmt.Sprintf("postgres://fake/%s", projectID),
		PooledURL:     fmt.Sprintf("postgres://fake-pooled/%s", projectID),
		Region:        "us-east-1",
		BranchID:      "main",
		DBName:        projectID,
	}, 10, uuid.NewString(), nil
}

func (p *Provider) RunScenario(ctx context.Context, url string, steps []string) (*toolprovider.BrowserTestResult, int64, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &toolprovider.BrowserTestResult{Pass: p.ScenarioShouldPass, Failures: p.ScenarioFailures}, 20, uuid.NewString(), nil
}

var _ toolprovider.Provider = (*Provider)(nil)
