package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/sjson"

	"agentcore/pkg/orchstate"
	"agentcore/pkg/registry"
	"agentcore/pkg/resilience"
	"agentcore/pkg/toolprovider"
)

// runDeployment implements the Deployment Retry loop (spec §4.4.4) as a
// second pkg/resilience.BoundedLoop instantiation: deploy, and on failure
// collect structured build errors and forward them to the implementer
// before looping.
func runDeployment(ctx context.Context, e *Engine, st *orchstate.State) (orchstate.Phase, error) {
	if st.ProjectID == "" {
		if err := e.provisionProject(ctx, st); err != nil {
			return "", fmt.Errorf("workflow: provision project: %w", err)
		}
	}

	var stepErr error
	var lastFailure string
	result, err := resilience.BoundedLoop(ctx, e.cfg.MaxBuildRetries, func(ctx context.Context, iteration int) (resilience.LoopOutcome, error) {
		deployResult, _, _, err := e.tools.Deploy(ctx, st.ProjectID, st.CurrentImplementation)
		if err != nil {
			stepErr = err
			lastFailure = err.Error()
			return resilience.LoopContinue, err
		}

		if deployResult.Success {
			verified, verifyErr := e.verifyDeploy(ctx, st, deployResult.URL)
			if verifyErr != nil {
				stepErr = verifyErr
				lastFailure = verifyErr.Error()
				return resilience.LoopContinue, verifyErr
			}
			if verified {
				return resilience.LoopSucceed, nil
			}
			// Verification failed post-deploy: treat like a build failure
			// and ask the implementer to fix, then retry.
			lastFailure = "post-deploy verification failed"
			resp, err := e.sendAgentTask(ctx, st, registry.RoleBackend, "Post-deploy verification failed; fix the implementation.")
			if err != nil {
				stepErr = err
				lastFailure = err.Error()
				return resilience.LoopContinue, err
			}
			st.CurrentImplementation = resp.Result
			return resilience.LoopContinue, nil
		}

		buildErrs := toolprovider.ExtractBuildErrors(deployResult.BuildLog)
		annotatedLog := annotateBuildLog(deployResult.BuildLog, st.ProjectID, iteration)
		_ = e.states.AppendAudit(st.UserID, "deploy_build_failed", json.RawMessage(annotatedLog))
		lastFailure = buildErrorsTaskDescription(buildErrs, annotatedLog)

		resp, err := e.sendAgentTask(ctx, st, registry.RoleBackend, buildErrorsTaskDescription(buildErrs, annotatedLog))
		if err != nil {
			stepErr = err
			lastFailure = err.Error()
			return resilience.LoopContinue, err
		}
		st.CurrentImplementation = resp.Result
		return resilience.LoopContinue, nil
	})
	if err != nil {
		return "", fmt.Errorf("workflow: deployment loop: %w", err)
	}
	if stepErr != nil {
		return "", fmt.Errorf("workflow: deployment loop: %w", stepErr)
	}
	if result.Outcome != resilience.LoopSucceed {
		return "", fmt.Errorf("workflow: deployment did not succeed after %d attempts, last error: %s", result.Iterations, lastFailure)
	}

	recordStepCompleted(st, e.cfg.StepsGrowthDelta, fmt.Sprintf("deployment(%d attempts)", result.Iterations))
	if err := e.states.Save(st); err != nil {
		return "", fmt.Errorf("workflow: persist deployment outcome: %w", err)
	}
	return orchstate.PhaseCompleted, nil
}

// verifyDeploy runs the devops agent's scripted acceptance scenario against
// the deployed URL (spec §4.4.4 "post-deploy verification passes").
func (e *Engine) verifyDeploy(ctx context.Context, st *orchstate.State, url string) (bool, error) {
	result, _, _, err := e.tools.RunScenario(ctx, url, []string{"smoke test"})
	if err != nil {
		return false, fmt.Errorf("run_scenario: %w", err)
	}
	return result.Pass, nil
}

// provisionProject creates the repo and database backing st's workflow the
// first time the deployment phase is entered, durably linking the result
// into project_metadata (spec §4.11 "durable linkage").
func (e *Engine) provisionProject(ctx context.Context, st *orchstate.State) error {
	projectID := st.UserID
	if _, _, _, err := e.tools.CreateRepo(ctx, projectID, "workflow-"+projectID); err != nil {
		return fmt.Errorf("create_repo: %w", err)
	}
	files := map[string]string{"implementation.json": string(st.CurrentImplementation)}
	if _, _, _, err := e.tools.Commit(ctx, toolprovider.CommitRequest{ProjectID: projectID, Message: "initial implementation", Files: files}); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	db, _, _, err := e.tools.CreateDatabaseProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("create_database_project: %w", err)
	}
	meta, err := json.Marshal(db)
	if err != nil {
		return fmt.Errorf("encode project metadata: %w", err)
	}

	st.ProjectID = projectID
	st.ProjectMetadata = meta
	return e.states.Save(st)
}

// annotateBuildLog stamps retry context onto the raw build-log artifact
// before it's handed to the implementer or written to the audit trail, so
// neither needs the orchestrator to thread project_id/iteration through a
// separate channel. Falls back to the untouched log if it isn't valid JSON.
func annotateBuildLog(rawLog, projectID string, iteration int) string {
	annotated, err := sjson.Set(rawLog, "project_id", projectID)
	if err != nil {
		return rawLog
	}
	annotated, err = sjson.Set(annotated, "retry_iteration", iteration)
	if err != nil {
		return rawLog
	}
	return annotated
}

func buildErrorsTaskDescription(errs []toolprovider.BuildError, rawLog string) string {
	if len(errs) == 0 {
		return "The deployment build failed:\n" + rawLog
	}
	desc := "The deployment build failed with these errors:\n"
	for _, e := range errs {
		desc += fmt.Sprintf("- %s:%d: %s\n", e.File, e.Line, e.Message)
	}
	return desc
}
