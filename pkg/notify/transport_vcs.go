package notify

import (
	"context"
	"fmt"
)

// VCSCommenter is the minimal slice of the Tool Provider's VCS capability
// (spec §4.11) the Notification Channel needs: posting a comment against a
// project's tracked pull/merge request. Declared locally so pkg/notify does
// not depend on pkg/toolprovider; any implementation satisfying this
// interface can be wired in by the composition root.
type VCSCommenter interface {
	CommentOnProject(ctx context.Context, projectID, text string) error
}

// VCSCommentTransport delivers chunks as comments on a project's VCS thread
// instead of a live chat connection, used for A2A flows triggered from a
// VCS-comment platform (spec.md §3 User Session platform enum).
type VCSCommentTransport struct {
	commenter  VCSCommenter
	projectIDs func(userID string) (string, bool)
}

// NewVCSCommentTransport builds a transport that resolves userID to a
// project_id via projectIDs before posting.
func NewVCSCommentTransport(commenter VCSCommenter, projectIDs func(userID string) (string, bool)) *VCSCommentTransport {
	return &VCSCommentTransport{commenter: commenter, projectIDs: projectIDs}
}

// Deliver posts text as a comment on userID's linked project.
func (t *VCSCommentTransport) Deliver(ctx context.Context, userID, text string) error {
	projectID, ok := t.projectIDs(userID)
	if !ok {
		return fmt.Errorf("notify: no project linked for %s", userID)
	}
	if err := t.commenter.CommentOnProject(ctx, projectID, text); err != nil {
		return fmt.Errorf("notify: vcs comment for %s: %w", userID, err)
	}
	return nil
}
