package interfaces

import (
	"context"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

// PullRequestHead is the subset of pull request data the gate exposes
type PullRequestHead struct {
	SHA      string
	Ref      string
	CloneURL string
}

// GitHubClient defines operations for interacting with GitHub API
type GitHubClient interface {
	// GetPermissionLevel returns the collaborator permission level of a
	// user on a repository.
	GetPermissionLevel(ctx context.Context, owner, repo, user string) (model.PermissionLevel, error)

	// GetPullRequestHead returns head commit SHA, branch ref and clone
	// URL of a pull request.
	GetPullRequestHead(ctx context.Context, owner, repo string, number int) (*PullRequestHead, error)

	// CreateComment creates a comment on a pull request or issue
	CreateComment(ctx context.Context, owner, repo string, number int, body string) error
}
