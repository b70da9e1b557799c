package github

import (
	"context"
	"net/http"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
)

type client struct {
	githubClient *github.Client
}

// NewClient creates a new GitHub client with App authentication
func NewClient(appID, installationID int64, privateKey []byte) (interfaces.GitHubClient, error) {
	itr, err := ghinstallation.New(http.DefaultTransport, appID, installationID, privateKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create GitHub App transport")
	}

	return &client{
		githubClient: github.NewClient(&http.Client{Transport: itr}),
	}, nil
}

// NewClientWithToken creates a GitHub client from a personal access
// token, used by one-shot CLI dispatch where no App installation exists.
func NewClientWithToken(token string) interfaces.GitHubClient {
	return &client{
		githubClient: github.NewClient(nil).WithAuthToken(token),
	}
}

// GetPermissionLevel returns the collaborator permission level of a user
func (c *client) GetPermissionLevel(ctx context.Context, owner, repo, user string) (model.PermissionLevel, error) {
	perm, _, err := c.githubClient.Repositories.GetPermissionLevel(ctx, owner, repo, user)
	if err != nil {
		return model.PermissionNone, goerr.Wrap(err, "failed to get permission level",
			goerr.V("owner", owner), goerr.V("repo", repo), goerr.V("user", user))
	}

	return model.PermissionLevel(perm.GetPermission()), nil
}

// GetPullRequestHead returns the head commit SHA, branch ref and clone
// URL of a pull request.
func (c *client) GetPullRequestHead(ctx context.Context, owner, repo string, number int) (*interfaces.PullRequestHead, error) {
	pr, _, err := c.githubClient.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get pull request",
			goerr.V("owner", owner), goerr.V("repo", repo), goerr.V("number", number))
	}

	head := pr.GetHead()
	if head.GetSHA() == "" || head.GetRepo().GetCloneURL() == "" {
		return nil, goerr.New("pull request head is missing required fields",
			goerr.V("owner", owner), goerr.V("repo", repo), goerr.V("number", number))
	}

	return &interfaces.PullRequestHead{
		SHA:      head.GetSHA(),
		Ref:      head.GetRef(),
		CloneURL: head.GetRepo().GetCloneURL(),
	}, nil
}

// CreateComment creates a comment on a pull request or issue
func (c *client) CreateComment(ctx context.Context, owner, repo string, number int, body string) error {
	_, _, err := c.githubClient.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{
		Body: github.String(body),
	})
	if err != nil {
		return goerr.Wrap(err, "failed to create comment",
			goerr.V("owner", owner), goerr.V("repo", repo), goerr.V("number", number))
	}

	return nil
}
