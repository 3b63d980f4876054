package github

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v68/github"

	"github.com/byte4ever/workbench_sync/repo"
)

// maxPerPage is the largest page GitHub serves.
const maxPerPage = 100

// Login returns the login of the authenticated user.
func (c *Client) Login(ctx context.Context) (string, error) {
	const errCtx = "reading github user"

	user, resp, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf(
			"%s: %w", errCtx, remoteError(resp, err),
		)
	}

	return user.GetLogin(), nil
}

// ListRepositories lists repositories of every
// visibility the user can access, most recently updated
// first.
func (c *Client) ListRepositories(
	ctx context.Context,
	limit int,
) ([]repo.Repository, error) {
	const errCtx = "listing github repositories"

	if limit <= 0 || limit > maxPerPage {
		limit = maxPerPage
	}

	repos, resp, err := c.client.Repositories.ListByAuthenticatedUser(
		ctx, &gh.RepositoryListByAuthenticatedUserOptions{
			Visibility:  "all",
			Sort:        "updated",
			ListOptions: gh.ListOptions{PerPage: limit},
		},
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, remoteError(resp, err),
		)
	}

	out := make([]repo.Repository, 0, len(repos))
	for _, r := range repos {
		out = append(out, toRepository(r))
	}

	return out, nil
}

// CreateRepository creates a repository owned by the
// authenticated user. The repository is initialised
// with a first commit so it has a branch to push to.
func (c *Client) CreateRepository(
	ctx context.Context,
	name string,
	description string,
	private bool,
) (repo.Repository, error) {
	const errCtx = "creating github repository"

	if name == "" {
		return repo.Repository{}, fmt.Errorf(
			"%s: %w", errCtx,
			repo.Invalid("name", "must not be empty"),
		)
	}

	created, resp, err := c.client.Repositories.Create(
		ctx, "", &gh.Repository{
			Name:        gh.Ptr(name),
			Description: gh.Ptr(description),
			Private:     gh.Ptr(private),
			AutoInit:    gh.Ptr(true),
		},
	)
	if err != nil {
		return repo.Repository{}, fmt.Errorf(
			"%s: %w", errCtx, remoteError(resp, err),
		)
	}

	return toRepository(created), nil
}

func toRepository(r *gh.Repository) repo.Repository {
	return repo.Repository{
		Owner:         r.GetOwner().GetLogin(),
		Name:          r.GetName(),
		Description:   r.GetDescription(),
		Private:       r.GetPrivate(),
		DefaultBranch: r.GetDefaultBranch(),
		UpdatedAt:     r.GetUpdatedAt().Time,
	}
}
