package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v68/github"

	"github.com/byte4ever/workbench_sync/repo"
)

// Config holds the settings needed to talk to GitHub on
// behalf of one credential.
type Config struct {
	// AccessToken is the OAuth or personal access token
	// used for authentication.
	AccessToken repo.Credential
	// EnterpriseHost is an optional GitHub Enterprise
	// hostname (e.g. "git.corp.example.com"). Leave
	// empty for github.com.
	EnterpriseHost string
	// BaseURL overrides the API root
	// (e.g. "http://127.0.0.1:8080/"). Takes precedence
	// over EnterpriseHost.
	BaseURL string
	// HTTPClient is an optional transport.
	HTTPClient *http.Client
}

// Client talks to the GitHub API with a single
// credential.
//
// Pattern: Adapter -- implements repo.Client and
// repo.Account.
type Client struct {
	client *gh.Client
}

var (
	_ repo.Client  = (*Client)(nil)
	_ repo.Account = (*Client)(nil)
)

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	const errCtx = "creating github client"

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	client := gh.NewClient(cfg.HTTPClient).
		WithAuthToken(string(cfg.AccessToken))

	switch {
	case cfg.BaseURL != "":
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}

		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: base url: %w", errCtx, err,
			)
		}

		client.BaseURL = u
	case cfg.EnterpriseHost != "":
		baseURL := "https://" +
			cfg.EnterpriseHost + "/api/v3/"
		uploadURL := "https://" +
			cfg.EnterpriseHost + "/api/uploads/"

		var err error

		client, err = client.WithEnterpriseURLs(
			baseURL, uploadURL,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: enterprise urls: %w",
				errCtx, err,
			)
		}
	}

	return &Client{client: client}, nil
}

// Factory returns a function building one Client per
// credential from a template configuration.
func Factory(
	cfg Config,
) func(repo.Credential) (repo.Client, error) {
	return func(cred repo.Credential) (repo.Client, error) {
		c := cfg
		c.AccessToken = cred

		return New(c)
	}
}

// AccountFactory is Factory for repo.Account.
func AccountFactory(
	cfg Config,
) func(repo.Credential) (repo.Account, error) {
	return func(cred repo.Credential) (repo.Account, error) {
		c := cfg
		c.AccessToken = cred

		return New(c)
	}
}

// BranchTip reads refs/heads/<branch>.
func (c *Client) BranchTip(
	ctx context.Context,
	ref repo.Ref,
	branch string,
) (string, error) {
	const errCtx = "reading github branch tip"

	r, resp, err := c.client.Git.GetRef(
		ctx, ref.Owner, ref.Name, "heads/"+branch,
	)
	if err != nil {
		return "", fmt.Errorf(
			"%s: %w", errCtx,
			remoteError(resp, err, http.StatusNotFound),
		)
	}

	return r.GetObject().GetSHA(), nil
}

// CommitTree reads the tree of a commit.
func (c *Client) CommitTree(
	ctx context.Context,
	ref repo.Ref,
	commitID string,
) (string, error) {
	const errCtx = "reading github commit"

	commit, resp, err := c.client.Git.GetCommit(
		ctx, ref.Owner, ref.Name, commitID,
	)
	if err != nil {
		return "", fmt.Errorf(
			"%s: %w", errCtx,
			remoteError(resp, err, http.StatusNotFound),
		)
	}

	return commit.GetTree().GetSHA(), nil
}

// CreateBlob uploads content with the utf-8 encoding
// tag.
func (c *Client) CreateBlob(
	ctx context.Context,
	ref repo.Ref,
	content string,
) (string, error) {
	const errCtx = "creating github blob"

	blob, resp, err := c.client.Git.CreateBlob(
		ctx, ref.Owner, ref.Name, &gh.Blob{
			Content:  gh.Ptr(content),
			Encoding: gh.Ptr("utf-8"),
		},
	)
	if err != nil {
		return "", fmt.Errorf(
			"%s: %w", errCtx, remoteError(resp, err),
		)
	}

	return blob.GetSHA(), nil
}

// CreateTree creates a tree layered on baseTreeID.
func (c *Client) CreateTree(
	ctx context.Context,
	ref repo.Ref,
	baseTreeID string,
	entries []repo.TreeEntry,
) (string, error) {
	const errCtx = "creating github tree"

	ghEntries := make([]*gh.TreeEntry, 0, len(entries))

	for _, e := range entries {
		ghEntries = append(ghEntries, &gh.TreeEntry{
			Path: gh.Ptr(e.Path),
			Mode: gh.Ptr(e.Mode),
			Type: gh.Ptr(e.Type),
			SHA:  gh.Ptr(e.BlobID),
		})
	}

	tree, resp, err := c.client.Git.CreateTree(
		ctx, ref.Owner, ref.Name, baseTreeID, ghEntries,
	)
	if err != nil {
		return "", fmt.Errorf(
			"%s: %w", errCtx, remoteError(resp, err),
		)
	}

	return tree.GetSHA(), nil
}

// CreateCommit creates a commit object. The branch is
// left untouched.
func (c *Client) CreateCommit(
	ctx context.Context,
	ref repo.Ref,
	message string,
	treeID string,
	parents []string,
) (repo.CommitRecord, error) {
	const errCtx = "creating github commit"

	ghParents := make([]*gh.Commit, 0, len(parents))
	for _, p := range parents {
		ghParents = append(ghParents, &gh.Commit{
			SHA: gh.Ptr(p),
		})
	}

	commit, resp, err := c.client.Git.CreateCommit(
		ctx, ref.Owner, ref.Name, &gh.Commit{
			Message: gh.Ptr(message),
			Tree:    &gh.Tree{SHA: gh.Ptr(treeID)},
			Parents: ghParents,
		}, nil,
	)
	if err != nil {
		return repo.CommitRecord{}, fmt.Errorf(
			"%s: %w", errCtx, remoteError(resp, err),
		)
	}

	rec := repo.CommitRecord{
		ID:      commit.GetSHA(),
		Message: commit.GetMessage(),
		TreeID:  commit.GetTree().GetSHA(),
		Parents: parents,
		Author:  commit.GetAuthor().GetName(),
		Date:    commit.GetAuthor().GetDate().Time,
	}

	if rec.TreeID == "" {
		rec.TreeID = treeID
	}

	if rec.Message == "" {
		rec.Message = message
	}

	return rec, nil
}

// UpdateBranch moves the branch without force. GitHub
// answers 422 ("Update is not a fast forward") when the
// branch moved; 409 and 422 both map to ErrConflict.
func (c *Client) UpdateBranch(
	ctx context.Context,
	ref repo.Ref,
	branch string,
	commitID string,
) error {
	const errCtx = "updating github branch"

	_, resp, err := c.client.Git.UpdateRef(
		ctx, ref.Owner, ref.Name, &gh.Reference{
			Ref: gh.Ptr("refs/heads/" + branch),
			Object: &gh.GitObject{
				SHA: gh.Ptr(commitID),
			},
		}, false,
	)
	if err != nil {
		return fmt.Errorf(
			"%s: %w", errCtx,
			remoteError(
				resp, err,
				http.StatusNotFound,
				http.StatusConflict,
				http.StatusUnprocessableEntity,
			),
		)
	}

	slog.Debug(
		"github branch updated",
		"repo", ref.String(),
		"branch", branch,
		"commit", commitID,
	)

	return nil
}

// ListCommits lists commits reachable from branch,
// newest first.
func (c *Client) ListCommits(
	ctx context.Context,
	ref repo.Ref,
	branch string,
	limit int,
) ([]repo.CommitRecord, error) {
	const errCtx = "listing github commits"

	commits, resp, err := c.client.Repositories.ListCommits(
		ctx, ref.Owner, ref.Name, &gh.CommitsListOptions{
			SHA:         branch,
			ListOptions: gh.ListOptions{PerPage: limit},
		},
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx,
			remoteError(resp, err, http.StatusNotFound),
		)
	}

	if limit > 0 && len(commits) > limit {
		commits = commits[:limit]
	}

	out := make([]repo.CommitRecord, 0, len(commits))

	for _, rc := range commits {
		parents := make([]string, 0, len(rc.Parents))
		for _, p := range rc.Parents {
			parents = append(parents, p.GetSHA())
		}

		out = append(out, repo.CommitRecord{
			ID:      rc.GetSHA(),
			Message: rc.GetCommit().GetMessage(),
			TreeID:  rc.GetCommit().GetTree().GetSHA(),
			Parents: parents,
			Author:  rc.GetCommit().GetAuthor().GetName(),
			Date:    rc.GetCommit().GetAuthor().GetDate().Time,
		})
	}

	return out, nil
}

// remoteError maps a go-github failure to
// *repo.RemoteError. Statuses listed in kinds get their
// taxonomy kind attached; transport failures are
// returned as is.
func remoteError(
	resp *gh.Response,
	err error,
	kinds ...int,
) error {
	if resp == nil || resp.Response == nil {
		return err
	}

	re := &repo.RemoteError{
		Status:  resp.StatusCode,
		Message: err.Error(),
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Message != "" {
		re.Message = ghErr.Message
	}

	for _, k := range kinds {
		if k != resp.StatusCode {
			continue
		}

		switch k {
		case http.StatusNotFound:
			re.Kind = repo.ErrNotFound
		case http.StatusConflict,
			http.StatusUnprocessableEntity:
			re.Kind = repo.ErrConflict
		}
	}

	return re
}
