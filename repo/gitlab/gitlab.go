package gitlab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	gl "gitlab.com/gitlab-org/api/client-go"
	"golang.org/x/sync/errgroup"

	"github.com/byte4ever/workbench_sync/repo"
	"github.com/byte4ever/workbench_sync/snapshot"
)

const (
	defaultHost = "https://gitlab.com"
	// listPerPage is the page size requested from the
	// commits API; results are truncated locally.
	listPerPage = 100
	// lookupParallelism bounds concurrent file lookups.
	lookupParallelism = 8
)

// Config holds the settings shared by every push.
type Config struct {
	// Host is the base URL of the GitLab instance
	// (e.g. "https://gitlab.com").
	Host string
	// HTTPClient is an optional transport.
	HTTPClient *http.Client
}

// Pusher pushes file snapshots to GitLab projects. The
// project path is ref.Owner + "/" + ref.Name.
//
// Pattern: Strategy -- implements repo.Pusher.
type Pusher struct {
	host       string
	httpClient *http.Client
}

var _ repo.Pusher = (*Pusher)(nil)

// New returns a Pusher for cfg.
func New(cfg Config) *Pusher {
	host := cfg.Host
	if host == "" {
		host = defaultHost
	}

	return &Pusher{
		host:       host,
		httpClient: cfg.HTTPClient,
	}
}

// Push commits files onto branch as one commit. Paths
// that already exist on the branch are updated, others
// are created.
func (p *Pusher) Push(
	ctx context.Context,
	cred repo.Credential,
	ref repo.Ref,
	branch string,
	files []repo.FileChange,
	message string,
) (repo.CommitRecord, error) {
	const errCtx = "pushing gitlab snapshot"

	if err := snapshot.Validate(ref, files, message); err != nil {
		return repo.CommitRecord{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	branch = repo.BranchOrDefault(branch)

	client, err := p.client(cred)
	if err != nil {
		return repo.CommitRecord{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	pid := ref.String()

	b, resp, err := client.Branches.GetBranch(
		pid, branch, gl.WithContext(ctx),
	)
	if err != nil {
		return repo.CommitRecord{}, stepErr(
			errCtx, snapshot.StepReadTip, remoteError(resp, err),
		)
	}

	var tip string
	if b.Commit != nil {
		tip = b.Commit.ID
	}

	actions, err := resolveActions(ctx, client, pid, tip, files)
	if err != nil {
		return repo.CommitRecord{}, stepErr(
			errCtx, snapshot.StepReadTree, err,
		)
	}

	created, resp, err := client.Commits.CreateCommit(
		pid,
		&gl.CreateCommitOptions{
			Branch:        gl.Ptr(branch),
			CommitMessage: gl.Ptr(message),
			Actions:       actions,
		},
		gl.WithContext(ctx),
	)
	if err != nil {
		return repo.CommitRecord{}, stepErr(
			errCtx, snapshot.StepCreateCommit, commitError(resp, err),
		)
	}

	rec := toRecord(created)

	if tip != "" && !slices.Equal(rec.Parents, []string{tip}) {
		// GitLab applied the actions on a newer head. The
		// listed files were unchanged there, so no other
		// writer's edit was overwritten.
		slog.Warn(
			"gitlab branch moved during push",
			"project", pid,
			"branch", branch,
			"read_tip", tip,
			"parents", rec.Parents,
		)
	}

	slog.Info(
		"pushed gitlab snapshot",
		"project", pid,
		"branch", branch,
		"commit", rec.ID,
		"files", len(files),
	)

	return rec, nil
}

// FetchCommits lists up to perPage commits of branch,
// newest first.
func (p *Pusher) FetchCommits(
	ctx context.Context,
	cred repo.Credential,
	ref repo.Ref,
	branch string,
	perPage int,
) ([]repo.CommitRecord, error) {
	const errCtx = "fetching gitlab commits"

	if err := snapshot.ValidateRef(ref); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	perPage = snapshot.ClampPerPage(perPage)

	client, err := p.client(cred)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	commits, resp, err := client.Commits.ListCommits(
		ref.String(),
		&gl.ListCommitsOptions{
			ListOptions: gl.ListOptions{PerPage: listPerPage},
			RefName:     gl.Ptr(repo.BranchOrDefault(branch)),
		},
		gl.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, remoteError(resp, err),
		)
	}

	if len(commits) > perPage {
		commits = commits[:perPage]
	}

	out := make([]repo.CommitRecord, 0, len(commits))
	for _, c := range commits {
		out = append(out, toRecord(c))
	}

	return out, nil
}

func (p *Pusher) client(cred repo.Credential) (*gl.Client, error) {
	if cred == "" {
		return nil, errors.New("access token must be set")
	}

	opts := []gl.ClientOptionFunc{gl.WithBaseURL(p.host)}
	if p.httpClient != nil {
		opts = append(opts, gl.WithHTTPClient(p.httpClient))
	}

	client, err := gl.NewClient(string(cred), opts...)
	if err != nil {
		return nil, fmt.Errorf("new client: %w", err)
	}

	return client, nil
}

// resolveActions decides create or update for every file
// by probing it at tip. An empty tip means an empty
// branch where everything is created. Updates carry the
// file's last commit so GitLab refuses them when another
// writer touched the file after tip.
func resolveActions(
	ctx context.Context,
	client *gl.Client,
	pid string,
	tip string,
	files []repo.FileChange,
) ([]*gl.CommitActionOptions, error) {
	actions := make([]*gl.CommitActionOptions, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupParallelism)

	for i, f := range files {
		g.Go(func() error {
			a := &gl.CommitActionOptions{
				Action:   gl.Ptr(gl.FileCreate),
				FilePath: gl.Ptr(f.Path),
				Content:  gl.Ptr(f.Content),
				Encoding: gl.Ptr("text"),
			}

			if tip != "" {
				last, exists, err := lastCommit(
					gctx, client, pid, tip, f.Path,
				)
				if err != nil {
					return fmt.Errorf("%s: %w", f.Path, err)
				}

				if exists {
					a.Action = gl.Ptr(gl.FileUpdate)
					a.LastCommitID = gl.Ptr(last)
				}
			}

			actions[i] = a

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // wrapped by caller
	}

	return actions, nil
}

// lastCommit returns the id of the last commit touching
// filePath as seen from tip, and whether the file exists.
func lastCommit(
	ctx context.Context,
	client *gl.Client,
	pid string,
	tip string,
	filePath string,
) (string, bool, error) {
	f, resp, err := client.RepositoryFiles.GetFile(
		pid,
		filePath,
		&gl.GetFileOptions{Ref: gl.Ptr(tip)},
		gl.WithContext(ctx),
	)
	if err == nil {
		return f.LastCommitID, true, nil
	}

	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return "", false, nil
	}

	return "", false, remoteError(resp, err)
}

func toRecord(c *gl.Commit) repo.CommitRecord {
	rec := repo.CommitRecord{
		ID:      c.ID,
		Message: c.Message,
		Parents: c.ParentIDs,
		Author:  c.AuthorName,
	}

	switch {
	case c.AuthoredDate != nil:
		rec.Date = c.AuthoredDate.UTC()
	case c.CommittedDate != nil:
		rec.Date = c.CommittedDate.UTC()
	}

	return rec
}

func stepErr(errCtx string, step snapshot.Step, err error) error {
	return fmt.Errorf("%s: %w", errCtx, &snapshot.StepError{
		Step: step,
		Err:  err,
	})
}

// staleMarkers identify GitLab's 400 answers to commit
// actions built against an outdated view of the branch.
var staleMarkers = []string{
	"changed since",
	"already exists",
	"doesn't exist",
	"does not exist",
}

// remoteError converts a failed API call into a
// *repo.RemoteError. Transport failures without a
// response are returned unchanged.
func remoteError(resp *gl.Response, err error) error {
	if resp == nil || resp.Response == nil {
		return err
	}

	re := &repo.RemoteError{
		Status:  resp.StatusCode,
		Message: err.Error(),
	}

	var glErr *gl.ErrorResponse
	if errors.As(err, &glErr) && glErr.Message != "" {
		re.Message = glErr.Message
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		re.Kind = repo.ErrNotFound
	case http.StatusConflict:
		re.Kind = repo.ErrConflict
	}

	return re
}

// commitError is remoteError for CreateCommit, where a
// 400 about stale files means the branch moved.
func commitError(resp *gl.Response, err error) error {
	mapped := remoteError(resp, err)

	var re *repo.RemoteError
	if !errors.As(mapped, &re) ||
		re.Status != http.StatusBadRequest {
		return mapped
	}

	msg := strings.ToLower(re.Message)
	for _, m := range staleMarkers {
		if strings.Contains(msg, m) {
			re.Kind = repo.ErrConflict

			break
		}
	}

	return mapped
}
