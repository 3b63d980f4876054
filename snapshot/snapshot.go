package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/byte4ever/workbench_sync/repo"
)

const (
	// DefaultBlobParallelism bounds concurrent blob
	// uploads when no option overrides it.
	DefaultBlobParallelism = 8
	// DefaultPerPage is used by FetchCommits when the
	// caller passes a non-positive page size.
	DefaultPerPage = 10
	// MaxPerPage caps FetchCommits page sizes.
	MaxPerPage = 100
)

// Step names one stage of a push.
type Step string

// Push stages, in execution order.
const (
	StepReadTip      Step = "read branch tip"
	StepReadTree     Step = "read base tree"
	StepCreateBlobs  Step = "create blobs"
	StepCreateTree   Step = "create tree"
	StepCreateCommit Step = "create commit"
	StepUpdateBranch Step = "update branch"
)

// StepError reports the push stage that failed.
type StepError struct {
	Step Step
	Err  error
}

// Error implements error.
func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

// Unwrap returns the cause.
func (e *StepError) Unwrap() error {
	return e.Err
}

// ClientFactory builds a repository client carrying
// one credential.
type ClientFactory func(repo.Credential) (repo.Client, error)

// Option configures a Syncer.
type Option func(*Syncer)

// WithBlobParallelism bounds concurrent blob uploads.
// Values below 1 mean sequential uploads.
func WithBlobParallelism(n int) Option {
	return func(s *Syncer) {
		if n < 1 {
			n = 1
		}

		s.blobParallelism = n
	}
}

// Syncer pushes snapshots through repo.Client values
// built per call.
//
// Pattern: Strategy -- implements repo.Pusher.
type Syncer struct {
	newClient       ClientFactory
	blobParallelism int
}

var _ repo.Pusher = (*Syncer)(nil)

// New returns a Syncer using factory to reach the
// remote.
func New(factory ClientFactory, opts ...Option) *Syncer {
	s := &Syncer{
		newClient:       factory,
		blobParallelism: DefaultBlobParallelism,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Push commits files onto branch (DefaultBranch when
// empty) and returns the new commit. Paths absent from
// files are left untouched on the remote.
func (s *Syncer) Push(
	ctx context.Context,
	cred repo.Credential,
	ref repo.Ref,
	branch string,
	files []repo.FileChange,
	message string,
) (repo.CommitRecord, error) {
	const errCtx = "pushing snapshot"

	if err := Validate(ref, files, message); err != nil {
		return repo.CommitRecord{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	branch = repo.BranchOrDefault(branch)

	client, err := s.newClient(cred)
	if err != nil {
		return repo.CommitRecord{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	start := time.Now()

	// Step 1: current tip.
	tip, err := client.BranchTip(ctx, ref, branch)
	if err != nil {
		return repo.CommitRecord{}, stepErr(
			errCtx, StepReadTip, err,
		)
	}

	// Step 2: base tree of the tip.
	baseTree, err := client.CommitTree(ctx, ref, tip)
	if err != nil {
		return repo.CommitRecord{}, stepErr(
			errCtx, StepReadTree, err,
		)
	}

	// Step 3: one blob per file.
	entries, err := s.createBlobs(ctx, client, ref, files)
	if err != nil {
		return repo.CommitRecord{}, stepErr(
			errCtx, StepCreateBlobs, err,
		)
	}

	// Step 4: overlay tree.
	tree, err := client.CreateTree(ctx, ref, baseTree, entries)
	if err != nil {
		return repo.CommitRecord{}, stepErr(
			errCtx, StepCreateTree, err,
		)
	}

	// Step 5: commit with the old tip as only parent.
	commit, err := client.CreateCommit(
		ctx, ref, message, tree, []string{tip},
	)
	if err != nil {
		return repo.CommitRecord{}, stepErr(
			errCtx, StepCreateCommit, err,
		)
	}

	// Step 6: fast-forward the branch.
	if err := client.UpdateBranch(
		ctx, ref, branch, commit.ID,
	); err != nil {
		return repo.CommitRecord{}, stepErr(
			errCtx, StepUpdateBranch, err,
		)
	}

	slog.Info(
		"pushed snapshot",
		"repo", ref.String(),
		"branch", branch,
		"commit", commit.ID,
		"files", len(files),
		"elapsed", time.Since(start),
	)

	return commit, nil
}

// FetchCommits lists at most perPage commits of branch,
// newest first.
func (s *Syncer) FetchCommits(
	ctx context.Context,
	cred repo.Credential,
	ref repo.Ref,
	branch string,
	perPage int,
) ([]repo.CommitRecord, error) {
	const errCtx = "fetching commits"

	if err := ValidateRef(ref); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	perPage = ClampPerPage(perPage)

	client, err := s.newClient(cred)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	commits, err := client.ListCommits(
		ctx, ref, repo.BranchOrDefault(branch), perPage,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if len(commits) > perPage {
		commits = commits[:perPage]
	}

	return commits, nil
}

// createBlobs uploads every file with bounded
// concurrency. Entries keep the order of files.
func (s *Syncer) createBlobs(
	ctx context.Context,
	client repo.Client,
	ref repo.Ref,
	files []repo.FileChange,
) ([]repo.TreeEntry, error) {
	entries := make([]repo.TreeEntry, len(files))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.blobParallelism)

	for i, f := range files {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			blob, err := client.CreateBlob(gCtx, ref, f.Content)
			if err != nil {
				return fmt.Errorf("%s: %w", f.Path, err)
			}

			entries[i] = repo.TreeEntry{
				Path:   f.Path,
				Mode:   repo.ModeFile,
				Type:   repo.TypeBlob,
				BlobID: blob,
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return entries, nil
}

// Validate checks a push request before any remote call.
// Failures match repo.ErrValidation.
func Validate(
	ref repo.Ref,
	files []repo.FileChange,
	message string,
) error {
	if err := ValidateRef(ref); err != nil {
		return err
	}

	if len(files) == 0 {
		return repo.Invalid("files", "must not be empty")
	}

	if strings.TrimSpace(message) == "" {
		return repo.Invalid("message", "must not be empty")
	}

	seen := make(map[string]struct{}, len(files))

	for _, f := range files {
		if err := validatePath(f.Path); err != nil {
			return err
		}

		if _, dup := seen[f.Path]; dup {
			return repo.Invalid(
				"files", "duplicate path "+f.Path,
			)
		}

		seen[f.Path] = struct{}{}
	}

	// A file cannot also be a directory of another file.
	for _, f := range files {
		for dir := path.Dir(f.Path); dir != "."; dir = path.Dir(dir) {
			if _, ok := seen[dir]; ok {
				return repo.Invalid(
					"files",
					"path "+dir+" conflicts with "+f.Path,
				)
			}
		}
	}

	return nil
}

// ValidateRef requires a non-empty owner and name.
func ValidateRef(ref repo.Ref) error {
	if ref.Owner == "" {
		return repo.Invalid("owner", "must not be empty")
	}

	if ref.Name == "" {
		return repo.Invalid("repo", "must not be empty")
	}

	return nil
}

// validatePath accepts clean, relative, slash separated
// paths that stay inside the repository.
func validatePath(p string) error {
	switch {
	case p == "":
		return repo.Invalid("path", "must not be empty")
	case strings.HasPrefix(p, "/"):
		return repo.Invalid("path", p+" must be relative")
	case path.Clean(p) != p:
		return repo.Invalid("path", p+" must be clean")
	case p == "." || p == ".." || strings.HasPrefix(p, "../"):
		return repo.Invalid("path", p+" escapes the repository")
	}

	return nil
}

// ClampPerPage applies DefaultPerPage and MaxPerPage.
func ClampPerPage(n int) int {
	switch {
	case n <= 0:
		return DefaultPerPage
	case n > MaxPerPage:
		return MaxPerPage
	default:
		return n
	}
}

func stepErr(errCtx string, step Step, err error) error {
	return fmt.Errorf("%s: %w", errCtx, &StepError{
		Step: step,
		Err:  err,
	})
}
