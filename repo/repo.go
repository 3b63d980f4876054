package repo

import (
	"context"
	"time"
)

// DefaultBranch is used whenever a caller leaves the
// branch name empty.
const DefaultBranch = "main"

const (
	// ModeFile is the git mode of a regular,
	// non-executable file.
	ModeFile = "100644"
	// TypeBlob is the tree entry type of a file.
	TypeBlob = "blob"
)

// Credential is an opaque bearer token. It is never
// printed by the fmt verbs so it stays out of logs.
type Credential string

// String implements fmt.Stringer.
func (Credential) String() string {
	return "[redacted]"
}

// GoString implements fmt.GoStringer.
func (c Credential) GoString() string {
	return c.String()
}

// Ref identifies a remote repository.
type Ref struct {
	Owner string
	Name  string
}

// String returns "owner/name".
func (r Ref) String() string {
	return r.Owner + "/" + r.Name
}

// FileChange is the complete new content of one file.
// Content replaces the remote file; it is not a patch.
type FileChange struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// TreeEntry points a path at a blob inside a new tree.
type TreeEntry struct {
	Path   string
	Mode   string
	Type   string
	BlobID string
}

// CommitRecord describes one commit on a remote.
type CommitRecord struct {
	ID      string    `json:"sha"`
	Message string    `json:"message"`
	TreeID  string    `json:"tree,omitempty"`
	Parents []string  `json:"parents,omitempty"`
	Author  string    `json:"author,omitempty"`
	Date    time.Time `json:"date,omitempty"`
}

// Repository is one entry of an account's repository
// listing.
type Repository struct {
	Owner         string    `json:"owner"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Private       bool      `json:"private"`
	DefaultBranch string    `json:"defaultBranch,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt,omitempty"`
}

// Client wraps the object-graph primitives of a remote
// repository. Every method fails with *RemoteError on a
// non-success remote response.
type Client interface {
	// BranchTip returns the commit the branch points
	// at. Fails with ErrNotFound if the branch is
	// absent.
	BranchTip(
		ctx context.Context,
		ref Ref,
		branch string,
	) (string, error)

	// CommitTree returns the tree of a commit.
	CommitTree(
		ctx context.Context,
		ref Ref,
		commitID string,
	) (string, error)

	// CreateBlob stores UTF-8 content and returns the
	// blob id.
	CreateBlob(
		ctx context.Context,
		ref Ref,
		content string,
	) (string, error)

	// CreateTree overlays entries onto the base tree.
	// Paths in entries replace or add; every other
	// path is inherited from the base tree.
	CreateTree(
		ctx context.Context,
		ref Ref,
		baseTreeID string,
		entries []TreeEntry,
	) (string, error)

	// CreateCommit records a commit of treeID with the
	// given parents.
	CreateCommit(
		ctx context.Context,
		ref Ref,
		message string,
		treeID string,
		parents []string,
	) (CommitRecord, error)

	// UpdateBranch moves the branch to commitID. Only
	// fast-forward moves are accepted; ErrConflict is
	// returned when the branch moved since it was read.
	UpdateBranch(
		ctx context.Context,
		ref Ref,
		branch string,
		commitID string,
	) error

	// ListCommits returns at most limit commits of the
	// branch, newest first.
	ListCommits(
		ctx context.Context,
		ref Ref,
		branch string,
		limit int,
	) ([]CommitRecord, error)
}

// Account exposes the identity behind a credential and
// its repositories.
type Account interface {
	Login(ctx context.Context) (string, error)

	ListRepositories(
		ctx context.Context,
		limit int,
	) ([]Repository, error)

	CreateRepository(
		ctx context.Context,
		name string,
		description string,
		private bool,
	) (Repository, error)
}

// Pusher pushes a set of file changes as one commit and
// lists the commits of a branch.
//
// Pattern: Strategy -- swap hosting platform without
// changing callers.
type Pusher interface {
	Push(
		ctx context.Context,
		cred Credential,
		ref Ref,
		branch string,
		files []FileChange,
		message string,
	) (CommitRecord, error)

	FetchCommits(
		ctx context.Context,
		cred Credential,
		ref Ref,
		branch string,
		perPage int,
	) ([]CommitRecord, error)
}

// BranchOrDefault returns branch, or DefaultBranch when
// branch is empty.
func BranchOrDefault(branch string) string {
	if branch == "" {
		return DefaultBranch
	}

	return branch
}
