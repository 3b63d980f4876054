package memory

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/byte4ever/workbench_sync/repo"
)

// Store is a set of in-memory repositories owned by a
// single login. It is safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	login string
	repos map[repo.Ref]*repository

	// Now stamps commits. Defaults to time.Now.
	Now func() time.Time
}

type repository struct {
	storage     *memory.Storage
	description string
	private     bool
	updatedAt   time.Time
}

var (
	_ repo.Client  = (*Store)(nil)
	_ repo.Account = (*Store)(nil)
)

// New returns an empty Store owned by login.
func New(login string) *Store {
	return &Store{
		login: login,
		repos: make(map[repo.Ref]*repository),
		Now:   time.Now,
	}
}

// Factory returns a client factory serving s for every
// non-empty credential.
func (s *Store) Factory() func(repo.Credential) (repo.Client, error) {
	return func(cred repo.Credential) (repo.Client, error) {
		if cred == "" {
			return nil, errors.New(
				"creating memory client: access token must be set",
			)
		}

		return s, nil
	}
}

// AccountFactory is Factory for repo.Account.
func (s *Store) AccountFactory() func(repo.Credential) (repo.Account, error) {
	return func(cred repo.Credential) (repo.Account, error) {
		if cred == "" {
			return nil, errors.New(
				"creating memory account: access token must be set",
			)
		}

		return s, nil
	}
}

// Seed creates ref when needed and commits files on
// branch on top of its current tip. It returns the new
// commit id.
func (s *Store) Seed(
	ctx context.Context,
	ref repo.Ref,
	branch string,
	files map[string]string,
) (string, error) {
	const errCtx = "seeding memory repository"

	s.mu.Lock()
	if _, ok := s.repos[ref]; !ok {
		s.repos[ref] = s.newRepository("", false)
	}
	s.mu.Unlock()

	var (
		parents []string
		base    string
	)

	tip, err := s.BranchTip(ctx, ref, branch)

	switch {
	case err == nil:
		parents = []string{tip}

		base, err = s.CommitTree(ctx, ref, tip)
		if err != nil {
			return "", fmt.Errorf("%s: %w", errCtx, err)
		}
	case !errors.Is(err, repo.ErrNotFound):
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	entries := make([]repo.TreeEntry, 0, len(files))

	for _, p := range paths {
		blob, blobErr := s.CreateBlob(ctx, ref, files[p])
		if blobErr != nil {
			return "", fmt.Errorf("%s: %w", errCtx, blobErr)
		}

		entries = append(entries, repo.TreeEntry{
			Path:   p,
			Mode:   repo.ModeFile,
			Type:   repo.TypeBlob,
			BlobID: blob,
		})
	}

	tree, err := s.CreateTree(ctx, ref, base, entries)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	commit, err := s.CreateCommit(
		ctx, ref, "Initial commit", tree, parents,
	)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.repos[ref].storage
	name := plumbing.NewBranchReferenceName(branch)

	if err := st.SetReference(plumbing.NewHashReference(
		name, plumbing.NewHash(commit.ID),
	)); err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return commit.ID, nil
}

// ForceBranch points branch at commitID without any
// ancestry check. It simulates another writer.
func (s *Store) ForceBranch(
	ref repo.Ref,
	branch string,
	commitID string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.lookup(ref)
	if err != nil {
		return err
	}

	return r.storage.SetReference(plumbing.NewHashReference(
		plumbing.NewBranchReferenceName(branch),
		plumbing.NewHash(commitID),
	))
}

// Files flattens the tree at the tip of branch into a
// path to content map.
func (s *Store) Files(
	ctx context.Context,
	ref repo.Ref,
	branch string,
) (map[string]string, error) {
	const errCtx = "reading memory tree"

	tip, err := s.BranchTip(ctx, ref, branch)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.lookup(ref)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	commit, err := object.GetCommit(r.storage, plumbing.NewHash(tip))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	out := make(map[string]string)

	err = tree.Files().ForEach(func(f *object.File) error {
		content, contentErr := f.Contents()
		if contentErr != nil {
			return contentErr
		}

		out[f.Name] = content

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return out, nil
}

// BranchTip implements repo.Client.
func (s *Store) BranchTip(
	_ context.Context,
	ref repo.Ref,
	branch string,
) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.lookup(ref)
	if err != nil {
		return "", err
	}

	head, err := r.storage.Reference(
		plumbing.NewBranchReferenceName(branch),
	)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", notFound("branch " + branch)
	}

	if err != nil {
		return "", internal(err)
	}

	return head.Hash().String(), nil
}

// CommitTree implements repo.Client.
func (s *Store) CommitTree(
	_ context.Context,
	ref repo.Ref,
	commitID string,
) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.lookup(ref)
	if err != nil {
		return "", err
	}

	commit, err := r.commit(commitID)
	if err != nil {
		return "", err
	}

	return commit.TreeHash.String(), nil
}

// CreateBlob implements repo.Client.
func (s *Store) CreateBlob(
	_ context.Context,
	ref repo.Ref,
	content string,
) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.lookup(ref)
	if err != nil {
		return "", err
	}

	obj := r.storage.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)

	w, err := obj.Writer()
	if err != nil {
		return "", internal(err)
	}

	if _, err := io.Copy(w, strings.NewReader(content)); err != nil {
		return "", internal(err)
	}

	if err := w.Close(); err != nil {
		return "", internal(err)
	}

	h, err := r.storage.SetEncodedObject(obj)
	if err != nil {
		return "", internal(err)
	}

	return h.String(), nil
}

// CreateTree implements repo.Client. Nested paths
// produce nested trees; untouched entries of the base
// tree are kept.
func (s *Store) CreateTree(
	_ context.Context,
	ref repo.Ref,
	baseTreeID string,
	entries []repo.TreeEntry,
) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.lookup(ref)
	if err != nil {
		return "", err
	}

	base := plumbing.ZeroHash

	if baseTreeID != "" {
		if !isHash(baseTreeID) {
			return "", unprocessable("invalid base tree " + baseTreeID)
		}

		base = plumbing.NewHash(baseTreeID)
	}

	changes := make(map[string]object.TreeEntry, len(entries))

	for _, e := range entries {
		mode, modeErr := filemode.New(e.Mode)
		if modeErr != nil {
			return "", unprocessable("invalid mode " + e.Mode)
		}

		if !isHash(e.BlobID) {
			return "", unprocessable("invalid blob " + e.BlobID)
		}

		clean := path.Clean(e.Path)
		if e.Path == "" || clean != e.Path ||
			strings.HasPrefix(clean, "/") ||
			clean == "." || clean == ".." ||
			strings.HasPrefix(clean, "../") {
			return "", unprocessable("invalid path " + e.Path)
		}

		changes[clean] = object.TreeEntry{
			Mode: mode,
			Hash: plumbing.NewHash(e.BlobID),
		}
	}

	h, err := r.overlay(base, changes)
	if err != nil {
		return "", err
	}

	return h.String(), nil
}

// CreateCommit implements repo.Client.
func (s *Store) CreateCommit(
	_ context.Context,
	ref repo.Ref,
	message string,
	treeID string,
	parents []string,
) (repo.CommitRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.lookup(ref)
	if err != nil {
		return repo.CommitRecord{}, err
	}

	if !isHash(treeID) {
		return repo.CommitRecord{}, unprocessable("invalid tree " + treeID)
	}

	if _, err := object.GetTree(
		r.storage, plumbing.NewHash(treeID),
	); err != nil {
		return repo.CommitRecord{}, unprocessable("unknown tree " + treeID)
	}

	parentHashes := make([]plumbing.Hash, 0, len(parents))

	for _, p := range parents {
		if _, err := r.commit(p); err != nil {
			return repo.CommitRecord{}, unprocessable("unknown parent " + p)
		}

		parentHashes = append(parentHashes, plumbing.NewHash(p))
	}

	when := s.Now().UTC().Truncate(time.Second)
	sig := object.Signature{
		Name:  s.login,
		Email: s.login + "@users.noreply.local",
		When:  when,
	}

	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     plumbing.NewHash(treeID),
		ParentHashes: parentHashes,
	}

	obj := r.storage.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return repo.CommitRecord{}, internal(err)
	}

	h, err := r.storage.SetEncodedObject(obj)
	if err != nil {
		return repo.CommitRecord{}, internal(err)
	}

	r.updatedAt = when

	return repo.CommitRecord{
		ID:      h.String(),
		Message: message,
		TreeID:  treeID,
		Parents: append([]string(nil), parents...),
		Author:  s.login,
		Date:    when,
	}, nil
}

// UpdateBranch implements repo.Client with a
// fast-forward check against the current tip.
func (s *Store) UpdateBranch(
	_ context.Context,
	ref repo.Ref,
	branch string,
	commitID string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.lookup(ref)
	if err != nil {
		return err
	}

	name := plumbing.NewBranchReferenceName(branch)

	old, err := r.storage.Reference(name)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return notFound("branch " + branch)
	}

	if err != nil {
		return internal(err)
	}

	if _, err := r.commit(commitID); err != nil {
		return unprocessable("unknown commit " + commitID)
	}

	target := plumbing.NewHash(commitID)

	ff, err := r.descends(target, old.Hash())
	if err != nil {
		return internal(err)
	}

	if !ff {
		return &repo.RemoteError{
			Status:  http.StatusUnprocessableEntity,
			Message: "Update is not a fast forward",
			Kind:    repo.ErrConflict,
		}
	}

	if err := r.storage.CheckAndSetReference(
		plumbing.NewHashReference(name, target), old,
	); err != nil {
		return &repo.RemoteError{
			Status:  http.StatusConflict,
			Message: err.Error(),
			Kind:    repo.ErrConflict,
		}
	}

	return nil
}

// ListCommits implements repo.Client. It follows first
// parents from the branch tip.
func (s *Store) ListCommits(
	_ context.Context,
	ref repo.Ref,
	branch string,
	limit int,
) ([]repo.CommitRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.lookup(ref)
	if err != nil {
		return nil, err
	}

	head, err := r.storage.Reference(
		plumbing.NewBranchReferenceName(branch),
	)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, notFound("branch " + branch)
	}

	if err != nil {
		return nil, internal(err)
	}

	var out []repo.CommitRecord

	next := head.Hash()

	for !next.IsZero() && (limit <= 0 || len(out) < limit) {
		commit, commitErr := object.GetCommit(r.storage, next)
		if commitErr != nil {
			return nil, internal(commitErr)
		}

		parents := make([]string, 0, len(commit.ParentHashes))
		for _, p := range commit.ParentHashes {
			parents = append(parents, p.String())
		}

		out = append(out, repo.CommitRecord{
			ID:      commit.Hash.String(),
			Message: commit.Message,
			TreeID:  commit.TreeHash.String(),
			Parents: parents,
			Author:  commit.Author.Name,
			Date:    commit.Author.When,
		})

		next = plumbing.ZeroHash
		if len(commit.ParentHashes) > 0 {
			next = commit.ParentHashes[0]
		}
	}

	return out, nil
}

// Login implements repo.Account.
func (s *Store) Login(context.Context) (string, error) {
	return s.login, nil
}

// ListRepositories implements repo.Account, most
// recently updated first.
func (s *Store) ListRepositories(
	_ context.Context,
	limit int,
) ([]repo.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]repo.Repository, 0, len(s.repos))

	for ref, r := range s.repos {
		out = append(out, repo.Repository{
			Owner:         ref.Owner,
			Name:          ref.Name,
			Description:   r.description,
			Private:       r.private,
			DefaultBranch: repo.DefaultBranch,
			UpdatedAt:     r.updatedAt,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}

		return out[i].Name < out[j].Name
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// CreateRepository implements repo.Account. The new
// repository gets an empty initial commit on the
// default branch.
func (s *Store) CreateRepository(
	ctx context.Context,
	name string,
	description string,
	private bool,
) (repo.Repository, error) {
	const errCtx = "creating memory repository"

	if name == "" {
		return repo.Repository{}, fmt.Errorf(
			"%s: %w", errCtx,
			repo.Invalid("name", "must not be empty"),
		)
	}

	ref := repo.Ref{Owner: s.login, Name: name}

	s.mu.Lock()
	if _, ok := s.repos[ref]; ok {
		s.mu.Unlock()

		return repo.Repository{}, fmt.Errorf(
			"%s: %w", errCtx, &repo.RemoteError{
				Status:  http.StatusUnprocessableEntity,
				Message: "name already exists on this account",
			},
		)
	}

	s.repos[ref] = s.newRepository(description, private)
	s.mu.Unlock()

	if _, err := s.Seed(
		ctx, ref, repo.DefaultBranch, nil,
	); err != nil {
		return repo.Repository{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	s.mu.Lock()
	updatedAt := s.repos[ref].updatedAt
	s.mu.Unlock()

	return repo.Repository{
		Owner:         ref.Owner,
		Name:          ref.Name,
		Description:   description,
		Private:       private,
		DefaultBranch: repo.DefaultBranch,
		UpdatedAt:     updatedAt,
	}, nil
}

func (s *Store) newRepository(
	description string,
	private bool,
) *repository {
	return &repository{
		storage:     memory.NewStorage(),
		description: description,
		private:     private,
		updatedAt:   s.Now().UTC(),
	}
}

// lookup must be called with s.mu held.
func (s *Store) lookup(ref repo.Ref) (*repository, error) {
	r, ok := s.repos[ref]
	if !ok {
		return nil, notFound("repository " + ref.String())
	}

	return r, nil
}

func (r *repository) commit(id string) (*object.Commit, error) {
	if !isHash(id) {
		return nil, notFound("commit " + id)
	}

	c, err := object.GetCommit(r.storage, plumbing.NewHash(id))
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil, notFound("commit " + id)
	}

	if err != nil {
		return nil, internal(err)
	}

	return c, nil
}

// descends reports whether ancestor is reachable from
// h, h itself included.
func (r *repository) descends(
	h plumbing.Hash,
	ancestor plumbing.Hash,
) (bool, error) {
	seen := map[plumbing.Hash]bool{}
	queue := []plumbing.Hash{h}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur == ancestor {
			return true, nil
		}

		if seen[cur] {
			continue
		}

		seen[cur] = true

		c, err := object.GetCommit(r.storage, cur)
		if err != nil {
			return false, err
		}

		queue = append(queue, c.ParentHashes...)
	}

	return false, nil
}

// overlay writes a new tree made of base with changes
// applied. Keys of changes are slash separated paths
// relative to base.
func (r *repository) overlay(
	base plumbing.Hash,
	changes map[string]object.TreeEntry,
) (plumbing.Hash, error) {
	current := map[string]object.TreeEntry{}

	if !base.IsZero() {
		t, err := object.GetTree(r.storage, base)
		if err != nil {
			return plumbing.ZeroHash, unprocessable(
				"unknown tree " + base.String(),
			)
		}

		for _, e := range t.Entries {
			current[e.Name] = e
		}
	}

	nested := map[string]map[string]object.TreeEntry{}

	for p, e := range changes {
		dir, rest, isNested := strings.Cut(p, "/")
		if !isNested {
			e.Name = p
			current[p] = e

			continue
		}

		if nested[dir] == nil {
			nested[dir] = map[string]object.TreeEntry{}
		}

		nested[dir][rest] = e
	}

	for dir, sub := range nested {
		if _, leaf := changes[dir]; leaf {
			return plumbing.ZeroHash, unprocessable(
				"path " + dir + " is both a file and a directory",
			)
		}

		subBase := plumbing.ZeroHash
		if e, ok := current[dir]; ok && e.Mode == filemode.Dir {
			subBase = e.Hash
		}

		h, err := r.overlay(subBase, sub)
		if err != nil {
			return plumbing.ZeroHash, err
		}

		current[dir] = object.TreeEntry{
			Name: dir,
			Mode: filemode.Dir,
			Hash: h,
		}
	}

	tree := &object.Tree{
		Entries: make([]object.TreeEntry, 0, len(current)),
	}
	for _, e := range current {
		tree.Entries = append(tree.Entries, e)
	}

	// Git orders entries by name, directories compared
	// as if suffixed with "/".
	sort.Slice(tree.Entries, func(i, j int) bool {
		return sortKey(tree.Entries[i]) < sortKey(tree.Entries[j])
	})

	obj := r.storage.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, internal(err)
	}

	h, err := r.storage.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, internal(err)
	}

	return h, nil
}

func sortKey(e object.TreeEntry) string {
	if e.Mode == filemode.Dir {
		return e.Name + "/"
	}

	return e.Name
}

func isHash(s string) bool {
	if len(s) != 40 {
		return false
	}

	_, err := hex.DecodeString(s)

	return err == nil
}

func notFound(what string) error {
	return &repo.RemoteError{
		Status:  http.StatusNotFound,
		Message: what + " not found",
		Kind:    repo.ErrNotFound,
	}
}

func unprocessable(msg string) error {
	return &repo.RemoteError{
		Status:  http.StatusUnprocessableEntity,
		Message: msg,
	}
}

func internal(err error) error {
	return &repo.RemoteError{
		Status:  http.StatusInternalServerError,
		Message: err.Error(),
	}
}

// blobContent is used by tests through export_test.go.
func (s *Store) blobContent(ref repo.Ref, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.lookup(ref)
	if err != nil {
		return "", err
	}

	blob, err := object.GetBlob(r.storage, plumbing.NewHash(id))
	if err != nil {
		return "", notFound("blob " + id)
	}

	rd, err := blob.Reader()
	if err != nil {
		return "", internal(err)
	}

	defer rd.Close() //nolint:errcheck

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rd); err != nil {
		return "", internal(err)
	}

	return buf.String(), nil
}
