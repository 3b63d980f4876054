package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"

	"github.com/byte4ever/workbench_sync/repo"
)

// StateFile is the name of the digest file kept at the
// workspace root.
const StateFile = ".workbench-sync.json"

// State remembers what was last pushed from a
// workspace.
type State struct {
	Repo    string            `json:"repo"`
	Branch  string            `json:"branch"`
	Commit  string            `json:"commit"`
	Pushed  time.Time         `json:"pushed"`
	Digests map[string]string `json:"digests"`
}

// Digest returns the SHA256 hex digest of content.
func Digest(content string) string {
	sum := sha256.Sum256([]byte(content))

	return hex.EncodeToString(sum[:])
}

// LoadState reads the state file under root. A missing
// file yields an empty state.
func LoadState(root string) (*State, error) {
	const errCtx = "loading workspace state"

	data, err := os.ReadFile( //nolint:gosec // caller-provided root
		filepath.Join(root, StateFile),
	)
	if errors.Is(err, os.ErrNotExist) {
		return &State{Digests: map[string]string{}}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf(
			"%s: parse json: %w", errCtx, err,
		)
	}

	if st.Digests == nil {
		st.Digests = map[string]string{}
	}

	return &st, nil
}

// Save writes the state file under root.
func (s *State) Save(root string) error {
	const errCtx = "saving workspace state"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := os.WriteFile(
		filepath.Join(root, StateFile), data, 0o600,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// Changed filters files to those whose content differs
// from the recorded digest. Everything is changed when
// the state belongs to another repository or branch.
func (s *State) Changed(
	ref repo.Ref,
	branch string,
	files []repo.FileChange,
) []repo.FileChange {
	if s.Repo != ref.String() || s.Branch != branch {
		return files
	}

	var out []repo.FileChange

	for _, f := range files {
		if s.Digests[f.Path] != Digest(f.Content) {
			out = append(out, f)
		}
	}

	return out
}

// Record merges a successful push into the state.
func (s *State) Record(
	ref repo.Ref,
	branch string,
	commit repo.CommitRecord,
	files []repo.FileChange,
	now time.Time,
) {
	if s.Repo != ref.String() || s.Branch != branch {
		s.Digests = map[string]string{}
	}

	if s.Digests == nil {
		s.Digests = map[string]string{}
	}

	s.Repo = ref.String()
	s.Branch = branch
	s.Commit = commit.ID
	s.Pushed = now

	for _, f := range files {
		s.Digests[f.Path] = Digest(f.Content)
	}
}
