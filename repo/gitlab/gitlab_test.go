package gitlab_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/workbench_sync/repo"
	"github.com/byte4ever/workbench_sync/repo/gitlab"
	"github.com/byte4ever/workbench_sync/snapshot"
)

const projectPrefix = "/api/v4/projects/octo/hello/repository/"

var hello = repo.Ref{Owner: "octo", Name: "hello"}

type commitBody struct {
	Branch        string `json:"branch"`
	CommitMessage string `json:"commit_message"`
	Actions       []struct {
		Action   string `json:"action"`
		FilePath string `json:"file_path"`
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
		LastID   string `json:"last_commit_id"`
	} `json:"actions"`
}

// fakeGitLab serves the subset of the GitLab v4 API used
// by Pusher. Paths are matched on the decoded URL path
// because project and file ids are percent-encoded.
type fakeGitLab struct {
	mu       sync.Mutex
	tip      string
	existing map[string]bool
	created  *commitBody
	listQ     string
	createSt  int
	createMsg string
}

func (f *fakeGitLab) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	rest, ok := strings.CutPrefix(r.URL.Path, projectPrefix)
	if !ok {
		http.NotFound(w, r)

		return
	}

	switch {
	case r.Method == http.MethodGet &&
		strings.HasPrefix(rest, "branches/"):
		if f.tip == "" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"404 Branch Not Found"}`))

			return
		}

		_, _ = w.Write([]byte(
			`{"name":"main","commit":{"id":"` + f.tip + `"}}`,
		))
	case r.Method == http.MethodGet &&
		strings.HasPrefix(rest, "files/"):
		name := strings.TrimPrefix(rest, "files/")
		if !f.existing[name] || r.URL.Query().Get("ref") != f.tip {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"404 File Not Found"}`))

			return
		}

		_, _ = w.Write([]byte(`{
			"file_path": "` + name + `",
			"ref": "` + f.tip + `",
			"last_commit_id": "last-` + name + `"
		}`))
	case r.Method == http.MethodPost && rest == "commits":
		if f.createSt != 0 {
			msg := f.createMsg
			if msg == "" {
				msg = "refused"
			}

			w.WriteHeader(f.createSt)
			_, _ = w.Write([]byte(`{"message":"` + msg + `"}`))

			return
		}

		var body commitBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)

			return
		}

		f.created = &body

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"id": "c0ffee",
			"message": "` + body.CommitMessage + `",
			"parent_ids": ["` + f.tip + `"],
			"author_name": "octo",
			"authored_date": "2026-01-02T03:04:05Z"
		}`))
	case r.Method == http.MethodGet && rest == "commits":
		f.listQ = r.URL.RawQuery
		_, _ = w.Write([]byte(`[
			{"id": "c3", "message": "third", "parent_ids": ["c2"]},
			{"id": "c2", "message": "second", "parent_ids": ["c1"]},
			{"id": "c1", "message": "first", "parent_ids": []}
		]`))
	default:
		http.NotFound(w, r)
	}
}

func newPusher(t *testing.T, f *fakeGitLab) *gitlab.Pusher {
	t.Helper()

	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	return gitlab.New(gitlab.Config{Host: srv.URL})
}

func TestPush_resolves_create_and_update(t *testing.T) {
	t.Parallel()

	f := &fakeGitLab{
		tip:      "abc123",
		existing: map[string]bool{"README.md": true},
	}
	p := newPusher(t, f)

	rec, err := p.Push(
		context.Background(),
		"tok",
		hello,
		"",
		[]repo.FileChange{
			{Path: "README.md", Content: "# hi"},
			{Path: "src/app.go", Content: "package app"},
		},
		"sync",
	)

	require.NoError(t, err)
	assert.Equal(t, "c0ffee", rec.ID)
	assert.Equal(t, []string{"abc123"}, rec.Parents)
	assert.Equal(t, "octo", rec.Author)
	assert.Equal(t, 2026, rec.Date.Year())

	require.NotNil(t, f.created)
	assert.Equal(t, "main", f.created.Branch)
	assert.Equal(t, "sync", f.created.CommitMessage)
	require.Len(t, f.created.Actions, 2)
	assert.Equal(t, "update", f.created.Actions[0].Action)
	assert.Equal(t, "README.md", f.created.Actions[0].FilePath)
	assert.Equal(t, "last-README.md", f.created.Actions[0].LastID)
	assert.Empty(t, f.created.Actions[1].LastID)
	assert.Equal(t, "create", f.created.Actions[1].Action)
	assert.Equal(t, "src/app.go", f.created.Actions[1].FilePath)
	assert.Equal(t, "package app", f.created.Actions[1].Content)
	assert.Equal(t, "text", f.created.Actions[1].Encoding)
}

func TestPush_missing_branch(t *testing.T) {
	t.Parallel()

	f := &fakeGitLab{}
	p := newPusher(t, f)

	_, err := p.Push(
		context.Background(),
		"tok",
		hello,
		"main",
		[]repo.FileChange{{Path: "a.txt", Content: "a"}},
		"m",
	)

	require.ErrorIs(t, err, repo.ErrNotFound)

	var se *snapshot.StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, snapshot.StepReadTip, se.Step)
	assert.Nil(t, f.created)
}

func TestPush_commit_refused(t *testing.T) {
	t.Parallel()

	f := &fakeGitLab{tip: "abc123", createSt: http.StatusForbidden}
	p := newPusher(t, f)

	_, err := p.Push(
		context.Background(),
		"tok",
		hello,
		"main",
		[]repo.FileChange{{Path: "a.txt", Content: "a"}},
		"m",
	)

	var re *repo.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusForbidden, re.Status)
	assert.Contains(t, re.Message, "refused")
	assert.NotErrorIs(t, err, repo.ErrConflict)

	var se *snapshot.StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, snapshot.StepCreateCommit, se.Step)
}

func TestPush_stale_view_is_conflict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  string
	}{
		{
			name: "file created by another writer",
			msg:  "A file with this name already exists",
		},
		{
			name: "file updated by another writer",
			msg: "You are attempting to update a file that has " +
				"changed since you started editing it.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := &fakeGitLab{
				tip:       "abc123",
				existing:  map[string]bool{"README.md": true},
				createSt:  http.StatusBadRequest,
				createMsg: tt.msg,
			}
			p := newPusher(t, f)

			_, err := p.Push(
				context.Background(),
				"tok",
				hello,
				"main",
				[]repo.FileChange{
					{Path: "README.md", Content: "# hi"},
					{Path: "new.txt", Content: "new"},
				},
				"m",
			)

			require.ErrorIs(t, err, repo.ErrConflict)

			var se *snapshot.StepError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, snapshot.StepCreateCommit, se.Step)
		})
	}
}

func TestPush_validation_before_remote(t *testing.T) {
	t.Parallel()

	f := &fakeGitLab{tip: "abc123"}
	p := newPusher(t, f)

	tests := []struct {
		name  string
		cred  repo.Credential
		ref   repo.Ref
		files []repo.FileChange
		msg   string
	}{
		{
			name: "no files",
			cred: "tok",
			ref:  hello,
			msg:  "m",
		},
		{
			name:  "no owner",
			cred:  "tok",
			ref:   repo.Ref{Name: "hello"},
			files: []repo.FileChange{{Path: "a", Content: "a"}},
			msg:   "m",
		},
		{
			name:  "blank message",
			cred:  "tok",
			ref:   hello,
			files: []repo.FileChange{{Path: "a", Content: "a"}},
			msg:   "  ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Push(
				context.Background(),
				tt.cred, tt.ref, "main", tt.files, tt.msg,
			)

			assert.ErrorIs(t, err, repo.ErrValidation)
		})
	}

	assert.Nil(t, f.created)
}

func TestPush_missing_token(t *testing.T) {
	t.Parallel()

	p := gitlab.New(gitlab.Config{})

	_, err := p.Push(
		context.Background(),
		"",
		hello,
		"main",
		[]repo.FileChange{{Path: "a", Content: "a"}},
		"m",
	)

	assert.ErrorContains(t, err, "access token")
}

func TestFetchCommits_truncates(t *testing.T) {
	t.Parallel()

	f := &fakeGitLab{}
	p := newPusher(t, f)

	got, err := p.FetchCommits(
		context.Background(), "tok", hello, "dev", 2,
	)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c3", got[0].ID)
	assert.Equal(t, "third", got[0].Message)
	assert.Equal(t, []string{"c2"}, got[0].Parents)
	assert.Equal(t, "c2", got[1].ID)
	assert.Contains(t, f.listQ, "ref_name=dev")
}

func TestFetchCommits_invalid_ref(t *testing.T) {
	t.Parallel()

	p := gitlab.New(gitlab.Config{})

	_, err := p.FetchCommits(
		context.Background(), "tok", repo.Ref{Owner: "octo"}, "", 0,
	)

	assert.ErrorIs(t, err, repo.ErrValidation)
}
