package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/workbench_sync/config"
	"github.com/byte4ever/workbench_sync/repo"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), "sync.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))

	return p
}

func TestLoad_empty_path_is_default(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")

	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_overrides_defaults(t *testing.T) {
	t.Parallel()

	p := writeConfig(t, `
backend: gitlab
branch: dev
blob_parallelism: 2
repository:
  owner: octo
  name: hello
gitlab:
  host: https://gl.example.com
commit:
  message_template: "Sync {{count}} files"
  manifest: true
workspace:
  ignore: [".git", "*.log"]
  max_file_size: 2048
`)

	cfg, err := config.Load(p)

	require.NoError(t, err)
	assert.Equal(t, config.BackendGitLab, cfg.Backend)
	assert.Equal(t, "dev", cfg.Branch)
	assert.Equal(t, 2, cfg.BlobParallelism)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "octo", cfg.Repository.Owner)
	assert.Equal(t, "hello", cfg.Repository.Name)
	assert.Equal(t, "https://gl.example.com", cfg.GitLab.Host)
	assert.Equal(t, "Sync {{count}} files", cfg.Commit.MessageTemplate)
	assert.True(t, cfg.Commit.Manifest)
	assert.Equal(t, []string{".git", "*.log"}, cfg.Workspace.Ignore)
	assert.Equal(t, int64(2048), cfg.Workspace.MaxFileSize)
}

func TestLoad_rejects_unknown_backend(t *testing.T) {
	t.Parallel()

	p := writeConfig(t, "backend: svn\n")

	_, err := config.Load(p)

	assert.ErrorContains(t, err, "unknown backend")
}

func TestLoad_rejects_negative_parallelism(t *testing.T) {
	t.Parallel()

	p := writeConfig(t, "blob_parallelism: -1\n")

	_, err := config.Load(p)

	assert.ErrorContains(t, err, "blob_parallelism")
}

func TestLoad_invalid_yaml(t *testing.T) {
	t.Parallel()

	p := writeConfig(t, "backend: [\n")

	_, err := config.Load(p)

	assert.ErrorContains(t, err, "parse yaml")
}

func TestLoad_missing_file(t *testing.T) {
	t.Parallel()

	_, err := config.Load(filepath.Join(t.TempDir(), "none.yaml"))

	assert.Error(t, err)
}

func TestToken(t *testing.T) {
	t.Setenv(config.GitHubTokenEnv, " gh-env \n")
	t.Setenv(config.GitLabTokenEnv, "gl-env")

	gh := config.Default()
	assert.Equal(t, "gh-env", string(gh.Token("")))
	assert.Equal(t, "flag", string(gh.Token("flag")))

	gl := config.Default()
	gl.Backend = config.BackendGitLab
	assert.Equal(t, "gl-env", string(gl.Token("")))
}

func TestOpen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		backend      string
		wantAccounts bool
		wantMemory   bool
	}{
		{config.BackendGitHub, true, false},
		{config.BackendGitLab, false, false},
		{config.BackendMemory, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			t.Parallel()

			cfg := config.Default()
			cfg.Backend = tt.backend

			b, err := cfg.Open()

			require.NoError(t, err)
			assert.NotNil(t, b.Pusher)
			assert.Equal(t, tt.wantAccounts, b.Accounts != nil)
			assert.Equal(t, tt.wantMemory, b.Memory != nil)
		})
	}
}

func TestOpen_memory_login_from_owner(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Backend = config.BackendMemory
	cfg.Repository.Owner = "octo"

	b, err := cfg.Open()
	require.NoError(t, err)

	login, err := b.Memory.Login(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "octo", login)
}

func TestOpen_rejects_invalid(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Backend = "svn"

	_, err := cfg.Open()

	assert.ErrorContains(t, err, "unknown backend")
}

func TestBackends_Target_memory_seeds_branch_and_owner(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Backend = config.BackendMemory

	b, err := cfg.Open()
	require.NoError(t, err)

	ctx := context.Background()

	ref, err := b.Target(ctx, repo.Ref{Name: "site"}, "dev")
	require.NoError(t, err)
	assert.Equal(t, repo.Ref{Owner: "workbench", Name: "site"}, ref)

	tip, err := b.Memory.BranchTip(ctx, ref, "dev")
	require.NoError(t, err)

	// A second call leaves an existing branch alone.
	_, err = b.Target(ctx, ref, "dev")
	require.NoError(t, err)

	again, err := b.Memory.BranchTip(ctx, ref, "dev")
	require.NoError(t, err)
	assert.Equal(t, tip, again)

	_, err = b.Pusher.Push(
		ctx, "tok", ref, "dev",
		[]repo.FileChange{{Path: "index.html", Content: "<h1>hi</h1>"}},
		"first push",
	)
	assert.NoError(t, err)
}

func TestBackends_Target_other_backends_unchanged(t *testing.T) {
	t.Parallel()

	b, err := config.Default().Open()
	require.NoError(t, err)

	in := repo.Ref{Name: "site"}

	out, err := b.Target(context.Background(), in, "dev")

	require.NoError(t, err)
	assert.Equal(t, in, out)
}
