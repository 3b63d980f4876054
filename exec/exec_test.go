package exec_test

import (
	"context"
	"testing"

	"github.com/byte4ever/workbench_sync/exec"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEx_success(t *testing.T) {
	t.Parallel()

	out, err := exec.Ex(context.Background(), "", "echo", "hello")

	require.NoError(t, err)
	assert.Contains(t, out, "hello")
}

func TestEx_with_dir(t *testing.T) {
	t.Parallel()

	out, err := exec.Ex(context.Background(), "/tmp", "pwd")

	require.NoError(t, err)
	assert.Contains(t, out, "/tmp")
}

func TestEx_failure(t *testing.T) {
	t.Parallel()

	_, err := exec.Ex(context.Background(), "", "false")

	assert.Error(t, err)
}

func TestEx_cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Ex(ctx, "", "sleep", "5")

	assert.Error(t, err)
}

func TestShell_appends_command_on_failure(t *testing.T) {
	t.Parallel()

	out, err := exec.Shell(
		context.Background(), "", "echo oops >&2; exit 3",
	)

	require.Error(t, err)
	assert.Contains(t, out, "oops\n")
	assert.Contains(t, out, "command: echo oops >&2; exit 3")
}

func TestShell_success_output_untouched(t *testing.T) {
	t.Parallel()

	out, err := exec.Shell(context.Background(), "", "echo ok")

	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)
}
