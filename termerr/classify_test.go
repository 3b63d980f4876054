package termerr_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/byte4ever/workbench_sync/termerr"
)

func TestCategorize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		output string
		want   termerr.Category
	}{
		{
			name:   "priority command not found over permission",
			output: "bash: foo: command not found, permission denied",
			want:   termerr.CommandNotFound,
		},
		{
			name:   "file not found any case",
			output: "bash: foo: No such file or directory",
			want:   termerr.FileNotFound,
		},
		{
			name:   "permission denied",
			output: "mkdir: /root/x: Permission denied",
			want:   termerr.PermissionDenied,
		},
		{
			name:   "syntax error",
			output: "sh: 1: Syntax error: \"(\" unexpected",
			want:   termerr.SyntaxError,
		},
		{
			name:   "address in use",
			output: "Error: listen EADDRINUSE: address already in use :::3000",
			want:   termerr.NetworkError,
		},
		{
			name:   "connection refused lower case",
			output: "connect econnrefused 127.0.0.1:5432",
			want:   termerr.NetworkError,
		},
		{
			name:   "dns failure",
			output: "getaddrinfo ENOTFOUND registry.npmjs.org",
			want:   termerr.NetworkError,
		},
		{
			name:   "runtime error marker",
			output: "TypeError: cannot read properties of undefined",
			want:   termerr.RuntimeError,
		},
		{
			name:   "exception marker",
			output: "Unhandled Exception: boom",
			want:   termerr.RuntimeError,
		},
		{
			name:   "failed",
			output: "npm ERR! Build FAILED",
			want:   termerr.RuntimeError,
		},
		{
			name:   "nothing matches",
			output: "build complete",
			want:   termerr.UnknownError,
		},
		{
			name:   "empty",
			output: "",
			want:   termerr.UnknownError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, termerr.Categorize(tt.output))
		})
	}
}

func TestClassifyAt_builds_record(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 18, 14, 3, 0, 0, time.UTC)
	out := "error: build failed\ncommand: npm run build --prod\nexit 1"

	rec := termerr.ClassifyAt(out, now)

	assert.Equal(t, termerr.RuntimeError, rec.Category)
	assert.Equal(t, out, rec.Message)
	assert.Equal(t, "npm run build --prod", rec.Command)
	assert.Equal(t, now, rec.Timestamp)
}

func TestClassify_stamps_current_time(t *testing.T) {
	t.Parallel()

	before := time.Now()
	rec := termerr.Classify("build complete")

	assert.Equal(t, termerr.UnknownError, rec.Category)
	assert.Empty(t, rec.Command)
	assert.False(t, rec.Timestamp.Before(before))
}

func TestExtractCommandContext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		output string
		want   string
		found  bool
	}{
		{
			name:   "trailing text kept verbatim",
			output: "...command: npm run build...",
			want:   "npm run build...",
			found:  true,
		},
		{
			name:   "case insensitive marker",
			output: "Command: ls -la",
			want:   "ls -la",
			found:  true,
		},
		{
			name:   "stops at end of line",
			output: "command: make test\r\nmore",
			want:   "make test",
			found:  true,
		},
		{
			name:   "no marker",
			output: "npm run build",
			found:  false,
		},
		{
			name:   "marker without text",
			output: "command: ",
			found:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := termerr.ExtractCommandContext(tt.output)

			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategories_order(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []termerr.Category{
		termerr.CommandNotFound,
		termerr.PermissionDenied,
		termerr.FileNotFound,
		termerr.SyntaxError,
		termerr.NetworkError,
		termerr.RuntimeError,
		termerr.UnknownError,
	}, termerr.Categories())
}

func TestCategory_presentation(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Command Not Found", termerr.CommandNotFound.Title())
	assert.Equal(t, "Error", termerr.UnknownError.Title())
	assert.Equal(t, "Terminal Error", termerr.Category("weird").Title())

	assert.Contains(t, termerr.PermissionDenied.Hint(), "elevated permissions")
	assert.Contains(t, termerr.RuntimeError.Hint(), "analyze")

	assert.Len(t, termerr.CommandNotFound.Suggestions(), 3)
	assert.Empty(t, termerr.SyntaxError.Suggestions())

	// Callers get a copy.
	s := termerr.CommandNotFound.Suggestions()
	s[0] = "changed"
	assert.Equal(
		t,
		"Check if the command is installed",
		termerr.CommandNotFound.Suggestions()[0],
	)
}

func TestRecord_Format(t *testing.T) {
	t.Parallel()

	rec := termerr.ClassifyAt(
		"bash: foo: command not found\ncommand: foo --bar",
		time.Date(2026, 10, 18, 9, 5, 7, 0, time.UTC),
	)

	out := rec.Format()

	assert.Contains(t, out, termerr.Red("Command Not Found"))
	assert.Contains(t, out, "(09:05:07)")
	assert.Contains(t, out, "foo --bar")
	assert.Contains(t, out, "Verify the command spelling")
}

func TestColours(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "\x1b[1;31mx\x1b[0m", termerr.Red("x"))
	assert.Equal(t, "\x1b[1;33mx\x1b[0m", termerr.Yellow("x"))
	assert.Equal(t, "\x1b[1;34mx\x1b[0m", termerr.Blue("x"))
}
