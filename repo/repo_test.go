package repo_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/byte4ever/workbench_sync/repo"
)

func TestCredential_is_redacted(t *testing.T) {
	t.Parallel()

	cred := repo.Credential("ghp_secret")

	assert.Equal(t, "[redacted]", fmt.Sprint(cred))
	assert.Equal(t, "[redacted]", fmt.Sprintf("%v", cred))
	assert.Equal(t, "[redacted]", fmt.Sprintf("%#v", cred))
	assert.Equal(t, "ghp_secret", string(cred))
}

func TestRef_String(t *testing.T) {
	t.Parallel()

	assert.Equal(
		t,
		"octo/hello",
		repo.Ref{Owner: "octo", Name: "hello"}.String(),
	)
}

func TestBranchOrDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "main", repo.BranchOrDefault(""))
	assert.Equal(t, "dev", repo.BranchOrDefault("dev"))
}

func TestRemoteError_kinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		target  error
		matches bool
	}{
		{
			name: "not found",
			err: &repo.RemoteError{
				Status: 404, Kind: repo.ErrNotFound,
			},
			target:  repo.ErrNotFound,
			matches: true,
		},
		{
			name: "conflict",
			err: &repo.RemoteError{
				Status: 422, Kind: repo.ErrConflict,
			},
			target:  repo.ErrConflict,
			matches: true,
		},
		{
			name:    "plain remote error",
			err:     &repo.RemoteError{Status: 500},
			target:  repo.ErrConflict,
			matches: false,
		},
		{
			name: "wrapped conflict",
			err: fmt.Errorf("step: %w", &repo.RemoteError{
				Status: 409, Kind: repo.ErrConflict,
			}),
			target:  repo.ErrConflict,
			matches: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(
				t, tt.matches, errors.Is(tt.err, tt.target),
			)
		})
	}
}

func TestRemoteError_message(t *testing.T) {
	t.Parallel()

	err := &repo.RemoteError{
		Status: 502, Message: "bad gateway",
	}

	assert.EqualError(
		t, err, "remote error (status 502): bad gateway",
	)

	var re *repo.RemoteError

	assert.True(
		t, errors.As(fmt.Errorf("x: %w", err), &re),
	)
	assert.Equal(t, 502, re.Status)
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	err := repo.Invalid("files", "must not be empty")

	assert.ErrorIs(t, err, repo.ErrValidation)
	assert.EqualError(
		t, err, "invalid files: must not be empty",
	)
}
