package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/byte4ever/workbench_sync/repo"
	"github.com/byte4ever/workbench_sync/repo/github"
	"github.com/byte4ever/workbench_sync/repo/gitlab"
	"github.com/byte4ever/workbench_sync/repo/memory"
	"github.com/byte4ever/workbench_sync/snapshot"
)

// defaultLogin owns memory repositories when no owner
// is configured.
const defaultLogin = "workbench"

// Backends holds the implementations selected by
// Config.Backend.
type Backends struct {
	Pusher repo.Pusher
	// Accounts is nil for backends without account
	// operations (gitlab).
	Accounts func(repo.Credential) (repo.Account, error)
	// Memory is the process-local store of the memory
	// backend, nil otherwise.
	Memory *memory.Store
}

// Open builds the backends for c.
func (c Config) Open() (Backends, error) {
	const errCtx = "opening backend"

	if err := c.Validate(); err != nil {
		return Backends{}, fmt.Errorf("%s: %w", errCtx, err)
	}

	var opts []snapshot.Option
	if c.BlobParallelism > 0 {
		opts = append(
			opts, snapshot.WithBlobParallelism(c.BlobParallelism),
		)
	}

	switch c.Backend {
	case BackendGitLab:
		return Backends{
			Pusher: gitlab.New(gitlab.Config{Host: c.GitLab.Host}),
		}, nil
	case BackendMemory:
		login := c.Repository.Owner
		if login == "" {
			login = defaultLogin
		}

		store := memory.New(login)

		return Backends{
			Pusher:   snapshot.New(store.Factory(), opts...),
			Accounts: store.AccountFactory(),
			Memory:   store,
		}, nil
	default:
		gcfg := github.Config{
			EnterpriseHost: c.GitHub.EnterpriseHost,
			BaseURL:        c.GitHub.BaseURL,
		}

		return Backends{
			Pusher:   snapshot.New(github.Factory(gcfg), opts...),
			Accounts: github.AccountFactory(gcfg),
		}, nil
	}
}

// Target prepares ref for a push on branch. Only the
// memory backend needs it: it starts empty, so the owner
// defaults to the store login and a missing repository
// or branch is created with an empty commit.
func (b Backends) Target(
	ctx context.Context,
	ref repo.Ref,
	branch string,
) (repo.Ref, error) {
	const errCtx = "preparing memory target"

	if b.Memory == nil {
		return ref, nil
	}

	if ref.Owner == "" {
		login, err := b.Memory.Login(ctx)
		if err != nil {
			return repo.Ref{}, fmt.Errorf("%s: %w", errCtx, err)
		}

		ref.Owner = login
	}

	if ref.Name == "" {
		return ref, nil
	}

	branch = repo.BranchOrDefault(branch)

	_, err := b.Memory.BranchTip(ctx, ref, branch)
	if err == nil {
		return ref, nil
	}

	if !errors.Is(err, repo.ErrNotFound) {
		return repo.Ref{}, fmt.Errorf("%s: %w", errCtx, err)
	}

	if _, err := b.Memory.Seed(ctx, ref, branch, nil); err != nil {
		return repo.Ref{}, fmt.Errorf("%s: %w", errCtx, err)
	}

	return ref, nil
}
