// Package memory implements repo.Client and repo.Account on an in-process git
// object store. Blobs, trees and commits are real git objects with real ids,
// held in go-git memory storage, one storage per repository.
//
// Branch updates are fast-forward only: UpdateBranch walks the ancestry of the
// new commit and fails with repo.ErrConflict unless it contains the current
// tip. The store backs local dry runs and serves as the remote in tests.
package memory
