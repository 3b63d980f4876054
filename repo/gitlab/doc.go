// Package gitlab implements repo.Pusher on top of the GitLab commits API.
//
// GitLab has no public git-data API, so a push is expressed as a single
// commit carrying one create or update action per file. GitLab applies the
// actions onto the current head of the branch. Updates carry the last commit
// of each file as seen at the tip read by the push, so a file changed or
// created by another writer in between makes GitLab refuse the commit, which
// is reported as repo.ErrConflict. Files absent from the push are inherited
// from the parent commit, exactly like a tree overlay.
package gitlab
