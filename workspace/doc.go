// Package workspace turns a local project directory into repo.FileChange
// values. Collect walks the tree, skipping VCS metadata, dependency folders
// and binary files. State keeps SHA256 digests of what was last pushed so an
// incremental push only sends changed files.
package workspace
