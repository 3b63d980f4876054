// Package repo defines the object-graph model shared by every remote
// repository backend: credentials, repository references, file changes, tree
// entries and commit records.
//
// Client is the typed façade over the blob/tree/commit/ref primitives of a
// remote repository. Tree creation overlays entries onto a base tree, so
// callers only enumerate changed paths. Branch updates are fast-forward only.
//
// Pusher is the higher level strategy used by callers that only want to push
// a set of files as one commit and list commits. Implementations live in
// sub-packages and in package snapshot.
package repo
