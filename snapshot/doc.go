// Package snapshot pushes a set of in-memory files to a remote repository as
// one commit layered on the current branch tip.
//
// Syncer.Push validates its input, then reads the branch tip and its tree,
// creates one blob per file (concurrently, bounded by the blob parallelism),
// creates a tree overlaying those blobs onto the base tree, commits it with the
// old tip as single parent and fast-forwards the branch. A failing step aborts
// the push with a *StepError naming the step. Nothing is retried or rolled
// back; a conflict on the final step means the caller must push again against
// the new tip.
//
// Syncer builds one repo.Client per credential through its ClientFactory.
package snapshot
