// Package commitmsg builds commit messages for workbench snapshots. Render
// fills {{name}} placeholders in a message template; Generate appends a list
// of pushed paths between marker lines, and ExtractPaths reads it back from a
// commit message.
package commitmsg
