// Package exec runs shell commands and captures their combined output so it
// can be classified by package termerr.
package exec
