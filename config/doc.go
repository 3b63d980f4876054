// Package config loads the YAML configuration shared by the command line
// tools: which backend to push through, backend endpoints, the default
// repository and branch, and commit message settings. Access tokens are never
// read from the file; they come from flags or the environment.
package config
