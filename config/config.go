package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/byte4ever/workbench_sync/repo"
)

// Backend names.
const (
	BackendGitHub = "github"
	BackendGitLab = "gitlab"
	BackendMemory = "memory"
)

// Environment variables consulted for tokens.
const (
	GitHubTokenEnv = "GITHUB_TOKEN"
	GitLabTokenEnv = "GITLAB_TOKEN"
)

// Config is the root of the YAML document.
type Config struct {
	Backend         string       `yaml:"backend"`
	Branch          string       `yaml:"branch"`
	BlobParallelism int          `yaml:"blob_parallelism"`
	Listen          string       `yaml:"listen"`
	Repository      Repository   `yaml:"repository"`
	GitHub          GitHub       `yaml:"github"`
	GitLab          GitLab       `yaml:"gitlab"`
	Commit          Commit       `yaml:"commit"`
	Workspace       WorkspaceCfg `yaml:"workspace"`
}

// Repository is the default push target.
type Repository struct {
	Owner string `yaml:"owner"`
	Name  string `yaml:"name"`
}

// GitHub holds GitHub endpoint settings.
type GitHub struct {
	EnterpriseHost string `yaml:"enterprise_host"`
	BaseURL        string `yaml:"base_url"`
}

// GitLab holds GitLab endpoint settings.
type GitLab struct {
	Host string `yaml:"host"`
}

// Commit holds commit message settings.
type Commit struct {
	MessageTemplate string `yaml:"message_template"`
	Manifest        bool   `yaml:"manifest"`
}

// WorkspaceCfg holds local collection settings.
type WorkspaceCfg struct {
	Ignore      []string `yaml:"ignore"`
	MaxFileSize int64    `yaml:"max_file_size"`
}

// Default returns the configuration used when no file
// is given.
func Default() Config {
	return Config{
		Backend:         BackendGitHub,
		Branch:          repo.DefaultBranch,
		BlobParallelism: 8,
		Listen:          ":8080",
		GitLab:          GitLab{Host: "https://gitlab.com"},
	}
}

// Load reads path on top of Default. An empty path
// returns Default unchanged.
func Load(path string) (Config, error) {
	const errCtx = "loading config"

	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path from CLI flag
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf(
			"%s: parse yaml: %w", errCtx, err,
		)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", errCtx, err)
	}

	return cfg, nil
}

// Validate checks enumerations and ranges.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendGitHub, BackendGitLab, BackendMemory:
	default:
		return fmt.Errorf(
			"unknown backend %q (want github, gitlab or memory)",
			c.Backend,
		)
	}

	if c.BlobParallelism < 0 {
		return errors.New("blob_parallelism must not be negative")
	}

	return nil
}

// Token returns flagValue when set, otherwise the
// backend's environment variable.
func (c Config) Token(flagValue string) repo.Credential {
	if flagValue != "" {
		return repo.Credential(flagValue)
	}

	env := GitHubTokenEnv
	if c.Backend == BackendGitLab {
		env = GitLabTokenEnv
	}

	return repo.Credential(strings.TrimSpace(os.Getenv(env)))
}
