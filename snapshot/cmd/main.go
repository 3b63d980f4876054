// Command workbench_sync pushes a local workspace to a
// remote repository as a single commit, or lists the
// recent commits of a branch.
//
// Usage:
//
//	workbench_sync push [flags]
//	workbench_sync log [flags]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/byte4ever/workbench_sync/commitmsg"
	"github.com/byte4ever/workbench_sync/config"
	"github.com/byte4ever/workbench_sync/repo"
	"github.com/byte4ever/workbench_sync/workspace"
)

const shortIDLen = 7

// options are the flags shared by both subcommands.
type options struct {
	configPath string
	backend    string
	owner      string
	name       string
	branch     string
	token      string
}

func (o *options) register(fs *flag.FlagSet) {
	fs.StringVar(
		&o.configPath, "config", "",
		"Path to the YAML configuration file",
	)
	fs.StringVar(
		&o.backend, "backend", "",
		"Backend: github, gitlab or memory",
	)
	fs.StringVar(&o.owner, "owner", "", "Repository owner")
	fs.StringVar(&o.name, "repo", "", "Repository name")
	fs.StringVar(&o.branch, "branch", "", "Target branch")
	fs.StringVar(
		&o.token, "token", "",
		"Access token (defaults to GITHUB_TOKEN or GITLAB_TOKEN)",
	)
}

// resolve loads the configuration and applies flag
// overrides.
func (o *options) resolve() (config.Config, repo.Ref, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, repo.Ref{}, err //nolint:wrapcheck // wrapped by caller
	}

	if o.backend != "" {
		cfg.Backend = o.backend
	}

	if o.owner != "" {
		cfg.Repository.Owner = o.owner
	}

	if o.name != "" {
		cfg.Repository.Name = o.name
	}

	if o.branch != "" {
		cfg.Branch = o.branch
	}

	cfg.Branch = repo.BranchOrDefault(cfg.Branch)

	ref := repo.Ref{
		Owner: cfg.Repository.Owner,
		Name:  cfg.Repository.Name,
	}

	return cfg, ref, nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errors.New("expected a subcommand: push or log")
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	switch args[0] {
	case "push":
		return runPush(ctx, args[1:])
	case "log":
		return runLog(ctx, args[1:])
	default:
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}

func runPush(ctx context.Context, args []string) error {
	const errCtx = "running push"

	var opts options

	fs := flag.NewFlagSet("push", flag.ContinueOnError)
	opts.register(fs)

	dir := fs.String("dir", ".", "Workspace directory to push")
	message := fs.String(
		"message", "",
		"Commit message (overrides the configured template)",
	)
	all := fs.Bool(
		"all", false,
		"Push every file, not only those changed since the last push",
	)

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	cfg, ref, err := opts.resolve()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	files, err := workspace.Collect(*dir, workspace.Options{
		Ignore:      cfg.Workspace.Ignore,
		MaxFileSize: cfg.Workspace.MaxFileSize,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	backends, err := cfg.Open()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	ref, err = backends.Target(ctx, ref, cfg.Branch)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	state, err := workspace.LoadState(*dir)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if !*all {
		files = state.Changed(ref, cfg.Branch, files)
	}

	if len(files) == 0 {
		slog.Info(
			"nothing to push",
			"repo", ref.String(),
			"branch", cfg.Branch,
		)

		return nil
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}

	tpl := cfg.Commit.MessageTemplate
	if *message != "" {
		tpl = *message
	}

	msg := commitmsg.Compose(
		tpl,
		map[string]string{
			"count":  strconv.Itoa(len(files)),
			"owner":  ref.Owner,
			"repo":   ref.Name,
			"branch": cfg.Branch,
		},
		paths,
		cfg.Commit.Manifest,
	)

	rec, err := backends.Pusher.Push(
		ctx, cfg.Token(opts.token), ref, cfg.Branch, files, msg,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	state.Record(ref, cfg.Branch, rec, files, time.Now().UTC())

	if err := state.Save(*dir); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	fmt.Println(rec.ID) //nolint:forbidigo // CLI output

	return nil
}

func runLog(ctx context.Context, args []string) error {
	const errCtx = "running log"

	var opts options

	fs := flag.NewFlagSet("log", flag.ContinueOnError)
	opts.register(fs)

	perPage := fs.Int("n", 10, "Number of commits to list")
	showFiles := fs.Bool(
		"files", false,
		"Print the file manifest of each commit",
	)

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	cfg, ref, err := opts.resolve()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	backends, err := cfg.Open()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	ref, err = backends.Target(ctx, ref, cfg.Branch)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	commits, err := backends.Pusher.FetchCommits(
		ctx, cfg.Token(opts.token), ref, cfg.Branch, *perPage,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	for _, c := range commits {
		//nolint:forbidigo // CLI output
		fmt.Printf(
			"%s %s %s\n",
			shortID(c.ID),
			c.Date.Format(time.DateOnly),
			firstLine(c.Message),
		)

		if !*showFiles {
			continue
		}

		for _, p := range commitmsg.ExtractPaths(c.Message) {
			fmt.Printf("    %s\n", p) //nolint:forbidigo // CLI output
		}
	}

	return nil
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}

	return id
}

func firstLine(msg string) string {
	line, _, _ := strings.Cut(msg, "\n")

	return line
}
