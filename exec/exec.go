package exec

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Ex runs name with args and returns everything it wrote
// to stdout and stderr, interleaved as a terminal would
// show it. dir selects the working directory, the current
// one when empty. Output is returned on failure too, since
// that is what termerr classifies.
func Ex(
	ctx context.Context,
	dir string,
	name string,
	arg ...string,
) (string, error) {
	const errCtx = "running workbench command"

	line := strings.Join(append([]string{name}, arg...), " ")

	cmd := exec.CommandContext(ctx, name, arg...)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()

	slog.Debug(
		"workbench command finished",
		"cmd", line,
		"dir", dir,
		"bytes", len(out),
		"error", err,
	)

	if err != nil {
		return string(out), fmt.Errorf("%s: %s: %w", errCtx, line, err)
	}

	return string(out), nil
}

// Shell runs line through "sh -c" and appends a
// "command: <line>" trailer to the output of a failing
// run, so classifiers can recover the command.
func Shell(
	ctx context.Context,
	dir string,
	line string,
) (string, error) {
	out, err := Ex(ctx, dir, "sh", "-c", line)
	if err != nil {
		if out != "" && !strings.HasSuffix(out, "\n") {
			out += "\n"
		}

		out += "command: " + line
	}

	return out, err
}
