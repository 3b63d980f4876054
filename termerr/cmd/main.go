// Command termerr runs a shell command and, when it
// fails, classifies its output into an error category
// with a remediation hint. With -classify it reads text
// from stdin instead of running anything.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	json "github.com/goccy/go-json"

	"github.com/byte4ever/workbench_sync/exec"
	"github.com/byte4ever/workbench_sync/termerr"
)

func main() {
	code, err := run()
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}

	os.Exit(code)
}

func run() (int, error) {
	const errCtx = "running termerr"

	dir := flag.String(
		"dir", "",
		"Working directory for the command",
	)
	asJSON := flag.Bool(
		"json", false,
		"Print the error record as JSON",
	)
	fromStdin := flag.Bool(
		"classify", false,
		"Classify stdin instead of running a command",
	)

	flag.Parse()

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt,
	)
	defer stop()

	var (
		output string
		failed bool
	)

	switch {
	case *fromStdin:
		by, err := io.ReadAll(os.Stdin)
		if err != nil {
			return 1, fmt.Errorf(
				"%s: read stdin: %w", errCtx, err,
			)
		}

		output = string(by)
		failed = true
	case flag.NArg() == 0:
		return 2, fmt.Errorf(
			"%s: missing command", errCtx,
		)
	default:
		line := flag.Arg(0)
		for _, a := range flag.Args()[1:] {
			line += " " + a
		}

		out, err := exec.Shell(ctx, *dir, line)
		if _, wErr := os.Stdout.WriteString(out); wErr != nil {
			return 1, fmt.Errorf(
				"%s: write output: %w", errCtx, wErr,
			)
		}

		output = out
		failed = err != nil
	}

	if !failed {
		return 0, nil
	}

	rec := termerr.Classify(output)

	if *asJSON {
		enc := json.NewEncoder(os.Stderr)
		if err := enc.Encode(rec); err != nil {
			return 1, fmt.Errorf(
				"%s: encode record: %w", errCtx, err,
			)
		}

		return 1, nil
	}

	if _, err := os.Stderr.WriteString(
		"\n" + rec.Format(),
	); err != nil {
		return 1, fmt.Errorf(
			"%s: write record: %w", errCtx, err,
		)
	}

	return 1, nil
}
