package commitmsg

import (
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/valyala/fasttemplate"
)

const (
	begin = "--- workbench files begin ---"
	end   = "--- workbench files end ---"
)

// DefaultTemplate is used when no template is
// configured.
const DefaultTemplate = "Update {{count}} file(s) from workbench"

// Render substitutes {{name}} placeholders in tpl with
// vars. Unknown placeholders are kept verbatim.
func Render(tpl string, vars map[string]string) string {
	t, err := fasttemplate.NewTemplate(tpl, "{{", "}}")
	if err != nil {
		// Unbalanced delimiters: use the text as is.
		slog.Warn(
			"invalid commit message template",
			"error", err,
		)

		return tpl
	}

	return t.ExecuteFuncString(
		func(w io.Writer, tag string) (int, error) {
			key := strings.TrimSpace(tag)
			if v, ok := vars[key]; ok {
				return w.Write([]byte(v))
			}

			return w.Write([]byte("{{" + tag + "}}"))
		},
	)
}

// ExtractPaths returns the workspace paths listed in the
// manifest trailer of a pushed commit, in push order.
// Messages without a manifest yield nil, and so does a
// manifest cut short before its closing line, since its
// path list cannot be trusted.
func ExtractPaths(msg string) []string {
	lines := strings.Split(strings.ReplaceAll(msg, "\r\n", "\n"), "\n")

	open := slices.Index(lines, begin)
	if open < 0 {
		return nil
	}

	body := lines[open+1:]

	closing := slices.Index(body, end)
	if closing < 0 {
		slog.Warn(
			"commit manifest has no closing line",
			"listed", len(body),
		)

		return nil
	}

	var paths []string

	for _, p := range body[:closing] {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}

	return paths
}

// Generate builds the manifest trailer appended to a push
// commit: one path per line, fenced by the begin and end
// lines ExtractPaths looks for.
func Generate(paths []string) string {
	block := make([]string, 0, len(paths)+2)
	block = append(block, begin)
	block = append(block, paths...)
	block = append(block, end)

	return "\n" + strings.Join(block, "\n") + "\n"
}

// Compose renders tpl and, when withManifest is set,
// appends the path manifest.
func Compose(
	tpl string,
	vars map[string]string,
	paths []string,
	withManifest bool,
) string {
	if tpl == "" {
		tpl = DefaultTemplate
	}

	msg := Render(tpl, vars)
	if withManifest {
		msg += "\n" + Generate(paths)
	}

	return msg
}
