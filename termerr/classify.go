package termerr

import (
	"regexp"
	"strings"
	"time"
)

// Category is a coarse error class.
type Category string

// Categories, in match priority order.
const (
	CommandNotFound  Category = "command_not_found"
	PermissionDenied Category = "permission_denied"
	FileNotFound     Category = "file_not_found"
	SyntaxError      Category = "syntax_error"
	NetworkError     Category = "network_error"
	RuntimeError     Category = "runtime_error"
	UnknownError     Category = "unknown_error"
)

// Record is the outcome of one classification.
type Record struct {
	Category  Category  `json:"type"`
	Message   string    `json:"message"`
	Command   string    `json:"command,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type rule struct {
	pattern  *regexp.Regexp
	category Category
}

// rules order is part of the contract: patterns
// overlap, the first match wins.
var rules = []rule{
	{regexp.MustCompile(`(?i)command not found`), CommandNotFound},
	{regexp.MustCompile(`(?i)permission denied`), PermissionDenied},
	{regexp.MustCompile(`(?i)no such file or directory`), FileNotFound},
	{regexp.MustCompile(`(?i)syntax error`), SyntaxError},
	{regexp.MustCompile(`(?i)EADDRINUSE|ENOTFOUND|ECONNREFUSED`), NetworkError},
	{regexp.MustCompile(`(?i)error:|exception:|failed`), RuntimeError},
}

var commandPattern = regexp.MustCompile(`(?i)command: (.+)`)

// Classify categorises output and stamps the record
// with the current time.
func Classify(output string) Record {
	return ClassifyAt(output, time.Now())
}

// ClassifyAt is Classify with an explicit timestamp.
func ClassifyAt(output string, now time.Time) Record {
	rec := Record{
		Category:  Categorize(output),
		Message:   output,
		Timestamp: now,
	}

	if cmd, ok := ExtractCommandContext(output); ok {
		rec.Command = cmd
	}

	return rec
}

// Categorize returns the category of output without
// building a Record.
func Categorize(output string) Category {
	for _, r := range rules {
		if r.pattern.MatchString(output) {
			return r.category
		}
	}

	return UnknownError
}

// ExtractCommandContext returns the text following the
// first "command: " marker (any case) up to the end of
// its line.
func ExtractCommandContext(output string) (string, bool) {
	m := commandPattern.FindStringSubmatch(output)
	if m == nil {
		return "", false
	}

	return strings.TrimSuffix(m[1], "\r"), true
}

// Categories lists every category in priority order,
// UnknownError last.
func Categories() []Category {
	out := make([]Category, 0, len(rules)+1)
	for _, r := range rules {
		out = append(out, r.category)
	}

	return append(out, UnknownError)
}
