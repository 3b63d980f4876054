package termerr

import "fmt"

const (
	reset  = "\x1b[0m"
	red    = "\x1b[1;31m"
	yellow = "\x1b[1;33m"
	blue   = "\x1b[1;34m"
)

// Red wraps text in bold red ANSI codes.
func Red(text string) string { return red + text + reset }

// Yellow wraps text in bold yellow ANSI codes.
func Yellow(text string) string { return yellow + text + reset }

// Blue wraps text in bold blue ANSI codes.
func Blue(text string) string { return blue + text + reset }

var titles = map[Category]string{
	CommandNotFound:  "Command Not Found",
	PermissionDenied: "Permission Denied",
	FileNotFound:     "File Not Found",
	SyntaxError:      "Syntax Error",
	RuntimeError:     "Runtime Error",
	NetworkError:     "Network Error",
	UnknownError:     "Error",
}

const baseHint = "We encountered an error while running terminal commands."

var hints = map[Category]string{
	CommandNotFound:  "The command might be misspelled or not installed.",
	PermissionDenied: "You might need elevated permissions to perform this action.",
	FileNotFound:     "The specified file or directory doesn't exist.",
	SyntaxError:      "There might be a mistake in the command syntax.",
	NetworkError:     "A port is already in use or a host could not be reached.",
}

var suggestions = map[Category][]string{
	CommandNotFound: {
		"Check if the command is installed",
		"Verify the command spelling",
		"Use 'which [command]' to check availability",
	},
	PermissionDenied: {
		"Use 'sudo' for elevated permissions",
		"Check file permissions with 'ls -l'",
		"Verify ownership with 'ls -n'",
	},
}

// Title is the short heading shown for c. Unknown
// values read "Terminal Error".
func (c Category) Title() string {
	if t, ok := titles[c]; ok {
		return t
	}

	return "Terminal Error"
}

// Hint is a one sentence remediation message.
func (c Category) Hint() string {
	if h, ok := hints[c]; ok {
		return baseHint + " " + h
	}

	return baseHint + " Would you like help to analyze and resolve this issue?"
}

// Suggestions returns copyable follow-up actions, if
// any.
func (c Category) Suggestions() []string {
	return append([]string(nil), suggestions[c]...)
}

// Format renders r for a terminal: coloured title,
// hint, the failing command when known and the
// suggestions.
func (r Record) Format() string {
	out := Red(r.Category.Title()) + "\n" +
		r.Category.Hint() +
		fmt.Sprintf(" (%s)\n", r.Timestamp.Format("15:04:05"))

	if r.Command != "" {
		out += Yellow("command: ") + r.Command + "\n"
	}

	for _, s := range r.Category.Suggestions() {
		out += Blue("• ") + s + "\n"
	}

	return out
}
