// Package termerr classifies raw terminal or process output into a fixed set
// of error categories so a UI can show a title, a remediation hint and a few
// suggestions. Classification is a pure function of the text: patterns are
// tried in a fixed priority order and the first match wins.
package termerr
