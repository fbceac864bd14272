// Package mapconf implements the line-oriented weathermap configuration
// dialect: the background rewrite applied before a config is materialized,
// the template served to map authors, and the parser used by the renderer.
package mapconf

import "strings"

const backgroundDirective = "BACKGROUND"

// RewriteBackground returns configText with the first BACKGROUND directive
// pointed at newPath. Everything after the directive keyword and its
// whitespace is replaced; all other lines pass through byte-for-byte, in
// order. Text without a BACKGROUND line is returned unchanged.
func RewriteBackground(configText, newPath string) string {
	lines := strings.Split(configText, "\n")
	for i, line := range lines {
		rest, ok := strings.CutPrefix(line, backgroundDirective)
		if !ok || rest == "" {
			continue
		}
		ws := leadingWhitespace(rest)
		if ws == "" {
			continue
		}
		lines[i] = backgroundDirective + ws + newPath
		return strings.Join(lines, "\n")
	}
	return configText
}

func leadingWhitespace(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] != ' ' && s[i] != '\t' {
			return s[:i]
		}
	}
	return s
}
