package generate

import (
	"strings"

	"github.com/stubzen/stubzen/errors"
)

// ValidateUnit checks the rendered stub text before it is persisted:
// bracket pairing (across lines, so parenthesized import lists pass),
// per-line string termination, indentation in four-space steps, and
// the line shapes stubs are made of. The first problem rejects the
// whole unit.
func ValidateUnit(path string, content []byte) error {
	lines := strings.Split(string(content), "\n")
	var open []rune
	lastLine := 0

	for i, line := range lines {
		lineno := i + 1
		lastLine = lineno

		if strings.ContainsRune(line, '\t') {
			return errors.NewValidationError(path, lineno, "tab indentation")
		}
		indent := len(line) - len(strings.TrimLeft(line, " "))
		if indent%4 != 0 {
			return errors.NewValidationError(path, lineno, "indentation not a multiple of four spaces")
		}

		continuation := len(open) > 0
		var problem string
		open, problem = scanLine(line, open)
		if problem != "" {
			return errors.NewValidationError(path, lineno, problem)
		}

		stmt := strings.TrimSpace(line)
		if stmt == "" || strings.HasPrefix(stmt, "#") {
			continue
		}
		// Shape checks apply to statements complete on their line, not
		// to lines that open or continue a bracketed span.
		if continuation || len(open) > 0 {
			continue
		}
		switch {
		case strings.HasPrefix(stmt, "def ") || strings.HasPrefix(stmt, "async def "):
			if !strings.HasSuffix(stmt, "...") {
				return errors.NewValidationError(path, lineno, "method definition missing '...' body")
			}
		case strings.HasPrefix(stmt, "class "):
			if !strings.HasSuffix(stmt, ":") {
				return errors.NewValidationError(path, lineno, "class definition missing colon")
			}
		case strings.HasPrefix(stmt, "if "):
			if !strings.HasSuffix(stmt, ":") {
				return errors.NewValidationError(path, lineno, "if statement missing colon")
			}
		}
	}

	if len(open) != 0 {
		return errors.NewValidationError(path, lastLine, "unbalanced brackets at end of file")
	}
	return nil
}

// scanLine advances the open-bracket stack across one line and checks
// that strings terminate before the newline. Quoted text never
// contributes to bracket state.
func scanLine(line string, open []rune) ([]rune, string) {
	var inSingle, inDouble bool
	for _, r := range line {
		switch {
		case inSingle:
			if r == '\'' {
				inSingle = false
			}
		case inDouble:
			if r == '"' {
				inDouble = false
			}
		case r == '\'':
			inSingle = true
		case r == '"':
			inDouble = true
		case r == '(' || r == '[' || r == '{':
			open = append(open, r)
		case r == ')' || r == ']' || r == '}':
			if len(open) == 0 || open[len(open)-1] != opener(r) {
				return open, "unbalanced brackets"
			}
			open = open[:len(open)-1]
		}
	}
	if inSingle || inDouble {
		return open, "unterminated string"
	}
	return open, ""
}

func opener(closer rune) rune {
	switch closer {
	case ')':
		return '('
	case ']':
		return '['
	default:
		return '{'
	}
}
