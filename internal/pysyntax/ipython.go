package pysyntax

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// assignMagic matches "name = %magic args" and "name = !cmd" forms.
var assignMagic = regexp.MustCompile(`^([A-Za-z_][\w., \t\[\]]*?)\s*=\s*([%!])(.*)$`)

// TransformIPython rewrites IPython-only syntax in a cell into plain Python
// calls on get_ipython(), the same shapes IPython itself produces:
//
//	%%name args\nbody  ->  get_ipython().run_cell_magic('name', 'args', 'body')
//	%name args         ->  get_ipython().run_line_magic('name', 'args')
//	!cmd               ->  get_ipython().system('cmd')
//	x = %name args     ->  x = get_ipython().run_line_magic('name', 'args')
//	x = !cmd           ->  x = get_ipython().getoutput('cmd')
//
// Everything else passes through untouched.
func TransformIPython(src string) string {
	lines := strings.Split(src, "\n")

	// Cell magics must open the cell; leading blank lines are ignored.
	first := 0
	for first < len(lines) && strings.TrimSpace(lines[first]) == "" {
		first++
	}
	if first < len(lines) && strings.HasPrefix(lines[first], "%%") {
		name, args := splitMagic(lines[first][2:])
		body := strings.Join(lines[first+1:], "\n")
		return fmt.Sprintf("get_ipython().run_cell_magic(%s, %s, %s)\n",
			PyRepr(name), PyRepr(args), PyRepr(body))
	}

	for i, line := range lines {
		indent, rest := splitIndent(line)
		switch {
		case strings.HasPrefix(rest, "%%"):
			// Cell magic syntax after the first line is not valid; leave it for the kernel to reject.
		case strings.HasPrefix(rest, "%"):
			name, args := splitMagic(rest[1:])
			lines[i] = indent + lineMagicCall(name, args)
		case strings.HasPrefix(rest, "!"):
			lines[i] = indent + "get_ipython().system(" + PyRepr(rest[1:]) + ")"
		default:
			m := assignMagic.FindStringSubmatch(rest)
			if m == nil {
				continue
			}
			if m[2] == "%" {
				name, args := splitMagic(m[3])
				lines[i] = indent + m[1] + " = " + lineMagicCall(name, args)
			} else {
				lines[i] = indent + m[1] + " = get_ipython().getoutput(" + PyRepr(m[3]) + ")"
			}
		}
	}

	return strings.Join(lines, "\n")
}

func lineMagicCall(name, args string) string {
	return fmt.Sprintf("get_ipython().run_line_magic(%s, %s)", PyRepr(name), PyRepr(args))
}

func splitMagic(s string) (name, args string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

func splitIndent(line string) (indent, rest string) {
	rest = strings.TrimLeft(line, " \t")
	return line[:len(line)-len(rest)], rest
}

// PyRepr renders s as a Python string literal the way repr() does:
// single quotes unless the text contains a single quote and no double quote.
func PyRepr(s string) string {
	quote := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}

	var sb strings.Builder
	sb.WriteByte(quote)
	for _, r := range s {
		switch {
		case r == '\\':
			sb.WriteString(`\\`)
		case r == rune(quote):
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\r':
			sb.WriteString(`\r`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&sb, `\x%02x`, r)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte(quote)
	return sb.String()
}

// decodeStringLiteral returns the value of a simple Python string literal
// (optional prefix, single or triple quoted). Escapes are resolved unless the
// literal is raw.
func decodeStringLiteral(lit string) (string, bool) {
	prefixEnd := strings.IndexAny(lit, `'"`)
	if prefixEnd < 0 {
		return "", false
	}
	prefix := strings.ToLower(lit[:prefixEnd])
	if strings.ContainsAny(prefix, "bf") {
		return "", false
	}
	body := lit[prefixEnd:]

	var delim string
	switch {
	case strings.HasPrefix(body, `"""`), strings.HasPrefix(body, `'''`):
		delim = body[:3]
	default:
		delim = body[:1]
	}
	if len(body) < 2*len(delim) || !strings.HasSuffix(body, delim) {
		return "", false
	}
	body = body[len(delim) : len(body)-len(delim)]

	if strings.Contains(prefix, "r") {
		return body, true
	}
	return unescape(body), true
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	replacer := strings.NewReplacer(`\\`, `\`, `\'`, `'`, `\"`, `"`, `\n`, "\n", `\t`, "\t", `\r`, "\r")
	return replacer.Replace(s)
}
