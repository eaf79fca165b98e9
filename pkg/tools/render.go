package tools

import (
	"fmt"
	"strconv"
	"strings"
)

// renderTemplate substitutes {placeholder} occurrences in a response
// template with the matching argument. Placeholders with no matching
// argument are left intact so the gap is visible in the output.
func renderTemplate(template string, args map[string]any) string {
	var b strings.Builder
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		close := strings.IndexByte(rest[open:], '}')
		if close < 0 {
			b.WriteString(rest)
			break
		}
		close += open
		b.WriteString(rest[:open])
		key := rest[open+1 : close]
		if v, ok := args[key]; ok {
			b.WriteString(formatArg(v))
		} else {
			b.WriteString(rest[open : close+1])
		}
		rest = rest[close+1:]
	}
	return b.String()
}

func formatArg(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		// JSON numbers decode as float64; render integers without the
		// trailing .0 so templates read naturally.
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", x)
	}
}
