package check

import (
	"fmt"
	"reflect"
	"strings"
)

const placeholder = "{}"

// Format replaces each "{}" in template with the next argument, in order.
//
//   - `\{}` is written as a literal "{}" and consumes no argument.
//   - `\\{}` is written as a single backslash followed by the argument.
//   - Once the arguments run out the rest of the template is copied
//     verbatim, escapes included. With no arguments the template is
//     returned unchanged.
//   - Arguments beyond the last placeholder are ignored.
//   - Nil arguments (including typed nil pointers) render as "null".
func Format(template string, args ...any) string {
	if len(args) == 0 || !strings.Contains(template, placeholder) {
		return template
	}

	var sb strings.Builder
	sb.Grow(len(template) + 8*len(args))

	next := 0
	rest := template
	for {
		i := strings.Index(rest, placeholder)
		if i < 0 || next >= len(args) {
			sb.WriteString(rest)
			break
		}

		escaped := i > 0 && rest[i-1] == '\\'
		doubled := escaped && i > 1 && rest[i-2] == '\\'

		switch {
		case escaped && !doubled:
			sb.WriteString(rest[:i-1])
			sb.WriteString(placeholder)
		case doubled:
			sb.WriteString(rest[:i-1])
			sb.WriteString(render(args[next]))
			next++
		default:
			sb.WriteString(rest[:i])
			sb.WriteString(render(args[next]))
			next++
		}
		rest = rest[i+len(placeholder):]
	}

	return sb.String()
}

// FormatNullable is Format for an optional template: a nil template yields "null".
func FormatNullable(template *string, args ...any) string {
	if template == nil {
		return "null"
	}
	return Format(*template, args...)
}

// render converts a template argument to text. Pointers are followed so that
// optional fields print their value rather than an address.
func render(v any) string {
	if isNull(v) {
		return "null"
	}
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case fmt.Stringer, error:
		return fmt.Sprint(x)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		return render(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}
