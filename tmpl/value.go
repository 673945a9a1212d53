package tmpl

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// FormatValue renders a runtime value the way template interpolation does.
func FormatValue(v any) string { return formatValue(v) }

// formatValue renders a runtime value for text interpolation. Formatting
// follows the conventions of the generated script dialect: nil renders as
// None, booleans as True and False, and floats drop an exponent only when
// a plain decimal form is exact.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "None"

	case bool:
		if val {
			return "True"
		}

		return "False"

	case string:
		return val

	case int:
		return strconv.Itoa(val)

	case int64:
		return strconv.FormatInt(val, 10)

	case uint64:
		return strconv.FormatUint(val, 10)

	case float64:
		return formatFloat(val)

	case float32:
		return formatFloat(float64(val))

	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatElem(elem)
		}

		return "[" + strings.Join(parts, ", ") + "]"

	case map[string]any:
		return formatMap(val)

	case fmt.Stringer:
		return val.String()
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		parts := make([]string, rv.Len())
		for i := range rv.Len() {
			parts[i] = formatElem(rv.Index(i).Interface())
		}

		return "[" + strings.Join(parts, ", ") + "]"

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)

	case reflect.Float32, reflect.Float64:
		return formatFloat(rv.Float())

	default:
		return fmt.Sprintf("%v", v)
	}
}

// formatElem renders a value nested inside a container, quoting strings.
func formatElem(v any) string {
	if s, ok := v.(string); ok {
		return "'" + s + "'"
	}

	return formatValue(v)
}

func formatMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = "'" + k + "': " + formatElem(m[k])
	}

	return "{" + strings.Join(parts, ", ") + "}"
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}

	return s
}
