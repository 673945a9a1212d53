package cli

import (
	"io"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"
)

// resolve is a [kong.ConfigurationLoader] that parses YAML config files.
//
// It can be used with [kong.Configuration] like this:
//
//	kong.Configuration(resolve, "/path/to/config")
//
// The YAML structure is converted as follows:
//   - The top-level mapping becomes a flat configuration map
//   - Flag names with hyphens (e.g., "log-level") may use underscores
//     in the config file (e.g., "log_level")
//   - Numbers are converted to strings for Kong's flag parsing
//
// Example config file:
//
//	log_level: debug
//	log_format: json
//	log_pretty: true
//
// This configuration will be applied to Kong flags:
//
//	--log-level=debug
//	--log-format=json
//	--log-pretty=true
//
// Command-line flags override config file values.
func resolve(r io.Reader) (kong.Resolver, error) {
	var values map[string]any

	if err := yaml.NewDecoder(r).Decode(&values); err != nil {
		// Parse error or empty file: return empty config
		return config{}, nil //nolint:nilerr
	}

	cfg := make(config, len(values))
	for key, value := range values {
		cfg[key] = stringifyNumbers(value)
	}

	return cfg, nil
}

// config implements [kong.Resolver] for YAML configs.
type config map[string]any

// Validate implements [kong.Resolver].
func (r config) Validate(*kong.Application) error {
	// No validation needed, the config was already parsed successfully
	return nil
}

// Resolve implements [kong.Resolver].
func (r config) Resolve(
	_ *kong.Context,
	_ *kong.Path,
	flag *kong.Flag,
) (any, error) {
	// Kong flags use hyphens (e.g., "log-level") but config keys may use
	// underscores. Try both forms.
	if value, ok := r[flag.Name]; ok {
		return value, nil
	}

	if value, ok := r[strings.ReplaceAll(flag.Name, "-", "_")]; ok {
		return value, nil
	}

	// Not found: return nil to let Kong use defaults
	return nil, nil
}

// stringifyNumbers converts numeric values to strings, which Kong requires
// for flag parsing. Nested mappings and sequences are converted recursively.
func stringifyNumbers(v any) any {
	switch val := v.(type) {
	case int64:
		return strconv.FormatInt(val, 10)

	case uint64:
		return strconv.FormatUint(val, 10)

	case int:
		return strconv.Itoa(val)

	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)

	case map[string]any:
		result := make(map[string]any, len(val))
		for k, item := range val {
			result[k] = stringifyNumbers(item)
		}

		return result

	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = stringifyNumbers(item)
		}

		return result

	default:
		return v
	}
}
