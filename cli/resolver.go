package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"
)

// resolve returns a [kong.ConfigurationLoader] that reads YAML config files.
//
// It can be used with [kong.Configuration] like this:
//
//	kong.Configuration(resolve(ctx), "/path/to/config.yaml")
//
// Global flags are top-level keys. Flags of a command may also be given in a
// section named after the command, which takes precedence:
//
//	log-level: debug
//	log-pretty: true
//	convert:
//	  timeout: 1m
//	  kinds: [theorem, lemma, proof]
//
// Keys may use underscores in place of hyphens (log_level). Command-line
// flags override config file values.
func resolve(ctx context.Context) kong.ConfigurationLoader {
	return func(r io.Reader) (kong.Resolver, error) {
		var values map[string]any

		err := yaml.NewDecoder(r).DecodeContext(ctx, &values)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}

		return config(values), nil
	}
}

// config implements [kong.Resolver] for YAML configs.
type config map[string]any

// Validate implements [kong.Resolver].
func (r config) Validate(*kong.Application) error { return nil }

// Resolve implements [kong.Resolver].
func (r config) Resolve(
	_ *kong.Context,
	parent *kong.Path,
	flag *kong.Flag,
) (any, error) {
	if parent != nil && parent.Command != nil {
		if section, ok := r[parent.Command.Name].(map[string]any); ok {
			if value, ok := config(section).lookup(flag.Name); ok {
				return value, nil
			}
		}
	}

	if value, ok := r.lookup(flag.Name); ok {
		return value, nil
	}

	// Not found: kong uses the default.
	return nil, nil
}

func (r config) lookup(name string) (any, bool) {
	for _, key := range []string{name, strings.ReplaceAll(name, "-", "_")} {
		if value, ok := r[key]; ok {
			if _, isSection := value.(map[string]any); isSection {
				continue
			}

			return flagValue(value), true
		}
	}

	return nil, false
}

// flagValue converts a decoded YAML value to a form kong can map onto a
// flag. Kong parses numbers from strings, and lists from comma-separated
// strings.
func flagValue(value any) any {
	switch v := value.(type) {
	case string, bool:
		return v

	case []any:
		items := make([]string, len(v))
		for i, item := range v {
			items[i] = fmt.Sprint(item)
		}

		return strings.Join(items, ",")

	default:
		return fmt.Sprint(v)
	}
}
