package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"pkt.systems/isocheck/api"
)

func (c *cli) print(w io.Writer, v any) error {
	switch format := strings.ToLower(strings.TrimSpace(c.v.GetString("output"))); format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// parseParams turns key=value arguments into operation parameters. Integer
// values become int64; everything else, durations included, stays a string.
func parseParams(args []string) (api.Params, error) {
	p := api.Params{}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("parameter %q: want key=value", arg)
		}
		value = strings.TrimSpace(value)
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			p[key] = n
			continue
		}
		p[key] = value
	}
	return p, nil
}

// loadParamsFile reads a YAML or JSON mapping of parameters.
func loadParamsFile(path string) (api.Params, error) {
	if path == "" {
		return api.Params{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read params file: %w", err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse params file %q: %w", path, err)
	}
	return api.Params(raw), nil
}

// collectParams merges a params file with key=value arguments; arguments win.
func collectParams(file string, args []string) (api.Params, error) {
	base, err := loadParamsFile(file)
	if err != nil {
		return nil, err
	}
	extra, err := parseParams(args)
	if err != nil {
		return nil, err
	}
	maps.Copy(base, extra)
	return base, nil
}
