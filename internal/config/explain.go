package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Explain returns the effective value at the given YAML-like path and its source.
//
// Any dot path of the effective config works, e.g.
//
//	log_level
//	layout.template
//	layout.options.leave_hole
//	timing.debounce_ms
//	hotkeys.slots.3
//	profiles.<name>.command
//	generated_templates.<name>.slots
//	slots.0.profile
func Explain(res *LoadResult, path string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, fmt.Errorf("no config loaded")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, Source{}, fmt.Errorf("path is empty")
	}

	value, err := lookupValue(res.Config, path)
	if err != nil {
		return nil, Source{}, err
	}

	// The nearest file-written ancestor is the source; sequences are only
	// tracked as a whole.
	for p := path; p != ""; p = parentPath(p) {
		if src, ok := res.Sources[p]; ok {
			return value, src, nil
		}
	}
	return value, Source{Kind: SourceDefault, Name: "defaults"}, nil
}

func parentPath(path string) string {
	i := strings.LastIndex(path, ".")
	if i < 0 {
		return ""
	}
	return path[:i]
}

func lookupValue(cfg *Config, path string) (any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}

	cur := tree
	walked := ""
	for _, part := range strings.Split(path, ".") {
		if walked == "" {
			walked = part
		} else {
			walked += "." + part
		}
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("unknown config path %q", walked)
			}
			cur = next
		case map[any]any:
			next, ok := lookupAnyKey(node, part)
			if !ok {
				return nil, fmt.Errorf("unknown config path %q", walked)
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("unknown config path %q", walked)
			}
			cur = node[idx]
		default:
			return nil, fmt.Errorf("unknown config path %q", walked)
		}
	}
	return cur, nil
}

// lookupAnyKey resolves keys of maps with non-string keys, e.g. hotkeys.slots.
func lookupAnyKey(m map[any]any, key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	if n, err := strconv.Atoi(key); err == nil {
		v, ok := m[n]
		return v, ok
	}
	return nil, false
}
