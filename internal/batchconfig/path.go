package batchconfig

import (
	"fmt"
	"strings"
)

func splitKey(key string) ([]string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("empty key")
	}
	parts := strings.Split(key, ".")
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			return nil, fmt.Errorf("key %q has an empty segment", key)
		}
	}
	return parts, nil
}

// lookupPath walks node along parts. Any missing or non-mapping
// intermediate level reports absence.
func lookupPath(node Value, parts []string) (Value, bool) {
	if len(parts) == 0 {
		return node, node.IsValid()
	}
	child, ok := node.Field(parts[0])
	if !ok {
		return Value{}, false
	}
	return lookupPath(child, parts[1:])
}

// setPath stores value at parts beneath node, creating mappings on the way.
// An intermediate scalar is never overwritten.
func setPath(node Value, parts []string, value Value) error {
	if node.kind != KindMap {
		return fmt.Errorf("not a mapping")
	}
	head := parts[0]
	if len(parts) == 1 {
		node.m[head] = value
		return nil
	}
	child, ok := node.m[head]
	if !ok {
		child = MapValue()
		node.m[head] = child
	}
	if child.kind != KindMap {
		return fmt.Errorf("%s holds a %s, not a mapping", head, child.kind)
	}
	if err := setPath(child, parts[1:], value); err != nil {
		return fmt.Errorf("%s.%w", head, err)
	}
	return nil
}

func deletePath(node Value, parts []string) bool {
	if node.kind != KindMap {
		return false
	}
	if len(parts) == 1 {
		if _, ok := node.m[parts[0]]; !ok {
			return false
		}
		delete(node.m, parts[0])
		return true
	}
	child, ok := node.m[parts[0]]
	if !ok {
		return false
	}
	return deletePath(child, parts[1:])
}

// mergeDefaults copies entries from defaults that dst lacks. Values already
// present in dst always win, including when the types differ.
func mergeDefaults(dst, defaults Value) {
	if dst.kind != KindMap || defaults.kind != KindMap {
		return
	}
	for key, def := range defaults.m {
		existing, ok := dst.m[key]
		if !ok {
			dst.m[key] = def.Clone()
			continue
		}
		if existing.kind == KindMap && def.kind == KindMap {
			mergeDefaults(existing, def)
		}
	}
}
