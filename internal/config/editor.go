package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ApplyPatch sets path (a dotted key like "terminal.default_cols") to
// value within the on-disk YAML document, preserving every existing
// comment and the surrounding key ordering, then reloads the in-memory
// config. Grounded on ehrlich-b-wingthing's custom yaml.Node handling
// for mixed-shape config fields, extended here to a generic
// node-surgery patch instead of a whole-document rewrite.
func (m *Manager) ApplyPatch(path string, value any) error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("read config for patch: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config for patch: %w", err)
	}
	if len(doc.Content) == 0 {
		doc.Kind = yaml.DocumentNode
		doc.Content = []*yaml.Node{{Kind: yaml.MappingNode}}
	}

	keys := splitDotted(path)
	if err := setNodePath(doc.Content[0], keys, value); err != nil {
		return err
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal patched config: %w", err)
	}
	if err := os.WriteFile(m.path, out, 0o644); err != nil {
		return fmt.Errorf("write patched config: %w", err)
	}
	return m.Reload()
}

// ApplyMerge deep-merges a partial config body (as decoded from a
// JSON or YAML request) onto the on-disk YAML document, preserving
// every untouched key and comment, then reloads the in-memory config.
// Per spec.md §6's POST /api/settings contract: the body may name any
// subset of keys at any depth, including whole leaf arrays.
func (m *Manager) ApplyMerge(body map[string]any) error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("read config for merge: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config for merge: %w", err)
	}
	if len(doc.Content) == 0 {
		doc.Kind = yaml.DocumentNode
		doc.Content = []*yaml.Node{{Kind: yaml.MappingNode}}
	}

	if err := mergeNode(doc.Content[0], body); err != nil {
		return err
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal merged config: %w", err)
	}
	if err := os.WriteFile(m.path, out, 0o644); err != nil {
		return fmt.Errorf("write merged config: %w", err)
	}
	return m.Reload()
}

// mergeNode recursively overlays body onto root: nested maps merge
// key-by-key into existing mapping nodes (creating them if absent),
// and any other value overwrites or creates that one leaf.
func mergeNode(root *yaml.Node, body map[string]any) error {
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("config root is not a mapping")
	}
	for key, value := range body {
		idx := findMappingKey(root, key)
		if nested, ok := value.(map[string]any); ok {
			var valNode *yaml.Node
			if idx < 0 {
				keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
				valNode = &yaml.Node{Kind: yaml.MappingNode}
				root.Content = append(root.Content, keyNode, valNode)
			} else {
				valNode = root.Content[idx+1]
				if valNode.Kind != yaml.MappingNode {
					return fmt.Errorf("config key %q is not a mapping", key)
				}
			}
			if err := mergeNode(valNode, nested); err != nil {
				return err
			}
			continue
		}
		if idx < 0 {
			keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
			root.Content = append(root.Content, keyNode, scalarFor(value))
			continue
		}
		overwriteScalar(root.Content[idx+1], value)
	}
	return nil
}

func splitDotted(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	parts = append(parts, path[start:])
	return parts
}

// setNodePath walks/creates mapping nodes along keys and sets the
// final key's scalar value, leaving every sibling node (and its head
// comment) untouched.
func setNodePath(root *yaml.Node, keys []string, value any) error {
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("config root is not a mapping")
	}
	node := root
	for i, key := range keys {
		last := i == len(keys)-1
		idx := findMappingKey(node, key)
		if idx < 0 {
			keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
			var valNode *yaml.Node
			if last {
				valNode = scalarFor(value)
			} else {
				valNode = &yaml.Node{Kind: yaml.MappingNode}
			}
			node.Content = append(node.Content, keyNode, valNode)
			if last {
				return nil
			}
			node = valNode
			continue
		}
		valNode := node.Content[idx+1]
		if last {
			overwriteScalar(valNode, value)
			return nil
		}
		if valNode.Kind != yaml.MappingNode {
			return fmt.Errorf("config key %q is not a mapping", key)
		}
		node = valNode
	}
	return nil
}

func findMappingKey(node *yaml.Node, key string) int {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return i
		}
	}
	return -1
}

// scalarFor builds a fresh node for value: a sequence node for slices
// (e.g. server.cors.origin, mcp.allowed_hosts), a scalar node otherwise.
func scalarFor(value any) *yaml.Node {
	if seq, ok := sequenceFor(value); ok {
		return seq
	}
	n := &yaml.Node{Kind: yaml.ScalarNode}
	setScalar(n, value)
	return n
}

// overwriteScalar replaces n's content in place. A slice value
// rewrites n as a sequence node so array-typed config keys keep their
// YAML array shape instead of being stringified into one scalar.
func overwriteScalar(n *yaml.Node, value any) {
	if seq, ok := sequenceFor(value); ok {
		*n = *seq
		return
	}
	setScalar(n, value)
}

// sequenceFor builds a YAML sequence node from a slice value ([]string
// from Go callers, []interface{} from a JSON-decoded patch body).
func sequenceFor(value any) (*yaml.Node, bool) {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return nil, false
	}
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for i := 0; i < rv.Len(); i++ {
		item := &yaml.Node{Kind: yaml.ScalarNode}
		setScalar(item, rv.Index(i).Interface())
		seq.Content = append(seq.Content, item)
	}
	return seq, true
}

func setScalar(n *yaml.Node, value any) {
	n.Kind = yaml.ScalarNode
	n.Content = nil
	switch v := value.(type) {
	case string:
		n.Tag = "!!str"
		n.Value = v
	case bool:
		n.Tag = "!!bool"
		if v {
			n.Value = "true"
		} else {
			n.Value = "false"
		}
	case int:
		n.Tag = "!!int"
		n.Value = fmt.Sprintf("%d", v)
	case float64:
		n.Tag = "!!float"
		n.Value = strconv.FormatFloat(v, 'g', -1, 64)
	default:
		n.Tag = "!!str"
		n.Value = fmt.Sprintf("%v", v)
	}
}
