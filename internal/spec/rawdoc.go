package spec

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// rawDoc keeps the untyped node tree of the input. kin-openapi decodes mappings into
// Go maps, so key order is recovered from here.
type rawDoc struct {
	root  *yaml.Node
	order map[string][]string
	// converted is set for documents upgraded from Swagger 2, whose key order was lost.
	converted bool
}

func newRawDoc(data []byte) (*rawDoc, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	rd := &rawDoc{root: root, order: make(map[string][]string)}
	rd.index("#", root)
	return rd, nil
}

func (rd *rawDoc) index(ptr string, n *yaml.Node) {
	switch n.Kind {
	case yaml.MappingNode:
		keys := make([]string, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i].Value
			keys = append(keys, k)
			rd.index(ptr+"/"+escapePointer(k), n.Content[i+1])
		}
		rd.order[ptr] = keys
	case yaml.SequenceNode:
		for i, c := range n.Content {
			rd.index(ptr+"/"+strconv.Itoa(i), c)
		}
	}
}

// str returns the scalar string at key of the root mapping.
func (rd *rawDoc) str(key string) string {
	if rd.root.Kind != yaml.MappingNode {
		return ""
	}
	for i := 0; i+1 < len(rd.root.Content); i += 2 {
		if rd.root.Content[i].Value == key && rd.root.Content[i+1].Kind == yaml.ScalarNode {
			return rd.root.Content[i+1].Value
		}
	}
	return ""
}

// ordered returns keys sorted by their position in the mapping at ptr. Keys the
// document does not list there are appended in lexical order.
func (rd *rawDoc) ordered(ptr string, keys []string) []string {
	pos := make(map[string]int)
	if rd != nil {
		for i, k := range rd.order[ptr] {
			pos[k] = i
		}
	}
	out := append([]string(nil), keys...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, iok := pos[out[i]]
		pj, jok := pos[out[j]]
		switch {
		case iok && jok:
			return pi < pj
		case iok != jok:
			return iok
		default:
			return out[i] < out[j]
		}
	})
	return out
}

// checkRefs verifies that every internal $ref points at an existing node.
func (rd *rawDoc) checkRefs() error {
	return rd.walkRefs("#", rd.root)
}

func (rd *rawDoc) walkRefs(ptr string, n *yaml.Node) error {
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Value == "$ref" && v.Kind == yaml.ScalarNode {
				if strings.HasPrefix(v.Value, "#") && rd.lookup(v.Value) == nil {
					return Errorf(ReferenceError, "unresolvable $ref %q", v.Value).At(ptr)
				}
				continue
			}
			if err := rd.walkRefs(ptr+"/"+escapePointer(k.Value), v); err != nil {
				return err
			}
		}
	case yaml.SequenceNode:
		for i, c := range n.Content {
			if err := rd.walkRefs(ptr+"/"+strconv.Itoa(i), c); err != nil {
				return err
			}
		}
	}
	return nil
}

// lookup resolves an internal JSON pointer ("#/a/b") against the node tree.
func (rd *rawDoc) lookup(ref string) *yaml.Node {
	ref = strings.TrimPrefix(ref, "#")
	cur := rd.root
	if ref == "" || ref == "/" {
		return cur
	}
	for _, tok := range strings.Split(strings.TrimPrefix(ref, "/"), "/") {
		tok = unescapePointer(tok)
		for cur.Kind == yaml.AliasNode && cur.Alias != nil {
			cur = cur.Alias
		}
		switch cur.Kind {
		case yaml.MappingNode:
			var next *yaml.Node
			for i := 0; i+1 < len(cur.Content); i += 2 {
				if cur.Content[i].Value == tok {
					next = cur.Content[i+1]
					break
				}
			}
			if next == nil {
				return nil
			}
			cur = next
		case yaml.SequenceNode:
			idx, err := strconv.Atoi(tok)
			if err != nil || idx < 0 || idx >= len(cur.Content) {
				return nil
			}
			cur = cur.Content[idx]
		default:
			return nil
		}
	}
	return cur
}

func escapePointer(s string) string {
	s = strings.ReplaceAll(s, "~", "~0")
	return strings.ReplaceAll(s, "/", "~1")
}

func unescapePointer(s string) string {
	s = strings.ReplaceAll(s, "~1", "/")
	return strings.ReplaceAll(s, "~0", "~")
}

// json re-encodes the node tree as JSON. Mapping keys are always strings, so
// unquoted status codes such as 200 survive the trip.
func (rd *rawDoc) json() ([]byte, error) {
	v, err := nodeValue(rd.root)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m[n.Content[i].Value] = v
		}
		return m, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}
