package render

import (
	"sort"
	"strconv"
	"strings"

	"github.com/mark3labs/openapi2ts/internal/collect"
	"github.com/mark3labs/openapi2ts/internal/naming"
	"github.com/mark3labs/openapi2ts/internal/spec"
)

// typer renders TypeScript type expressions. References to retained models are
// emitted by name and recorded in deps; everything else is expanded inline.
type typer struct {
	g        *spec.Graph
	named    map[spec.NodeID]*collect.Model
	deps     map[spec.NodeID]bool
	visiting map[spec.NodeID]bool
}

func newTyper(g *spec.Graph, named map[spec.NodeID]*collect.Model) *typer {
	return &typer{g: g, named: named}
}

// reset starts a new module and returns the dependency set it will fill.
func (t *typer) reset() map[spec.NodeID]bool {
	t.deps = make(map[spec.NodeID]bool)
	t.visiting = make(map[spec.NodeID]bool)
	return t.deps
}

// ref renders a use of id.
func (t *typer) ref(id spec.NodeID) string {
	if id == spec.NoNode {
		return "any"
	}
	if m, ok := t.named[id]; ok {
		t.deps[id] = true
		return m.Name
	}
	if t.visiting[id] {
		return "any"
	}
	t.visiting[id] = true
	defer delete(t.visiting, id)
	return t.structure(id)
}

// structure renders the shape of id, ignoring its own name.
func (t *typer) structure(id spec.NodeID) string {
	n := t.g.Node(id)
	if n == nil {
		return "any"
	}
	var expr string
	switch n.Kind {
	case spec.KindPrimitive:
		expr = primitive(n)
	case spec.KindEnum:
		lits := make([]string, len(n.Enum))
		for i, ev := range n.Enum {
			lits[i] = literal(ev.Value)
		}
		expr = strings.Join(unique(lits), " | ")
	case spec.KindArray:
		expr = "Array<" + t.ref(n.Items) + ">"
	case spec.KindObject:
		expr = t.object(n)
	case spec.KindUnion:
		expr = t.compose(n.Members, " | ")
	case spec.KindIntersection:
		expr = t.compose(n.Members, " & ")
	case spec.KindAlias:
		expr = t.ref(n.Target)
	default:
		expr = "any"
	}
	if n.Nullable && expr != "any" && expr != "null" {
		expr = paren(expr) + " | null"
	}
	return expr
}

func (t *typer) compose(members []spec.NodeID, sep string) string {
	if len(members) == 0 {
		return "any"
	}
	parts := make([]string, len(members))
	for i, m := range members {
		parts[i] = paren(t.ref(m))
	}
	return strings.Join(unique(parts), sep)
}

func (t *typer) object(n *spec.Node) string {
	props, index := t.properties(n)
	if len(props) == 0 && index == "" {
		return "{ [key: string]: any }"
	}
	var b strings.Builder
	b.WriteString("{ ")
	for _, p := range props {
		if p.ReadOnly {
			b.WriteString("readonly ")
		}
		b.WriteString(p.Key)
		if !p.Required {
			b.WriteString("?")
		}
		b.WriteString(": ")
		b.WriteString(p.Type)
		b.WriteString("; ")
	}
	if index != "" {
		b.WriteString("[key: string]: ")
		b.WriteString(index)
		b.WriteString("; ")
	}
	b.WriteString("}")
	return b.String()
}

// properties renders the members of an object node. When both properties and
// additionalProperties exist the index type widens to every property type.
func (t *typer) properties(n *spec.Node) ([]PropertyDecl, string) {
	props := make([]PropertyDecl, 0, len(n.Properties))
	for _, p := range n.Properties {
		key := p.Name
		if !naming.IsIdentifier(key) {
			key = Quote(key)
		}
		props = append(props, PropertyDecl{
			Name:        p.Name,
			Key:         key,
			Type:        t.ref(p.Node),
			Required:    p.Required,
			ReadOnly:    p.ReadOnly,
			Description: p.Description,
		})
	}
	if n.AdditionalProperties == spec.NoNode {
		return props, ""
	}
	index := t.ref(n.AdditionalProperties)
	if len(props) == 0 || index == "any" {
		return props, index
	}
	types := []string{paren(index)}
	for _, p := range props {
		types = append(types, paren(p.Type))
	}
	if anyOptional(props) {
		types = append(types, "undefined")
	}
	return props, strings.Join(unique(types), " | ")
}

func anyOptional(props []PropertyDecl) bool {
	for _, p := range props {
		if !p.Required {
			return true
		}
	}
	return false
}

func primitive(n *spec.Node) string {
	switch n.Type {
	case "string":
		if n.Format == "binary" {
			return "Blob"
		}
		return "string"
	case "integer", "number":
		return "number"
	case "boolean":
		return "boolean"
	case "null":
		return "null"
	default:
		return "any"
	}
}

func literal(v any) string {
	switch x := v.(type) {
	case string:
		return Quote(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return "null"
	default:
		return "any"
	}
}

// Quote renders s as a single-quoted TypeScript string literal.
func Quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`)
	return "'" + r.Replace(s) + "'"
}

// paren wraps expressions holding a top-level union or intersection so they can be
// nested in another one.
func paren(expr string) string {
	depth := 0
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '<', '{', '(', '[':
			depth++
		case '>', '}', ')', ']':
			depth--
		case '|', '&':
			if depth == 0 {
				return "(" + expr + ")"
			}
		case '\'':
			// skip quoted literals
			for i++; i < len(expr) && expr[i] != '\''; i++ {
				if expr[i] == '\\' {
					i++
				}
			}
		}
	}
	return expr
}

func unique(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// sortedDeps returns the dependency node ids ordered by model name.
func (t *typer) sortedDeps(deps map[spec.NodeID]bool, self spec.NodeID) []*collect.Model {
	var out []*collect.Model
	for id := range deps {
		if id != self {
			out = append(out, t.named[id])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
