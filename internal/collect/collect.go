// Package collect assigns every model of a resolved document its output identifier.
package collect

import (
	"strings"

	"github.com/mark3labs/openapi2ts/internal/naming"
	"github.com/mark3labs/openapi2ts/internal/spec"
	"go.uber.org/zap"
)

// Role records where a model was declared.
type Role string

const (
	RoleComponent   Role = "component"
	RoleRequestBody Role = "requestBody"
	RoleResponse    Role = "response"
	RoleParameter   Role = "parameter"
)

// Model is one named schema. Components are models by definition; anonymous
// schemas used directly by an operation get a name derived from that usage.
type Model struct {
	Name string
	Node spec.NodeID
	Role Role
	// Component is the components/schemas key, empty for synthesized models.
	Component string
	// Operation owns a synthesized model; nil for components.
	Operation *spec.Operation
	// EnumMembers holds one identifier per enum literal, for enum models only.
	EnumMembers []string
}

// Models is the collector output in declaration order.
type Models struct {
	list   []*Model
	byNode map[spec.NodeID]*Model
	byName map[string]*Model
}

func (m *Models) All() []*Model { return m.list }

func (m *Models) Len() int { return len(m.list) }

// ByNode returns the model declared by node id.
func (m *Models) ByNode(id spec.NodeID) (*Model, bool) {
	model, ok := m.byNode[id]
	return model, ok
}

// Option configures Collect.
type Option func(*collector)

func WithLogger(l *zap.Logger) Option {
	return func(c *collector) {
		if l != nil {
			c.log = l
		}
	}
}

type collector struct {
	s   *spec.Spec
	log *zap.Logger
	out *Models
}

// Collect names every component schema and every anonymous structured schema
// used directly as a parameter, request body or success response.
func Collect(s *spec.Spec, opts ...Option) (*Models, error) {
	c := &collector{
		s:   s,
		log: zap.NewNop(),
		out: &Models{byNode: make(map[spec.NodeID]*Model), byName: make(map[string]*Model)},
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, comp := range s.Components {
		if err := c.add(&Model{Name: naming.TypeName(comp.Name), Node: comp.Node, Role: RoleComponent, Component: comp.Name}); err != nil {
			return nil, err
		}
	}
	for _, op := range s.Operations {
		if err := c.operation(op); err != nil {
			return nil, err
		}
	}
	c.log.Debug("collected models", zap.Int("count", c.out.Len()))
	return c.out, nil
}

func (c *collector) operation(op *spec.Operation) error {
	base := naming.TypeName(OperationID(op))
	for _, p := range op.Parameters {
		if c.anonymous(p.Node) {
			name := base + naming.TypeName(p.Name) + "Param"
			if err := c.add(&Model{Name: name, Node: p.Node, Role: RoleParameter, Operation: op}); err != nil {
				return err
			}
		}
	}
	if err := c.content(op, base+"RequestBody", RoleRequestBody, op.RequestBody); err != nil {
		return err
	}
	if resp := op.SuccessResponse(); resp != nil {
		if err := c.content(op, base+"Response", RoleResponse, resp.Content); err != nil {
			return err
		}
	}
	return nil
}

// content names the anonymous schemas of one body. The content type short name is
// appended only when more than one content type declares such a schema.
func (c *collector) content(op *spec.Operation, name string, role Role, media []spec.MediaType) error {
	var anon []spec.MediaType
	for _, mt := range media {
		if c.anonymous(mt.Node) {
			anon = append(anon, mt)
		}
	}
	if len(anon) == 0 {
		return nil
	}
	cts := make([]string, len(anon))
	for i, mt := range anon {
		cts[i] = mt.ContentType
	}
	suffixes := naming.MediaTypes(cts)
	for i, mt := range anon {
		n := name
		if len(anon) > 1 {
			n += suffixes[i]
		}
		if err := c.add(&Model{Name: n, Node: mt.Node, Role: role, Operation: op}); err != nil {
			return err
		}
	}
	return nil
}

// anonymous reports whether id is an unnamed schema that needs its own declaration.
func (c *collector) anonymous(id spec.NodeID) bool {
	n := c.s.Graph.Node(id)
	if n == nil || n.Component != "" {
		return false
	}
	if _, ok := c.out.byNode[id]; ok {
		return false
	}
	switch n.Kind {
	case spec.KindObject, spec.KindEnum, spec.KindUnion, spec.KindIntersection:
		return true
	default:
		return false
	}
}

func (c *collector) add(m *Model) error {
	n := c.s.Graph.Node(m.Node)
	subject := m.Component
	if m.Operation != nil {
		subject = m.Operation.Subject()
	}
	if m.Name == "" {
		return spec.Errorf(spec.NamingConflictError, "cannot derive an identifier").At(n.Pointer).For(subject)
	}
	if prev, ok := c.out.byName[m.Name]; ok {
		return spec.Errorf(spec.NamingConflictError, "identifier %q is claimed by both %s and %s", m.Name, describe(prev), describe(m)).
			At(n.Pointer).For(subject)
	}
	if n.Kind == spec.KindEnum {
		members, err := enumMembers(n)
		if err != nil {
			return err.For(m.Name)
		}
		m.EnumMembers = members
	}
	n.Name = m.Name
	c.out.list = append(c.out.list, m)
	c.out.byNode[m.Node] = m
	c.out.byName[m.Name] = m
	c.log.Debug("model", zap.String("schema", m.Name), zap.String("pointer", n.Pointer))
	return nil
}

func enumMembers(n *spec.Node) ([]string, *spec.SpecError) {
	members := make([]string, len(n.Enum))
	seen := make(map[string]int, len(n.Enum))
	for i, ev := range n.Enum {
		name := ev.Name
		if name != "" {
			name = naming.TypeName(name)
		} else {
			name = naming.EnumMember(ev.Value)
		}
		if j, ok := seen[name]; ok {
			return nil, spec.Errorf(spec.NamingConflictError, "enum literals %v and %v both map to member %q", n.Enum[j].Value, ev.Value, name).At(n.Pointer)
		}
		seen[name] = i
		members[i] = name
	}
	return members, nil
}

func describe(m *Model) string {
	if m.Component != "" {
		return "schema " + m.Component
	}
	return string(m.Role) + " of " + m.Operation.Subject()
}

// OperationID returns the operationId, or a name synthesized from method and path.
func OperationID(op *spec.Operation) string {
	if id := strings.TrimSpace(op.ID); id != "" {
		return id
	}
	return naming.OperationName(string(op.Method), op.Path)
}
