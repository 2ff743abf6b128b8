package spec

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"go.uber.org/zap"
)

const componentSchemaPrefix = "#/components/schemas/"

// Resolver turns a parsed Document into a reference-free Spec. Every reference is
// resolved exactly once per Resolver; the cache lives and dies with it.
type Resolver struct {
	doc    *Document
	strict bool
	log    *zap.Logger

	g         *Graph
	cache     map[string]NodeID
	resolving map[NodeID]bool
}

// ResolveOption configures a Resolver.
type ResolveOption func(*Resolver)

// WithStrict makes constructs the generator cannot express (per-operation servers,
// callbacks, cookie parameters) fail with NotSupportedError instead of being skipped.
func WithStrict(strict bool) ResolveOption { return func(r *Resolver) { r.strict = strict } }

func WithLogger(l *zap.Logger) ResolveOption {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

func NewResolver(doc *Document, opts ...ResolveOption) *Resolver {
	r := &Resolver{
		doc:       doc,
		strict:    true,
		log:       zap.NewNop(),
		g:         NewGraph(),
		cache:     make(map[string]NodeID),
		resolving: make(map[NodeID]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve builds the Spec. Components come first in document order, then operations.
func (r *Resolver) Resolve(ctx context.Context) (*Spec, error) {
	t := r.doc.T
	out := &Spec{Graph: r.g}
	if t.Info != nil {
		out.Title = t.Info.Title
		out.Version = t.Info.Version
		out.Description = t.Info.Description
	}
	if len(t.Servers) > 0 && t.Servers[0] != nil {
		out.RootURL = t.Servers[0].URL
	}
	for _, tag := range t.Tags {
		if tag != nil {
			out.Tags = append(out.Tags, Tag{Name: tag.Name, Description: tag.Description})
		}
	}

	if t.Components != nil {
		names := make([]string, 0, len(t.Components.Schemas))
		for name := range t.Components.Schemas {
			names = append(names, name)
		}
		for _, name := range r.doc.raw.ordered("#/components/schemas", names) {
			id, err := r.component(name)
			if err != nil {
				return nil, err
			}
			out.Components = append(out.Components, Component{Name: name, Node: id})
		}
	}

	paths := make([]string, 0, len(t.Paths))
	for p := range t.Paths {
		paths = append(paths, p)
	}
	for _, p := range r.doc.raw.ordered("#/paths", paths) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ops, err := r.pathItem(p, t.Paths[p])
		if err != nil {
			return nil, err
		}
		out.Operations = append(out.Operations, ops...)
	}

	r.log.Debug("resolved document",
		zap.Int("components", len(out.Components)),
		zap.Int("operations", len(out.Operations)),
		zap.Int("nodes", r.g.Len()))
	return out, nil
}

// unsupported fails in strict mode and logs a warning otherwise.
func (r *Resolver) unsupported(ptr, subject, what string) error {
	if r.strict {
		return Errorf(NotSupportedError, "%s are not supported", what).At(ptr).For(subject)
	}
	r.log.Warn("ignoring unsupported construct", zap.String("construct", what), zap.String("pointer", ptr), zap.String("subject", subject))
	return nil
}

func (r *Resolver) pathItem(path string, item *openapi3.PathItem) ([]*Operation, error) {
	if item == nil {
		return nil, nil
	}
	ptr := "#/paths/" + escapePointer(path)
	if len(item.Servers) > 0 {
		if err := r.unsupported(ptr+"/servers", path, "path-level servers"); err != nil {
			return nil, err
		}
	}

	byMethod := make(map[string]*openapi3.Operation)
	var keys []string
	for m, op := range item.Operations() {
		key := strings.ToLower(m)
		byMethod[key] = op
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	ordered := r.doc.raw.ordered(ptr, keys)
	if r.doc.raw.converted {
		ordered = canonicalMethodOrder(keys)
	}

	var out []*Operation
	for _, m := range ordered {
		op, err := r.operation(path, HttpMethod(m), ptr+"/"+m, item, byMethod[m])
		if err != nil {
			return nil, err
		}
		if op != nil {
			out = append(out, op)
		}
	}
	return out, nil
}

// canonicalMethodOrder is used when the document carries no usable key order.
func canonicalMethodOrder(keys []string) []string {
	rank := make(map[string]int, len(httpMethods))
	for i, m := range httpMethods {
		rank[string(m)] = i
	}
	out := append([]string(nil), keys...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, iok := rank[out[i]]
		rj, jok := rank[out[j]]
		if iok && jok {
			return ri < rj
		}
		if iok != jok {
			return iok
		}
		return out[i] < out[j]
	})
	return out
}

func (r *Resolver) operation(path string, method HttpMethod, ptr string, item *openapi3.PathItem, op *openapi3.Operation) (*Operation, error) {
	out := &Operation{
		ID:          op.OperationID,
		Method:      method,
		Path:        path,
		Pointer:     ptr,
		Tags:        append([]string(nil), op.Tags...),
		Summary:     op.Summary,
		Description: op.Description,
		Deprecated:  op.Deprecated,
	}
	subject := out.Subject()

	if op.Servers != nil && len(*op.Servers) > 0 {
		if err := r.unsupported(ptr+"/servers", subject, "per-operation servers"); err != nil {
			return nil, err
		}
	}
	if len(op.Callbacks) > 0 {
		if err := r.unsupported(ptr+"/callbacks", subject, "callbacks"); err != nil {
			return nil, err
		}
	}

	name, err := operationName(op.Extensions)
	if err != nil {
		return nil, Errorf(ValidationError, "%v", err).At(ptr).For(subject)
	}
	out.NameOverride = name

	params, err := r.parameters(ptr, subject, item.Parameters, "#/paths/"+escapePointer(path), op.Parameters)
	if err != nil {
		return nil, err
	}
	out.Parameters = params

	if rb := op.RequestBody; rb != nil {
		bodyPtr := ptr + "/requestBody"
		if rb.Ref != "" {
			bodyPtr = rb.Ref
		}
		if rb.Value == nil {
			return nil, Errorf(ReferenceError, "unresolved request body %q", rb.Ref).At(ptr + "/requestBody").For(subject)
		}
		out.RequestRequired = rb.Value.Required
		out.RequestBody, err = r.content(bodyPtr, rb.Value.Content)
		if err != nil {
			return nil, err
		}
	}

	statuses := make([]string, 0, len(op.Responses))
	for s := range op.Responses {
		statuses = append(statuses, s)
	}
	for _, status := range r.doc.raw.ordered(ptr+"/responses", statuses) {
		ref := op.Responses[status]
		if ref == nil {
			continue
		}
		respPtr := ptr + "/responses/" + escapePointer(status)
		if ref.Ref != "" {
			respPtr = ref.Ref
		}
		if ref.Value == nil {
			return nil, Errorf(ReferenceError, "unresolved response %q", ref.Ref).At(ptr + "/responses/" + escapePointer(status)).For(subject)
		}
		resp := Response{Status: strings.ToLower(status)}
		if ref.Value.Description != nil {
			resp.Description = *ref.Value.Description
		}
		resp.Content, err = r.content(respPtr, ref.Value.Content)
		if err != nil {
			return nil, err
		}
		out.Responses = append(out.Responses, resp)
	}
	return out, nil
}

// parameters merges path-level and operation-level parameters. An operation-level
// parameter replaces a path-level one with the same name and location.
func (r *Resolver) parameters(opPtr, subject string, shared openapi3.Parameters, pathPtr string, own openapi3.Parameters) ([]Parameter, error) {
	type src struct {
		ref *openapi3.ParameterRef
		ptr string
	}
	var all []src
	for i, p := range shared {
		all = append(all, src{p, pathPtr + "/parameters/" + strconv.Itoa(i)})
	}
	for i, p := range own {
		all = append(all, src{p, opPtr + "/parameters/" + strconv.Itoa(i)})
	}

	var out []Parameter
	index := make(map[string]int)
	for _, s := range all {
		if s.ref == nil {
			continue
		}
		if s.ref.Value == nil {
			return nil, Errorf(ReferenceError, "unresolved parameter %q", s.ref.Ref).At(s.ptr).For(subject)
		}
		p := s.ref.Value
		ptr := s.ptr
		if s.ref.Ref != "" {
			ptr = s.ref.Ref
		}
		if p.In == openapi3.ParameterInCookie {
			if err := r.unsupported(ptr, subject, "cookie parameters"); err != nil {
				return nil, err
			}
			continue
		}

		schemaRef, schemaPtr := p.Schema, ptr+"/schema"
		if schemaRef == nil && len(p.Content) > 0 {
			cts := make([]string, 0, len(p.Content))
			for ct := range p.Content {
				cts = append(cts, ct)
			}
			ct := r.doc.raw.ordered(ptr+"/content", cts)[0]
			if mt := p.Content[ct]; mt != nil {
				schemaRef, schemaPtr = mt.Schema, ptr+"/content/"+escapePointer(ct)+"/schema"
			}
		}
		node, err := r.schema(schemaRef, schemaPtr)
		if err != nil {
			return nil, err
		}
		param := Parameter{
			Name:        p.Name,
			In:          p.In,
			Required:    p.Required || p.In == openapi3.ParameterInPath,
			Deprecated:  p.Deprecated,
			Description: p.Description,
			Node:        node,
		}
		key := p.In + ":" + p.Name
		if i, ok := index[key]; ok {
			out[i] = param
			continue
		}
		index[key] = len(out)
		out = append(out, param)
	}
	return out, nil
}

func (r *Resolver) content(ptr string, content openapi3.Content) ([]MediaType, error) {
	cts := make([]string, 0, len(content))
	for ct := range content {
		cts = append(cts, ct)
	}
	var out []MediaType
	for _, ct := range r.doc.raw.ordered(ptr+"/content", cts) {
		mt := MediaType{ContentType: ct, Node: NoNode}
		if v := content[ct]; v != nil && v.Schema != nil {
			id, err := r.schema(v.Schema, ptr+"/content/"+escapePointer(ct)+"/schema")
			if err != nil {
				return nil, err
			}
			mt.Node = id
		}
		out = append(out, mt)
	}
	return out, nil
}

// component resolves a components/schemas entry by name.
func (r *Resolver) component(name string) (NodeID, error) {
	key := componentSchemaPrefix + escapePointer(name)
	if id, ok := r.cache[key]; ok {
		return id, nil
	}
	var ref *openapi3.SchemaRef
	if c := r.doc.T.Components; c != nil {
		ref = c.Schemas[name]
	}
	if ref == nil {
		return NoNode, Errorf(ReferenceError, "unknown schema %q", name).At(key)
	}
	if ref.Ref != "" {
		n := r.g.newNode(KindAlias)
		n.Component, n.Pointer = name, key
		r.cache[key] = n.ID
		target, err := r.schema(ref, key)
		if err != nil {
			return NoNode, err
		}
		n.Target = target
		return n.ID, nil
	}
	return r.build(ref.Value, key, name, key)
}

// schema resolves a schema reference or inline schema found at ptr.
func (r *Resolver) schema(ref *openapi3.SchemaRef, ptr string) (NodeID, error) {
	if ref == nil {
		n := r.g.newNode(KindPrimitive)
		n.Type, n.Pointer = "any", ptr
		return n.ID, nil
	}
	if ref.Ref == "" {
		return r.build(ref.Value, ptr, "", "")
	}
	if id, ok := r.cache[ref.Ref]; ok {
		return id, nil
	}
	if strings.HasPrefix(ref.Ref, componentSchemaPrefix) {
		name := unescapePointer(strings.TrimPrefix(ref.Ref, componentSchemaPrefix))
		if c := r.doc.T.Components; c != nil && c.Schemas[name] != nil {
			return r.component(name)
		}
	}
	if ref.Value == nil {
		return NoNode, Errorf(ReferenceError, "unresolvable $ref %q", ref.Ref).At(ptr)
	}
	return r.build(ref.Value, ref.Ref, "", ref.Ref)
}

// build creates the node for s. When cacheKey is set the node is cached before its
// children are resolved so recursive references terminate.
func (r *Resolver) build(s *openapi3.Schema, ptr, component, cacheKey string) (NodeID, error) {
	if s == nil {
		return NoNode, Errorf(ReferenceError, "empty schema").At(ptr).For(component)
	}
	n := r.g.newNode(kindOf(s))
	n.Component = component
	n.Pointer = ptr
	n.Format = s.Format
	n.Description = s.Description
	n.Nullable = s.Nullable
	n.Deprecated = s.Deprecated
	if cacheKey != "" {
		r.cache[cacheKey] = n.ID
	}
	r.resolving[n.ID] = true
	defer delete(r.resolving, n.ID)

	subject := component
	if subject == "" {
		subject = ptr
	}

	if _, named := s.Extensions[ExtEnumNames]; named && n.Kind != KindEnum {
		return NoNode, Errorf(ValidationError, "%s requires an enum on the same schema", ExtEnumNames).At(ptr).For(subject)
	}

	switch n.Kind {
	case KindEnum:
		return n.ID, r.fillEnum(n, s, subject)
	case KindIntersection:
		return n.ID, r.fillAllOf(n, s, subject)
	case KindUnion:
		members, kw := s.OneOf, "oneOf"
		if len(members) == 0 {
			members, kw = s.AnyOf, "anyOf"
		}
		for i, m := range members {
			id, err := r.schema(m, ptr+"/"+kw+"/"+strconv.Itoa(i))
			if err != nil {
				return NoNode, err
			}
			n.Members = append(n.Members, id)
		}
	case KindArray:
		id, err := r.schema(s.Items, ptr+"/items")
		if err != nil {
			return NoNode, err
		}
		n.Items = id
	case KindObject:
		props, addl, err := r.properties(s, ptr)
		if err != nil {
			return NoNode, err
		}
		n.Properties, n.AdditionalProperties = props, addl
	default:
		n.Type = s.Type
		if s.Not != nil {
			r.log.Debug("schema uses 'not', treating as any", zap.String("pointer", ptr))
			n.Type = "any"
		}
		if n.Type == "" {
			n.Type = "any"
		}
	}
	return n.ID, nil
}

func kindOf(s *openapi3.Schema) Kind {
	switch {
	case len(s.Enum) > 0:
		return KindEnum
	case len(s.AllOf) > 0:
		return KindIntersection
	case len(s.OneOf) > 0 || len(s.AnyOf) > 0:
		return KindUnion
	case s.Type == openapi3.TypeArray || s.Items != nil:
		return KindArray
	case s.Type == openapi3.TypeObject || len(s.Properties) > 0 ||
		s.AdditionalProperties.Schema != nil || s.AdditionalProperties.Has != nil:
		return KindObject
	default:
		return KindPrimitive
	}
}

func (r *Resolver) properties(s *openapi3.Schema, ptr string) ([]Property, NodeID, error) {
	required := make(map[string]bool, len(s.Required))
	for _, name := range s.Required {
		required[name] = true
	}
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	var props []Property
	for _, name := range r.doc.raw.ordered(ptr+"/properties", names) {
		ref := s.Properties[name]
		id, err := r.schema(ref, ptr+"/properties/"+escapePointer(name))
		if err != nil {
			return nil, NoNode, err
		}
		p := Property{Name: name, Node: id, Required: required[name]}
		if ref != nil && ref.Value != nil {
			p.ReadOnly = ref.Value.ReadOnly
			p.Description = ref.Value.Description
		}
		props = append(props, p)
	}

	addl := NoNode
	switch ap := s.AdditionalProperties; {
	case ap.Schema != nil:
		id, err := r.schema(ap.Schema, ptr+"/additionalProperties")
		if err != nil {
			return nil, NoNode, err
		}
		addl = id
	case ap.Has != nil && *ap.Has:
		n := r.g.newNode(KindPrimitive)
		n.Type, n.Pointer = "any", ptr+"/additionalProperties"
		addl = n.ID
	}
	return props, addl, nil
}

func (r *Resolver) fillEnum(n *Node, s *openapi3.Schema, subject string) error {
	names, err := enumNames(s.Extensions, len(s.Enum))
	if err != nil {
		return Errorf(ValidationError, "%v", err).At(n.Pointer).For(subject)
	}
	n.Type = s.Type
	for i, v := range s.Enum {
		ev := EnumValue{Value: v}
		if names != nil {
			ev.Name = names[i]
		}
		n.Enum = append(n.Enum, ev)
	}
	if n.Type == "" {
		n.Type = literalType(s.Enum[0])
	}
	return nil
}

func literalType(v any) string {
	switch x := v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case nil:
		return "null"
	case float64:
		if x == math.Trunc(x) {
			return "integer"
		}
		return "number"
	case int, int64:
		return "integer"
	default:
		return "any"
	}
}

// fillAllOf resolves an allOf composition. A lone member without own properties
// becomes an alias; fully resolved object members are merged into one object;
// anything else stays an intersection.
func (r *Resolver) fillAllOf(n *Node, s *openapi3.Schema, subject string) error {
	var members []NodeID
	for i, m := range s.AllOf {
		id, err := r.schema(m, n.Pointer+"/allOf/"+strconv.Itoa(i))
		if err != nil {
			return err
		}
		members = append(members, id)
	}
	own, addl, err := r.properties(s, n.Pointer)
	if err != nil {
		return err
	}

	if len(members) == 1 && len(own) == 0 && addl == NoNode {
		n.Kind, n.Target = KindAlias, members[0]
		return nil
	}

	if objs, ok := r.mergeable(members); ok {
		seen := make(map[string]bool)
		var merged []Property
		for _, obj := range objs {
			for _, p := range obj.Properties {
				if seen[p.Name] {
					return Errorf(NamingConflictError, "property %q is declared by more than one allOf member", p.Name).At(n.Pointer).For(subject)
				}
				seen[p.Name] = true
				merged = append(merged, p)
			}
			if addl == NoNode {
				addl = obj.AdditionalProperties
			}
		}
		required := make(map[string]bool, len(s.Required))
		for _, name := range s.Required {
			required[name] = true
		}
		for i := range merged {
			if required[merged[i].Name] {
				merged[i].Required = true
			}
		}
		for _, p := range own {
			if seen[p.Name] {
				return Errorf(NamingConflictError, "property %q is declared by more than one allOf member", p.Name).At(n.Pointer).For(subject)
			}
			seen[p.Name] = true
			merged = append(merged, p)
		}
		n.Kind, n.Properties, n.AdditionalProperties = KindObject, merged, addl
		return nil
	}

	n.Members = members
	if len(own) > 0 || addl != NoNode {
		extra := r.g.newNode(KindObject)
		extra.Pointer = n.Pointer
		extra.Properties, extra.AdditionalProperties = own, addl
		n.Members = append(n.Members, extra.ID)
	}
	return nil
}

// mergeable reports whether every member is a finished object, following aliases.
func (r *Resolver) mergeable(members []NodeID) ([]*Node, bool) {
	out := make([]*Node, 0, len(members))
	for _, id := range members {
		n := r.g.Node(id)
		for hops := 0; n != nil && n.Kind == KindAlias && hops < r.g.Len(); hops++ {
			if r.resolving[n.ID] {
				return nil, false
			}
			n = r.g.Node(n.Target)
		}
		if n == nil || n.Kind != KindObject || r.resolving[n.ID] {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}
