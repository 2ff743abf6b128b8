// Package compile expands operations into callable method variants.
package compile

import (
	"strings"

	"github.com/mark3labs/openapi2ts/internal/collect"
	"github.com/mark3labs/openapi2ts/internal/naming"
	"github.com/mark3labs/openapi2ts/internal/spec"
)

// ResponseSuffix marks the sibling method that returns the full response envelope.
const ResponseSuffix = "$Response"

// Variant is one generated method: an operation bound to exactly one request and
// one response content type.
type Variant struct {
	Name string
	// ResponseName is the envelope-returning sibling of Name.
	ResponseName string
	Operation    *spec.Operation
	Parameters   []spec.Parameter

	RequestContentType string
	RequestBody        spec.NodeID

	ResponseContentType string
	Response            spec.NodeID

	// Default is set on the first variant of an operation, which keeps the base name.
	Default bool
}

// Method groups the variants of one operation.
type Method struct {
	Operation *spec.Operation
	BaseName  string
	Variants  []*Variant
}

// BodyParameter is the key of the request body in a generated method's params.
const BodyParameter = "body"

// Operation compiles one operation. Variants follow the document order of the
// request content types, then of the success response content types. Two
// parameters that map to the same identifier are a naming conflict.
func Operation(op *spec.Operation) (*Method, error) {
	if err := checkParameters(op); err != nil {
		return nil, err
	}
	m := &Method{Operation: op, BaseName: BaseName(op)}

	req := op.RequestBody
	var resp []spec.MediaType
	if r := op.SuccessResponse(); r != nil {
		resp = r.Content
	}
	reqNames := naming.MediaTypes(contentTypes(req))
	respNames := naming.MediaTypes(contentTypes(resp))

	// A missing axis contributes a single empty slot so the product never collapses.
	if len(req) == 0 {
		req = []spec.MediaType{{Node: spec.NoNode}}
		reqNames = []string{""}
	}
	if len(resp) == 0 {
		resp = []spec.MediaType{{Node: spec.NoNode}}
		respNames = []string{""}
	}

	for i, rq := range req {
		for j, rs := range resp {
			name := m.BaseName
			if i != 0 || j != 0 {
				if len(req) > 1 {
					name += "$" + reqNames[i]
				}
				if len(resp) > 1 {
					name += "$" + respNames[j]
				}
			}
			m.Variants = append(m.Variants, &Variant{
				Name:                name,
				ResponseName:        name + ResponseSuffix,
				Operation:           op,
				Parameters:          op.Parameters,
				RequestContentType:  rq.ContentType,
				RequestBody:         rq.Node,
				ResponseContentType: rs.ContentType,
				Response:            rs.Node,
				Default:             i == 0 && j == 0,
			})
		}
	}
	return m, nil
}

func checkParameters(op *spec.Operation) error {
	seen := make(map[string]string, len(op.Parameters)+1)
	if len(op.RequestBody) > 0 {
		seen[BodyParameter] = "the request body"
	}
	for _, p := range op.Parameters {
		id := naming.MemberName(p.Name)
		owner := p.In + " parameter " + p.Name
		if prev, dup := seen[id]; dup {
			return spec.Errorf(spec.NamingConflictError,
				"%s and %s of %s both map to %q", prev, owner, op.Subject(), id).
				At(op.Pointer).For(op.Subject())
		}
		seen[id] = owner
	}
	return nil
}

// BaseName is x-operation-name when declared, otherwise the operationId or a name
// synthesized from method and path.
func BaseName(op *spec.Operation) string {
	if op.NameOverride != "" {
		return naming.MemberName(op.NameOverride)
	}
	return naming.MemberName(collect.OperationID(op))
}

func contentTypes(media []spec.MediaType) []string {
	out := make([]string, len(media))
	for i, mt := range media {
		out[i] = mt.ContentType
	}
	return out
}

// Service is the compiled form of one tag.
type Service struct {
	Tag         string
	Description string
	Methods     []*Method
}

// Group is a tag together with the operations selected into it.
type Group struct {
	Tag         string
	Description string
	Operations  []*spec.Operation
}

// Compile compiles every group. Two variants of the same group that produce the
// same method name are a naming conflict.
func Compile(groups []Group) ([]*Service, error) {
	cache := make(map[*spec.Operation]*Method)
	var out []*Service
	for _, g := range groups {
		svc := &Service{Tag: g.Tag, Description: g.Description}
		owner := make(map[string]*Variant)
		for _, op := range g.Operations {
			m, ok := cache[op]
			if !ok {
				var err error
				if m, err = Operation(op); err != nil {
					return nil, err
				}
				cache[op] = m
			}
			for _, v := range m.Variants {
				for _, name := range []string{v.Name, v.ResponseName} {
					key := strings.ToLower(name)
					if prev, dup := owner[key]; dup && prev != v {
						return nil, spec.Errorf(spec.NamingConflictError,
							"method %q of tag %q is produced by both %s and %s", name, g.Tag, prev.Operation.Subject(), op.Subject()).
							At(op.Pointer).For(op.Subject())
					}
					owner[key] = v
				}
			}
			svc.Methods = append(svc.Methods, m)
		}
		out = append(out, svc)
	}
	return out, nil
}
