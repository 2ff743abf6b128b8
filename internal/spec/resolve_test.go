package spec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func resolveYAML(t *testing.T, src string, opts ...ResolveOption) (*Spec, error) {
	t.Helper()
	doc, err := Parse(context.Background(), []byte(src), FormatYAML)
	require.NoError(t, err)
	return NewResolver(doc, opts...).Resolve(context.Background())
}

func mustResolve(t *testing.T, src string, opts ...ResolveOption) *Spec {
	t.Helper()
	s, err := resolveYAML(t, src, opts...)
	require.NoError(t, err)
	return s
}

func component(t *testing.T, s *Spec, name string) *Node {
	t.Helper()
	for _, c := range s.Components {
		if c.Name == name {
			return s.Graph.Node(c.Node)
		}
	}
	t.Fatalf("component %q not found", name)
	return nil
}

func TestResolve_ComponentsInDocumentOrder(t *testing.T) {
	t.Parallel()
	s := mustResolve(t, `openapi: 3.0.0
info: {title: T, version: "1"}
servers:
  - url: https://api.example.com/v1
  - url: https://backup.example.com
paths: {}
components:
  schemas:
    Zed: {type: string}
    Alpha: {type: integer, format: int64}
    Mid: {type: boolean}
`)
	var names []string
	for _, c := range s.Components {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Zed", "Alpha", "Mid"}, names)
	assert.Equal(t, "https://api.example.com/v1", s.RootURL)

	alpha := component(t, s, "Alpha")
	assert.Equal(t, KindPrimitive, alpha.Kind)
	assert.Equal(t, "integer", alpha.Type)
	assert.Equal(t, "int64", alpha.Format)
	assert.Equal(t, "Alpha", alpha.Component)
}

func TestResolve_ObjectPropertiesKeepOrder(t *testing.T) {
	t.Parallel()
	s := mustResolve(t, `openapi: 3.0.0
info: {title: T, version: "1"}
paths: {}
components:
  schemas:
    Pet:
      type: object
      required: [name]
      properties:
        name: {type: string}
        age: {type: integer, readOnly: true}
        tags:
          type: array
          items: {type: string}
      additionalProperties:
        type: string
`)
	pet := component(t, s, "Pet")
	require.Equal(t, KindObject, pet.Kind)
	require.Len(t, pet.Properties, 3)
	assert.Equal(t, "name", pet.Properties[0].Name)
	assert.True(t, pet.Properties[0].Required)
	assert.Equal(t, "age", pet.Properties[1].Name)
	assert.True(t, pet.Properties[1].ReadOnly)
	assert.False(t, pet.Properties[1].Required)

	tags := s.Graph.Node(pet.Properties[2].Node)
	require.Equal(t, KindArray, tags.Kind)
	assert.Equal(t, "string", s.Graph.Node(tags.Items).Type)
	assert.Equal(t, "string", s.Graph.Node(pet.AdditionalProperties).Type)
}

func TestResolve_SharedRefResolvedOnce(t *testing.T) {
	t.Parallel()
	s := mustResolve(t, `openapi: 3.0.0
info: {title: T, version: "1"}
paths: {}
components:
  schemas:
    Owner:
      type: object
      properties:
        name: {type: string}
    Pet:
      type: object
      properties:
        owner: {$ref: '#/components/schemas/Owner'}
        previousOwner: {$ref: '#/components/schemas/Owner'}
`)
	owner := component(t, s, "Owner")
	pet := component(t, s, "Pet")
	assert.Equal(t, owner.ID, pet.Properties[0].Node)
	assert.Equal(t, owner.ID, pet.Properties[1].Node)
}

func TestResolve_CyclicSchemas(t *testing.T) {
	t.Parallel()
	s := mustResolve(t, `openapi: 3.0.0
info: {title: T, version: "1"}
paths: {}
components:
  schemas:
    Node:
      type: object
      properties:
        children:
          type: array
          items: {$ref: '#/components/schemas/Node'}
        parent: {$ref: '#/components/schemas/Node'}
    A:
      type: object
      properties:
        b: {$ref: '#/components/schemas/B'}
    B:
      type: object
      properties:
        a: {$ref: '#/components/schemas/A'}
`)
	require.Len(t, s.Components, 3)
	n := component(t, s, "Node")
	assert.Equal(t, n.ID, n.Properties[1].Node)
	assert.Equal(t, n.ID, s.Graph.Node(n.Properties[0].Node).Items)

	a, b := component(t, s, "A"), component(t, s, "B")
	assert.Equal(t, b.ID, a.Properties[0].Node)
	assert.Equal(t, a.ID, b.Properties[0].Node)
}

func TestResolve_ComponentAlias(t *testing.T) {
	t.Parallel()
	s := mustResolve(t, `openapi: 3.0.0
info: {title: T, version: "1"}
paths: {}
components:
  schemas:
    Id: {type: string, format: uuid}
    PetId: {$ref: '#/components/schemas/Id'}
`)
	petID := component(t, s, "PetId")
	require.Equal(t, KindAlias, petID.Kind)
	assert.Equal(t, component(t, s, "Id").ID, petID.Target)
}

func TestResolve_AllOf(t *testing.T) {
	t.Parallel()
	s := mustResolve(t, `openapi: 3.0.0
info: {title: T, version: "1"}
paths: {}
components:
  schemas:
    Base:
      type: object
      required: [id]
      properties:
        id: {type: string}
    Named:
      type: object
      properties:
        name: {type: string}
    Merged:
      allOf:
        - $ref: '#/components/schemas/Base'
        - $ref: '#/components/schemas/Named'
      required: [name]
      properties:
        extra: {type: integer}
    Single:
      allOf:
        - $ref: '#/components/schemas/Base'
    Mixed:
      allOf:
        - $ref: '#/components/schemas/Base'
        - type: string
`)
	merged := component(t, s, "Merged")
	require.Equal(t, KindObject, merged.Kind)
	var names []string
	for _, p := range merged.Properties {
		names = append(names, p.Name)
		if p.Name == "id" || p.Name == "name" {
			assert.True(t, p.Required, p.Name)
		}
	}
	assert.Equal(t, []string{"id", "name", "extra"}, names)

	single := component(t, s, "Single")
	require.Equal(t, KindAlias, single.Kind)
	assert.Equal(t, component(t, s, "Base").ID, single.Target)

	mixed := component(t, s, "Mixed")
	require.Equal(t, KindIntersection, mixed.Kind)
	assert.Len(t, mixed.Members, 2)
}

func TestResolve_AllOfDuplicatePropertyIsConflict(t *testing.T) {
	t.Parallel()
	_, err := resolveYAML(t, `openapi: 3.0.0
info: {title: T, version: "1"}
paths: {}
components:
  schemas:
    A:
      type: object
      properties:
        id: {type: string}
    B:
      type: object
      properties:
        id: {type: integer}
    C:
      allOf:
        - $ref: '#/components/schemas/A'
        - $ref: '#/components/schemas/B'
`)
	assert.Equal(t, NamingConflictError, CodeOf(err))
}

func TestResolve_UnionsAndEnums(t *testing.T) {
	t.Parallel()
	s := mustResolve(t, `openapi: 3.0.0
info: {title: T, version: "1"}
paths: {}
components:
  schemas:
    Cat: {type: object, properties: {meow: {type: boolean}}}
    Dog: {type: object, properties: {bark: {type: boolean}}}
    Animal:
      oneOf:
        - $ref: '#/components/schemas/Cat'
        - $ref: '#/components/schemas/Dog'
    Priority:
      type: integer
      enum: [1, 2, 3]
      x-enumNames: [Low, Medium, High]
    Color:
      enum: [red, green]
`)
	animal := component(t, s, "Animal")
	require.Equal(t, KindUnion, animal.Kind)
	assert.Equal(t, []NodeID{component(t, s, "Cat").ID, component(t, s, "Dog").ID}, animal.Members)

	prio := component(t, s, "Priority")
	require.Equal(t, KindEnum, prio.Kind)
	assert.Equal(t, "integer", prio.Type)
	require.Len(t, prio.Enum, 3)
	assert.Equal(t, "High", prio.Enum[2].Name)

	color := component(t, s, "Color")
	assert.Equal(t, "string", color.Type)
	assert.Empty(t, color.Enum[0].Name)
}

func TestResolve_EnumNamesMismatch(t *testing.T) {
	t.Parallel()
	_, err := resolveYAML(t, `openapi: 3.0.0
info: {title: T, version: "1"}
paths: {}
components:
  schemas:
    Priority:
      type: integer
      enum: [1, 2, 3]
      x-enumNames: [Low, High]
`)
	var se *SpecError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ValidationError, se.Code)
	assert.Equal(t, "Priority", se.Subject)
	assert.Equal(t, "#/components/schemas/Priority", se.Pointer)
}

func TestResolve_EnumNamesWithoutEnum(t *testing.T) {
	t.Parallel()
	_, err := resolveYAML(t, `openapi: 3.0.0
info: {title: T, version: "1"}
paths: {}
components:
  schemas:
    Label:
      type: string
      x-enumNames: [Low, High]
`)
	var se *SpecError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ValidationError, se.Code)
	assert.Equal(t, "Label", se.Subject)
	assert.Contains(t, se.Message, "requires an enum")
}

const operationsYAML = `openapi: 3.0.0
info: {title: T, version: "1"}
paths:
  /pets/{petId}:
    parameters:
      - name: petId
        in: path
        required: true
        schema: {type: string}
      - name: verbose
        in: query
        schema: {type: boolean}
    put:
      operationId: updatePet
      tags: [pets]
      parameters:
        - name: verbose
          in: query
          description: overrides path-level
          schema: {type: string}
      requestBody:
        required: true
        content:
          application/json:
            schema: {$ref: '#/components/schemas/Pet'}
          application/xml:
            schema: {$ref: '#/components/schemas/Pet'}
      responses:
        "404": {description: missing}
        "200":
          description: ok
          content:
            application/json:
              schema: {$ref: '#/components/schemas/Pet'}
    get:
      x-operation-name: fetch
      responses:
        default:
          description: anything
components:
  schemas:
    Pet: {type: object, properties: {name: {type: string}}}
`

func TestResolve_Operations(t *testing.T) {
	t.Parallel()
	s := mustResolve(t, operationsYAML)
	require.Len(t, s.Operations, 2)

	put, get := s.Operations[0], s.Operations[1]
	assert.Equal(t, PUT, put.Method)
	assert.Equal(t, GET, get.Method)
	assert.Equal(t, "#/paths/~1pets~1{petId}/put", put.Pointer)
	assert.Equal(t, "updatePet", put.Subject())
	assert.Equal(t, "get /pets/{petId}", get.Subject())
	assert.Equal(t, "fetch", get.NameOverride)

	require.Len(t, put.Parameters, 2)
	assert.Equal(t, "petId", put.Parameters[0].Name)
	assert.True(t, put.Parameters[0].Required)
	assert.Equal(t, "overrides path-level", put.Parameters[1].Description)
	assert.Equal(t, "string", s.Graph.Node(put.Parameters[1].Node).Type)

	require.Len(t, put.RequestBody, 2)
	assert.Equal(t, "application/json", put.RequestBody[0].ContentType)
	assert.Equal(t, "application/xml", put.RequestBody[1].ContentType)
	assert.True(t, put.RequestRequired)

	require.Len(t, put.Responses, 2)
	assert.Equal(t, "404", put.Responses[0].Status)
	ok := put.SuccessResponse()
	require.NotNil(t, ok)
	assert.Equal(t, "200", ok.Status)
	assert.Equal(t, component(t, s, "Pet").ID, ok.Content[0].Node)

	def := get.SuccessResponse()
	require.NotNil(t, def)
	assert.Equal(t, "default", def.Status)
}

func TestResolve_InvalidOperationName(t *testing.T) {
	t.Parallel()
	_, err := resolveYAML(t, `openapi: 3.0.0
info: {title: T, version: "1"}
paths:
  /x:
    get:
      x-operation-name: ""
      responses:
        "200": {description: ok}
`)
	assert.Equal(t, ValidationError, CodeOf(err))
}

const unsupportedYAML = `openapi: 3.0.0
info: {title: T, version: "1"}
paths:
  /x:
    get:
      operationId: getX
      servers:
        - url: https://other.example.com
      parameters:
        - name: session
          in: cookie
          schema: {type: string}
        - name: q
          in: query
          schema: {type: string}
      responses:
        "200": {description: ok}
`

func TestResolve_StrictRejectsUnsupported(t *testing.T) {
	t.Parallel()
	_, err := resolveYAML(t, unsupportedYAML)
	var se *SpecError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, NotSupportedError, se.Code)
	assert.Equal(t, "getX", se.Subject)
	assert.Equal(t, "#/paths/~1x/get/servers", se.Pointer)
}

func TestResolve_LenientSkipsUnsupported(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.WarnLevel)
	s := mustResolve(t, unsupportedYAML, WithStrict(false), WithLogger(zap.New(core)))

	require.Len(t, s.Operations, 1)
	params := s.Operations[0].Parameters
	require.Len(t, params, 1)
	assert.Equal(t, "q", params[0].Name)
	assert.Equal(t, 2, logs.FilterMessage("ignoring unsupported construct").Len())
}

func TestResolve_HonorsCancellation(t *testing.T) {
	t.Parallel()
	doc, err := Parse(context.Background(), []byte(operationsYAML), FormatYAML)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewResolver(doc).Resolve(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
