package render

import (
	"context"
	"testing"

	"github.com/mark3labs/openapi2ts/internal/collect"
	"github.com/mark3labs/openapi2ts/internal/compile"
	"github.com/mark3labs/openapi2ts/internal/filter"
	"github.com/mark3labs/openapi2ts/internal/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, src string) *Model {
	t.Helper()
	ctx := context.Background()
	doc, err := spec.Parse(ctx, []byte(src), spec.FormatYAML)
	require.NoError(t, err)
	s, err := spec.NewResolver(doc).Resolve(ctx)
	require.NoError(t, err)
	models, err := collect.Collect(s)
	require.NoError(t, err)
	groups, err := filter.Select(s, filter.Config{}, nil)
	require.NoError(t, err)
	services, err := compile.Compile(groups)
	require.NoError(t, err)
	kept := filter.Prune(s, models, filter.Retained(s, groups), filter.Config{})
	out, err := Build(s, kept, services)
	require.NoError(t, err)
	return out
}

func module(t *testing.T, m *Model, name string) *Module {
	t.Helper()
	for _, mod := range m.Modules {
		if mod.Name == name {
			return mod
		}
	}
	t.Fatalf("module %q not found", name)
	return nil
}

const zooYAML = `openapi: 3.0.0
info: {title: Zoo, version: "2.1"}
servers:
  - url: https://zoo.example.com/api
paths:
  /animals/{id}:
    get:
      operationId: getAnimal
      tags: [zoo]
      parameters:
        - {name: id, in: path, required: true, schema: {type: integer}}
        - {name: X-Trace-Id, in: header, schema: {type: string}}
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema: {$ref: '#/components/schemas/Animal'}
  /keepers:
    post:
      operationId: addKeeper
      tags: [admin]
      requestBody:
        required: true
        content:
          application/json:
            schema: {$ref: '#/components/schemas/Keeper'}
      responses:
        "204": {description: added}
  /photos/{id}:
    get:
      operationId: getPhoto
      tags: [zoo]
      parameters:
        - {name: id, in: path, required: true, schema: {type: string}}
      responses:
        "200":
          description: ok
          content:
            image/png:
              schema: {type: string, format: binary}
            text/plain: {}
components:
  schemas:
    Animal:
      type: object
      required: [name]
      properties:
        name: {type: string}
        keeper: {$ref: '#/components/schemas/Keeper'}
        kind: {$ref: '#/components/schemas/Kind'}
        "favourite-food": {type: string, nullable: true}
        meta:
          type: object
          additionalProperties: {type: integer}
    Keeper:
      type: object
      properties:
        animals:
          type: array
          items: {$ref: '#/components/schemas/Animal'}
        id: {type: integer, readOnly: true}
    Kind:
      type: string
      enum: [mammal, bird]
    Mixed:
      enum: [1, "one", true]
    Pet:
      oneOf:
        - $ref: '#/components/schemas/Animal'
        - type: object
          properties:
            wild: {type: boolean}
`

func TestBuild_ModuleOrderAndHeader(t *testing.T) {
	t.Parallel()
	m := build(t, zooYAML)

	var names []string
	for _, mod := range m.Modules {
		names = append(names, string(mod.Kind)+":"+mod.Name)
	}
	assert.Equal(t, []string{
		"model:Animal", "model:Keeper", "model:Kind",
		"service:AdminService", "service:ZooService",
		"registration:ApiModule",
	}, names)
	assert.Equal(t, "Zoo", m.Title)
	assert.Equal(t, "2.1", m.Version)
	assert.Equal(t, "https://zoo.example.com/api", m.RootURL)
	assert.Len(t, m.ModulesOf(ModuleModel), 3)
}

func TestBuild_ModelDeclarations(t *testing.T) {
	t.Parallel()
	m := build(t, zooYAML)

	animal := module(t, m, "Animal")
	assert.Equal(t, "models/animal", animal.File)
	require.Equal(t, FormInterface, animal.Model.Form)
	props := animal.Model.Properties
	require.Len(t, props, 5)
	assert.Equal(t, PropertyDecl{Name: "name", Key: "name", Type: "string", Required: true}, props[0])
	assert.Equal(t, "Keeper", props[1].Type)
	assert.Equal(t, "'favourite-food'", props[3].Key)
	assert.Equal(t, "string | null", props[3].Type)
	assert.Equal(t, "{ [key: string]: number; }", props[4].Type)

	assert.Equal(t, []Import{
		{Name: "Keeper", Path: "./keeper", TypeOnly: true},
		{Name: "Kind", Path: "./kind"},
	}, animal.Imports)

	keeper := module(t, m, "Keeper")
	assert.Equal(t, "Array<Animal>", keeper.Model.Properties[0].Type)
	assert.True(t, keeper.Model.Properties[1].ReadOnly)
	assert.Equal(t, []Import{{Name: "Animal", Path: "./animal", TypeOnly: true}}, keeper.Imports)

	kind := module(t, m, "Kind")
	require.Equal(t, FormEnum, kind.Model.Form)
	assert.Equal(t, []EnumMemberDecl{{Name: "Mammal", Value: "'mammal'"}, {Name: "Bird", Value: "'bird'"}}, kind.Model.Members)
	assert.Empty(t, kind.Imports)
}

func TestBuild_Services(t *testing.T) {
	t.Parallel()
	m := build(t, zooYAML)

	zoo := module(t, m, "ZooService")
	assert.Equal(t, "services/zoo.service", zoo.File)
	assert.Equal(t, []Import{{Name: "Animal", Path: "../models/animal"}}, zoo.Imports)

	methods := zoo.Service.Methods
	require.Len(t, methods, 3)
	get := methods[0]
	assert.Equal(t, "getAnimal", get.Name)
	assert.Equal(t, "getAnimal$Response", get.ResponseName)
	assert.Equal(t, "GET", get.HTTPMethod)
	assert.Equal(t, "Animal", get.ResultType)
	assert.Equal(t, "json", get.ResponseKind)
	assert.Nil(t, get.Body)
	require.Len(t, get.Parameters, 2)
	assert.Equal(t, ParamDecl{Name: "id", Identifier: "id", In: "path", Type: "number", Required: true}, get.Parameters[0])
	assert.Equal(t, "xTraceId", get.Parameters[1].Identifier)

	assert.Equal(t, "getPhoto", methods[1].Name)
	assert.Equal(t, "Blob", methods[1].ResultType)
	assert.Equal(t, "blob", methods[1].ResponseKind)
	assert.Equal(t, "getPhoto$Plain", methods[2].Name)
	assert.Equal(t, "string", methods[2].ResultType)
	assert.Equal(t, "text", methods[2].ResponseKind)

	admin := module(t, m, "AdminService")
	add := admin.Service.Methods[0]
	require.NotNil(t, add.Body)
	assert.Equal(t, BodyDecl{ContentType: "application/json", Type: "Keeper", Required: true}, *add.Body)
	assert.Equal(t, "void", add.ResultType)

	reg := m.Modules[len(m.Modules)-1]
	assert.Equal(t, ModuleRegistration, reg.Kind)
	assert.Equal(t, []ServiceRef{
		{Name: "AdminService", Path: "./services/admin.service"},
		{Name: "ZooService", Path: "./services/zoo.service"},
	}, reg.Registration.Services)
}

func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()
	first, err := build(t, zooYAML).JSON()
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := build(t, zooYAML).JSON()
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestBuild_TypeAliasForms(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	doc, err := spec.Parse(ctx, []byte(zooYAML), spec.FormatYAML)
	require.NoError(t, err)
	s, err := spec.NewResolver(doc).Resolve(ctx)
	require.NoError(t, err)
	models, err := collect.Collect(s)
	require.NoError(t, err)

	out, err := Build(s, models.All(), nil)
	require.NoError(t, err)

	mixed := module(t, out, "Mixed")
	assert.Equal(t, FormType, mixed.Model.Form)
	assert.Equal(t, "1 | 'one' | true", mixed.Model.Type)

	pet := module(t, out, "Pet")
	assert.Equal(t, FormType, pet.Model.Form)
	assert.Equal(t, "Animal | { wild?: boolean; }", pet.Model.Type)
	assert.Equal(t, []Import{{Name: "Animal", Path: "./animal"}}, pet.Imports)
}

func TestBuild_ServiceNameConflict(t *testing.T) {
	t.Parallel()
	s := &spec.Spec{Graph: spec.NewGraph()}
	services := []*compile.Service{{Tag: "pet-store"}, {Tag: "pet_store"}}
	_, err := Build(s, nil, services)
	assert.Equal(t, spec.NamingConflictError, spec.CodeOf(err))
}

func TestParenAndRelImport(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "(A | B)", paren("A | B"))
	assert.Equal(t, "Array<A | B>", paren("Array<A | B>"))
	assert.Equal(t, "'a|b'", paren("'a|b'"))
	assert.Equal(t, "({ a: A; } | null)", paren("{ a: A; } | null"))

	assert.Equal(t, "./pet", relImport("models/owner", "models/pet"))
	assert.Equal(t, "../models/pet", relImport("services/pets.service", "models/pet"))
	assert.Equal(t, "./services/pets.service", relImport("api.module", "services/pets.service"))
}
