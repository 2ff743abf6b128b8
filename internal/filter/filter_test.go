package filter

import (
	"context"
	"testing"

	"github.com/mark3labs/openapi2ts/internal/collect"
	"github.com/mark3labs/openapi2ts/internal/compile"
	"github.com/mark3labs/openapi2ts/internal/spec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const storeYAML = `openapi: 3.0.0
info: {title: Store, version: "1"}
tags:
  - name: pets
    description: Everything about pets
  - name: store
paths:
  /pets:
    get:
      operationId: listPets
      tags: [pets]
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                type: array
                items: {$ref: '#/components/schemas/Pet'}
  /orders:
    post:
      operationId: placeOrder
      tags: [store, pets]
      requestBody:
        content:
          application/json:
            schema:
              type: object
              properties:
                item: {$ref: '#/components/schemas/Item'}
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema: {$ref: '#/components/schemas/Order'}
  /health:
    get:
      operationId: health
      responses:
        "200": {description: ok}
components:
  schemas:
    Pet:
      type: object
      properties:
        owner: {$ref: '#/components/schemas/Owner'}
    Owner:
      type: object
      properties:
        pets:
          type: array
          items: {$ref: '#/components/schemas/Pet'}
    Order:
      type: object
      properties:
        status: {$ref: '#/components/schemas/Status'}
    Status: {type: string, enum: [open, closed]}
    Item: {type: object}
    Unused: {type: string}
`

type fixture struct {
	s      *spec.Spec
	models *collect.Models
}

func load(t *testing.T) fixture {
	t.Helper()
	doc, err := spec.Parse(context.Background(), []byte(storeYAML), spec.FormatYAML)
	require.NoError(t, err)
	s, err := spec.NewResolver(doc).Resolve(context.Background())
	require.NoError(t, err)
	models, err := collect.Collect(s)
	require.NoError(t, err)
	return fixture{s: s, models: models}
}

func tags(groups []compile.Group) map[string][]string {
	out := map[string][]string{}
	for _, g := range groups {
		for _, op := range g.Operations {
			out[g.Tag] = append(out[g.Tag], op.ID)
		}
	}
	return out
}

func modelNames(ms []*collect.Model) []string {
	var out []string
	for _, m := range ms {
		out = append(out, m.Name)
	}
	return out
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Config{IncludeTags: []string{"a"}, ExcludeOperations: []string{"b"}}.Validate())

	err := Config{IncludeTags: []string{"a"}, ExcludeTags: []string{"b"}}.Validate()
	assert.Equal(t, spec.ConfigurationError, spec.CodeOf(err))

	err = Config{IncludeOperations: []string{"a"}, ExcludeOperations: []string{"b"}}.Validate()
	assert.Equal(t, spec.ConfigurationError, spec.CodeOf(err))
}

func TestSelect_GroupsByTag(t *testing.T) {
	t.Parallel()
	f := load(t)
	groups, err := Select(f.s, Config{}, nil)
	require.NoError(t, err)

	require.Len(t, groups, 3)
	assert.Equal(t, "pets", groups[0].Tag)
	assert.Equal(t, "Everything about pets", groups[0].Description)
	assert.Equal(t, map[string][]string{
		"pets":  {"listPets", "placeOrder"},
		"store": {"placeOrder"},
		"Api":   {"health"},
	}, tags(groups))
}

func TestSelect_TagFilters(t *testing.T) {
	t.Parallel()
	f := load(t)

	groups, err := Select(f.s, Config{IncludeTags: []string{"store"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"store": {"placeOrder"}}, tags(groups))

	groups, err = Select(f.s, Config{ExcludeTags: []string{"pets"}, DefaultTag: "Misc"}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"store": {"placeOrder"}, "Misc": {"health"}}, tags(groups))
}

func TestSelect_OperationFilters(t *testing.T) {
	t.Parallel()
	f := load(t)

	groups, err := Select(f.s, Config{IncludeOperations: []string{"listPets"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"pets": {"listPets"}}, tags(groups))

	groups, err = Select(f.s, Config{ExcludeOperations: []string{"placeOrder", "health"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"pets": {"listPets"}}, tags(groups))

	_, err = Select(f.s, Config{IncludeTags: []string{"x"}, ExcludeTags: []string{"y"}}, nil)
	assert.Equal(t, spec.ConfigurationError, spec.CodeOf(err))
}

func TestPrune_KeepsExactlyReachableModels(t *testing.T) {
	t.Parallel()
	f := load(t)

	groups, err := Select(f.s, Config{IncludeOperations: []string{"listPets"}}, nil)
	require.NoError(t, err)
	kept := Prune(f.s, f.models, Retained(f.s, groups), Config{})
	assert.Equal(t, []string{"Owner", "Pet"}, modelNames(kept))

	groups, err = Select(f.s, Config{IncludeOperations: []string{"placeOrder"}}, nil)
	require.NoError(t, err)
	kept = Prune(f.s, f.models, Retained(f.s, groups), Config{})
	assert.Equal(t, []string{"Item", "Order", "PlaceOrderRequestBody", "Status"}, modelNames(kept))
}

func TestPrune_IgnoreUnusedModels(t *testing.T) {
	t.Parallel()
	f := load(t)

	groups, err := Select(f.s, Config{IncludeOperations: []string{"listPets"}}, nil)
	require.NoError(t, err)
	kept := Prune(f.s, f.models, Retained(f.s, groups), Config{IgnoreUnusedModels: true})
	assert.Equal(t, []string{"Item", "Order", "Owner", "Pet", "Status", "Unused"}, modelNames(kept))
}

func TestReachable_HandlesCycles(t *testing.T) {
	t.Parallel()
	f := load(t)
	pet := f.s.Components[0].Node
	owner := f.s.Components[1].Node
	reach := Reachable(f.s.Graph, []spec.NodeID{pet, spec.NoNode})
	assert.True(t, reach[pet])
	assert.True(t, reach[owner])
	assert.False(t, reach[spec.NoNode])
}
