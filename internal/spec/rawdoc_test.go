package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawDoc_OrderedKeepsDocumentOrder(t *testing.T) {
	t.Parallel()
	rd, err := newRawDoc([]byte(`
components:
  schemas:
    Zebra: {}
    Apple: {}
    "a/b": {}
    Mango: {}
`))
	require.NoError(t, err)

	got := rd.ordered("#/components/schemas", []string{"Apple", "Mango", "a/b", "Zebra", "Extra", "Another"})
	assert.Equal(t, []string{"Zebra", "Apple", "a/b", "Mango", "Another", "Extra"}, got)
	assert.Contains(t, rd.order, "#/components/schemas/a~1b")
}

func TestRawDoc_OrderedOnNilDocIsLexical(t *testing.T) {
	t.Parallel()
	var rd *rawDoc
	assert.Equal(t, []string{"a", "b", "c"}, rd.ordered("#", []string{"c", "a", "b"}))
}

func TestRawDoc_Lookup(t *testing.T) {
	t.Parallel()
	rd, err := newRawDoc([]byte(`
paths:
  /pets/{id}:
    parameters:
      - name: id
        in: path
`))
	require.NoError(t, err)

	n := rd.lookup("#/paths/~1pets~1{id}/parameters/0/name")
	require.NotNil(t, n)
	assert.Equal(t, "id", n.Value)
	assert.Nil(t, rd.lookup("#/paths/~1pets~1{id}/parameters/3"))
	assert.Nil(t, rd.lookup("#/paths/~1dogs"))
	assert.NotNil(t, rd.lookup("#"))
}

func TestRawDoc_CheckRefs(t *testing.T) {
	t.Parallel()
	rd, err := newRawDoc([]byte(`
components:
  schemas:
    Pet:
      allOf:
        - $ref: '#/components/schemas/Base'
        - $ref: '#/components/schemas/Missing'
    Base:
      type: object
`))
	require.NoError(t, err)

	err = rd.checkRefs()
	require.Error(t, err)
	assert.Equal(t, ReferenceError, CodeOf(err))
	var se *SpecError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "#/components/schemas/Pet/allOf/1", se.Pointer)
}

func TestRawDoc_CheckRefsIgnoresExternal(t *testing.T) {
	t.Parallel()
	rd, err := newRawDoc([]byte(`
components:
  schemas:
    Pet:
      $ref: 'other.yaml#/Pet'
`))
	require.NoError(t, err)
	assert.NoError(t, rd.checkRefs())
}

func TestRawDoc_JSONStringifiesKeys(t *testing.T) {
	t.Parallel()
	rd, err := newRawDoc([]byte("responses:\n  200:\n    description: ok\n"))
	require.NoError(t, err)
	out, err := rd.json()
	require.NoError(t, err)
	assert.JSONEq(t, `{"responses":{"200":{"description":"ok"}}}`, string(out))
}

func TestPointerEscaping(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"plain", "/pets/{id}", "a~b", "~1/"} {
		assert.Equal(t, s, unescapePointer(escapePointer(s)))
	}
	assert.Equal(t, "~1pets~0x", escapePointer("/pets~x"))
}
