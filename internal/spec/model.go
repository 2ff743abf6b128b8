package spec

// Resolved model shared by the collector, compiler, filter and render stages.

type HttpMethod string

const (
	GET     HttpMethod = "get"
	POST    HttpMethod = "post"
	PUT     HttpMethod = "put"
	DELETE  HttpMethod = "delete"
	PATCH   HttpMethod = "patch"
	HEAD    HttpMethod = "head"
	OPTIONS HttpMethod = "options"
	TRACE   HttpMethod = "trace"
)

// httpMethods lists the methods in the order used when the document gives none.
var httpMethods = []HttpMethod{GET, PUT, POST, DELETE, OPTIONS, HEAD, PATCH, TRACE}

// NodeID addresses a Node inside a Graph.
type NodeID int

// NoNode marks an absent link.
const NoNode NodeID = -1

type Kind string

const (
	KindPrimitive    Kind = "primitive"
	KindObject       Kind = "object"
	KindArray        Kind = "array"
	KindEnum         Kind = "enum"
	KindUnion        Kind = "union"
	KindIntersection Kind = "intersection"
	KindAlias        Kind = "alias"
)

// Node is a resolved, reference-free schema. Links to other nodes are NodeIDs so
// recursive schemas form ID cycles inside the arena.
type Node struct {
	ID   NodeID
	Kind Kind
	// Name is the output identifier, assigned by the model collector.
	Name string
	// Component is the components/schemas key this node came from, empty for inline schemas.
	Component string
	Pointer   string

	// Type is the JSON type for primitives and enums: string, number, integer, boolean, null or any.
	Type        string
	Format      string
	Description string
	Nullable    bool
	Deprecated  bool

	Properties           []Property
	AdditionalProperties NodeID
	Items                NodeID
	Members              []NodeID
	Target               NodeID
	Enum                 []EnumValue
}

type Property struct {
	Name        string
	Node        NodeID
	Required    bool
	ReadOnly    bool
	Description string
}

// EnumValue pairs a literal with its x-enumNames override, when one was declared.
type EnumValue struct {
	Value any
	Name  string
}

// Graph is the arena owning every node of one generation run.
type Graph struct {
	nodes []*Node
}

func NewGraph() *Graph { return &Graph{} }

// newNode appends an empty node of the given kind with all links unset.
func (g *Graph) newNode(kind Kind) *Node {
	n := &Node{
		ID:                   NodeID(len(g.nodes)),
		Kind:                 kind,
		Items:                NoNode,
		AdditionalProperties: NoNode,
		Target:               NoNode,
	}
	g.nodes = append(g.nodes, n)
	return n
}

// Node returns the node with the given id, or nil for NoNode and out-of-range ids.
func (g *Graph) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil
	}
	return g.nodes[id]
}

func (g *Graph) Len() int { return len(g.nodes) }

// Links returns the direct outgoing links of a node in declaration order.
func (g *Graph) Links(id NodeID) []NodeID {
	n := g.Node(id)
	if n == nil {
		return nil
	}
	var out []NodeID
	for _, p := range n.Properties {
		out = append(out, p.Node)
	}
	if n.AdditionalProperties != NoNode {
		out = append(out, n.AdditionalProperties)
	}
	if n.Items != NoNode {
		out = append(out, n.Items)
	}
	out = append(out, n.Members...)
	if n.Target != NoNode {
		out = append(out, n.Target)
	}
	return out
}

type Parameter struct {
	Name        string
	In          string // path|query|header
	Required    bool
	Deprecated  bool
	Description string
	Node        NodeID
}

// MediaType is one content type of a request or response body. Node is NoNode when
// the content type declares no schema.
type MediaType struct {
	ContentType string
	Node        NodeID
}

type Response struct {
	Status      string
	Description string
	Content     []MediaType
}

type Operation struct {
	ID          string // operationId, may be empty
	Method      HttpMethod
	Path        string
	Pointer     string
	Tags        []string
	Summary     string
	Description string
	// NameOverride holds the x-operation-name extension.
	NameOverride    string
	Parameters      []Parameter
	RequestBody     []MediaType
	RequestRequired bool
	Responses       []Response
	Deprecated      bool
}

// Subject identifies the operation in error messages.
func (o *Operation) Subject() string {
	if o.ID != "" {
		return o.ID
	}
	return string(o.Method) + " " + o.Path
}

// SuccessResponse returns the first 2XX response in document order, falling back to
// "default". It returns nil when neither exists.
func (o *Operation) SuccessResponse() *Response {
	var fallback *Response
	for i := range o.Responses {
		r := &o.Responses[i]
		status := r.Status
		if len(status) == 3 && status[0] == '2' {
			return r
		}
		if status == "default" && fallback == nil {
			fallback = r
		}
	}
	return fallback
}

type Component struct {
	Name string
	Node NodeID
}

type Tag struct {
	Name        string
	Description string
}

// Spec is the fully resolved document.
type Spec struct {
	Title       string
	Version     string
	Description string
	// RootURL is the first declared server URL.
	RootURL    string
	Graph      *Graph
	Components []Component
	Operations []*Operation
	Tags       []Tag
}
