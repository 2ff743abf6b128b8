// Package render assembles the template-agnostic render model.
package render

import "encoding/json"

type ModuleKind string

const (
	ModuleModel        ModuleKind = "model"
	ModuleService      ModuleKind = "service"
	ModuleRegistration ModuleKind = "registration"
)

// Model is everything a template renderer needs to produce the output files.
type Model struct {
	Title       string    `json:"title"`
	Version     string    `json:"version"`
	Description string    `json:"description,omitempty"`
	RootURL     string    `json:"rootUrl"`
	Modules     []*Module `json:"modules"`
}

// Module is one output file. File is the slash-separated path without extension.
type Module struct {
	Kind    ModuleKind `json:"kind"`
	Name    string     `json:"name"`
	File    string     `json:"file"`
	Imports []Import   `json:"imports,omitempty"`

	Model        *ModelDecl        `json:"model,omitempty"`
	Service      *ServiceDecl      `json:"service,omitempty"`
	Registration *RegistrationDecl `json:"registration,omitempty"`
}

// Import is an edge to another module. Path is relative to the importing module.
type Import struct {
	Name string `json:"name"`
	Path string `json:"path"`
	// TypeOnly marks edges that close an import cycle between models.
	TypeOnly bool `json:"typeOnly,omitempty"`
}

type DeclForm string

const (
	FormInterface DeclForm = "interface"
	FormEnum      DeclForm = "enum"
	FormType      DeclForm = "type"
)

type ModelDecl struct {
	Form        DeclForm `json:"form"`
	Description string   `json:"description,omitempty"`
	Deprecated  bool     `json:"deprecated,omitempty"`

	Properties []PropertyDecl `json:"properties,omitempty"`
	// IndexType is the value type of the index signature, empty when there is none.
	IndexType string `json:"indexType,omitempty"`

	Members []EnumMemberDecl `json:"members,omitempty"`

	// Type is the right-hand side of a type alias declaration.
	Type string `json:"type,omitempty"`
}

type PropertyDecl struct {
	Name string `json:"name"`
	// Key is Name, quoted when it is not a valid identifier.
	Key         string `json:"key"`
	Type        string `json:"type"`
	Required    bool   `json:"required,omitempty"`
	ReadOnly    bool   `json:"readOnly,omitempty"`
	Description string `json:"description,omitempty"`
}

type EnumMemberDecl struct {
	Name string `json:"name"`
	// Value is the literal as TypeScript source.
	Value string `json:"value"`
}

type ServiceDecl struct {
	Tag         string       `json:"tag"`
	Description string       `json:"description,omitempty"`
	Methods     []MethodDecl `json:"methods"`
}

type MethodDecl struct {
	Name         string `json:"name"`
	ResponseName string `json:"responseName"`
	OperationID  string `json:"operationId,omitempty"`
	HTTPMethod   string `json:"httpMethod"`
	Path         string `json:"path"`
	Summary      string `json:"summary,omitempty"`
	Description  string `json:"description,omitempty"`
	Deprecated   bool   `json:"deprecated,omitempty"`
	Default      bool   `json:"default,omitempty"`

	Parameters []ParamDecl `json:"parameters,omitempty"`
	Body       *BodyDecl   `json:"body,omitempty"`

	ResponseContentType string `json:"responseContentType,omitempty"`
	ResultType          string `json:"resultType"`
	// ResponseKind is json, text or blob.
	ResponseKind string `json:"responseKind"`
}

type ParamDecl struct {
	Name        string `json:"name"`
	Identifier  string `json:"identifier"`
	In          string `json:"in"`
	Type        string `json:"type"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description,omitempty"`
}

type BodyDecl struct {
	ContentType string `json:"contentType"`
	Type        string `json:"type"`
	Required    bool   `json:"required,omitempty"`
}

type RegistrationDecl struct {
	Services []ServiceRef `json:"services"`
}

type ServiceRef struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// JSON encodes the render model. Equal inputs produce byte-identical output.
func (m *Model) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// ModulesOf returns the modules of one kind, in render order.
func (m *Model) ModulesOf(kind ModuleKind) []*Module {
	var out []*Module
	for _, mod := range m.Modules {
		if mod.Kind == kind {
			out = append(out, mod)
		}
	}
	return out
}
