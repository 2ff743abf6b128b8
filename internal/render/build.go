package render

import (
	"path"
	"sort"
	"strings"

	"github.com/mark3labs/openapi2ts/internal/collect"
	"github.com/mark3labs/openapi2ts/internal/compile"
	"github.com/mark3labs/openapi2ts/internal/naming"
	"github.com/mark3labs/openapi2ts/internal/spec"
)

const (
	modelsDir        = "models"
	servicesDir      = "services"
	registrationName = "ApiModule"
	registrationFile = "api.module"
)

// Build assembles the render model from the retained models and compiled services.
// Modules are ordered models by name, services by tag, registration last.
func Build(s *spec.Spec, models []*collect.Model, services []*compile.Service) (*Model, error) {
	named := make(map[spec.NodeID]*collect.Model, len(models))
	for _, m := range models {
		named[m.Node] = m
	}
	t := newTyper(s.Graph, named)

	out := &Model{Title: s.Title, Version: s.Version, Description: s.Description, RootURL: s.RootURL}

	sortedModels := append([]*collect.Model(nil), models...)
	sort.Slice(sortedModels, func(i, j int) bool { return sortedModels[i].Name < sortedModels[j].Name })
	modelFile := make(map[string]string, len(models))
	for _, m := range sortedModels {
		modelFile[m.Name] = path.Join(modelsDir, naming.FileName(m.Name))
	}

	deps := make(map[string][]string)
	var modelModules []*Module
	for _, m := range sortedModels {
		mod := &Module{Kind: ModuleModel, Name: m.Name, File: modelFile[m.Name]}
		used := t.reset()
		mod.Model = t.declare(m)
		for _, dep := range t.sortedDeps(used, m.Node) {
			mod.Imports = append(mod.Imports, Import{Name: dep.Name, Path: relImport(mod.File, modelFile[dep.Name])})
			deps[m.Name] = append(deps[m.Name], dep.Name)
		}
		modelModules = append(modelModules, mod)
	}
	markTypeOnly(modelModules, deps)
	out.Modules = append(out.Modules, modelModules...)

	sortedServices := append([]*compile.Service(nil), services...)
	sort.SliceStable(sortedServices, func(i, j int) bool { return sortedServices[i].Tag < sortedServices[j].Tag })
	reg := &Module{Kind: ModuleRegistration, Name: registrationName, File: registrationFile, Registration: &RegistrationDecl{}}
	serviceNames := make(map[string]string)
	for _, svc := range sortedServices {
		name := naming.TypeName(svc.Tag) + "Service"
		if prev, dup := serviceNames[name]; dup {
			return nil, spec.Errorf(spec.NamingConflictError, "tags %q and %q both map to service %q", prev, svc.Tag, name).For(svc.Tag)
		}
		if _, clash := modelFile[name]; clash {
			return nil, spec.Errorf(spec.NamingConflictError, "service %q of tag %q collides with a model of the same name", name, svc.Tag).For(svc.Tag)
		}
		serviceNames[name] = svc.Tag

		mod := &Module{Kind: ModuleService, Name: name, File: path.Join(servicesDir, naming.FileName(name[:len(name)-len("Service")])+".service")}
		used := t.reset()
		mod.Service = t.service(svc)
		for _, dep := range t.sortedDeps(used, spec.NoNode) {
			mod.Imports = append(mod.Imports, Import{Name: dep.Name, Path: relImport(mod.File, modelFile[dep.Name])})
		}
		out.Modules = append(out.Modules, mod)

		reg.Imports = append(reg.Imports, Import{Name: name, Path: relImport(reg.File, mod.File)})
		reg.Registration.Services = append(reg.Registration.Services, ServiceRef{Name: name, Path: relImport(reg.File, mod.File)})
	}
	out.Modules = append(out.Modules, reg)
	return out, nil
}

// declare renders the declaration of one model.
func (t *typer) declare(m *collect.Model) *ModelDecl {
	n := t.g.Node(m.Node)
	d := &ModelDecl{Description: n.Description, Deprecated: n.Deprecated}
	switch {
	case n.Kind == spec.KindObject && !n.Nullable:
		d.Form = FormInterface
		d.Properties, d.IndexType = t.properties(n)
	case n.Kind == spec.KindEnum && !n.Nullable && enumerable(n) && len(m.EnumMembers) == len(n.Enum):
		d.Form = FormEnum
		for i, ev := range n.Enum {
			d.Members = append(d.Members, EnumMemberDecl{Name: m.EnumMembers[i], Value: literal(ev.Value)})
		}
	default:
		d.Form = FormType
		t.visiting[m.Node] = true
		d.Type = t.structure(m.Node)
		delete(t.visiting, m.Node)
	}
	return d
}

// enumerable reports whether the literals fit a TypeScript enum: all strings or all numbers.
func enumerable(n *spec.Node) bool {
	var strs, nums int
	for _, ev := range n.Enum {
		switch ev.Value.(type) {
		case string:
			strs++
		case float64, int, int64:
			nums++
		}
	}
	return strs == len(n.Enum) || nums == len(n.Enum)
}

func (t *typer) service(svc *compile.Service) *ServiceDecl {
	d := &ServiceDecl{Tag: svc.Tag, Description: svc.Description}
	for _, m := range svc.Methods {
		op := m.Operation
		for _, v := range m.Variants {
			md := MethodDecl{
				Name:                v.Name,
				ResponseName:        v.ResponseName,
				OperationID:         op.ID,
				HTTPMethod:          strings.ToUpper(string(op.Method)),
				Path:                op.Path,
				Summary:             op.Summary,
				Description:         op.Description,
				Deprecated:          op.Deprecated,
				Default:             v.Default,
				ResponseContentType: v.ResponseContentType,
			}
			for _, p := range v.Parameters {
				md.Parameters = append(md.Parameters, ParamDecl{
					Name:        p.Name,
					Identifier:  naming.MemberName(p.Name),
					In:          p.In,
					Type:        t.ref(p.Node),
					Required:    p.Required,
					Description: p.Description,
				})
			}
			if v.RequestContentType != "" {
				md.Body = &BodyDecl{ContentType: v.RequestContentType, Type: t.ref(v.RequestBody), Required: op.RequestRequired}
			}
			md.ResponseKind = responseKind(v.ResponseContentType)
			switch {
			case v.Response != spec.NoNode:
				md.ResultType = t.ref(v.Response)
			case v.ResponseContentType == "":
				md.ResultType = "void"
			case md.ResponseKind == "text":
				md.ResultType = "string"
			case md.ResponseKind == "blob":
				md.ResultType = "Blob"
			default:
				md.ResultType = "any"
			}
			if md.ResultType == "Blob" {
				md.ResponseKind = "blob"
			}
			d.Methods = append(d.Methods, md)
		}
	}
	return d
}

func responseKind(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case ct == "":
		return "text"
	case naming.MediaType(ct) == "Json" || ct == "*/*":
		return "json"
	case strings.HasPrefix(ct, "text/"):
		return "text"
	default:
		return "blob"
	}
}

// markTypeOnly flags every model import that lies on an import cycle.
func markTypeOnly(modules []*Module, deps map[string][]string) {
	reaches := func(from, to string) bool {
		seen := map[string]bool{}
		stack := []string{from}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if cur == to {
				return true
			}
			if seen[cur] {
				continue
			}
			seen[cur] = true
			stack = append(stack, deps[cur]...)
		}
		return false
	}
	for _, mod := range modules {
		for i := range mod.Imports {
			if reaches(mod.Imports[i].Name, mod.Name) {
				mod.Imports[i].TypeOnly = true
			}
		}
	}
}

// relImport returns the import specifier of target as seen from the file from.
func relImport(from, target string) string {
	dir := path.Dir(from)
	if dir == path.Dir(target) {
		return "./" + path.Base(target)
	}
	if dir == "." {
		return "./" + target
	}
	return strings.Repeat("../", strings.Count(dir, "/")+1) + target
}
