// Package filter selects the operations and models that make it into the output.
package filter

import (
	"sort"
	"strings"

	"github.com/mark3labs/openapi2ts/internal/collect"
	"github.com/mark3labs/openapi2ts/internal/compile"
	"github.com/mark3labs/openapi2ts/internal/spec"
	"go.uber.org/zap"
)

// DefaultTag receives operations that declare no tag.
const DefaultTag = "Api"

// Config holds the selection options. Include and exclude lists of the same axis
// are mutually exclusive.
type Config struct {
	IncludeTags       []string
	ExcludeTags       []string
	IncludeOperations []string
	ExcludeOperations []string
	// DefaultTag groups untagged operations; DefaultTag is used when empty.
	DefaultTag string
	// IgnoreUnusedModels keeps every component model instead of pruning to the
	// models reachable from the retained operations.
	IgnoreUnusedModels bool
}

// Validate rejects contradictory filters.
func (c Config) Validate() error {
	if len(c.IncludeTags) > 0 && len(c.ExcludeTags) > 0 {
		return spec.Errorf(spec.ConfigurationError, "includeTags and excludeTags are mutually exclusive")
	}
	if len(c.IncludeOperations) > 0 && len(c.ExcludeOperations) > 0 {
		return spec.Errorf(spec.ConfigurationError, "includeOperations and excludeOperations are mutually exclusive")
	}
	return nil
}

func (c Config) defaultTag() string {
	if t := strings.TrimSpace(c.DefaultTag); t != "" {
		return t
	}
	return DefaultTag
}

// Select groups the retained operations by tag. Groups are ordered by first
// appearance: declared tags first, then tags only found on operations.
func Select(s *spec.Spec, cfg Config, log *zap.Logger) ([]compile.Group, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	includeTags, excludeTags := set(cfg.IncludeTags), set(cfg.ExcludeTags)
	includeOps, excludeOps := set(cfg.IncludeOperations), set(cfg.ExcludeOperations)

	groups := make(map[string]*compile.Group)
	var order []string
	group := func(tag string) *compile.Group {
		g, ok := groups[tag]
		if !ok {
			g = &compile.Group{Tag: tag}
			groups[tag] = g
			order = append(order, tag)
		}
		return g
	}
	for _, t := range s.Tags {
		if tagSelected(t.Name, includeTags, excludeTags) {
			group(t.Name).Description = t.Description
		}
	}

	for _, op := range s.Operations {
		if !operationSelected(op, includeOps, excludeOps) {
			log.Debug("operation filtered out", zap.String("operation", op.Subject()))
			continue
		}
		tags := op.Tags
		if len(tags) == 0 {
			tags = []string{cfg.defaultTag()}
		}
		for _, tag := range tags {
			if tagSelected(tag, includeTags, excludeTags) {
				g := group(tag)
				g.Operations = append(g.Operations, op)
			}
		}
	}

	var out []compile.Group
	for _, tag := range order {
		if g := groups[tag]; len(g.Operations) > 0 {
			out = append(out, *g)
		}
	}
	return out, nil
}

func tagSelected(tag string, include, exclude map[string]bool) bool {
	if len(include) > 0 {
		return include[tag]
	}
	return !exclude[tag]
}

func operationSelected(op *spec.Operation, include, exclude map[string]bool) bool {
	if len(include) > 0 {
		return op.ID != "" && include[op.ID]
	}
	return op.ID == "" || !exclude[op.ID]
}

func set(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out[v] = true
		}
	}
	return out
}

// Retained returns the operations present in at least one group, in document order.
func Retained(s *spec.Spec, groups []compile.Group) []*spec.Operation {
	keep := make(map[*spec.Operation]bool)
	for _, g := range groups {
		for _, op := range g.Operations {
			keep[op] = true
		}
	}
	var out []*spec.Operation
	for _, op := range s.Operations {
		if keep[op] {
			out = append(out, op)
		}
	}
	return out
}

// Prune returns the models to render, sorted by name. With pruning enabled these are
// exactly the models reachable from the parameters, request bodies and responses
// of ops, error responses included. Synthesized models of operations outside ops are always dropped.
func Prune(s *spec.Spec, models *collect.Models, ops []*spec.Operation, cfg Config) []*collect.Model {
	retained := make(map[*spec.Operation]bool, len(ops))
	for _, op := range ops {
		retained[op] = true
	}

	var reach map[spec.NodeID]bool
	if !cfg.IgnoreUnusedModels {
		reach = Reachable(s.Graph, roots(ops))
	}

	var out []*collect.Model
	for _, m := range models.All() {
		if m.Operation != nil && !retained[m.Operation] {
			continue
		}
		if reach != nil && !reach[m.Node] {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func roots(ops []*spec.Operation) []spec.NodeID {
	var out []spec.NodeID
	for _, op := range ops {
		for _, p := range op.Parameters {
			out = append(out, p.Node)
		}
		for _, mt := range op.RequestBody {
			out = append(out, mt.Node)
		}
		for _, r := range op.Responses {
			for _, mt := range r.Content {
				out = append(out, mt.Node)
			}
		}
	}
	return out
}

// Reachable computes the transitive closure of roots over node links.
func Reachable(g *spec.Graph, roots []spec.NodeID) map[spec.NodeID]bool {
	seen := make(map[spec.NodeID]bool)
	stack := append([]spec.NodeID(nil), roots...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == spec.NoNode || seen[id] {
			continue
		}
		seen[id] = true
		stack = append(stack, g.Links(id)...)
	}
	return seen
}
