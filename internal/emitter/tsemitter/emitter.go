// Package tsemitter renders a render model into TypeScript client sources and
// writes them to disk.
package tsemitter

import (
	"bytes"
	"context"
	"embed"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/mark3labs/openapi2ts/internal/render"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("").
	Funcs(template.FuncMap{
		"doc":       doc,
		"str":       render.Quote,
		"signature": signature,
		"hasPrefix": strings.HasPrefix,
	}).
	ParseFS(templateFS, "templates/*.tmpl"))

// Support files written next to the generated modules.
const (
	configurationFile = "api-configuration.ts"
	baseServiceFile   = "base-service.ts"
	modelsBarrel      = "models.ts"
	servicesBarrel    = "services.ts"
)

// ErrOutputNotEmpty is returned when the output directory holds files and Force is unset.
var ErrOutputNotEmpty = errors.New("output directory is not empty")

// Options controls how the emitter writes a client.
type Options struct {
	OutDir string // required; target directory for the client sources
	Force  bool   // overwrite into a non-empty directory
	DryRun bool   // don't write, only plan
	Logger *zap.Logger
}

// PlannedFile describes a file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

// Result lists the planned files in path order.
type Result struct {
	OutDir  string
	Planned []PlannedFile
}

// Emit renders every file of m in memory and writes them under opts.OutDir. Nothing is
// written when rendering fails or the context is cancelled first.
func Emit(ctx context.Context, m *render.Model, opts Options) (*Result, error) {
	if m == nil {
		return nil, errors.New("tsemitter: nil render model")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, errors.New("tsemitter: OutDir is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	files, err := Render(m)
	if err != nil {
		return nil, err
	}

	rels := make([]string, 0, len(files))
	for p := range files {
		rels = append(rels, p)
	}
	sort.Strings(rels)
	planned := make([]PlannedFile, 0, len(rels))
	for _, rel := range rels {
		planned = append(planned, PlannedFile{RelPath: rel, Size: len(files[rel]), Mode: 0o644})
	}

	abs, err := filepath.Abs(opts.OutDir)
	if err != nil {
		return nil, errors.Wrap(err, "tsemitter: resolve output directory")
	}
	if err := validateOutputDirectory(abs, opts.Force); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := &Result{OutDir: abs, Planned: planned}
	if opts.DryRun {
		log.Debug("dry run, nothing written", zap.String("dir", abs), zap.Int("count", len(planned)))
		return res, nil
	}

	if err := writeFiles(abs, rels, files); err != nil {
		return nil, err
	}
	log.Info("client written", zap.String("dir", abs), zap.Int("count", len(planned)))
	return res, nil
}

// Render produces the content of every output file keyed by slash-separated path.
func Render(m *render.Model) (map[string][]byte, error) {
	files := make(map[string][]byte, len(m.Modules)+4)
	var models, services []*render.Module
	for _, mod := range m.Modules {
		var name string
		switch mod.Kind {
		case render.ModuleModel:
			name = "model"
			models = append(models, mod)
		case render.ModuleService:
			name = "service"
			services = append(services, mod)
		case render.ModuleRegistration:
			name = "registration"
		default:
			return nil, errors.Newf("tsemitter: module %q has unknown kind %q", mod.Name, mod.Kind)
		}
		rel := path.Clean(mod.File) + ".ts"
		if _, dup := files[rel]; dup {
			return nil, errors.Newf("tsemitter: two modules write %s", rel)
		}
		out, err := execute(name, mod)
		if err != nil {
			return nil, errors.Wrapf(err, "tsemitter: render %s", rel)
		}
		files[rel] = out
	}

	support := []struct {
		rel, tmpl string
		data      any
	}{
		{configurationFile, "configuration", m},
		{baseServiceFile, "base-service", m},
		{modelsBarrel, "models-barrel", models},
		{servicesBarrel, "services-barrel", services},
	}
	for _, s := range support {
		out, err := execute(s.tmpl, s.data)
		if err != nil {
			return nil, errors.Wrapf(err, "tsemitter: render %s", s.rel)
		}
		files[s.rel] = out
	}
	return files, nil
}

func execute(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// doc renders a JSDoc block, or nothing when there is no text to show.
func doc(indent string, deprecated bool, texts ...string) string {
	var lines []string
	prev := ""
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" || t == prev {
			continue
		}
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, strings.Split(t, "\n")...)
		prev = t
	}
	if deprecated {
		lines = append(lines, "@deprecated")
	}
	if len(lines) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(indent + "/**\n")
	for _, l := range lines {
		l = strings.ReplaceAll(strings.TrimRight(l, " \t\r"), "*/", "*\\/")
		if l == "" {
			b.WriteString(indent + " *\n")
			continue
		}
		b.WriteString(indent + " * " + l + "\n")
	}
	b.WriteString(indent + " */\n")
	return b.String()
}

// signature renders the params argument of a method. It defaults to an empty object
// when nothing in it is required.
func signature(md render.MethodDecl) string {
	var b strings.Builder
	required := false
	b.WriteString("params: {")
	for _, p := range md.Parameters {
		b.WriteString(" " + p.Identifier)
		if !p.Required {
			b.WriteString("?")
		}
		b.WriteString(": " + p.Type + ";")
		required = required || p.Required
	}
	if md.Body != nil {
		b.WriteString(" body")
		if !md.Body.Required {
			b.WriteString("?")
		}
		b.WriteString(": " + md.Body.Type + ";")
		required = required || md.Body.Required
	}
	if md.Body != nil || len(md.Parameters) > 0 {
		b.WriteString(" ")
	}
	b.WriteString("}")
	if !required {
		b.WriteString(" = {}")
	}
	return b.String()
}

// validateOutputDirectory accepts a missing directory, an empty one, or any
// directory when force is set.
func validateOutputDirectory(abs string, force bool) error {
	st, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "cannot access output directory %q", abs)
	}
	if !st.IsDir() {
		return errors.Newf("output path %q is not a directory", abs)
	}
	if force {
		return nil
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return errors.Wrapf(err, "cannot read output directory %q", abs)
	}
	if len(entries) > 0 {
		return errors.WithHint(errors.Wrapf(ErrOutputNotEmpty, "%q", abs), "use --force to overwrite")
	}
	return nil
}

func writeFiles(abs string, rels []string, files map[string][]byte) error {
	for _, rel := range rels {
		if err := WriteFileAtomic(abs, rel, files[rel]); err != nil {
			return errors.Wrapf(err, "tsemitter: write file %s", rel)
		}
	}
	return nil
}

// WriteFileAtomic writes baseDir/rel through a temporary file in the same directory and
// renames it into place.
func WriteFileAtomic(baseDir, rel string, content []byte) error {
	full := filepath.Join(baseDir, filepath.FromSlash(rel))
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create directory %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-tsemitter-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpPath := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Chmod(0o644); err != nil {
		return errors.Wrap(err, "set file permissions")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmpPath, full); err != nil {
		return errors.Wrapf(err, "rename %s to %s", tmpPath, full)
	}
	ok = true
	return nil
}
