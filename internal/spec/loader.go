package spec

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	openapi2 "github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
)

// Format is the syntax hint for raw specification text.
type Format string

const (
	FormatAuto Format = ""
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(p string) Format {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatAuto
	}
}

// Document is a parsed OpenAPI v3 document together with its raw node tree.
type Document struct {
	T        *openapi3.T
	Location string
	raw      *rawDoc
}

// Settings configures loader behavior.
type Settings struct {
	// HTTPTimeout bounds each HTTP request.
	HTTPTimeout time.Duration
	// MaxRetries for transient HTTP failures (>=500, 429, or network errors).
	MaxRetries int
	// BackoffBase is the base delay for exponential backoff.
	BackoffBase time.Duration
	// AllowExternalRefs lets kin-openapi follow $refs into other files.
	AllowExternalRefs bool
	// Validate runs kin-openapi structural validation after loading.
	Validate bool
	// Location is the file path or URL reported in errors.
	Location string
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{
		HTTPTimeout: 10 * time.Second,
		MaxRetries:  3,
		BackoffBase: 200 * time.Millisecond,
	}
}

// Option mutates Settings.
type Option func(*Settings)

func WithHTTPTimeout(d time.Duration) Option  { return func(s *Settings) { s.HTTPTimeout = d } }
func WithMaxRetries(n int) Option            { return func(s *Settings) { s.MaxRetries = n } }
func WithBackoffBase(d time.Duration) Option { return func(s *Settings) { s.BackoffBase = d } }
func WithExternalRefs(allow bool) Option     { return func(s *Settings) { s.AllowExternalRefs = allow } }
func WithValidation(on bool) Option          { return func(s *Settings) { s.Validate = on } }
func WithLocation(loc string) Option         { return func(s *Settings) { s.Location = loc } }

// Load reads input (a filesystem path or an http/https URL) and parses it.
func Load(ctx context.Context, input string, opts ...Option) (*Document, error) {
	if strings.TrimSpace(input) == "" {
		return nil, &SpecError{Code: InputError, Message: "input is empty"}
	}

	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}

	u, uerr := url.Parse(input)
	isURL := uerr == nil && u.Scheme != "" && u.Host != ""
	format := FormatFromPath(input)

	var raw []byte
	location := input
	if isURL {
		scheme := strings.ToLower(u.Scheme)
		if scheme != "http" && scheme != "https" {
			return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("unsupported URL scheme %q (only http/https allowed)", scheme), Location: input}
		}
		data, err := fetchWithRetry(ctx, input, settings)
		if err != nil {
			return nil, &SpecError{Code: NetworkError, Message: fmt.Sprintf("fetch %s: %v", input, err), Location: input, Cause: err}
		}
		raw, format = data, FormatFromPath(u.Path)
	} else {
		abs, err := filepath.Abs(input)
		if err != nil {
			return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: input, Cause: err}
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, err), Location: abs, Cause: err}
		}
		raw, location = data, abs
	}

	return Parse(ctx, raw, format, append(opts, WithLocation(location))...)
}

// Parse turns raw specification text into a Document. Malformed input yields a
// ParseError and a dangling internal $ref yields a ReferenceError; neither touches
// the typed model.
func Parse(ctx context.Context, data []byte, format Format, opts ...Option) (*Document, error) {
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	loc := settings.Location

	if format == FormatJSON && !json.Valid(data) {
		return nil, &SpecError{Code: ParseError, Message: "malformed JSON document", Location: loc}
	}
	rd, err := newRawDoc(data)
	if err != nil {
		return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("parse document: %v", err), Location: loc, Cause: err}
	}

	switch detectSpecVersion(rd) {
	case 3:
	case 2:
		converted, err := convertV2ToV3(rd)
		if err != nil {
			return nil, &SpecError{Code: ConversionError, Message: fmt.Sprintf("convert v2 to v3: %v", err), Location: loc, Cause: err}
		}
		doc, err := Parse(ctx, converted, FormatJSON, opts...)
		if err != nil {
			return nil, err
		}
		doc.raw.converted = true
		return doc, nil
	default:
		return nil, &SpecError{Code: ParseError, Message: "missing or unknown version (expected 'openapi: 3.x' or 'swagger: 2.0')", Location: loc}
	}

	if err := rd.checkRefs(); err != nil {
		var se *SpecError
		if errors.As(err, &se) {
			se.Location = loc
		}
		return nil, err
	}

	loader := openapi3.NewLoader()
	loader.Context = ctx
	loader.IsExternalRefsAllowed = settings.AllowExternalRefs
	var doc *openapi3.T
	if loc != "" && settings.AllowExternalRefs {
		doc, err = loader.LoadFromDataWithPath(data, &url.URL{Path: filepath.ToSlash(loc)})
	} else {
		doc, err = loader.LoadFromData(data)
	}
	if err != nil {
		return nil, mapLoadErr(err, loc)
	}
	if settings.Validate {
		if err := doc.Validate(ctx); err != nil {
			se := mapLoadErr(err, loc)
			se.Code = ValidationError
			return nil, se
		}
	}
	return &Document{T: doc, Location: loc, raw: rd}, nil
}

// detectSpecVersion returns 3 for OpenAPI v3, 2 for Swagger v2, else 0.
func detectSpecVersion(rd *rawDoc) int {
	if strings.HasPrefix(strings.TrimSpace(rd.str("openapi")), "3.") {
		return 3
	}
	if strings.HasPrefix(strings.TrimSpace(rd.str("swagger")), "2.") {
		return 2
	}
	return 0
}

func convertV2ToV3(rd *rawDoc) ([]byte, error) {
	data, err := rd.json()
	if err != nil {
		return nil, err
	}
	var v2 openapi2.T
	if err := json.Unmarshal(data, &v2); err != nil {
		return nil, err
	}
	v3, err := openapi2conv.ToV3(&v2)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v3)
}

func fetchWithRetry(ctx context.Context, rawURL string, settings Settings) ([]byte, error) {
	client := &http.Client{Timeout: settings.HTTPTimeout}
	var lastErr error
	backoff := settings.BackoffBase
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	attempts := settings.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err == nil && resp.StatusCode < 300 {
			body, rerr := io.ReadAll(resp.Body)
			resp.Body.Close()
			return body, rerr
		}
		if err != nil {
			lastErr = err
		} else {
			status := resp.StatusCode
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			resp.Body.Close()
			if status < 500 && status != http.StatusTooManyRequests {
				return nil, errors.Newf("http %d: %s", status, strings.TrimSpace(string(body)))
			}
			lastErr = errors.Newf("transient http error %d", status)
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if lastErr == nil {
		lastErr = errors.New("fetch failed")
	}
	return nil, lastErr
}

func mapLoadErr(err error, location string) *SpecError {
	code := ParseError
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "ref") && (strings.Contains(lower, "not found") || strings.Contains(lower, "unresolved") || strings.Contains(lower, "external")) {
		code = ReferenceError
	}
	return &SpecError{Code: code, Message: err.Error(), Location: location, Pointer: extractJSONPointer(err), Cause: err}
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'"]+`)

func extractJSONPointer(err error) string {
	if err == nil {
		return ""
	}
	var me openapi3.MultiError
	if errors.As(err, &me) && len(me) > 0 {
		return extractJSONPointer(me[0])
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		if parts := se.JSONPointer(); len(parts) > 0 {
			return "#/" + strings.Join(parts, "/")
		}
	}
	return jsonPtrRe.FindString(err.Error())
}
