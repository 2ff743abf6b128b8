// Package naming converts OpenAPI names into TypeScript identifiers and file names.
package naming

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/iancoleman/strcase"
)

// reservedWords cannot be used as plain TypeScript identifiers.
var reservedWords = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true, "continue": true,
	"debugger": true, "default": true, "delete": true, "do": true, "else": true, "enum": true,
	"export": true, "extends": true, "false": true, "finally": true, "for": true, "function": true,
	"if": true, "import": true, "in": true, "instanceof": true, "new": true, "null": true,
	"return": true, "super": true, "switch": true, "this": true, "throw": true, "true": true,
	"try": true, "typeof": true, "var": true, "void": true, "while": true, "with": true,
	"implements": true, "interface": true, "let": true, "package": true, "private": true,
	"protected": true, "public": true, "static": true, "yield": true, "await": true,
}

// builtinTypes are global TypeScript types a generated model must not shadow.
var builtinTypes = map[string]bool{
	"Array": true, "Blob": true, "Boolean": true, "Date": true, "Error": true, "File": true,
	"Function": true, "Map": true, "Number": true, "Object": true, "Promise": true,
	"Record": true, "Set": true, "String": true, "Symbol": true,
}

// TypeName returns a PascalCase type identifier.
func TypeName(s string) string {
	name := upperCamel(s)
	if name == "" {
		return ""
	}
	if startsWithDigit(name) {
		name = "_" + name
	}
	if builtinTypes[name] {
		name += "Model"
	}
	return name
}

// MemberName returns a lowerCamel identifier usable for methods and parameters.
func MemberName(s string) string {
	name := lowerCamel(s)
	if name == "" {
		return ""
	}
	if startsWithDigit(name) || reservedWords[name] {
		name = "_" + name
	}
	return name
}

// FileName returns the kebab-case file stem for an identifier.
func FileName(s string) string {
	return strcase.ToKebab(strings.TrimLeft(s, "_"))
}

// OperationName synthesizes a method name from an HTTP method and path template,
// e.g. "get", "/pets/{petId}/toys" becomes "getPetsPetIdToys".
func OperationName(method, path string) string {
	parts := []string{strings.ToLower(method)}
	for _, seg := range strings.Split(path, "/") {
		seg = strings.Trim(seg, "{}")
		if seg != "" {
			parts = append(parts, seg)
		}
	}
	return MemberName(strings.Join(parts, "_"))
}

// IsIdentifier reports whether s can be used unquoted as a property key.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || r == '$' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}

// EnumMember derives an enum member identifier from a literal value.
func EnumMember(v any) string {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case float64:
		if x == math.Trunc(x) {
			s = strconv.FormatInt(int64(x), 10)
		} else {
			s = strconv.FormatFloat(x, 'f', -1, 64)
		}
		if x < 0 {
			s = "Minus" + strings.TrimPrefix(s, "-")
		}
		s = "Value" + s
	case nil:
		s = "Null"
	default:
		s = fmt.Sprint(x)
	}
	name := upperCamel(s)
	if name == "" {
		return "Empty"
	}
	if startsWithDigit(name) {
		name = "_" + name
	}
	return name
}

// MediaType returns the short name of a content type: Json, Plain, Xml, FormData,
// Any, or the PascalCase form of the whole media type.
func MediaType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case ct == "application/json" || strings.HasSuffix(ct, "+json"):
		return "Json"
	case ct == "text/plain":
		return "Plain"
	case ct == "application/xml" || ct == "text/xml" || strings.HasSuffix(ct, "+xml"):
		return "Xml"
	case ct == "multipart/form-data":
		return "FormData"
	case ct == "*/*":
		return "Any"
	default:
		return FullMediaType(contentType)
	}
}

// FullMediaType returns the PascalCase form of a whole media type.
func FullMediaType(contentType string) string {
	r := strings.NewReplacer("/", "_", "+", "_", "*", "_any_", ";", "_", "=", "_")
	return strcase.ToCamel(r.Replace(strings.ToLower(strings.TrimSpace(contentType))))
}

// MediaTypes returns the short names of contentTypes, falling back to the full
// form for every content type whose short name is shared with another one. Names
// that remain equal are numbered in order.
func MediaTypes(contentTypes []string) []string {
	short := make([]string, len(contentTypes))
	count := make(map[string]int, len(contentTypes))
	for i, ct := range contentTypes {
		short[i] = MediaType(ct)
		count[short[i]]++
	}
	for i, ct := range contentTypes {
		if count[short[i]] > 1 {
			short[i] = FullMediaType(ct)
		}
	}
	// full forms can still collide, e.g. "a/vnd.x+json" and "a/vnd.x.json"
	seen := make(map[string]bool, len(short))
	for i, name := range short {
		unique := name
		for n := 2; seen[unique]; n++ {
			unique = name + strconv.Itoa(n)
		}
		seen[unique] = true
		short[i] = unique
	}
	return short
}

// upperCamel keeps names that are already plain identifiers intact apart from
// their first letter, so "HTTPError" stays "HTTPError". Only names with
// separators go through strcase.
func upperCamel(s string) string {
	s = strings.TrimSpace(s)
	if isPlainIdentifier(s) {
		return strings.ToUpper(s[:1]) + s[1:]
	}
	return strcase.ToCamel(clean(s))
}

func lowerCamel(s string) string {
	s = strings.TrimSpace(s)
	if !isPlainIdentifier(s) {
		return strcase.ToLowerCamel(clean(s))
	}
	// lowercase a leading acronym: "HTTPError" becomes "httpError", "ID" becomes "id"
	n := 0
	for n < len(s) && s[n] >= 'A' && s[n] <= 'Z' {
		n++
	}
	if n > 1 && n < len(s) && s[n] >= 'a' && s[n] <= 'z' {
		n--
	}
	if n == 0 {
		return s
	}
	return strings.ToLower(s[:n]) + s[n:]
}

// isPlainIdentifier reports whether s is ASCII letters and digits starting with a letter.
func isPlainIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// clean turns every character strcase does not treat as a word boundary into one.
func clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}
