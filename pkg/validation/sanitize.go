package validation

import (
	"html"
	"reflect"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

// Policy selects how a string field is cleaned.
type Policy string

const (
	// PolicyStrict removes every tag and leaves plain text.
	PolicyStrict Policy = "strict"
	// PolicyRich keeps a small set of formatting tags for free text.
	PolicyRich Policy = "rich"
	// PolicyNone leaves the value untouched (passwords).
	PolicyNone Policy = "none"
)

// sanitizeTag is the struct tag read by SanitizeStruct.
const sanitizeTag = "sanitize"

// Sanitizer strips markup and control characters from user input.
// The zero value is not usable; call NewSanitizer.
type Sanitizer struct {
	strict *bluemonday.Policy
	rich   *bluemonday.Policy
}

// NewSanitizer builds the strict and rich allow-lists.
func NewSanitizer() *Sanitizer {
	rich := bluemonday.NewPolicy()
	rich.AllowElements("b", "i", "em", "strong", "p", "br", "ul", "ol", "li")
	rich.AllowAttrs("href").OnElements("a")
	rich.AllowStandardURLs()

	return &Sanitizer{
		strict: bluemonday.StrictPolicy(),
		rich:   rich,
	}
}

// Strict returns in as plain text: no tags, no control characters, NFC, trimmed.
// Each pass peels one layer of entity encoding, so it runs to a fixed point.
func (s *Sanitizer) Strict(in string) string {
	return fixedPoint(clean(in), func(v string) string {
		return clean(html.UnescapeString(s.strict.Sanitize(v)))
	})
}

// Rich keeps the formatting allow-list and removes everything else. Input
// without markup is returned as plain text, unescaped.
func (s *Sanitizer) Rich(in string) string {
	out := clean(in)
	if !s.hasMarkup(out) {
		return out
	}
	return fixedPoint(out, func(v string) string {
		return clean(s.rich.Sanitize(v))
	})
}

// hasMarkup reports whether in holds tags or entities, that is whether
// stripping it to text changes it.
func (s *Sanitizer) hasMarkup(in string) bool {
	return html.UnescapeString(s.strict.Sanitize(in)) != in
}

// fixedPoint applies pass until the value stops changing. A pass never
// grows its input, so len(in)+1 passes always suffice.
func fixedPoint(in string, pass func(string) string) string {
	out := in
	for i := 0; i <= len(in); i++ {
		next := pass(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

// Apply cleans in according to policy.
func (s *Sanitizer) Apply(policy Policy, in string) string {
	switch policy {
	case PolicyNone:
		return in
	case PolicyRich:
		return s.Rich(in)
	default:
		return s.Strict(in)
	}
}

// SanitizeStruct cleans every exported string field of the struct v points to,
// following the `sanitize` tag (strict when absent). Nested structs, pointers
// and string slices are walked.
func (s *Sanitizer) SanitizeStruct(v any) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return
	}
	s.walk(rv.Elem(), PolicyStrict)
}

func (s *Sanitizer) walk(v reflect.Value, policy Policy) {
	switch v.Kind() {
	case reflect.Pointer:
		if !v.IsNil() {
			s.walk(v.Elem(), policy)
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(s.Apply(policy, v.String()))
		}
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.String || v.Type().Elem().Kind() == reflect.Struct {
			for i := 0; i < v.Len(); i++ {
				s.walk(v.Index(i), policy)
			}
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			fieldPolicy := PolicyStrict
			if tag := field.Tag.Get(sanitizeTag); tag != "" {
				fieldPolicy = Policy(tag)
			}
			if fieldPolicy == PolicyNone {
				continue
			}
			s.walk(v.Field(i), fieldPolicy)
		}
	}
}

// clean normalises to NFC, converts CRLF to LF and drops control characters
// other than newline and tab.
func clean(in string) string {
	in = strings.ReplaceAll(in, "\r\n", "\n")
	in = norm.NFC.String(in)
	in = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, in)
	return strings.TrimSpace(in)
}
