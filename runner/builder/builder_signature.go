package builder

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

var (
	ErrMissingMarker      = errors.New("declaration is not wrapped in the marker")
	ErrMalformedSignature = errors.New("malformed function signature")
	ErrNoParameters       = errors.New("function signature has no parameters")
)

// Parameter is one formal argument of a marked declaration
type Parameter struct {
	Fragment string // Original text, e.g. "const int* lo"
	Name     string // Bare name, e.g. "lo"
}

// MacroRewrite retargets a macro used in an argument name at the call site,
// e.g. BL_FORT_FAB_ARG_3D(state) -> BL_FORT_FAB_VAL_3D(state)
type MacroRewrite struct {
	From string `toml:"from"`
	To   string `toml:"to"`
}

// Signature holds the text found inside a marker wrapper, split into the
// call prefix and its parameters
type Signature struct {
	Text   string      // "ca_func(const int* lo, const int* hi, double* dat)"
	Prefix string      // Everything before the parameter list open paren
	Name   string      // Bare function name
	Params []Parameter // Never empty for a parsed signature
}

// ParameterNames returns the bare names in declaration order
func (s *Signature) ParameterNames() []string {
	names := make([]string, len(s.Params))
	for i, p := range s.Params {
		names[i] = p.Name
	}
	return names
}

// markerPatterns caches the compiled wrapper pattern per marker
var markerPatterns sync.Map

func markerPattern(marker string) *regexp.Regexp {
	if re, ok := markerPatterns.Load(marker); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(`(?is)` + regexp.QuoteMeta(marker) + `\s*\((.*)\)\s*;`)
	actual, _ := markerPatterns.LoadOrStore(marker, re)
	return actual.(*regexp.Regexp)
}

// ExtractSignature strips the MARKER( ... ); wrapper from a raw declaration
// and returns the inner signature text. The match is greedy up to the last
// closing paren preceding the terminating semicolon.
func ExtractSignature(raw, marker string) (string, error) {
	m := markerPattern(marker).FindStringSubmatch(raw)
	if m == nil {
		return "", fmt.Errorf("%w: expected %s(...);", ErrMissingMarker, marker)
	}
	return strings.TrimSpace(m[1]), nil
}

// ParseSignature splits signature text into its prefix and parameters.
// Call-site macro rewrites are applied to the bare parameter names.
func ParseSignature(text string, rewrites []MacroRewrite) (*Signature, error) {
	open := strings.Index(text, "(")
	closing := strings.LastIndex(text, ")")
	if open < 0 || closing < open {
		return nil, fmt.Errorf("%w: no parameter list in %q", ErrMalformedSignature, text)
	}

	sig := &Signature{
		Text:   text,
		Prefix: text[:open],
	}
	if fields := strings.Fields(sig.Prefix); len(fields) > 0 {
		sig.Name = fields[len(fields)-1]
	}
	if sig.Name == "" {
		return nil, fmt.Errorf("%w: no function name in %q", ErrMalformedSignature, text)
	}

	fragments := SplitParameters(text[open+1 : closing])
	if len(fragments) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoParameters, sig.Name)
	}

	for i, frag := range fragments {
		name := BareName(frag)
		if name == "" {
			return nil, fmt.Errorf("%w: %s has an empty parameter at position %d",
				ErrMalformedSignature, sig.Name, i+1)
		}
		for _, rw := range rewrites {
			name = strings.ReplaceAll(name, rw.From, rw.To)
		}
		sig.Params = append(sig.Params, Parameter{
			Fragment: strings.TrimSpace(frag),
			Name:     name,
		})
	}

	return sig, nil
}

// SplitParameters splits a parameter list on commas that are not nested
// inside (), [], {} or <>. Whitespace-only lists yield no parameters.
func SplitParameters(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}

	var (
		parts []string
		depth int
		start int
	)
	for i := 0; i < len(list); i++ {
		switch list[i] {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, list[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, list[start:])

	return parts
}

var indirection = strings.NewReplacer("*", "", "&", "")

// BareName returns the last whitespace-delimited token of a parameter
// fragment with pointer and reference markers removed
func BareName(fragment string) string {
	tokens := strings.Fields(fragment)
	if len(tokens) == 0 {
		return ""
	}
	return indirection.Replace(tokens[len(tokens)-1])
}
