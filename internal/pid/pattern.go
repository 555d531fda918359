package pid

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSeparator joins the function and number halves of an instrument pattern.
const DefaultSeparator = `\s?`

// PatternKind discriminates the two PatternSpec shapes
type PatternKind int

const (
	PatternPlain PatternKind = iota
	PatternFunctionNumber
)

// PatternSpec is either a plain regular expression or a function/number pair
// whose effective expression is Func + Separator + Num.
type PatternSpec struct {
	Kind      PatternKind
	Expr      string
	Func      string
	Num       string
	Separator string
}

// PlainPattern builds a single-expression pattern
func PlainPattern(expr string) PatternSpec {
	return PatternSpec{Kind: PatternPlain, Expr: expr}
}

// FunctionNumberPattern builds an instrument-style pattern. An empty
// separator selects DefaultSeparator.
func FunctionNumberPattern(function, num, separator string) PatternSpec {
	if separator == "" {
		separator = DefaultSeparator
	}
	return PatternSpec{Kind: PatternFunctionNumber, Func: function, Num: num, Separator: separator}
}

// Expression returns the effective regular expression source
func (p PatternSpec) Expression() string {
	if p.Kind == PatternFunctionNumber {
		sep := p.Separator
		if sep == "" {
			sep = DefaultSeparator
		}
		return p.Func + sep + p.Num
	}
	return p.Expr
}

// IsZero reports whether the pattern carries no expression at all
func (p PatternSpec) IsZero() bool {
	return strings.TrimSpace(p.Expression()) == "" ||
		(p.Kind == PatternFunctionNumber && p.Func == "" && p.Num == "")
}

type functionNumberFields struct {
	Func      string `json:"func" yaml:"func"`
	Num       string `json:"num" yaml:"num"`
	Separator string `json:"separator,omitempty" yaml:"separator,omitempty"`
}

// MarshalJSON encodes plain patterns as strings and function/number patterns as objects
func (p PatternSpec) MarshalJSON() ([]byte, error) {
	if p.Kind == PatternFunctionNumber {
		fields := functionNumberFields{Func: p.Func, Num: p.Num}
		if p.Separator != DefaultSeparator {
			fields.Separator = p.Separator
		}
		return json.Marshal(fields)
	}
	return json.Marshal(p.Expr)
}

// UnmarshalJSON accepts either a string or a {func, num} object
func (p *PatternSpec) UnmarshalJSON(data []byte) error {
	var expr string
	if err := json.Unmarshal(data, &expr); err == nil {
		*p = PlainPattern(expr)
		return nil
	}
	var fields functionNumberFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("pattern must be a string or an object with func and num: %w", err)
	}
	*p = FunctionNumberPattern(fields.Func, fields.Num, fields.Separator)
	return nil
}

// UnmarshalYAML accepts either a scalar or a {func, num} mapping
func (p *PatternSpec) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*p = PlainPattern(value.Value)
		return nil
	case yaml.MappingNode:
		var fields functionNumberFields
		if err := value.Decode(&fields); err != nil {
			return err
		}
		*p = FunctionNumberPattern(fields.Func, fields.Num, fields.Separator)
		return nil
	default:
		return fmt.Errorf("line %d: pattern must be a string or a mapping with func and num", value.Line)
	}
}

// MarshalYAML mirrors MarshalJSON
func (p PatternSpec) MarshalYAML() (any, error) {
	if p.Kind == PatternFunctionNumber {
		fields := functionNumberFields{Func: p.Func, Num: p.Num}
		if p.Separator != DefaultSeparator {
			fields.Separator = p.Separator
		}
		return fields, nil
	}
	return p.Expr, nil
}

// Match is one occurrence of a category pattern inside a text run
type Match struct {
	Category Category `json:"category"`
	Text     string   `json:"text"`
}

type compiledPattern struct {
	category Category
	re       *regexp.Regexp
}

// Matcher holds the compiled category patterns. Categories whose pattern
// failed to compile are absent and reported in Warnings.
type Matcher struct {
	patterns []compiledPattern
	warnings []*Error
}

// NewMatcher compiles every configured pattern case-insensitively, in
// Categories() order. A broken pattern only disables its own category.
func NewMatcher(patterns map[Category]PatternSpec) *Matcher {
	m := &Matcher{}
	for _, category := range Categories() {
		p, ok := patterns[category]
		if !ok || p.IsZero() {
			continue
		}
		expr := p.Expression()
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			m.warnings = append(m.warnings, ConfigurationError(category, expr, err))
			continue
		}
		m.patterns = append(m.patterns, compiledPattern{category: category, re: re})
	}
	return m
}

// Warnings returns the configuration errors found while compiling
func (m *Matcher) Warnings() []*Error {
	out := make([]*Error, len(m.warnings))
	copy(out, m.warnings)
	return out
}

// Categories returns the categories that compiled successfully
func (m *Matcher) Categories() []Category {
	out := make([]Category, 0, len(m.patterns))
	for _, p := range m.patterns {
		out = append(out, p.category)
	}
	return out
}

// Match returns all non-overlapping matches of every category in text,
// grouped by category order and left to right within a category.
func (m *Matcher) Match(text string) []Match {
	var out []Match
	for _, p := range m.patterns {
		for _, found := range p.re.FindAllString(text, -1) {
			if found == "" {
				continue
			}
			out = append(out, Match{Category: p.category, Text: found})
		}
	}
	return out
}

// MatchCategory compiles patterns and matches text in one call.
func MatchCategory(text string, patterns map[Category]PatternSpec) ([]Match, []*Error) {
	m := NewMatcher(patterns)
	return m.Match(text), m.Warnings()
}
