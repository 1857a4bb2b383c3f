// Package canon normalizes item labels into the dedup key used by the graph
// store: lowercased, leading quantities and measurements stripped, last word
// singularized. The rule set is data, so deployments can extend it from
// config without touching code.
package canon

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Rules configures a Canonicalizer.
type Rules struct {
	// QuantityPatterns match whole tokens that denote an amount ("2", "1/2", "3x", "500g").
	QuantityPatterns []string
	// Units, Fillers and Descriptors are words stripped from the front of a label.
	Units       []string
	Fillers     []string
	Descriptors []string
	// Irregular maps plural forms to their singular.
	Irregular map[string]string
	// Invariant words are never singularized.
	Invariant []string
}

// DefaultRules is the built-in rule set for grocery labels.
func DefaultRules() Rules {
	return Rules{
		QuantityPatterns: []string{
			`^\d+([.,/]\d+)?$`,
			`^\d+([.,/]\d+)?(x|lbs?|kg|g|mg|oz|ml|cl|dl|l|pcs?)$`,
			`^x\d+$`,
			`^\d+-\d+$`,
			`^\d*[½⅓⅔¼¾⅛]$`,
			`^#\d+$`,
		},
		Units: []string{
			"box", "boxes", "bag", "bags", "can", "cans", "jar", "jars", "bottle", "bottles",
			"pack", "packs", "package", "packages", "packet", "packets", "carton", "cartons",
			"bunch", "bunches", "head", "heads", "loaf", "loaves", "clove", "cloves",
			"cup", "cups", "tbsp", "tsp", "tablespoon", "tablespoons", "teaspoon", "teaspoons",
			"lb", "lbs", "pound", "pounds", "oz", "ounce", "ounces", "g", "gram", "grams",
			"kg", "kilo", "kilos", "ml", "l", "liter", "liters", "litre", "litres",
			"gallon", "gallons", "quart", "quarts", "pint", "pints", "dozen", "piece", "pieces",
			"slice", "slices", "stick", "sticks", "tin", "tins", "tub", "tubs", "pinch", "dash",
		},
		Fillers: []string{
			"a", "an", "the", "of", "some", "few", "couple", "more", "extra", "buy", "get",
			"one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten",
			"twelve", "half",
		},
		Descriptors: []string{
			"fresh", "organic", "large", "small", "medium", "big", "ripe", "whole",
		},
		Irregular: map[string]string{
			"leaves":    "leaf",
			"loaves":    "loaf",
			"knives":    "knife",
			"halves":    "half",
			"geese":     "goose",
			"mice":      "mouse",
			"children":  "child",
			"cookies":   "cookie",
			"brownies":  "brownie",
			"smoothies": "smoothie",
			"veggies":   "veggie",
			"calories":  "calorie",
			"shoes":     "shoe",
		},
		Invariant: []string{
			"molasses", "hummus", "couscous", "asparagus", "grits", "swiss", "series",
			"species", "bitters", "schnapps", "news", "chess",
		},
	}
}

// Extend appends extra words and patterns to r.
func (r Rules) Extend(extra Rules) Rules {
	out := Rules{
		QuantityPatterns: append(append([]string{}, r.QuantityPatterns...), extra.QuantityPatterns...),
		Units:            append(append([]string{}, r.Units...), extra.Units...),
		Fillers:          append(append([]string{}, r.Fillers...), extra.Fillers...),
		Descriptors:      append(append([]string{}, r.Descriptors...), extra.Descriptors...),
		Invariant:        append(append([]string{}, r.Invariant...), extra.Invariant...),
		Irregular:        make(map[string]string, len(r.Irregular)+len(extra.Irregular)),
	}
	for k, v := range r.Irregular {
		out.Irregular[k] = v
	}
	for k, v := range extra.Irregular {
		out.Irregular[strings.ToLower(k)] = strings.ToLower(v)
	}
	return out
}

// Canonicalizer is safe for concurrent use once built.
type Canonicalizer struct {
	quantity  []*regexp.Regexp
	strip     map[string]bool
	irregular map[string]string
	invariant map[string]bool
}

// New compiles the rule set.
func New(r Rules) (*Canonicalizer, error) {
	c := &Canonicalizer{
		strip:     make(map[string]bool),
		irregular: make(map[string]string, len(r.Irregular)),
		invariant: make(map[string]bool, len(r.Invariant)),
	}
	for _, p := range r.QuantityPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid quantity pattern %q: %w", p, err)
		}
		c.quantity = append(c.quantity, re)
	}
	for _, group := range [][]string{r.Units, r.Fillers, r.Descriptors} {
		for _, w := range group {
			c.strip[strings.ToLower(w)] = true
		}
	}
	for plural, singular := range r.Irregular {
		c.irregular[strings.ToLower(plural)] = strings.ToLower(singular)
	}
	for _, w := range r.Invariant {
		c.invariant[strings.ToLower(w)] = true
	}
	return c, nil
}

// MustNew is New for rule sets known to compile.
func MustNew(r Rules) *Canonicalizer {
	c, err := New(r)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns a Canonicalizer for DefaultRules.
func Default() *Canonicalizer {
	return MustNew(DefaultRules())
}

// Key returns the dedup key for label. Key(Key(x)) == Key(x).
func (c *Canonicalizer) Key(label string) string {
	tokens := c.core(tokenize(strings.ToLower(label)))
	if len(tokens) == 0 {
		return ""
	}
	last := len(tokens) - 1
	tokens[last] = c.singularize(tokens[last])
	return strings.Join(tokens, " ")
}

// Display returns the human label: quantities stripped, original casing,
// first letter upper-cased.
func (c *Canonicalizer) Display(label string) string {
	tokens := c.core(tokenize(label))
	if len(tokens) == 0 {
		return ""
	}
	s := strings.Join(tokens, " ")
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// core strips removable tokens from both ends, always keeping one token.
func (c *Canonicalizer) core(tokens []string) []string {
	for {
		changed := false
		for len(tokens) > 1 && c.removableLeading(tokens[0]) {
			tokens = tokens[1:]
			changed = true
		}
		for len(tokens) > 1 && c.isQuantity(tokens[len(tokens)-1]) {
			tokens = tokens[:len(tokens)-1]
			changed = true
		}
		if !changed {
			return tokens
		}
	}
}

func (c *Canonicalizer) removableLeading(tok string) bool {
	lower := strings.ToLower(tok)
	return c.strip[lower] || c.isQuantity(lower)
}

func (c *Canonicalizer) isQuantity(tok string) bool {
	lower := strings.ToLower(tok)
	for _, re := range c.quantity {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

func (c *Canonicalizer) singularize(w string) string {
	if c.invariant[w] {
		return w
	}
	if s, ok := c.irregular[w]; ok {
		return s
	}
	if len(w) < 3 || !isWord(w) {
		return w
	}
	switch {
	case strings.HasSuffix(w, "ss"), strings.HasSuffix(w, "us"), strings.HasSuffix(w, "is"):
		return w
	case strings.HasSuffix(w, "ies") && len(w) > 4:
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "oes"),
		strings.HasSuffix(w, "ches"),
		strings.HasSuffix(w, "shes"),
		strings.HasSuffix(w, "sses"),
		strings.HasSuffix(w, "xes"),
		strings.HasSuffix(w, "zes"):
		return w[:len(w)-2]
	case strings.HasSuffix(w, "s"):
		return w[:len(w)-1]
	}
	return w
}

func isWord(w string) bool {
	for _, r := range w {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func tokenize(s string) []string {
	fields := strings.Fields(s)
	tokens := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ",.;:!?\"'()[]{}*•-")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
