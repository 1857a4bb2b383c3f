// Package category assigns grocery items to the fixed list of store
// sections used to group the checklist.
package category

import (
	"strings"
)

const (
	Produce       = "Produce"
	Bakery        = "Bakery"
	MeatSeafood   = "Meat / Seafood"
	DairyEggs     = "Dairy & Eggs"
	Frozen        = "Frozen"
	Pantry        = "Pantry & Dry Goods"
	Canned        = "Canned & Jarred"
	Condiments    = "Condiments & Sauces"
	Snacks        = "Snacks & Sweets"
	Beverages     = "Beverages"
	Household     = "Household & Cleaning"
	PersonalCare  = "Personal Care & Pharmacy"
	Uncategorized = "Uncategorized / Other"
)

// All lists the categories in checklist order.
var All = []string{
	Produce, Bakery, MeatSeafood, DairyEggs, Frozen, Pantry, Canned,
	Condiments, Snacks, Beverages, Household, PersonalCare, Uncategorized,
}

var aliases = map[string]string{
	"produce": Produce, "fruit": Produce, "fruits": Produce, "vegetables": Produce, "veg": Produce,
	"bakery": Bakery, "bread": Bakery,
	"meat": MeatSeafood, "seafood": MeatSeafood, "meat/seafood": MeatSeafood, "fish": MeatSeafood,
	"dairy": DairyEggs, "eggs": DairyEggs, "dairy and eggs": DairyEggs,
	"frozen": Frozen, "frozen foods": Frozen,
	"pantry": Pantry, "dry goods": Pantry, "pantry and dry goods": Pantry,
	"canned": Canned, "jarred": Canned, "canned goods": Canned, "canned and jarred": Canned,
	"condiments": Condiments, "sauces": Condiments, "spices": Condiments,
	"snacks": Snacks, "sweets": Snacks,
	"beverages": Beverages, "drinks": Beverages,
	"household": Household, "cleaning": Household,
	"personal care": PersonalCare, "pharmacy": PersonalCare,
	"uncategorized": Uncategorized, "other": Uncategorized,
}

// DefaultKeywords maps item keys to categories for items the model did not
// categorize.
var DefaultKeywords = map[string]string{
	"tomato": Produce, "basil": Produce, "garlic": Produce, "onion": Produce, "potato": Produce,
	"apple": Produce, "banana": Produce, "lettuce": Produce, "carrot": Produce, "lemon": Produce,
	"bread": Bakery, "bagel": Bakery, "baguette": Bakery, "tortilla": Bakery,
	"chicken": MeatSeafood, "beef": MeatSeafood, "ground beef": MeatSeafood, "salmon": MeatSeafood, "shrimp": MeatSeafood,
	"milk": DairyEggs, "egg": DairyEggs, "butter": DairyEggs, "cheese": DairyEggs, "yogurt": DairyEggs,
	"ice cream": Frozen, "frozen pea": Frozen,
	"pasta": Pantry, "rice": Pantry, "flour": Pantry, "sugar": Pantry, "oat": Pantry, "lentil": Pantry,
	"crushed tomato": Canned, "tomato paste": Canned, "bean": Canned, "tuna": Canned,
	"olive oil": Condiments, "ketchup": Condiments, "mustard": Condiments, "soy sauce": Condiments, "salt": Condiments,
	"chip": Snacks, "chocolate": Snacks, "cookie": Snacks,
	"coffee": Beverages, "tea": Beverages, "juice": Beverages, "water": Beverages,
	"paper towel": Household, "dish soap": Household, "trash bag": Household,
	"toothpaste": PersonalCare, "shampoo": PersonalCare,
}

// Assigner resolves categories from model hints and a keyword table.
type Assigner struct {
	keywords map[string]string
}

// NewAssigner builds an Assigner. Extra keywords override the defaults; values
// are resolved through the alias table.
func NewAssigner(extra map[string]string) *Assigner {
	kw := make(map[string]string, len(DefaultKeywords)+len(extra))
	for k, v := range DefaultKeywords {
		kw[k] = v
	}
	for k, v := range extra {
		if c, ok := Resolve(v); ok {
			kw[strings.ToLower(k)] = c
		}
	}
	return &Assigner{keywords: kw}
}

// Resolve maps a raw category name to a known category.
func Resolve(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	for _, c := range All {
		if strings.EqualFold(c, s) {
			return c, true
		}
	}
	c, ok := aliases[strings.ToLower(s)]
	return c, ok
}

// Guess returns the category for a canonical item key. Multi-word keys fall
// back to their last word ("cherry tomato" -> tomato).
func (a *Assigner) Guess(key string) string {
	if c, ok := a.keywords[key]; ok {
		return c
	}
	if i := strings.LastIndex(key, " "); i >= 0 {
		if c, ok := a.keywords[key[i+1:]]; ok {
			return c
		}
	}
	return Uncategorized
}

// Assign picks the category for an item: a recognized hint wins, then the
// current category, then the keyword guess.
func (a *Assigner) Assign(key, hint, current string) string {
	if c, ok := Resolve(hint); ok {
		return c
	}
	if c, ok := Resolve(current); ok {
		return c
	}
	return a.Guess(key)
}

// Rank orders categories for the checklist; unknown names sort last.
func Rank(name string) int {
	for i, c := range All {
		if c == name {
			return i
		}
	}
	return len(All)
}
