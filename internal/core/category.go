package core

import (
	"strings"
)

// Category is a canonical spending category.
type Category string

const (
	CategoryGrocery    Category = "grocery"
	CategoryShopping   Category = "shopping"
	CategoryRentBills  Category = "rentBills"
	CategoryStock      Category = "stock"
	CategoryMutualFund Category = "mutualFund"
	CategoryCreditCard Category = "creditCard"
	CategoryEMI        Category = "emi"
	CategoryOther      Category = "other"
)

var canonicalCategories = []Category{
	CategoryGrocery,
	CategoryShopping,
	CategoryRentBills,
	CategoryStock,
	CategoryMutualFund,
	CategoryCreditCard,
	CategoryEMI,
	CategoryOther,
}

// exactCategories maps known labels (lower case, single spaced) to their
// canonical category. Checked before any substring heuristic.
var exactCategories = map[string]Category{
	// credit card family
	"credit card":      CategoryCreditCard,
	"creditcard":       CategoryCreditCard,
	"credit-card":      CategoryCreditCard,
	"credit card bill": CategoryCreditCard,
	"cc":               CategoryCreditCard,
	"card":             CategoryCreditCard,

	// installment family
	"emi":          CategoryEMI,
	"emis":         CategoryEMI,
	"installment":  CategoryEMI,
	"installments": CategoryEMI,
	"loan emi":     CategoryEMI,

	"grocery":        CategoryGrocery,
	"groceries":      CategoryGrocery,
	"shopping":       CategoryShopping,
	"rentbills":      CategoryRentBills,
	"rent & bills":   CategoryRentBills,
	"rent and bills": CategoryRentBills,
	"rent/bills":     CategoryRentBills,
	"stock":          CategoryStock,
	"stocks":         CategoryStock,
	"mutualfund":     CategoryMutualFund,
	"mutual fund":    CategoryMutualFund,
	"mutual funds":   CategoryMutualFund,
	"sip":            CategoryMutualFund,
	"other":          CategoryOther,
	"others":         CategoryOther,
}

// categoryRule is one substring heuristic. Rules are evaluated in order and
// the first rule with a matching needle wins.
type categoryRule struct {
	needles  []string
	category Category
}

var categoryRules = []categoryRule{
	{needles: []string{"mutual"}, category: CategoryMutualFund},
	{needles: []string{"stock"}, category: CategoryStock},
	{needles: []string{"shop"}, category: CategoryShopping},
	{needles: []string{"groc"}, category: CategoryGrocery},
	{needles: []string{"rent", "bill"}, category: CategoryRentBills},
}

// NormalizeCategory maps free-form input to a canonical category.
//
// The mapping is total and deterministic: exact labels first, then the
// substring rules in fixed priority, then CategoryOther. Inputs matching more
// than one rule resolve by rule order, so "mutual fund shopping" is a mutual
// fund.
func NormalizeCategory(input string) Category {
	key := strings.Join(strings.Fields(strings.ToLower(input)), " ")
	if key == "" {
		return CategoryOther
	}
	if c, ok := exactCategories[key]; ok {
		return c
	}
	for _, rule := range categoryRules {
		for _, needle := range rule.needles {
			if strings.Contains(key, needle) {
				return rule.category
			}
		}
	}
	return CategoryOther
}

// ParseCategory accepts only canonical values, as stored by the ledger.
func ParseCategory(s string) (Category, bool) {
	for _, c := range canonicalCategories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Categories returns the canonical taxonomy in display order.
func Categories() []Category {
	out := make([]Category, len(canonicalCategories))
	copy(out, canonicalCategories)
	return out
}

// Label returns a human readable label for display surfaces such as the
// spreadsheet mirror.
func (c Category) Label() string {
	switch c {
	case CategoryGrocery:
		return "Grocery"
	case CategoryShopping:
		return "Shopping"
	case CategoryRentBills:
		return "Rent & Bills"
	case CategoryStock:
		return "Stock"
	case CategoryMutualFund:
		return "Mutual Fund"
	case CategoryCreditCard:
		return "Credit Card"
	case CategoryEMI:
		return "EMIs"
	default:
		return "Other"
	}
}

func (c Category) String() string { return string(c) }
