package core

import "testing"

func TestNormalizeCategory(t *testing.T) {
	cases := []struct {
		in   string
		want Category
	}{
		{"Grocery", CategoryGrocery},
		{"groc", CategoryGrocery},
		{"  GROCERIES ", CategoryGrocery},
		{"Shopping", CategoryShopping},
		{"online shop", CategoryShopping},
		{"Rent & Bills", CategoryRentBills},
		{"electricity bill", CategoryRentBills},
		{"house rent", CategoryRentBills},
		{"Stock", CategoryStock},
		{"stock purchase", CategoryStock},
		{"Mutual Fund", CategoryMutualFund},
		{"SIP", CategoryMutualFund},
		{"Credit Card", CategoryCreditCard},
		{"credit   card", CategoryCreditCard},
		{"credit card bill", CategoryCreditCard},
		{"EMIs", CategoryEMI},
		{"installment", CategoryEMI},
		{"Travel", CategoryOther},
		{"", CategoryOther},
		{"   ", CategoryOther},
		{"rentBills", CategoryRentBills},
		{"mutualFund", CategoryMutualFund},
		{"creditCard", CategoryCreditCard},
		// overlapping inputs resolve by rule priority
		{"mutual fund shopping", CategoryMutualFund},
		{"stock shop", CategoryStock},
		{"shopping bill", CategoryShopping},
		{"grocery bill", CategoryGrocery},
	}
	for _, tc := range cases {
		if got := NormalizeCategory(tc.in); got != tc.want {
			t.Errorf("NormalizeCategory(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeCategoryIsTotal(t *testing.T) {
	inputs := []string{"\x00", "日本語", "💸", "%%%", "a very long category name that matches nothing at all"}
	for _, in := range inputs {
		got := NormalizeCategory(in)
		if _, ok := ParseCategory(string(got)); !ok {
			t.Fatalf("NormalizeCategory(%q) = %q is not canonical", in, got)
		}
		if again := NormalizeCategory(in); again != got {
			t.Fatalf("NormalizeCategory(%q) not deterministic: %q vs %q", in, got, again)
		}
	}
}

func TestCanonicalValuesAreFixedPoints(t *testing.T) {
	for _, c := range Categories() {
		if got := NormalizeCategory(string(c)); got != c {
			t.Errorf("NormalizeCategory(%q) = %q, want itself", c, got)
		}
		if got := NormalizeCategory(c.Label()); got != c {
			t.Errorf("NormalizeCategory(label %q) = %q, want %q", c.Label(), got, c)
		}
	}
}

func TestParseCategory(t *testing.T) {
	if c, ok := ParseCategory("grocery"); !ok || c != CategoryGrocery {
		t.Fatalf("expected grocery, got %q %v", c, ok)
	}
	if _, ok := ParseCategory("Grocery"); ok {
		t.Fatalf("expected non-canonical label to be rejected")
	}
}
