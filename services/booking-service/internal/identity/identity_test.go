package identity

import "testing"

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"12 34 56 78":    "4512345678",
		"12345678":       "4512345678",
		"004512345678":   "4512345678",
		"+45 12 34 56 78": "4512345678",
		"4512345678":     "4512345678",
		"":               "",
		"abc":            "",
	}
	for input, want := range cases {
		if got := NormalizePhone(input); got != want {
			t.Fatalf("NormalizePhone(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizePhoneIdempotent(t *testing.T) {
	once := NormalizePhone("12345678")
	twice := NormalizePhone(once)
	if once != twice {
		t.Fatalf("normalization not idempotent: %q vs %q", once, twice)
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Jens@Example.COM "); got != "jens@example.com" {
		t.Fatalf("unexpected email: %q", got)
	}
	if got := NormalizeEmail(""); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestSplitPhone(t *testing.T) {
	parts := SplitPhone("+45 12345678", "4512345678")
	if parts.Country != "+45" || parts.National != "12345678" {
		t.Fatalf("unexpected parts: %+v", parts)
	}
	if parts.Full != "+45 12345678" {
		t.Fatalf("unexpected full: %q", parts.Full)
	}

	parts = SplitPhone("12345678", "4512345678")
	if parts.Country != "+45" || parts.National != "12345678" {
		t.Fatalf("unexpected parts for national number: %+v", parts)
	}

	parts = SplitPhone("", "")
	if parts.Country != "" || parts.Full != "" {
		t.Fatalf("expected empty parts, got %+v", parts)
	}
}

func TestOwnerIdentifier(t *testing.T) {
	cases := map[string]string{
		"Mette Hansen":        "mette-hansen",
		"klinik@example.com":  "klinik-example-com",
		"  --  ":              "unknown-user",
		"":                    "unknown-user",
	}
	for input, want := range cases {
		if got := OwnerIdentifier(input); got != want {
			t.Fatalf("OwnerIdentifier(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestIsBlank(t *testing.T) {
	if !IsBlank("   ") || !IsBlank("") {
		t.Fatal("whitespace must be blank")
	}
	if IsBlank("x") {
		t.Fatal("non-empty must not be blank")
	}
}
