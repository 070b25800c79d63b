package pairing

import "testing"

func TestNewProducesCorrectLength(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(c.String()) != Length {
		t.Fatalf("expected length %d, got %d", Length, len(c.String()))
	}
}

func TestNewDoesNotCollideAcrossManyDraws(t *testing.T) {
	seen := make(map[Code]struct{})
	for i := 0; i < 1000; i++ {
		c, err := New()
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, ok := seen[c]; ok {
			t.Fatalf("pairing code collided after %d draws: %v", i, c)
		}
		seen[c] = struct{}{}
	}
}

func TestParseRoundTrip(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	parsed, err := Parse(c.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed != c {
		t.Fatalf("parsed code %v does not match original %v", parsed, c)
	}
}

func TestParseRejectsWrongLength(t *testing.T) {
	for _, s := range []string{"", "ab", "abcdefg", "abcde"} {
		if _, err := Parse(s); err == nil {
			t.Fatalf("Parse(%q): expected error", s)
		}
	}
}

func TestParseRejectsNonAlphanumeric(t *testing.T) {
	if _, err := Parse("ab-d3f"); err == nil {
		t.Fatalf("expected error for non-alphanumeric code")
	}
}

func TestParseIsCaseSensitive(t *testing.T) {
	lower, err := Parse("abcdef")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	upper, err := Parse("ABCDEF")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if lower == upper {
		t.Fatalf("expected case-sensitive codes to differ")
	}
}
