package phone

import "testing"

func TestNormalizeCleansSeparators(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{name: "hyphens", raw: "+1-555-0100", want: "+15550100"},
		{name: "spaces and parens", raw: "+1 (555) 0100", want: "+15550100"},
		{name: "dots", raw: "+1.555.0100", want: "+15550100"},
		{name: "uk", raw: "+44 20 7031 3000", want: "+442070313000"},
		{name: "inner plus dropped", raw: "+1555+0100", want: "+15550100"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Normalize(tc.raw)
			if !ok {
				t.Fatalf("Normalize(%q) rejected", tc.raw)
			}
			if got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestNormalizeRejects(t *testing.T) {
	for _, raw := range []string{"", "abc", "+", "000", "+999 1234", ";;,", "5550100"} {
		if got, ok := Normalize(raw); ok {
			t.Fatalf("Normalize(%q) = %q, expected rejection", raw, got)
		}
	}
}

func TestNormalizeFirstRecognizedCandidateWins(t *testing.T) {
	got, ok := Normalize("not a phone; +44 20 7031 3000, +1 555 0100")
	if !ok {
		t.Fatal("expected a candidate to be accepted")
	}
	if got != "+442070313000" {
		t.Fatalf("expected first recognized candidate, got %q", got)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	normalizers := []*Normalizer{
		NewNormalizer(Options{}),
		NewNormalizer(Options{DefaultRegion: "us"}),
		NewNormalizer(Options{DefaultRegion: "US", Format: FormatE164}),
	}
	inputs := []string{"+1-555-0100", "001-555-0100", "555 0100", "+44 (0)20 7031 3000", "x;+1 650 253 0000"}

	for _, n := range normalizers {
		for _, raw := range inputs {
			first, ok := n.Normalize(raw)
			if !ok {
				continue
			}
			second, ok := n.Normalize(first)
			if !ok {
				t.Fatalf("re-normalizing %q (from %q) was rejected", first, raw)
			}
			if first != second {
				t.Fatalf("normalize not idempotent: %q -> %q -> %q", raw, first, second)
			}
		}
	}
}

func TestNormalizeStripsLeadingZerosWithDefaultRegion(t *testing.T) {
	n := NewNormalizer(Options{DefaultRegion: "US"})

	got, ok := n.Normalize("001-555-0100")
	if !ok {
		t.Fatal("expected national number to be accepted with a default region")
	}
	if got != "15550100" {
		t.Fatalf("expected leading zeros stripped, got %q", got)
	}

	got, ok = n.Normalize("555-0100")
	if !ok || got != "5550100" {
		t.Fatalf("expected 5550100, got %q ok=%v", got, ok)
	}
}

func TestNormalizeE164CollapsesEquivalentForms(t *testing.T) {
	n := NewNormalizer(Options{DefaultRegion: "US", Format: FormatE164})

	want := "+16502530000"
	for _, raw := range []string{"+1-650-253-0000", "650 253 0000", "(650) 253-0000", "+1 650.253.0000"} {
		got, ok := n.Normalize(raw)
		if !ok {
			t.Fatalf("Normalize(%q) rejected", raw)
		}
		if got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestNormalizeRequireValidNumber(t *testing.T) {
	n := NewNormalizer(Options{RequireValidNumber: true})

	if _, ok := n.Normalize("+1 555 0100"); ok {
		t.Fatal("expected short number to be rejected in strict mode")
	}
	got, ok := n.Normalize("+1 650 253 0000")
	if !ok {
		t.Fatal("expected valid number to be accepted in strict mode")
	}
	if got != "+16502530000" {
		t.Fatalf("unexpected canonical value %q", got)
	}
}

func TestClean(t *testing.T) {
	cases := map[string]string{
		"  +1 (555) 0100 ": "+15550100",
		"0044 20":          "4420",
		"+0044":            "+0044",
		"++12":             "+12",
		"tel:":             "",
		"0+":               "",
	}
	for in, want := range cases {
		if got := Clean(in); got != want {
			t.Fatalf("Clean(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNilNormalizerRejects(t *testing.T) {
	var n *Normalizer
	if _, ok := n.Normalize("+15550100"); ok {
		t.Fatal("expected nil normalizer to reject")
	}
}
