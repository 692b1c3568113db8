package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Format selects how an accepted candidate is rendered.
type Format uint8

const (
	// FormatCleaned returns the cleaned input (digits and optional leading '+').
	FormatCleaned Format = iota
	// FormatE164 returns the parser's E.164 rendering of the number.
	FormatE164
)

func (f Format) String() string {
	switch f {
	case FormatCleaned:
		return "cleaned"
	case FormatE164:
		return "e164"
	default:
		return "unknown"
	}
}

const (
	unknownRegion       = "ZZ"
	nonGeographicRegion = "001"
)

// Options configures a [Normalizer].
type Options struct {
	// DefaultRegion is the ISO 3166-1 alpha-2 region assumed for numbers
	// written without a leading '+'. Empty means such numbers are rejected.
	DefaultRegion string
	// RequireValidNumber additionally requires the parser to classify the
	// number as valid for its region, not only to recognize the region.
	RequireValidNumber bool
	Format             Format
}

// Normalizer is immutable after construction and safe for concurrent use.
type Normalizer struct {
	opts Options
}

// NewNormalizer returns a normalizer for opts.
func NewNormalizer(opts Options) *Normalizer {
	opts.DefaultRegion = strings.ToUpper(strings.TrimSpace(opts.DefaultRegion))
	return &Normalizer{opts: opts}
}

var defaultNormalizer = NewNormalizer(Options{})

// Normalize normalizes raw with default options (no default region, cleaned format).
func Normalize(raw string) (string, bool) {
	return defaultNormalizer.Normalize(raw)
}

// Normalize returns the canonical phone identifier for the first candidate in
// raw that the parser recognizes, or false when none is recognized.
//
// Normalize is idempotent: feeding its output back in yields the same value.
func (n *Normalizer) Normalize(raw string) (string, bool) {
	if n == nil || raw == "" {
		return "", false
	}

	for _, candidate := range strings.FieldsFunc(raw, isCandidateSeparator) {
		cleaned := Clean(candidate)
		if cleaned == "" {
			continue
		}
		if out, ok := n.accept(cleaned); ok {
			return out, true
		}
	}
	return "", false
}

// Clean keeps ASCII digits and a leading '+', then strips leading zeros from
// numbers that do not start with '+'. It returns "" when nothing usable is left.
func Clean(candidate string) string {
	var b strings.Builder
	b.Grow(len(candidate))

	for i := 0; i < len(candidate); i++ {
		c := candidate[i]
		switch {
		case c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '+' && b.Len() == 0:
			b.WriteByte(c)
		}
	}

	cleaned := strings.TrimLeft(b.String(), "0")
	if cleaned == "+" {
		return ""
	}
	return cleaned
}

func (n *Normalizer) accept(cleaned string) (string, bool) {
	region := n.opts.DefaultRegion
	if strings.HasPrefix(cleaned, "+") {
		region = ""
	} else if region == "" {
		return "", false
	}

	num, err := phonenumbers.Parse(cleaned, region)
	if err != nil {
		return "", false
	}

	if !hasRegion(num) {
		return "", false
	}
	if n.opts.RequireValidNumber && !phonenumbers.IsValidNumber(num) {
		return "", false
	}

	if n.opts.Format == FormatE164 {
		return phonenumbers.Format(num, phonenumbers.E164), true
	}
	return cleaned, true
}

func hasRegion(num *phonenumbers.PhoneNumber) bool {
	region := phonenumbers.GetRegionCodeForNumber(num)
	if region == "" || region == unknownRegion {
		// Numbers too short to match a specific region still belong to the
		// region owning their calling code.
		region = phonenumbers.GetRegionCodeForCountryCode(int(num.GetCountryCode()))
	}
	return region != "" && region != unknownRegion && region != nonGeographicRegion
}

func isCandidateSeparator(r rune) bool {
	return r == ',' || r == ';'
}
