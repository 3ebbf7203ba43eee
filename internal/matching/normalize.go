package matching

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// PlaceholderDomain is the sentinel website the import feed assigns to
// businesses with no known site. It never matches anything, including
// itself.
const PlaceholderDomain = "example.com"

// minPhoneDigits guards the phone rule against short fragments matching
// by accident.
const minPhoneDigits = 7

// NormalizePhone reduces a phone number to its digits.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// phoneCanonical strips the common dialing prefixes from a digits-only
// number: the international 00 and any domestic trunk zeros.
func phoneCanonical(digits string) string {
	digits = strings.TrimPrefix(digits, "00")
	return strings.TrimLeft(digits, "0")
}

// MatchPhone reports whether two raw phone numbers identify the same
// line. Both are normalized to digits, stripped of dialing prefixes,
// and compared by containment; numbers shorter than minPhoneDigits
// never match.
func MatchPhone(a, b string) bool {
	da := phoneCanonical(NormalizePhone(a))
	db := phoneCanonical(NormalizePhone(b))
	if len(da) < minPhoneDigits || len(db) < minPhoneDigits {
		return false
	}
	return strings.Contains(da, db) || strings.Contains(db, da)
}

// RegistrableDomain extracts the lower-cased registrable domain from a
// website value: scheme, www prefix, path, query and port are stripped.
func RegistrableDomain(website string) string {
	d := strings.ToLower(strings.TrimSpace(website))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	for _, sep := range []string{"/", "?", "#"} {
		if i := strings.Index(d, sep); i >= 0 {
			d = d[:i]
		}
	}
	if i := strings.Index(d, ":"); i >= 0 {
		d = d[:i]
	}
	return d
}

// MatchDomain reports whether two websites share a registrable domain.
// Empty values and the placeholder sentinel never match.
func MatchDomain(a, b string) bool {
	da := RegistrableDomain(a)
	db := RegistrableDomain(b)
	if da == "" || db == "" || da == PlaceholderDomain || db == PlaceholderDomain {
		return false
	}
	return da == db
}

// NormalizeName lowers a business name, drops punctuation and collapses
// whitespace, so "STANDS BAY L.L.C." and "Stands Bay LLC" compare equal.
func NormalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// MatchNameStrict is the import-dedup name rule: exact equality of
// normalized names only, to bound false-merge risk during bulk import.
func MatchNameStrict(a, b string) bool {
	na, nb := NormalizeName(a), NormalizeName(b)
	return na != "" && na == nb
}

// MatchNamePermissive is the claim-context name rule: one normalized
// name containing the other in full also counts. Known precision
// tradeoff with generic names; kept deliberately.
func MatchNamePermissive(a, b string) bool {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

var diacriticFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldLocation lowers a city or country name and strips diacritics, so
// "Düsseldorf" routes the same as "Dusseldorf".
func FoldLocation(s string) string {
	folded, _, err := transform.String(diacriticFolder, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// LocationKey is the dedup key for service locations.
func LocationKey(city, country string) string {
	return FoldLocation(city) + "|" + FoldLocation(country)
}
