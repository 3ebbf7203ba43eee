package matching

import "StandMatch/internal/core/domain"

// Signals are the identity signals extracted from a candidate record or
// profile, fed to the rule list.
type Signals struct {
	Name    string
	Phone   string
	Website string
}

// ProfileSignals pulls the identity signals out of an existing profile.
func ProfileSignals(p *domain.Profile) Signals {
	return Signals{
		Name:    p.DisplayName,
		Phone:   p.Contact.Phone,
		Website: p.Contact.Website,
	}
}

// SameBusiness runs the deterministic rule list in priority order; the
// first rule that fires wins. Higher-precision signals come first so a
// permissive name rule can never override a phone or domain signal.
// permissiveName selects the claim-context name rule (containment) over
// the import-dedup rule (exact equality).
func SameBusiness(a, b Signals, permissiveName bool) bool {
	if MatchPhone(a.Phone, b.Phone) {
		return true
	}
	if MatchDomain(a.Website, b.Website) {
		return true
	}
	if permissiveName {
		return MatchNamePermissive(a.Name, b.Name)
	}
	return MatchNameStrict(a.Name, b.Name)
}
