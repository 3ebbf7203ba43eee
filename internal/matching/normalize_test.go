package matching

import "testing"

func TestMatchPhone(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical international", "+971 50 123 4567", "+971501234567", true},
		{"local form contained in international", "+971 50 123 4567", "0501234567", true},
		{"double-zero prefix", "00971501234567", "+971 50 123 4567", true},
		{"different lines", "+971501234567", "+971509999999", false},
		{"too short never matches", "12345", "12345", false},
		{"short fragment of long number", "1234567", "123456", false},
		{"empty", "", "+971501234567", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchPhone(tt.a, tt.b); got != tt.want {
				t.Errorf("MatchPhone(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestRegistrableDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.standsbay.com/contact?ref=x", "standsbay.com"},
		{"http://standsbay.com", "standsbay.com"},
		{"standsbay.com:8080/about", "standsbay.com"},
		{"WWW.StandsBay.COM", "standsbay.com"},
		{"  https://expo-builders.ae  ", "expo-builders.ae"},
	}
	for _, tt := range tests {
		if got := RegistrableDomain(tt.in); got != tt.want {
			t.Errorf("RegistrableDomain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMatchDomain(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"same domain different urls", "https://www.standsbay.com/contact", "standsbay.com", true},
		{"different domains", "standsbay.com", "expo-builders.ae", false},
		{"placeholder never matches itself", "example.com", "https://www.example.com", false},
		{"placeholder never matches real", "example.com", "standsbay.com", false},
		{"empty never matches", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchDomain(tt.a, tt.b); got != tt.want {
				t.Errorf("MatchDomain(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"STANDS BAY L.L.C.", "stands bay llc"},
		{"Stands Bay LLC", "stands bay llc"},
		{"  Expo   Builders  ", "expo builders"},
		{"Messe-Bau GmbH & Co. KG", "messebau gmbh co kg"},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMatchNameStrictVsPermissive(t *testing.T) {
	// Punctuation variants are equal under both rules.
	if !MatchNameStrict("STANDS BAY L.L.C.", "Stands Bay LLC") {
		t.Error("strict rule should match punctuation variants")
	}

	// Containment only counts under the permissive rule.
	if MatchNameStrict("Stands Bay", "Stands Bay Exhibitions LLC") {
		t.Error("strict rule must not match by containment")
	}
	if !MatchNamePermissive("Stands Bay", "Stands Bay Exhibitions LLC") {
		t.Error("permissive rule should match by containment")
	}

	if MatchNameStrict("", "") {
		t.Error("empty names must never match")
	}
	if MatchNamePermissive("", "Stands Bay") {
		t.Error("empty names must never match permissively")
	}
}

func TestFoldLocation(t *testing.T) {
	if FoldLocation("Düsseldorf") != "dusseldorf" {
		t.Errorf("FoldLocation(Düsseldorf) = %q", FoldLocation("Düsseldorf"))
	}
	if FoldLocation("  DUBAI ") != "dubai" {
		t.Errorf("FoldLocation(DUBAI) = %q", FoldLocation("  DUBAI "))
	}
	if LocationKey("Düsseldorf", "Germany") != LocationKey("dusseldorf", "GERMANY") {
		t.Error("LocationKey should be fold-insensitive")
	}
}

func TestSameBusinessRulePriority(t *testing.T) {
	// Phone agreement wins even when names disagree entirely.
	a := Signals{Name: "Alpha Stands", Phone: "+971501234567", Website: "alpha.ae"}
	b := Signals{Name: "Totally Different", Phone: "0501234567", Website: "beta.ae"}
	if !SameBusiness(a, b, false) {
		t.Error("phone match should decide regardless of name")
	}

	// Domain agreement next.
	c := Signals{Name: "Alpha Stands", Website: "https://www.alpha.ae/contact"}
	d := Signals{Name: "Beta Stands", Website: "alpha.ae"}
	if !SameBusiness(c, d, false) {
		t.Error("domain match should decide regardless of name")
	}

	// Name rule only as last resort.
	e := Signals{Name: "Gamma Expo"}
	f := Signals{Name: "Gamma Expo International"}
	if SameBusiness(e, f, false) {
		t.Error("strict mode must not merge on name containment")
	}
	if !SameBusiness(e, f, true) {
		t.Error("permissive mode should merge on name containment")
	}
}
