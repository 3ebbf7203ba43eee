package notify

import (
	"StandMatch/internal/core/domain"
	"strings"
	"testing"
)

func TestMaskPhone(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"+97141234567", "+97****567"},
		{"0501234567", "050****567"},
		{"12345", "*****"},
		{"", ""},
	}
	for _, tc := range testCases {
		if got := MaskPhone(tc.in); got != tc.want {
			t.Errorf("MaskPhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMaskEmail(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"info@acme.com", "i***@acme.com"},
		{"a@b.c", "a***@b.c"},
		{"@nodomain", "***"},
		{"not-an-email", "***"},
	}
	for _, tc := range testCases {
		if got := MaskEmail(tc.in); got != tc.want {
			t.Errorf("MaskEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMaskDestination_PicksMaskByChannel(t *testing.T) {
	if got := MaskDestination(domain.ChannelEmail, "info@acme.com"); got != "i***@acme.com" {
		t.Errorf("email mask = %q", got)
	}
	if got := MaskDestination(domain.ChannelPhone, "+97141234567"); got != "+97****567" {
		t.Errorf("phone mask = %q", got)
	}
}

func TestClaimCodeMessage_NeverLeaksDestination(t *testing.T) {
	msg := ClaimCodeMessage("Stands Bay", "424242", domain.ChallengeTTL)
	if !strings.Contains(msg, "424242") {
		t.Error("message must carry the code")
	}
	if !strings.Contains(msg, "15 minutes") {
		t.Errorf("message should state the expiry window: %q", msg)
	}
}

func TestLeadMessage_OmitsEmptyFields(t *testing.T) {
	lead := &domain.Lead{CompanyName: "Acme", City: "Berlin", Country: "Germany"}
	msg := LeadMessage(lead)
	if strings.Contains(msg, "Stand size") || strings.Contains(msg, "Budget") {
		t.Errorf("optional fields should be omitted when unset: %q", msg)
	}
	if strings.Contains(msg, "@") {
		t.Errorf("lead notification must never contain the contact email: %q", msg)
	}

	lead.StandSize = "6x6"
	lead.Budget = 25000
	msg = LeadMessage(lead)
	if !strings.Contains(msg, "6x6") || !strings.Contains(msg, "25000") {
		t.Errorf("optional fields missing: %q", msg)
	}
}
