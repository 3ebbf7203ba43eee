package notify

import (
	"StandMatch/internal/core/domain"
	"fmt"
	"strings"
	"time"
)

// MaskPhone hides the middle of a phone number for audit trails and
// public-facing reads: +971-4-1234567 -> +97****567.
func MaskPhone(phone string) string {
	if len(phone) < 7 {
		return strings.Repeat("*", len(phone))
	}
	return phone[:3] + "****" + phone[len(phone)-3:]
}

// MaskEmail hides most of the local part: info@acme.com -> i***@acme.com.
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// MaskDestination redacts a claim destination according to its channel.
func MaskDestination(channel domain.ClaimChannel, destination string) string {
	if channel == domain.ChannelEmail {
		return MaskEmail(destination)
	}
	return MaskPhone(destination)
}

// ClaimCodeMessage is the out-of-band text carrying a one-time claim code.
func ClaimCodeMessage(profileName, code string, ttl time.Duration) string {
	return fmt.Sprintf(
		"Your verification code for claiming the %s profile is %s. It expires in %d minutes.",
		profileName, code, int(ttl.Minutes()),
	)
}

// LeadMessage is the notification text sent to a matched builder.
func LeadMessage(lead *domain.Lead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New lead: %s is looking for a stand builder in %s, %s.", lead.CompanyName, lead.City, lead.Country)
	if lead.StandSize != "" {
		fmt.Fprintf(&b, " Stand size: %s.", lead.StandSize)
	}
	if lead.Budget > 0 {
		fmt.Fprintf(&b, " Budget: %d.", lead.Budget)
	}
	b.WriteString(" Open your dashboard to unlock the contact details.")
	return b.String()
}
