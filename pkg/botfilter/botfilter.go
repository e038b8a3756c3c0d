package botfilter

import (
	"regexp"
	"strings"

	"unibox-backend/internal/platform"
)

// Confidence levels for classification signals.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceNone   = "none"
)

// Classification is the result of classifying one platform contact.
// Only high-confidence classifications should exclude a contact; medium
// signals are recorded but never block ingestion on their own.
type Classification struct {
	IsBot      bool
	Confidence string
	Signals    []string
}

// ShouldFilter reports whether the contact must be excluded from the graph.
func (c Classification) ShouldFilter() bool {
	return c.IsBot && c.Confidence == ConfidenceHigh
}

// Known automated sender local parts and domains. Address matches are high
// confidence: real humans do not send from these.
var (
	automatedLocalParts = map[string]bool{
		"noreply":      true,
		"no-reply":     true,
		"donotreply":   true,
		"do-not-reply": true,
		"notifications": true,
		"notification": true,
		"alerts":       true,
		"alert":        true,
		"mailer-daemon": true,
		"postmaster":   true,
		"bounce":       true,
		"support":      false, // support desks are often humans; name signal only
	}

	automatedDomains = []string{
		"notifications.google.com",
		"bounce.linkedin.com",
		"amazonses.com",
		"sendgrid.net",
		"mailgun.org",
		"mandrillapp.com",
	}

	// Name conventions are medium confidence only: "Buildbot Jenkins" is a
	// bot, but a human could be nicknamed "Bot".
	botNamePattern = regexp.MustCompile(`(?i)\b(bot|robot|automation|automated|mailer|daemon|bridge|webhook|integration)\b`)
)

// Classify runs the three signal families from most to least trusted.
func Classify(contact platform.Contact) Classification {
	// Explicit platform flags win outright.
	if contact.IsBot {
		return Classification{IsBot: true, Confidence: ConfidenceHigh, Signals: []string{"platform_is_bot_flag"}}
	}
	if contact.Deleted {
		return Classification{IsBot: true, Confidence: ConfidenceHigh, Signals: []string{"platform_deleted_flag"}}
	}

	var signals []string

	if contact.Email != "" {
		local, domain := splitAddress(contact.Email)
		if automatedLocalParts[local] {
			return Classification{
				IsBot:      true,
				Confidence: ConfidenceHigh,
				Signals:    []string{"automated_local_part:" + local},
			}
		}
		for _, d := range automatedDomains {
			if domain == d || strings.HasSuffix(domain, "."+d) {
				return Classification{
					IsBot:      true,
					Confidence: ConfidenceHigh,
					Signals:    []string{"automated_domain:" + d},
				}
			}
		}
	}

	if botNamePattern.MatchString(contact.Name) || botNamePattern.MatchString(contact.Handle) {
		signals = append(signals, "bot_name_pattern")
		return Classification{IsBot: true, Confidence: ConfidenceMedium, Signals: signals}
	}

	return Classification{Confidence: ConfidenceNone}
}

func splitAddress(email string) (local, domain string) {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email, ""
	}
	return email[:at], email[at+1:]
}
