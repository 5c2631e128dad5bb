// Package chat answers patient questions about the clinic's treatments, with
// a pre-computed FAQ layer in front of the LLM.
package chat

import (
	"regexp"
	"strings"
)

// FAQEntry represents a cached FAQ response.
type FAQEntry struct {
	Pattern  *regexp.Regexp
	Keywords []string // Alternative matching keywords
	Response string
}

// faqCache contains pre-computed responses for common clinic questions.
// These bypass the LLM for instant responses.
var faqCache = []FAQEntry{
	{
		Pattern:  regexp.MustCompile(`(?i)(book|schedule|make).*(appointment|visit|consultation)|how.*(book|appointment)`),
		Keywords: []string{"book", "appointment", "schedule", "how"},
		Response: `Booking is easy! Sign in, complete your profile, and pick any open time on the booking page. Appointments are one hour, Monday through Saturday between 9:00 and 17:00. You'll get an email as soon as the clinic confirms your request.`,
	},
	{
		Pattern:  regexp.MustCompile(`(?i)(open|opening|business|clinic)\s*(hour|time)|when.*(open|close)`),
		Keywords: []string{"hours", "open", "close", "when"},
		Response: `We're open Monday through Saturday, 9:00 to 17:00, with the last appointment starting at 16:00. We're closed on Sundays. Specific dates can be closed for holidays, so the booking page always shows what's actually available.`,
	},
	{
		Pattern:  regexp.MustCompile(`(?i)(cancel|reschedul|change).*(appointment|booking)`),
		Keywords: []string{"cancel", "reschedule", "appointment"},
		Response: `To cancel or reschedule, please contact the clinic directly and we'll reopen your slot. If your request hasn't been confirmed yet, you can simply book a different time and let us know.`,
	},
	{
		Pattern:  regexp.MustCompile(`(?i)(hydrafacial|hydra[\s-]?facial).*(chemical\s*peel|peel)|(chemical\s*peel|peel).*(hydrafacial|hydra[\s-]?facial)`),
		Keywords: []string{"hydrafacial", "peel", "difference", "vs", "versus", "compare"},
		Response: `Both refresh your skin, but they work differently:

A HydraFacial uses vortex technology with water and serums to cleanse and hydrate. It's gentle, has no downtime, and suits sensitive skin.

A chemical peel uses acids to exfoliate more deeply and improve tone and fine lines. Depending on the depth, there can be a few days of visible peeling.

Our team can recommend the right one for your skin at a consultation. Would you like to book one?`,
	},
	{
		Pattern:  regexp.MustCompile(`(?i)how long.*(botox|dysport).*(last|work|effect)`),
		Keywords: []string{"botox", "long", "last", "duration"},
		Response: `Botox typically lasts 3-4 months. You'll start seeing results within 3-7 days, with the full effect at about 2 weeks. Many patients book a maintenance visit every 3-4 months. Would you like to book an appointment?`,
	},
}

// CheckFAQCache looks for a matching FAQ response.
// Returns the response and true if found, or empty string and false if not.
func CheckFAQCache(message string) (string, bool) {
	message = strings.ToLower(strings.TrimSpace(message))
	if message == "" {
		return "", false
	}

	for _, faq := range faqCache {
		if faq.Pattern != nil && faq.Pattern.MatchString(message) {
			return faq.Response, true
		}

		// Fall back to keyword matching (need at least 2 keywords to match)
		if len(faq.Keywords) > 0 {
			matchCount := 0
			for _, kw := range faq.Keywords {
				if strings.Contains(message, kw) {
					matchCount++
				}
			}
			if matchCount >= 2 {
				return faq.Response, true
			}
		}
	}

	return "", false
}
