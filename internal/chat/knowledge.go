package chat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/esthetix/clinic-portal/internal/treatments"
)

// scoredTreatment pairs a treatment with its relevance to a message.
type scoredTreatment struct {
	treatment treatments.Treatment
	score     int
}

// RelevantTreatments scores the catalog against the message and returns the
// top three matches. Name hits weigh most, then tagline, keywords, FAQ text,
// and side effects.
func RelevantTreatments(message string, catalog []treatments.Treatment) []treatments.Treatment {
	message = strings.ToLower(message)
	scored := make([]scoredTreatment, 0, len(catalog))

	for _, t := range catalog {
		score := 0
		if name := strings.ToLower(t.Name); name != "" && strings.Contains(message, name) {
			score += 10
		}
		if tagline := strings.ToLower(t.Tagline); tagline != "" && strings.Contains(message, tagline) {
			score += 5
		}
		for _, kw := range t.Keywords {
			if kw != "" && strings.Contains(message, strings.ToLower(kw)) {
				score += 3
			}
		}
		for _, faq := range t.FAQs {
			for _, word := range significantWords(faq.Question) {
				if strings.Contains(message, word) {
					score += 3
					break
				}
			}
		}
		for _, se := range t.SideEffects {
			for _, word := range significantWords(se) {
				if strings.Contains(message, word) {
					score += 2
					break
				}
			}
		}
		if score > 0 {
			scored = append(scored, scoredTreatment{treatment: t, score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > 3 {
		scored = scored[:3]
	}

	out := make([]treatments.Treatment, 0, len(scored))
	for _, s := range scored {
		out = append(out, s.treatment)
	}
	return out
}

// significantWords lowercases and keeps words long enough to be meaningful
// match targets.
func significantWords(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?")
		if len(f) >= 5 {
			out = append(out, f)
		}
	}
	return out
}

// BuildKnowledgeContext renders the relevant treatments into the system
// prompt's knowledge block.
func BuildKnowledgeContext(relevant []treatments.Treatment) string {
	if len(relevant) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Relevant treatments:\n")
	for _, t := range relevant {
		fmt.Fprintf(&b, "\n%s - %s\n%s\n", t.Name, t.Tagline, t.Description)
		if len(t.Benefits) > 0 {
			fmt.Fprintf(&b, "Benefits: %s\n", strings.Join(t.Benefits, ", "))
		}
		if len(t.SideEffects) > 0 {
			fmt.Fprintf(&b, "Possible side effects: %s\n", strings.Join(t.SideEffects, ", "))
		}
		for _, faq := range t.FAQs {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n", faq.Question, faq.Answer)
		}
	}
	return b.String()
}
