package leadscoring

import (
	"strings"

	"github.com/jordanlanch/estatecrm/pkg/schema"
)

// Scoring weights
const (
	BaseScore            = 50
	ScoreHasEmail        = 10
	ScoreHasPhone        = 10
	ScoreHasCity         = 5
	ScoreHasBudget       = 10
	ScoreHasTransaction  = 5
	ScoreUrgencyCritical = 15
	ScoreUrgencyHigh     = 10
	ScoreUrgencyMedium   = 5
	ScoreSourceReferral  = 10
	ScoreSourceInbound   = 5

	MinScore = 0
	MaxScore = 100
)

// Input holds the lead attributes the score depends on.
type Input struct {
	Email           string
	Phone           string
	City            string
	BudgetMin       *float64
	BudgetMax       *float64
	TransactionType schema.TransactionType
	Urgency         schema.Urgency
	Source          schema.LeadSource
}

// FromLead extracts the scoring input from a lead.
func FromLead(l *schema.Lead) Input {
	return Input{
		Email:           l.Email,
		Phone:           l.Phone,
		City:            l.City,
		BudgetMin:       l.BudgetMin,
		BudgetMax:       l.BudgetMax,
		TransactionType: l.TransactionType,
		Urgency:         l.Urgency,
		Source:          l.Source,
	}
}

// Breakdown returns the points contributed by each rule. Rules that did not
// apply are omitted; "base" is always present.
func Breakdown(in Input) map[string]int {
	b := map[string]int{"base": BaseScore}

	if present(in.Email) {
		b["email"] = ScoreHasEmail
	}
	if present(in.Phone) {
		b["phone"] = ScoreHasPhone
	}
	if present(in.City) {
		b["city"] = ScoreHasCity
	}
	if in.BudgetMin != nil || in.BudgetMax != nil {
		b["budget"] = ScoreHasBudget
	}
	if present(string(in.TransactionType)) {
		b["transaction_type"] = ScoreHasTransaction
	}
	if pts := urgencyBonus(in.Urgency); pts > 0 {
		b["urgency"] = pts
	}
	if pts := sourceBonus(in.Source); pts > 0 {
		b["source"] = pts
	}
	return b
}

// Score is the sum of Breakdown clamped to [0, 100].
func Score(in Input) int {
	total := 0
	for _, pts := range Breakdown(in) {
		total += pts
	}
	return clamp(total)
}

// ScoreLead computes the score of a stored lead.
func ScoreLead(l *schema.Lead) int {
	return Score(FromLead(l))
}

func urgencyBonus(u schema.Urgency) int {
	switch u {
	case schema.UrgencyCritical:
		return ScoreUrgencyCritical
	case schema.UrgencyHigh:
		return ScoreUrgencyHigh
	case schema.UrgencyMedium:
		return ScoreUrgencyMedium
	default:
		return 0
	}
}

func sourceBonus(s schema.LeadSource) int {
	switch s {
	case schema.SourceReferral:
		return ScoreSourceReferral
	case schema.SourceWebsiteForm, schema.SourceChatbot:
		return ScoreSourceInbound
	default:
		return 0
	}
}

func present(s string) bool {
	return strings.TrimSpace(s) != ""
}

func clamp(v int) int {
	if v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}
