package leadscoring

import (
	"testing"

	"github.com/jordanlanch/estatecrm/pkg/schema"
	"github.com/stretchr/testify/assert"
)

func f(v float64) *float64 { return &v }

func TestScore_Examples(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want int
	}{
		{"empty lead is base", Input{}, 50},
		{"low urgency manual", Input{Urgency: schema.UrgencyLow, Source: schema.SourceManual}, 50},
		{"email only", Input{Email: "a@b.co"}, 60},
		{"contact complete", Input{Email: "a@b.co", Phone: "+12024561111", City: "Lima"}, 75},
		{"budget max only", Input{BudgetMax: f(1000)}, 60},
		{"both budget bounds count once", Input{BudgetMin: f(1), BudgetMax: f(2)}, 60},
		{"website form", Input{Source: schema.SourceWebsiteForm}, 55},
		{"chatbot", Input{Source: schema.SourceChatbot}, 55},
		{"referral", Input{Source: schema.SourceReferral}, 60},
		{"medium urgency", Input{Urgency: schema.UrgencyMedium}, 55},
		{"high urgency", Input{Urgency: schema.UrgencyHigh}, 60},
		{
			name: "everything clamps to 100",
			in: Input{
				Email: "a@b.co", Phone: "1", City: "x", BudgetMin: f(1),
				TransactionType: schema.TransactionSale, Urgency: schema.UrgencyCritical, Source: schema.SourceReferral,
			},
			want: 100,
		},
		{"whitespace is absent", Input{Email: "  ", City: "\t"}, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.in))
		})
	}
}

func TestScore_AlwaysInRange(t *testing.T) {
	emails := []string{"", "x@y.z"}
	budgets := []*float64{nil, f(100)}
	txs := []schema.TransactionType{"", schema.TransactionRent}
	sources := []schema.LeadSource{schema.SourceManual, schema.SourceReferral, schema.SourceChatbot, schema.SourceImport}

	for _, email := range emails {
		for _, budget := range budgets {
			for _, tx := range txs {
				for _, u := range schema.Urgencies {
					for _, src := range sources {
						s := Score(Input{Email: email, Phone: email, City: email, BudgetMin: budget, TransactionType: tx, Urgency: u, Source: src})
						assert.GreaterOrEqual(t, s, MinScore)
						assert.LessOrEqual(t, s, MaxScore)
					}
				}
			}
		}
	}
}

func TestScore_Monotonic(t *testing.T) {
	base := Input{Urgency: schema.UrgencyLow, Source: schema.SourceManual}
	prev := Score(base)

	steps := []func(*Input){
		func(in *Input) { in.Email = "a@b.co" },
		func(in *Input) { in.Phone = "+12024561111" },
		func(in *Input) { in.City = "Quito" },
		func(in *Input) { in.BudgetMin = f(500) },
		func(in *Input) { in.Urgency = schema.UrgencyMedium },
		func(in *Input) { in.Urgency = schema.UrgencyHigh },
		func(in *Input) { in.Source = schema.SourceWebsiteForm },
		func(in *Input) { in.Source = schema.SourceReferral },
		func(in *Input) { in.Urgency = schema.UrgencyCritical },
	}
	for i, step := range steps {
		step(&base)
		next := Score(base)
		assert.GreaterOrEqual(t, next, prev, "step %d decreased the score", i)
		prev = next
	}
}

func TestBreakdown(t *testing.T) {
	b := Breakdown(Input{Email: "a@b.co", Urgency: schema.UrgencyHigh, Source: schema.SourceReferral})
	assert.Equal(t, map[string]int{"base": 50, "email": 10, "urgency": 10, "source": 10}, b)
}

func TestScoreLead_UrgencyIsIndependent(t *testing.T) {
	low := &schema.Lead{Score: 25, Urgency: schema.UrgencyLow}
	critical := &schema.Lead{Score: 90, Urgency: schema.UrgencyCritical}

	ScoreLead(low)
	ScoreLead(critical)

	assert.Equal(t, schema.UrgencyLow, low.Urgency)
	assert.Equal(t, schema.UrgencyCritical, critical.Urgency)
}
