package domain

// Outcome is the result class of handling one notification record.
type Outcome string

// Outcomes.
const (
	OutcomeIgnored        Outcome = "ignored"
	OutcomeExists         Outcome = "exists"
	OutcomeInserted       Outcome = "inserted"
	OutcomeRemovalIgnored Outcome = "removal-ignored"
	OutcomeFailed         Outcome = "failed"
)

// Result describes what the updater did with a record.
type Result struct {
	Outcome Outcome
	ItemID  string
	URI     string
}
