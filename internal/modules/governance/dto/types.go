package dto

type VerdictOutput struct {
	Gate      string
	Passing   bool
	Critical  bool
	Status    string
	Value     string
	Threshold string
	Message   string
	Action    string
	Offending []string
}

type CheckOutput struct {
	Verdicts          []VerdictOutput
	Overall           string
	RecoveryFrom      string
	RecoveryState     string
	RecoverySteps     []string
	RemediationActive bool
}

// Blocked reports whether new sessions are refused.
func (c CheckOutput) Blocked() bool {
	return c.Overall == "BLOCKED"
}

type AdvanceInput struct {
	To string
}

type AdvanceOutput struct {
	Valid      bool
	From       string
	To         string
	Error      string
	Suggestion string
	Allowed    []string
}
