package core

// ContributionCatalog is the fixed, client-facing list of recognized
// contribution activities. It controls only display: credits passed to
// Validator.EarnContributionCredits are validated by value, not by
// whether the activity name appears here.
//
// Recovered from original_source/core.py's
// get_contribution_mining_activities.

// ContributionActivityInfo describes one catalog entry.
type ContributionActivityInfo struct {
	Activity    string  `json:"activity"`
	CreditRate  float64 `json:"credit_rate"`
	Description string  `json:"description"`
}

// ContributionCatalog lists the recognized activities and their nominal
// credit rates.
var ContributionCatalog = []ContributionActivityInfo{
	{Activity: "code_audit", CreditRate: 10.0, Description: "Reviewing and auditing contract or core code"},
	{Activity: "documentation", CreditRate: 5.0, Description: "Writing or improving documentation"},
	{Activity: "community_support", CreditRate: 3.0, Description: "Helping other participants in community channels"},
	{Activity: "bug_report", CreditRate: 8.0, Description: "Reporting a reproducible defect"},
	{Activity: "educational_content", CreditRate: 6.0, Description: "Producing tutorials or educational material"},
}
