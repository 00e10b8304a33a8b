package model

// Action is the merge decision taken for one incoming row.
type Action string

// Merge actions.
const (
	ActionCreated  Action = "CREATED"
	ActionUpdated  Action = "UPDATED"
	ActionConflict Action = "CONFLICT"
	// ActionSkipped marks rows without any usable identity (blank phone,
	// labor ID and name). No record is created for them.
	ActionSkipped Action = "SKIPPED"
)

// MatchKey names the identity key that matched an existing record.
type MatchKey string

// Match keys in cascade priority order.
const (
	MatchPhone   MatchKey = "PHONE"
	MatchLaborID MatchKey = "LABOR_ID"
	MatchName    MatchKey = "NAME"
	MatchNone    MatchKey = "NONE"
)

// Data quality issues reported on outcomes.
const (
	IssuePhoneMalformed  = "phone_malformed"
	IssueDateUnparseable = "application_date_unparseable"
	IssueNoStrongKey     = "no_strong_key"
	IssueNoIdentity      = "no_identity"
)

// MergeOutcome reports what happened to one input row.
type MergeOutcome struct {
	Row           int      `json:"row"`
	Ref           string   `json:"ref,omitempty"`
	PoolID        string   `json:"pool_id,omitempty"`
	Action        Action   `json:"action"`
	MatchedBy     MatchKey `json:"matched_by"`
	ChangedFields []string `json:"changed_fields"`
	// ConflictField is the strong key that contradicted the matched record.
	ConflictField string `json:"conflict_field,omitempty"`
	// ConflictWith is set when the contradicting value belongs to another record.
	ConflictWith string   `json:"conflict_with,omitempty"`
	Issues       []string `json:"issues,omitempty"`
}

// Summary counts outcomes by action.
type Summary struct {
	Rows      int `json:"rows"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Conflicts int `json:"conflicts"`
	Skipped   int `json:"skipped"`
}

// Summarize aggregates outcomes into a batch summary.
func Summarize(outcomes []MergeOutcome) Summary {
	s := Summary{Rows: len(outcomes)}
	for i := range outcomes {
		switch outcomes[i].Action {
		case ActionCreated:
			s.Created++
		case ActionUpdated:
			s.Updated++
		case ActionConflict:
			s.Conflicts++
		case ActionSkipped:
			s.Skipped++
		}
	}
	return s
}
