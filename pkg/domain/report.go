package domain

// ValidationOutcome is the verdict for one action.
type ValidationOutcome struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// OutcomeFromResult converts rule violations into an outcome: blocking
// violations become errors, warnings stay warnings, anything else is dropped.
func OutcomeFromResult(res Result) ValidationOutcome {
	return ValidationOutcome{
		Valid:    !res.HasBlocking(),
		Errors:   res.Messages(SeverityBlock),
		Warnings: res.Messages(SeverityWarn),
	}
}

// ActionIssue pairs an action with the validation messages it produced.
type ActionIssue struct {
	Action   Action   `json:"action"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Rejected reports whether the issue dropped the action.
func (i ActionIssue) Rejected() bool { return len(i.Errors) > 0 }

// AppliedMutation is an action that reached the store, with placeholders resolved.
type AppliedMutation struct {
	Action  Action `json:"action"`
	NewID   string `json:"newId,omitempty"`
	Summary string `json:"summary,omitempty"`
	// Fallback is set when a record placeholder resolved to the client's most
	// recent record instead of a binding made in this batch.
	Fallback bool `json:"fallback,omitempty"`
	// Changes lists the records the mutation created or updated, with their
	// values before and after.
	Changes []Change `json:"changes,omitempty"`
}

// FailedAction is an accepted action whose execution did not complete.
type FailedAction struct {
	Action  Action `json:"action"`
	Error   string `json:"error"`
	Skipped bool   `json:"skipped,omitempty"`
}

// MergeRecord describes a create+fill pair rewritten into an update.
type MergeRecord struct {
	Kind        RecordKind `json:"kind"`
	ClientID    string     `json:"clientId"`
	Placeholder string     `json:"placeholder"`
	ExistingID  string     `json:"existingId"`
	AddIndex    int        `json:"addIndex"`
	UpdateIndex int        `json:"updateIndex"`
}

// UnresolvedAddress notes an address the place lookup could not complete.
type UnresolvedAddress struct {
	ActionIndex int        `json:"actionIndex"`
	Kind        ActionKind `json:"kind"`
	Query       string     `json:"query"`
}

// ExecutionReport is the pipeline's output for one batch.
type ExecutionReport struct {
	BatchID    string              `json:"batchId"`
	Applied    []AppliedMutation   `json:"applied"`
	Failed     []FailedAction      `json:"failed,omitempty"`
	Issues     []ActionIssue       `json:"issues,omitempty"`
	Merged     []MergeRecord       `json:"merged,omitempty"`
	Unresolved []UnresolvedAddress `json:"unresolved,omitempty"`
	IDMap      map[string]string   `json:"idMap"`
}

// Rejected returns the issues that dropped their action.
func (r ExecutionReport) Rejected() []ActionIssue {
	var out []ActionIssue
	for _, issue := range r.Issues {
		if issue.Rejected() {
			out = append(out, issue)
		}
	}
	return out
}

// AppliedIndexes returns the raw batch positions of applied actions in order.
func (r ExecutionReport) AppliedIndexes() []int {
	out := make([]int, 0, len(r.Applied))
	for _, m := range r.Applied {
		out = append(out, m.Action.Index)
	}
	return out
}

// FailedIndexes returns the raw batch positions of failed actions in order.
func (r ExecutionReport) FailedIndexes() []int {
	out := make([]int, 0, len(r.Failed))
	for _, f := range r.Failed {
		out = append(out, f.Action.Index)
	}
	return out
}
