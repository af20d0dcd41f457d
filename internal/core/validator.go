package core

import (
	"context"
	"fmt"

	"mortgageintake/pkg/domain"
)

// Validator applies the rules engine to individual actions.
type Validator struct {
	engine *RulesEngine
}

// NewValidator wraps engine. A nil engine uses NewDefaultRulesEngine.
func NewValidator(engine *RulesEngine) *Validator {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return &Validator{engine: engine}
}

// Validate evaluates every rule against action. Blocking violations become
// errors and warnings are kept; a failing or panicking rule is reported as an
// error rather than returned. Kinds no rule recognises are valid.
func (v *Validator) Validate(ctx context.Context, action Action, view StateView) (out ValidationOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = ValidationOutcome{Valid: false, Errors: []string{fmt.Sprintf("rule evaluation panicked: %v", r)}}
		}
	}()
	res, err := v.engine.Evaluate(ctx, view, action)
	if err != nil {
		return ValidationOutcome{Valid: false, Errors: []string{fmt.Sprintf("rule evaluation failed: %v", err)}}
	}
	return domain.OutcomeFromResult(res)
}

// ValidateAll partitions actions into the accepted list, in order, and the
// issues raised for rejected or warned actions.
func (v *Validator) ValidateAll(ctx context.Context, actions []Action, view StateView) ([]Action, []ActionIssue) {
	accepted := make([]Action, 0, len(actions))
	var issues []ActionIssue
	for _, a := range actions {
		out := v.Validate(ctx, a, view)
		if len(out.Errors) > 0 || len(out.Warnings) > 0 {
			issues = append(issues, ActionIssue{Action: a, Errors: out.Errors, Warnings: out.Warnings})
		}
		if out.Valid {
			accepted = append(accepted, a)
		}
	}
	return accepted, issues
}
