package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"mortgageintake/pkg/domain"
)

// Executor applies accepted actions in order, binding placeholders to the ids
// the mutator returns.
type Executor struct {
	mutator Mutator
	logger  Logger
	// claimed holds placeholders owned by creating actions of the raw batch,
	// including creates dropped before execution.
	claimed map[string]int
}

// NewExecutor constructs an executor over mutator.
func NewExecutor(mutator Mutator, logger Logger) *Executor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Executor{mutator: mutator, logger: logger}
}

// idMap is the per-batch placeholder binding table. Bindings are write-once.
type idMap map[string]string

func (m idMap) bind(placeholder, id string) error {
	if prev, ok := m[placeholder]; ok {
		return fmt.Errorf("%w: %s is bound to %s", domain.ErrPlaceholderRebound, placeholder, prev)
	}
	m[placeholder] = id
	return nil
}

// Execute walks actions in order. Per-action failures are recorded in the
// report and execution continues; only programmer errors are returned. aliases
// pre-binds placeholders whose create was merged into an existing record.
func (e *Executor) Execute(ctx context.Context, actions []Action, aliases map[string]string) (ExecutionReport, error) {
	report := ExecutionReport{IDMap: map[string]string{}}
	ids := idMap(report.IDMap)
	for ph, id := range aliases {
		if err := ids.bind(domain.NormalizePlaceholder(ph), id); err != nil {
			return report, err
		}
	}
	claimed, err := checkClaims(actions, ids)
	if err != nil {
		return report, err
	}
	for ph, idx := range e.claimed {
		if _, ok := claimed[ph]; !ok {
			claimed[ph] = idx
		}
	}

	for i, action := range actions {
		if err := ctx.Err(); err != nil {
			for _, rest := range actions[i:] {
				report.Failed = append(report.Failed, domain.FailedAction{Action: rest, Error: err.Error(), Skipped: true})
			}
			e.logger.Warn("batch execution interrupted", "remaining", len(actions)-i, "error", err)
			break
		}
		if action.Params == nil {
			return report, fmt.Errorf("%w: %s has no params", domain.ErrMalformedAction, action)
		}
		if !action.Kind.Known() {
			e.fail(&report, action, fmt.Errorf("unsupported action kind %q", action.Kind))
			continue
		}

		resolved := action.Clone()
		fallback, err := e.resolveRefs(ctx, resolved, ids, claimed)
		if err != nil {
			e.fail(&report, action, err)
			continue
		}
		actx, changes := withChangeLog(ctx)
		newID, err := e.apply(actx, resolved)
		if err != nil {
			if domain.IsProgrammerError(err) {
				return report, err
			}
			e.fail(&report, resolved, err)
			continue
		}
		if ph := domain.NormalizePlaceholder(resolved.ReturnID); ph != "" && newID != "" {
			if err := ids.bind(ph, newID); err != nil {
				return report, err
			}
		}
		report.Applied = append(report.Applied, domain.AppliedMutation{
			Action:   resolved,
			NewID:    newID,
			Summary:  e.summarize(ctx, resolved, newID),
			Fallback: fallback,
			Changes:  changes.changes,
		})
	}
	return report, nil
}

// claimPlaceholders maps each placeholder to the creating action that claims
// it. Two creates claiming one placeholder is a programmer error.
func claimPlaceholders(actions []Action) (map[string]int, error) {
	return checkClaims(actions, nil)
}

// checkClaims rejects a batch in which two creating actions claim the same
// placeholder, or claim one already bound, before anything is mutated.
func checkClaims(actions []Action, bound idMap) (map[string]int, error) {
	claimed := make(map[string]int, len(actions))
	for _, a := range actions {
		ph := domain.NormalizePlaceholder(a.ReturnID)
		if ph == "" || !a.Kind.Creates() {
			continue
		}
		if _, ok := bound[ph]; ok {
			return nil, fmt.Errorf("%w: %s claimed by %s is already bound", domain.ErrPlaceholderRebound, ph, a)
		}
		if prev, ok := claimed[ph]; ok {
			return nil, fmt.Errorf("%w: %s claimed by actions #%d and #%d", domain.ErrPlaceholderRebound, ph, prev, a.Index)
		}
		claimed[ph] = a.Index
	}
	return claimed, nil
}

func (e *Executor) fail(report *ExecutionReport, action Action, err error) {
	e.logger.Warn("action failed", "action", action.String(), "error", err)
	report.Failed = append(report.Failed, domain.FailedAction{Action: action, Error: err.Error()})
}

// resolveRefs rewrites placeholder references in place. Client references are
// resolved first so the record fallback can scope by the real client id. The
// fallback only serves placeholders no create in the batch claimed: a claimed
// placeholder left unbound means its create did not apply.
func (e *Executor) resolveRefs(ctx context.Context, action Action, ids idMap, claimed map[string]int) (bool, error) {
	fallback := false
	for _, ref := range action.Params.Refs() {
		raw := *ref.Value
		if !domain.IsPlaceholder(raw) {
			continue
		}
		ph := domain.NormalizePlaceholder(raw)
		if id, ok := ids[ph]; ok {
			*ref.Value = id
			continue
		}
		if idx, ok := claimed[ph]; ok {
			return false, fmt.Errorf("%w: %s %s belongs to action #%d, which did not apply", domain.ErrUnresolvedReference, ref.Field, ph, idx)
		}
		if ref.Role == domain.RefClient {
			return false, fmt.Errorf("%w: %s %s", domain.ErrUnresolvedReference, ref.Field, ph)
		}
		id, err := e.mostRecent(ctx, action.ClientID(), ref.Kind)
		if err != nil {
			return false, fmt.Errorf("%w: %s %s: %v", domain.ErrUnresolvedReference, ref.Field, ph, err)
		}
		e.logger.Info("placeholder resolved to most recent record", "placeholder", ph, "kind", ref.Kind, "record", id)
		*ref.Value = id
		fallback = true
	}
	return fallback, nil
}

// mostRecent returns the last record of kind in the client's insertion order.
func (e *Executor) mostRecent(ctx context.Context, clientID string, kind RecordKind) (string, error) {
	if clientID == "" || domain.IsPlaceholder(clientID) {
		return "", errors.New("no client to scope the fallback")
	}
	if kind.Entity() == "" {
		return "", fmt.Errorf("unknown record kind %q", kind)
	}
	refs, err := e.mutator.ListRecords(ctx, clientID, kind)
	if err != nil {
		return "", err
	}
	if len(refs) == 0 {
		return "", fmt.Errorf("client %s has no %s records", clientID, kind)
	}
	return refs[len(refs)-1].ID, nil
}

// apply invokes the mutation for one resolved action. A panicking mutator is
// contained to the action.
func (e *Executor) apply(ctx context.Context, action Action) (newID string, err error) {
	defer func() {
		if r := recover(); r != nil {
			newID, err = "", fmt.Errorf("mutation panicked: %v", r)
		}
	}()
	m := e.mutator
	switch p := action.Params.(type) {
	case *domain.AddClientParams:
		return m.AddClient(ctx, p.Role, p.ClientFields)
	case *domain.UpdateClientParams:
		return "", m.UpdateClient(ctx, p.ClientID, p.Updates)
	case *domain.AddRecordParams:
		switch p.Record {
		case domain.RecordEmployment:
			return m.AddEmploymentRecord(ctx, p.ClientID)
		case domain.RecordActiveIncome:
			return m.AddActiveIncome(ctx, p.ClientID)
		case domain.RecordAsset:
			return m.AddAsset(ctx, p.ClientID)
		case domain.RecordRealEstate:
			return m.AddRealEstateRecord(ctx, p.ClientID)
		default:
			return "", fmt.Errorf("%w: cannot add %q records", domain.ErrMalformedAction, p.Record)
		}
	case *domain.UpdateEmploymentParams:
		return "", m.UpdateEmploymentRecord(ctx, p.ClientID, p.RecordID, p.Updates)
	case *domain.UpdateIncomeParams:
		return "", m.UpdateActiveIncome(ctx, p.ClientID, p.RecordID, p.Updates)
	case *domain.UpdateAssetParams:
		return "", m.UpdateAsset(ctx, p.ClientID, p.RecordID, p.Updates)
	case *domain.UpdateRealEstateParams:
		return "", m.UpdateRealEstateRecord(ctx, p.ClientID, p.RecordID, p.Updates)
	case *domain.SetSharedOwnersParams:
		return "", m.SetSharedOwners(ctx, p.RecordKind, p.RecordID, p.SharedClientIDs)
	case *domain.UpdateAddressParams:
		return "", m.UpdateAddressData(ctx, p.ClientID, p.Data)
	case *domain.AddFormerAddressParams:
		return m.AddFormerAddress(ctx, p.ClientID, p.Address)
	default:
		return "", fmt.Errorf("unsupported action kind %q", action.Kind)
	}
}

// summarize renders a one-line description of an applied action. It is
// cosmetic: any failure yields an empty summary.
func (e *Executor) summarize(ctx context.Context, action Action, newID string) (summary string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug("summary failed", "action", action.String(), "panic", r)
			summary = ""
		}
	}()
	who := e.clientName(ctx, action.ClientID())
	switch p := action.Params.(type) {
	case *domain.AddClientParams:
		name := domain.JoinNonEmpty(" ", p.FirstName, p.LastName)
		if name == "" {
			name = "client " + newID
		}
		return fmt.Sprintf("Added %s %s", roleLabel(p.Role), name)
	case *domain.UpdateClientParams:
		return fmt.Sprintf("Updated %s: %s", who, strings.Join(clientFieldNames(p.Updates), ", "))
	case *domain.AddRecordParams:
		return fmt.Sprintf("Added %s record for %s", recordLabel(p.Record), who)
	case *domain.UpdateEmploymentParams:
		return withDetails(fmt.Sprintf("Updated employment for %s", who), p.Updates.EmployerName, p.Updates.Position, monthly(p.Updates.GrossMonthlyIncome))
	case *domain.UpdateIncomeParams:
		return withDetails(fmt.Sprintf("Updated income for %s", who), p.Updates.CompanyName, p.Updates.IncomeType, monthly(p.Updates.MonthlyAmount))
	case *domain.UpdateAssetParams:
		return withDetails(fmt.Sprintf("Updated asset for %s", who), p.Updates.Category, p.Updates.Institution, money(p.Updates.Amount))
	case *domain.UpdateRealEstateParams:
		var where string
		if p.Updates.Address != nil {
			where = p.Updates.Address.OneLine()
		}
		value := money(p.Updates.PropertyValue)
		if value != "" {
			value = "valued " + value
		}
		return withDetails(fmt.Sprintf("Updated property for %s", who), where, p.Updates.Status, value)
	case *domain.SetSharedOwnersParams:
		names := make([]string, 0, len(p.SharedClientIDs))
		for _, id := range p.SharedClientIDs {
			names = append(names, e.clientName(ctx, id))
		}
		return fmt.Sprintf("Shared %s of %s with %s", recordLabel(p.RecordKind), who, strings.Join(names, ", "))
	case *domain.UpdateAddressParams:
		return withDetails(fmt.Sprintf("Updated present address for %s", who), p.Data.Addr.OneLine())
	case *domain.AddFormerAddressParams:
		return withDetails(fmt.Sprintf("Added former address for %s", who), p.Address.Addr.OneLine())
	default:
		return ""
	}
}

func (e *Executor) clientName(ctx context.Context, clientID string) string {
	if clientID == "" {
		return "unknown client"
	}
	if c, ok := e.mutator.GetClient(ctx, clientID); ok && c.Name != "" {
		return c.Name
	}
	return "client " + clientID
}

func roleLabel(role string) string {
	if role == "co_borrower" {
		return "co-borrower"
	}
	return "borrower"
}

func recordLabel(kind RecordKind) string {
	switch kind {
	case domain.RecordEmployment:
		return "employment"
	case domain.RecordActiveIncome:
		return "income"
	case domain.RecordAsset:
		return "asset"
	case domain.RecordRealEstate:
		return "property"
	case domain.RecordFormerAddress:
		return "former address"
	default:
		return string(kind)
	}
}

func clientFieldNames(f domain.ClientFields) []string {
	var names []string
	for _, field := range []struct {
		name string
		set  bool
	}{
		{"first name", f.FirstName != ""},
		{"middle name", f.MiddleName != ""},
		{"last name", f.LastName != ""},
		{"suffix", f.Suffix != ""},
		{"email", f.Email != ""},
		{"phone", f.Phone != ""},
		{"SSN", f.SSN != ""},
		{"date of birth", f.DateOfBirth != ""},
		{"marital status", f.MaritalStatus != ""},
		{"citizenship", f.Citizenship != ""},
		{"dependents", f.Dependents != nil},
	} {
		if field.set {
			names = append(names, field.name)
		}
	}
	if len(names) == 0 {
		names = append(names, "no fields")
	}
	return names
}

func withDetails(head string, details ...string) string {
	if d := domain.JoinNonEmpty(", ", details...); d != "" {
		return head + ": " + d
	}
	return head
}

func money(v *float64) string {
	if v == nil {
		return ""
	}
	return "$" + humanize.CommafWithDigits(*v, 2)
}

func monthly(v *float64) string {
	if m := money(v); m != "" {
		return m + "/mo"
	}
	return ""
}
