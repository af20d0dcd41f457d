package core

import (
	"math"
	"strings"

	"golang.org/x/text/cases"

	"mortgageintake/pkg/domain"
)

// AmountTolerance is the largest difference between two monetary amounts that
// still counts as the same value when matching duplicates.
const AmountTolerance = 1.0

// mergeKey is the matching key extracted from an update's fields.
type mergeKey struct {
	name   string
	amount *float64
}

// mergeCandidate is an existing record with its key.
type mergeCandidate struct {
	id  string
	key mergeKey
}

// mergeRule describes how one record kind is deduplicated: which add/update
// pair it applies to, how the matching key is read from the update and from
// existing records, and how two keys compare.
type mergeRule struct {
	record   RecordKind
	add      ActionKind
	update   ActionKind
	extract  func(Params) (mergeKey, bool)
	existing func(view StateView, clientID string) []mergeCandidate
	match    func(proposed, existing mergeKey) bool
}

var mergeRules = []mergeRule{
	{
		record: domain.RecordEmployment,
		add:    domain.KindAddEmploymentRecord,
		update: domain.KindUpdateEmploymentRecord,
		extract: func(p Params) (mergeKey, bool) {
			u, ok := p.(*domain.UpdateEmploymentParams)
			if !ok || strings.TrimSpace(u.Updates.EmployerName) == "" {
				return mergeKey{}, false
			}
			return mergeKey{name: u.Updates.EmployerName}, true
		},
		existing: func(view StateView, clientID string) []mergeCandidate {
			var out []mergeCandidate
			for _, r := range view.ListEmployment(clientID) {
				out = append(out, mergeCandidate{id: r.ID, key: mergeKey{name: r.EmployerName}})
			}
			return out
		},
		match: namesMatch,
	},
	{
		record: domain.RecordAsset,
		add:    domain.KindAddAsset,
		update: domain.KindUpdateAsset,
		extract: func(p Params) (mergeKey, bool) {
			u, ok := p.(*domain.UpdateAssetParams)
			if !ok || strings.TrimSpace(u.Updates.Category) == "" || u.Updates.Amount == nil {
				return mergeKey{}, false
			}
			return mergeKey{name: u.Updates.Category, amount: u.Updates.Amount}, true
		},
		existing: func(view StateView, clientID string) []mergeCandidate {
			var out []mergeCandidate
			for _, r := range view.ListAssets(clientID) {
				out = append(out, mergeCandidate{id: r.ID, key: mergeKey{name: r.Category, amount: r.Amount}})
			}
			return out
		},
		match: func(proposed, existing mergeKey) bool {
			return strings.TrimSpace(proposed.name) == strings.TrimSpace(existing.name) && amountsMatch(proposed.amount, existing.amount)
		},
	},
	{
		record: domain.RecordActiveIncome,
		add:    domain.KindAddActiveIncome,
		update: domain.KindUpdateActiveIncome,
		extract: func(p Params) (mergeKey, bool) {
			u, ok := p.(*domain.UpdateIncomeParams)
			if !ok || strings.TrimSpace(u.Updates.CompanyName) == "" || u.Updates.MonthlyAmount == nil {
				return mergeKey{}, false
			}
			return mergeKey{name: u.Updates.CompanyName, amount: u.Updates.MonthlyAmount}, true
		},
		existing: func(view StateView, clientID string) []mergeCandidate {
			var out []mergeCandidate
			for _, r := range view.ListActiveIncome(clientID) {
				out = append(out, mergeCandidate{id: r.ID, key: mergeKey{name: r.CompanyName, amount: r.MonthlyAmount}})
			}
			return out
		},
		match: func(proposed, existing mergeKey) bool {
			return namesMatch(proposed, existing) && amountsMatch(proposed.amount, existing.amount)
		},
	},
}

func foldName(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

func namesMatch(proposed, existing mergeKey) bool {
	name := foldName(proposed.name)
	return name != "" && name == foldName(existing.name)
}

func amountsMatch(a, b *float64) bool {
	if a == nil || b == nil {
		return false
	}
	return math.Abs(*a-*b) <= AmountTolerance
}

// MergeResult is the outcome of duplicate detection over one batch.
type MergeResult struct {
	Actions []Action
	Merged  []domain.MergeRecord
	// Aliases maps each dropped placeholder to the existing record it now
	// stands for, so later references in the batch still resolve.
	Aliases map[string]string
}

// MergeDuplicates rewrites create+fill pairs whose fill matches a record the
// client already has into a single update against that record. The update is
// emitted at the position of the dropped create; everything else keeps its
// order. Lookup failures count as "no duplicate".
func MergeDuplicates(actions []Action, view StateView) MergeResult {
	res := MergeResult{Aliases: map[string]string{}}
	if view == nil {
		res.Actions = append([]Action(nil), actions...)
		return res
	}
	byAdd := make(map[ActionKind]mergeRule, len(mergeRules))
	for _, rule := range mergeRules {
		byAdd[rule.add] = rule
	}

	consumed := make(map[int]bool)
	replaced := make(map[int]Action)
	processed := make(map[string]bool)

	for i, add := range actions {
		rule, ok := byAdd[add.Kind]
		if !ok || add.ReturnID == "" || consumed[i] {
			continue
		}
		clientID := add.ClientID()
		if clientID == "" || domain.IsPlaceholder(clientID) {
			continue
		}
		j, ok := findFill(actions, i, rule.update, add.ReturnID, clientID, consumed)
		if !ok {
			continue
		}
		existingID, ok := findExisting(rule, actions[j].Params, view, clientID)
		if !ok {
			continue
		}
		// Keyed by the matched record rather than the proposed key so two
		// proposals that both fall within tolerance of it merge only once.
		// The second proposal stays a separate add, even when its key differs
		// from the first; a distinct record is preferred over folding two
		// different proposals into one row.
		marker := string(rule.record) + "|" + clientID + "|" + existingID
		if processed[marker] {
			continue
		}
		processed[marker] = true

		rewritten := actions[j].Clone()
		for _, ref := range rewritten.Params.Refs() {
			if ref.Role == domain.RefRecord {
				*ref.Value = existingID
			}
		}
		replaced[i] = rewritten
		consumed[j] = true
		res.Aliases[add.ReturnID] = existingID
		res.Merged = append(res.Merged, domain.MergeRecord{
			Kind:        rule.record,
			ClientID:    clientID,
			Placeholder: add.ReturnID,
			ExistingID:  existingID,
			AddIndex:    add.Index,
			UpdateIndex: actions[j].Index,
		})
	}

	res.Actions = make([]Action, 0, len(actions)-len(consumed))
	for i, a := range actions {
		if consumed[i] {
			continue
		}
		if r, ok := replaced[i]; ok {
			res.Actions = append(res.Actions, r)
			continue
		}
		res.Actions = append(res.Actions, a)
	}
	return res
}

// findFill returns the first unconsumed update after position i that fills
// placeholder for the same client.
func findFill(actions []Action, i int, kind ActionKind, placeholder, clientID string, consumed map[int]bool) (int, bool) {
	for j := i + 1; j < len(actions); j++ {
		candidate := actions[j]
		if consumed[j] || candidate.Kind != kind || candidate.Params == nil {
			continue
		}
		if domain.NormalizePlaceholder(candidate.RecordID()) != placeholder {
			continue
		}
		if c := candidate.ClientID(); c != "" && c != clientID {
			continue
		}
		return j, true
	}
	return 0, false
}

func findExisting(rule mergeRule, params Params, view StateView, clientID string) (id string, found bool) {
	defer func() {
		if recover() != nil {
			id, found = "", false
		}
	}()
	key, ok := rule.extract(params)
	if !ok {
		return "", false
	}
	for _, candidate := range rule.existing(view, clientID) {
		if rule.match(key, candidate.key) {
			return candidate.id, true
		}
	}
	return "", false
}
