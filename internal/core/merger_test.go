package core

import (
	"testing"

	"mortgageintake/pkg/domain"
)

func TestMergeDuplicatesRewritesEmploymentPair(t *testing.T) {
	store := newTestStore()
	client := seedClient(t, store, "Jane", "Doe")
	existing := seedEmployment(t, store, client, "Acme Corp")

	actions := indexed(
		addRecord(domain.RecordEmployment, client, "e1"),
		updateClient(client, domain.ClientFields{Email: "jane@example.com"}),
		updateEmployment(client, "$e1", domain.EmploymentFields{EmployerName: "  ACME corp ", Position: "Engineer"}),
	)
	res := MergeDuplicates(actions, store.SnapshotView())

	if len(res.Actions) != 2 {
		t.Fatalf("expected 2 actions after merge, got %d", len(res.Actions))
	}
	first := res.Actions[0]
	if first.Kind != domain.KindUpdateEmploymentRecord {
		t.Fatalf("expected update at position of dropped create, got %s", first.Kind)
	}
	if first.RecordID() != existing {
		t.Fatalf("expected update to target %s, got %s", existing, first.RecordID())
	}
	if first.Index != 2 {
		t.Fatalf("expected rewritten update to keep its batch index, got %d", first.Index)
	}
	if res.Actions[1].Kind != domain.KindUpdateClient {
		t.Fatalf("expected unrelated action to keep its order, got %s", res.Actions[1].Kind)
	}
	if got := res.Aliases["$e1"]; got != existing {
		t.Fatalf("expected alias $e1 -> %s, got %q", existing, got)
	}
	if len(res.Merged) != 1 {
		t.Fatalf("expected one merge record, got %d", len(res.Merged))
	}
	m := res.Merged[0]
	if m.Kind != domain.RecordEmployment || m.ClientID != client || m.ExistingID != existing || m.AddIndex != 0 || m.UpdateIndex != 2 {
		t.Fatalf("unexpected merge record %+v", m)
	}
	// the input batch is left untouched
	if actions[2].RecordID() != "$e1" {
		t.Fatalf("input action was rewritten in place: %s", actions[2].RecordID())
	}
}

func TestMergeDuplicatesAssetTolerance(t *testing.T) {
	store := newTestStore()
	client := seedClient(t, store, "Jane", "Doe")
	existing := seedAsset(t, store, client, "checking", 5000)

	cases := []struct {
		name     string
		category string
		amount   float64
		merged   bool
	}{
		{"within tolerance", "checking", 5000.75, true},
		{"exact", " checking ", 5000, true},
		{"outside tolerance", "checking", 5001.5, false},
		{"category is case sensitive", "Checking", 5000, false},
		{"different category", "savings", 5000, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			actions := indexed(
				addRecord(domain.RecordAsset, client, "$a1"),
				updateAsset(client, "$a1", domain.AssetFields{Category: tc.category, Amount: ptrFloat(tc.amount)}),
			)
			res := MergeDuplicates(actions, store.SnapshotView())
			if tc.merged {
				if len(res.Actions) != 1 || res.Actions[0].RecordID() != existing {
					t.Fatalf("expected merge into %s, got %+v", existing, res.Actions)
				}
				return
			}
			if len(res.Actions) != 2 || len(res.Merged) != 0 || len(res.Aliases) != 0 {
				t.Fatalf("expected batch unchanged, got %+v", res)
			}
		})
	}
}

func TestMergeDuplicatesIncomeNeedsAmount(t *testing.T) {
	store := newTestStore()
	client := seedClient(t, store, "Jane", "Doe")
	existing := seedIncome(t, store, client, "Acme", 8500)

	withAmount := indexed(
		addRecord(domain.RecordActiveIncome, client, "$i1"),
		updateIncome(client, "$i1", domain.IncomeFields{CompanyName: "acme", MonthlyAmount: ptrFloat(8500.5)}),
	)
	res := MergeDuplicates(withAmount, store.SnapshotView())
	if len(res.Merged) != 1 || res.Merged[0].ExistingID != existing {
		t.Fatalf("expected income merge, got %+v", res.Merged)
	}

	withoutAmount := indexed(
		addRecord(domain.RecordActiveIncome, client, "$i1"),
		updateIncome(client, "$i1", domain.IncomeFields{CompanyName: "acme"}),
	)
	res = MergeDuplicates(withoutAmount, store.SnapshotView())
	if len(res.Merged) != 0 || len(res.Actions) != 2 {
		t.Fatalf("expected no merge without an amount, got %+v", res)
	}
}

func TestMergeDuplicatesMergesEachExistingRecordOnce(t *testing.T) {
	store := newTestStore()
	client := seedClient(t, store, "Jane", "Doe")
	existing := seedAsset(t, store, client, "checking", 5000)

	actions := indexed(
		addRecord(domain.RecordAsset, client, "$a1"),
		updateAsset(client, "$a1", domain.AssetFields{Category: "checking", Amount: ptrFloat(5000.2)}),
		addRecord(domain.RecordAsset, client, "$a2"),
		updateAsset(client, "$a2", domain.AssetFields{Category: "checking", Amount: ptrFloat(4999.9)}),
	)
	res := MergeDuplicates(actions, store.SnapshotView())
	if len(res.Merged) != 1 {
		t.Fatalf("expected a single merge, got %d", len(res.Merged))
	}
	if res.Merged[0].Placeholder != "$a1" || res.Merged[0].ExistingID != existing {
		t.Fatalf("expected first pair to merge, got %+v", res.Merged[0])
	}
	if len(res.Actions) != 3 {
		t.Fatalf("expected second pair to stay, got %d actions", len(res.Actions))
	}
	if res.Actions[1].Kind != domain.KindAddAsset || res.Actions[1].ReturnID != "$a2" {
		t.Fatalf("expected second create to remain, got %s", res.Actions[1])
	}
}

func TestMergeDuplicatesSkipsUnmergeablePairs(t *testing.T) {
	store := newTestStore()
	client := seedClient(t, store, "Jane", "Doe")
	seedEmployment(t, store, client, "Acme")

	cases := map[string][]Action{
		"placeholder client": indexed(
			addRecord(domain.RecordEmployment, "$c1", "$e1"),
			updateEmployment("$c1", "$e1", domain.EmploymentFields{EmployerName: "Acme"}),
		),
		"no return id": indexed(
			addRecord(domain.RecordEmployment, client, ""),
			updateEmployment(client, "$e1", domain.EmploymentFields{EmployerName: "Acme"}),
		),
		"fill for another client": indexed(
			addRecord(domain.RecordEmployment, client, "$e1"),
			updateEmployment("other", "$e1", domain.EmploymentFields{EmployerName: "Acme"}),
		),
		"fill before create": indexed(
			updateEmployment(client, "$e1", domain.EmploymentFields{EmployerName: "Acme"}),
			addRecord(domain.RecordEmployment, client, "$e1"),
		),
		"no matching employer": indexed(
			addRecord(domain.RecordEmployment, client, "$e1"),
			updateEmployment(client, "$e1", domain.EmploymentFields{EmployerName: "Globex"}),
		),
	}
	for name, actions := range cases {
		t.Run(name, func(t *testing.T) {
			res := MergeDuplicates(actions, store.SnapshotView())
			if len(res.Merged) != 0 || len(res.Actions) != len(actions) {
				t.Fatalf("expected no merge, got %+v", res)
			}
		})
	}
}

func TestMergeDuplicatesNilView(t *testing.T) {
	actions := indexed(addRecord(domain.RecordAsset, "c1", "$a1"))
	res := MergeDuplicates(actions, nil)
	if len(res.Actions) != 1 || res.Aliases == nil {
		t.Fatalf("expected pass-through with empty aliases, got %+v", res)
	}
}

type panickingView struct {
	StateView
}

func (panickingView) ListEmployment(string) []domain.EmploymentRecord { panic("lookup exploded") }

func TestMergeDuplicatesLookupFailureMeansNoDuplicate(t *testing.T) {
	store := newTestStore()
	client := seedClient(t, store, "Jane", "Doe")
	actions := indexed(
		addRecord(domain.RecordEmployment, client, "$e1"),
		updateEmployment(client, "$e1", domain.EmploymentFields{EmployerName: "Acme"}),
	)
	res := MergeDuplicates(actions, panickingView{StateView: store.SnapshotView()})
	if len(res.Merged) != 0 || len(res.Actions) != 2 {
		t.Fatalf("expected batch unchanged, got %+v", res)
	}
}
