package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"mortgageintake/internal/infra/persistence/memory"
	"mortgageintake/pkg/domain"
)

func ptrFloat(v float64) *float64 { return &v }

func ptrInt(v int) *int { return &v }

// sequentialIDs returns ids of the form prefix-1, prefix-2, ...
func sequentialIDs(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func fixedClock() Clock {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return ClockFunc(func() time.Time { return t0 })
}

func newTestStore() *memory.Store {
	return memory.NewStore(
		memory.WithIDGenerator(sequentialIDs("rec")),
		memory.WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }),
	)
}

// seedClient creates a client directly in the store and returns its id.
func seedClient(t *testing.T, store PersistentStore, first, last string) string {
	t.Helper()
	var id string
	err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		c, err := tx.CreateClient(domain.Client{ClientFields: domain.ClientFields{FirstName: first, LastName: last}, Role: "borrower"})
		id = c.ID
		return err
	})
	if err != nil {
		t.Fatalf("seed client: %v", err)
	}
	return id
}

func seedEmployment(t *testing.T, store PersistentStore, clientID, employer string) string {
	t.Helper()
	var id string
	err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		r, err := tx.CreateEmployment(domain.EmploymentRecord{ClientID: clientID, EmploymentFields: domain.EmploymentFields{EmployerName: employer}})
		id = r.ID
		return err
	})
	if err != nil {
		t.Fatalf("seed employment: %v", err)
	}
	return id
}

func seedAsset(t *testing.T, store PersistentStore, clientID, category string, amount float64) string {
	t.Helper()
	var id string
	err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		a, err := tx.CreateAsset(domain.Asset{ClientID: clientID, AssetFields: domain.AssetFields{Category: category, Amount: ptrFloat(amount)}})
		id = a.ID
		return err
	})
	if err != nil {
		t.Fatalf("seed asset: %v", err)
	}
	return id
}

func seedIncome(t *testing.T, store PersistentStore, clientID, company string, amount float64) string {
	t.Helper()
	var id string
	err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		r, err := tx.CreateActiveIncome(domain.ActiveIncome{ClientID: clientID, IncomeFields: domain.IncomeFields{CompanyName: company, MonthlyAmount: ptrFloat(amount)}})
		id = r.ID
		return err
	})
	if err != nil {
		t.Fatalf("seed income: %v", err)
	}
	return id
}

func addClient(first, last, returnID string) Action {
	return domain.NewAction(&domain.AddClientParams{ClientFields: domain.ClientFields{FirstName: first, LastName: last}}).WithReturnID(returnID)
}

func addRecord(kind domain.RecordKind, clientID, returnID string) Action {
	return domain.NewAction(&domain.AddRecordParams{Record: kind, ClientID: clientID}).WithReturnID(returnID)
}

func updateEmployment(clientID, recordID string, f domain.EmploymentFields) Action {
	return domain.NewAction(&domain.UpdateEmploymentParams{ClientID: clientID, RecordID: recordID, Updates: f})
}

func updateAsset(clientID, recordID string, f domain.AssetFields) Action {
	return domain.NewAction(&domain.UpdateAssetParams{ClientID: clientID, RecordID: recordID, Updates: f})
}

func updateIncome(clientID, recordID string, f domain.IncomeFields) Action {
	return domain.NewAction(&domain.UpdateIncomeParams{ClientID: clientID, RecordID: recordID, Updates: f})
}

func updateClient(clientID string, f domain.ClientFields) Action {
	return domain.NewAction(&domain.UpdateClientParams{ClientID: clientID, Updates: f})
}

// indexed assigns batch positions the way the pipeline does.
func indexed(actions ...Action) []Action {
	for i := range actions {
		actions[i].Index = i
	}
	return actions
}

type stubResolver struct {
	mu      sync.Mutex
	results map[string]Address
	queries []string
}

func (r *stubResolver) Resolve(_ context.Context, query string) (Address, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, query)
	addr, ok := r.results[query]
	return addr, ok
}

type capturedLog struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu      sync.Mutex
	entries []capturedLog
}

func (l *captureLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, capturedLog{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *captureLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			return true
		}
	}
	return false
}
