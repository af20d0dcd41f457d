package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"mortgageintake/pkg/domain"
)

func TestStorePersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "intake.db")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	var clientID string
	err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		c, err := tx.CreateClient(domain.Client{Role: "borrower", ClientFields: domain.ClientFields{FirstName: "Jane"}})
		if err != nil {
			return err
		}
		clientID = c.ID
		_, err = tx.CreateEmployment(domain.EmploymentRecord{ClientID: c.ID, EmploymentFields: domain.EmploymentFields{EmployerName: "Acme"}})
		return err
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if store.Path() != path {
		t.Fatalf("unexpected path %s", store.Path())
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	view := reopened.SnapshotView()
	c, ok := view.FindClient(clientID)
	if !ok || c.FirstName != "Jane" {
		t.Fatalf("expected persisted client, got %+v ok=%v", c, ok)
	}
	jobs := view.ListEmployment(clientID)
	if len(jobs) != 1 || jobs[0].EmployerName != "Acme" {
		t.Fatalf("expected persisted employment, got %+v", jobs)
	}

	// The sequence survives the reload so recency keeps working.
	var next domain.EmploymentRecord
	err = reopened.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		next, err = tx.CreateEmployment(domain.EmploymentRecord{ClientID: clientID})
		return err
	})
	if err != nil {
		t.Fatalf("second transaction: %v", err)
	}
	if next.Seq <= jobs[0].Seq {
		t.Fatalf("expected sequence to continue, got %d after %d", next.Seq, jobs[0].Seq)
	}
}

func TestStoreFailedTransactionIsNotPersisted(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(filepath.Join(t.TempDir(), "intake.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateAsset(domain.Asset{ClientID: "missing"})
		return err
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	var rows int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 0 {
		t.Fatalf("expected nothing persisted, found %d buckets", rows)
	}
}
