package core

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"mortgageintake/pkg/domain"
)

var _ domain.Mutator = (*StoreMutator)(nil)

// StoreMutator implements domain.Mutator over a PersistentStore, running each
// mutation in its own transaction.
type StoreMutator struct {
	store PersistentStore
}

// NewStoreMutator wraps store.
func NewStoreMutator(store PersistentStore) *StoreMutator {
	return &StoreMutator{store: store}
}

// run executes fn in one transaction and hands the committed changes to the
// change log carried by ctx, if any.
func (m *StoreMutator) run(ctx context.Context, fn func(tx Transaction) error) error {
	var changes []domain.Change
	err := m.store.RunInTransaction(ctx, func(tx Transaction) error {
		if err := fn(tx); err != nil {
			return err
		}
		changes = tx.Changes()
		return nil
	})
	if err == nil {
		recordChanges(ctx, changes)
	}
	return err
}

type changeLogKey struct{}

// changeLog collects the store changes made on behalf of one action.
type changeLog struct {
	changes []domain.Change
}

func withChangeLog(ctx context.Context) (context.Context, *changeLog) {
	log := &changeLog{}
	return context.WithValue(ctx, changeLogKey{}, log), log
}

func recordChanges(ctx context.Context, changes []domain.Change) {
	if log, ok := ctx.Value(changeLogKey{}).(*changeLog); ok {
		log.changes = append(log.changes, changes...)
	}
}

// AddClient creates a client with the given role and initial fields.
func (m *StoreMutator) AddClient(ctx context.Context, role string, fields domain.ClientFields) (string, error) {
	if role == "" {
		role = "borrower"
	}
	var id string
	err := m.run(ctx, func(tx Transaction) error {
		created, err := tx.CreateClient(domain.Client{ClientFields: fields, Role: role})
		id = created.ID
		return err
	})
	return id, err
}

// UpdateClient applies the provided fields to a client.
func (m *StoreMutator) UpdateClient(ctx context.Context, clientID string, updates domain.ClientFields) error {
	return m.run(ctx, func(tx Transaction) error {
		_, err := tx.UpdateClient(clientID, func(c *domain.Client) error {
			updates.Apply(&c.ClientFields)
			return nil
		})
		return err
	})
}

// AddEmploymentRecord creates an empty employment record.
func (m *StoreMutator) AddEmploymentRecord(ctx context.Context, clientID string) (string, error) {
	var id string
	err := m.run(ctx, func(tx Transaction) error {
		created, err := tx.CreateEmployment(domain.EmploymentRecord{ClientID: clientID})
		id = created.ID
		return err
	})
	return id, err
}

// UpdateEmploymentRecord fills an employment record owned by clientID.
func (m *StoreMutator) UpdateEmploymentRecord(ctx context.Context, clientID, recordID string, updates domain.EmploymentFields) error {
	return m.run(ctx, func(tx Transaction) error {
		_, err := tx.UpdateEmployment(recordID, func(r *domain.EmploymentRecord) error {
			if err := ownedBy(domain.EntityEmployment, recordID, r.ClientID, clientID); err != nil {
				return err
			}
			updates.Apply(&r.EmploymentFields)
			return nil
		})
		return err
	})
}

// AddActiveIncome creates an empty income record.
func (m *StoreMutator) AddActiveIncome(ctx context.Context, clientID string) (string, error) {
	var id string
	err := m.run(ctx, func(tx Transaction) error {
		created, err := tx.CreateActiveIncome(domain.ActiveIncome{ClientID: clientID})
		id = created.ID
		return err
	})
	return id, err
}

// UpdateActiveIncome fills an income record owned by clientID.
func (m *StoreMutator) UpdateActiveIncome(ctx context.Context, clientID, recordID string, updates domain.IncomeFields) error {
	return m.run(ctx, func(tx Transaction) error {
		_, err := tx.UpdateActiveIncome(recordID, func(r *domain.ActiveIncome) error {
			if err := ownedBy(domain.EntityActiveIncome, recordID, r.ClientID, clientID); err != nil {
				return err
			}
			updates.Apply(&r.IncomeFields)
			return nil
		})
		return err
	})
}

// AddAsset creates an empty asset.
func (m *StoreMutator) AddAsset(ctx context.Context, clientID string) (string, error) {
	var id string
	err := m.run(ctx, func(tx Transaction) error {
		created, err := tx.CreateAsset(domain.Asset{ClientID: clientID})
		id = created.ID
		return err
	})
	return id, err
}

// UpdateAsset fills an asset owned by clientID.
func (m *StoreMutator) UpdateAsset(ctx context.Context, clientID, recordID string, updates domain.AssetFields) error {
	return m.run(ctx, func(tx Transaction) error {
		_, err := tx.UpdateAsset(recordID, func(a *domain.Asset) error {
			if err := ownedBy(domain.EntityAsset, recordID, a.ClientID, clientID); err != nil {
				return err
			}
			updates.Apply(&a.AssetFields)
			return nil
		})
		return err
	})
}

// AddRealEstateRecord creates an empty property record.
func (m *StoreMutator) AddRealEstateRecord(ctx context.Context, clientID string) (string, error) {
	var id string
	err := m.run(ctx, func(tx Transaction) error {
		created, err := tx.CreateRealEstate(domain.RealEstateRecord{ClientID: clientID})
		id = created.ID
		return err
	})
	return id, err
}

// UpdateRealEstateRecord fills a property record owned by clientID.
func (m *StoreMutator) UpdateRealEstateRecord(ctx context.Context, clientID, recordID string, updates domain.RealEstateFields) error {
	return m.run(ctx, func(tx Transaction) error {
		_, err := tx.UpdateRealEstate(recordID, func(r *domain.RealEstateRecord) error {
			if err := ownedBy(domain.EntityRealEstate, recordID, r.ClientID, clientID); err != nil {
				return err
			}
			updates.Apply(&r.RealEstateFields)
			return nil
		})
		return err
	})
}

// SetSharedOwners replaces the co-owners of an asset or property. Every
// co-owner must be an existing client.
func (m *StoreMutator) SetSharedOwners(ctx context.Context, kind RecordKind, recordID string, clientIDs []string) error {
	return m.run(ctx, func(tx Transaction) error {
		view := tx.Snapshot()
		for _, id := range clientIDs {
			if _, ok := view.FindClient(id); !ok {
				return domain.ErrNotFound{Entity: domain.EntityClient, ID: id}
			}
		}
		owners := append([]string(nil), clientIDs...)
		switch kind {
		case domain.RecordAsset:
			_, err := tx.UpdateAsset(recordID, func(a *domain.Asset) error {
				a.SharedClientIDs = owners
				return nil
			})
			return err
		case domain.RecordRealEstate:
			_, err := tx.UpdateRealEstate(recordID, func(r *domain.RealEstateRecord) error {
				r.SharedClientIDs = owners
				return nil
			})
			return err
		default:
			return fmt.Errorf("shared owners not supported for %q records", kind)
		}
	})
}

// UpdateAddressData replaces the client's present address.
func (m *StoreMutator) UpdateAddressData(ctx context.Context, clientID string, data domain.PresentAddress) error {
	return m.run(ctx, func(tx Transaction) error {
		_, err := tx.UpdateClient(clientID, func(c *domain.Client) error {
			cp := data
			c.PresentAddress = &cp
			return nil
		})
		return err
	})
}

// AddFormerAddress records a prior residence.
func (m *StoreMutator) AddFormerAddress(ctx context.Context, clientID string, address domain.FormerAddressFields) (string, error) {
	var id string
	err := m.run(ctx, func(tx Transaction) error {
		created, err := tx.CreateFormerAddress(domain.FormerAddress{ClientID: clientID, FormerAddressFields: address})
		id = created.ID
		return err
	})
	return id, err
}

// ListRecords returns the client's records of kind in insertion order.
func (m *StoreMutator) ListRecords(ctx context.Context, clientID string, kind RecordKind) ([]domain.RecordRef, error) {
	var refs []domain.RecordRef
	err := m.store.View(ctx, func(view StateView) error {
		add := func(b domain.Base) {
			refs = append(refs, domain.RecordRef{ID: b.ID, ClientID: clientID, Kind: kind, CreatedAt: b.CreatedAt, Seq: b.Seq})
		}
		switch kind {
		case domain.RecordEmployment:
			for _, r := range view.ListEmployment(clientID) {
				add(r.Base)
			}
		case domain.RecordActiveIncome:
			for _, r := range view.ListActiveIncome(clientID) {
				add(r.Base)
			}
		case domain.RecordAsset:
			for _, r := range view.ListAssets(clientID) {
				add(r.Base)
			}
		case domain.RecordRealEstate:
			for _, r := range view.ListRealEstate(clientID) {
				add(r.Base)
			}
		case domain.RecordFormerAddress:
			for _, r := range view.ListFormerAddresses(clientID) {
				add(r.Base)
			}
		default:
			return fmt.Errorf("unknown record kind %q", kind)
		}
		return nil
	})
	slices.SortStableFunc(refs, func(a, b domain.RecordRef) int { return cmp.Compare(a.Seq, b.Seq) })
	return refs, err
}

// GetClient returns the client's display summary.
func (m *StoreMutator) GetClient(ctx context.Context, clientID string) (domain.ClientSummary, bool) {
	var (
		summary domain.ClientSummary
		found   bool
	)
	_ = m.store.View(ctx, func(view StateView) error {
		c, ok := view.FindClient(clientID)
		if ok {
			summary = domain.ClientSummary{ID: c.ID, Name: c.DisplayName()}
			found = true
		}
		return nil
	})
	return summary, found
}

func ownedBy(entity EntityType, recordID, owner, clientID string) error {
	if clientID != "" && owner != clientID {
		return fmt.Errorf("%s %s belongs to client %s, not %s", entity, recordID, owner, clientID)
	}
	return nil
}
