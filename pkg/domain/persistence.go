package domain

import "context"

// StateView is a read-only snapshot of the application consulted while merging
// and validating a batch. Per-client lists are returned in insertion order.
type StateView interface {
	FindClient(id string) (Client, bool)
	ListClients() []Client
	ListEmployment(clientID string) []EmploymentRecord
	ListActiveIncome(clientID string) []ActiveIncome
	ListAssets(clientID string) []Asset
	ListRealEstate(clientID string) []RealEstateRecord
	ListFormerAddresses(clientID string) []FormerAddress
}

// Transaction exposes the record operations a persistence implementation must
// support within an atomic scope.
type Transaction interface {
	Snapshot() StateView
	CreateClient(Client) (Client, error)
	UpdateClient(id string, mutator func(*Client) error) (Client, error)
	CreateEmployment(EmploymentRecord) (EmploymentRecord, error)
	UpdateEmployment(id string, mutator func(*EmploymentRecord) error) (EmploymentRecord, error)
	CreateActiveIncome(ActiveIncome) (ActiveIncome, error)
	UpdateActiveIncome(id string, mutator func(*ActiveIncome) error) (ActiveIncome, error)
	CreateAsset(Asset) (Asset, error)
	UpdateAsset(id string, mutator func(*Asset) error) (Asset, error)
	CreateRealEstate(RealEstateRecord) (RealEstateRecord, error)
	UpdateRealEstate(id string, mutator func(*RealEstateRecord) error) (RealEstateRecord, error)
	CreateFormerAddress(FormerAddress) (FormerAddress, error)
	// Changes returns the audit trail recorded so far in this transaction.
	Changes() []Change
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) error
	View(ctx context.Context, fn func(StateView) error) error
	// SnapshotView returns an immutable clone of committed state.
	SnapshotView() StateView
}

// Mutator is the mutation interface the executor drives: one call per action
// kind plus the read accessors used by the record fallback and summaries.
type Mutator interface {
	AddClient(ctx context.Context, role string, fields ClientFields) (string, error)
	UpdateClient(ctx context.Context, clientID string, updates ClientFields) error
	AddEmploymentRecord(ctx context.Context, clientID string) (string, error)
	UpdateEmploymentRecord(ctx context.Context, clientID, recordID string, updates EmploymentFields) error
	AddActiveIncome(ctx context.Context, clientID string) (string, error)
	UpdateActiveIncome(ctx context.Context, clientID, recordID string, updates IncomeFields) error
	AddAsset(ctx context.Context, clientID string) (string, error)
	UpdateAsset(ctx context.Context, clientID, recordID string, updates AssetFields) error
	AddRealEstateRecord(ctx context.Context, clientID string) (string, error)
	UpdateRealEstateRecord(ctx context.Context, clientID, recordID string, updates RealEstateFields) error
	SetSharedOwners(ctx context.Context, kind RecordKind, recordID string, clientIDs []string) error
	UpdateAddressData(ctx context.Context, clientID string, data PresentAddress) error
	AddFormerAddress(ctx context.Context, clientID string, address FormerAddressFields) (string, error)

	// ListRecords returns the client's records of kind in insertion order.
	ListRecords(ctx context.Context, clientID string, kind RecordKind) ([]RecordRef, error)
	GetClient(ctx context.Context, clientID string) (ClientSummary, bool)
}
