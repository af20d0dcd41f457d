// Package memory provides an in-memory implementation of the application store
// used for tests, replays and ephemeral environments.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"mortgageintake/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Client aliases domain.Client for in-memory persistence operations.
	Client = domain.Client
	// EmploymentRecord aliases domain.EmploymentRecord.
	EmploymentRecord = domain.EmploymentRecord
	// ActiveIncome aliases domain.ActiveIncome.
	ActiveIncome = domain.ActiveIncome
	// Asset aliases domain.Asset.
	Asset = domain.Asset
	// RealEstateRecord aliases domain.RealEstateRecord.
	RealEstateRecord = domain.RealEstateRecord
	// FormerAddress aliases domain.FormerAddress.
	FormerAddress = domain.FormerAddress
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// StateView aliases domain.StateView providing read-only state.
	StateView = domain.StateView
)

type memoryState struct {
	clients    map[string]Client
	employment map[string]EmploymentRecord
	income     map[string]ActiveIncome
	assets     map[string]Asset
	realEstate map[string]RealEstateRecord
	former     map[string]FormerAddress
	seq        int64
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Clients         map[string]Client           `json:"clients"`
	Employment      map[string]EmploymentRecord `json:"employment"`
	ActiveIncome    map[string]ActiveIncome     `json:"active_income"`
	Assets          map[string]Asset            `json:"assets"`
	RealEstate      map[string]RealEstateRecord `json:"real_estate"`
	FormerAddresses map[string]FormerAddress    `json:"former_addresses"`
	Seq             int64                       `json:"seq"`
}

func newMemoryState() memoryState {
	return memoryState{
		clients:    make(map[string]Client),
		employment: make(map[string]EmploymentRecord),
		income:     make(map[string]ActiveIncome),
		assets:     make(map[string]Asset),
		realEstate: make(map[string]RealEstateRecord),
		former:     make(map[string]FormerAddress),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	return Snapshot{
		Clients:         cloneMap(state.clients, cloneClient),
		Employment:      cloneMap(state.employment, cloneEmployment),
		ActiveIncome:    cloneMap(state.income, cloneIncome),
		Assets:          cloneMap(state.assets, cloneAsset),
		RealEstate:      cloneMap(state.realEstate, cloneRealEstate),
		FormerAddresses: cloneMap(state.former, cloneFormer),
		Seq:             state.seq,
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := memoryState{
		clients:    cloneMap(s.Clients, cloneClient),
		employment: cloneMap(s.Employment, cloneEmployment),
		income:     cloneMap(s.ActiveIncome, cloneIncome),
		assets:     cloneMap(s.Assets, cloneAsset),
		realEstate: cloneMap(s.RealEstate, cloneRealEstate),
		former:     cloneMap(s.FormerAddresses, cloneFormer),
		seq:        s.Seq,
	}
	state.seq = max(state.seq, state.maxSeq())
	return state
}

// maxSeq guards against hand-written snapshots whose sequence counter lags
// behind the records they contain.
func (s memoryState) maxSeq() int64 {
	var top int64
	for _, c := range s.clients {
		top = max(top, c.Seq)
	}
	for _, r := range s.employment {
		top = max(top, r.Seq)
	}
	for _, r := range s.income {
		top = max(top, r.Seq)
	}
	for _, r := range s.assets {
		top = max(top, r.Seq)
	}
	for _, r := range s.realEstate {
		top = max(top, r.Seq)
	}
	for _, r := range s.former {
		top = max(top, r.Seq)
	}
	return top
}

func (s memoryState) clone() memoryState {
	return memoryStateFromSnapshot(snapshotFromMemoryState(s))
}

func cloneMap[T any](in map[string]T, fn func(T) T) map[string]T {
	out := make(map[string]T, len(in))
	for k, v := range in {
		out[k] = fn(v)
	}
	return out
}

func cloneAddressPtr(a *domain.Address) *domain.Address {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

func cloneClient(c Client) Client {
	cp := c
	if c.Dependents != nil {
		d := *c.Dependents
		cp.Dependents = &d
	}
	if c.PresentAddress != nil {
		pa := *c.PresentAddress
		pa.MonthlyRent = cloneFloat(c.PresentAddress.MonthlyRent)
		if c.PresentAddress.YearsAtAddress != nil {
			y := *c.PresentAddress.YearsAtAddress
			pa.YearsAtAddress = &y
		}
		cp.PresentAddress = &pa
	}
	return cp
}

func cloneEmployment(r EmploymentRecord) EmploymentRecord {
	cp := r
	cp.EmployerAddress = cloneAddressPtr(r.EmployerAddress)
	cp.GrossMonthlyIncome = cloneFloat(r.GrossMonthlyIncome)
	if r.SelfEmployed != nil {
		v := *r.SelfEmployed
		cp.SelfEmployed = &v
	}
	if r.Current != nil {
		v := *r.Current
		cp.Current = &v
	}
	return cp
}

func cloneIncome(r ActiveIncome) ActiveIncome {
	cp := r
	cp.MonthlyAmount = cloneFloat(r.MonthlyAmount)
	cp.Bonus = cloneFloat(r.Bonus)
	cp.Commissions = cloneFloat(r.Commissions)
	cp.Overtime = cloneFloat(r.Overtime)
	return cp
}

func cloneAsset(a Asset) Asset {
	cp := a
	cp.Amount = cloneFloat(a.Amount)
	cp.SharedClientIDs = append([]string(nil), a.SharedClientIDs...)
	return cp
}

func cloneRealEstate(r RealEstateRecord) RealEstateRecord {
	cp := r
	cp.Address = cloneAddressPtr(r.Address)
	cp.PropertyValue = cloneFloat(r.PropertyValue)
	cp.MonthlyTaxes = cloneFloat(r.MonthlyTaxes)
	cp.MonthlyInsurance = cloneFloat(r.MonthlyInsurance)
	cp.SharedClientIDs = append([]string(nil), r.SharedClientIDs...)
	return cp
}

func cloneFormer(f FormerAddress) FormerAddress { return f }

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// Store provides an in-memory transactional store for application records.
type Store struct {
	mu    sync.RWMutex
	state memoryState
	nowFn func() time.Time
	newID func() string
}

// NewStore constructs an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		state: newMemoryState(),
		nowFn: func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

type stateView struct {
	state *memoryState
}

func newStateView(state *memoryState) StateView {
	return stateView{state: state}
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces committed state only when fn returns nil.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(StateView) error) error {
	return fn(s.SnapshotView())
}

// SnapshotView returns an immutable clone of committed state.
func (s *Store) SnapshotView() StateView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := s.state.clone()
	return newStateView(&snapshot)
}

// FindClient retrieves a client by ID from the snapshot.
func (v stateView) FindClient(id string) (Client, bool) {
	c, ok := v.state.clients[id]
	if !ok {
		return Client{}, false
	}
	return cloneClient(c), true
}

// ListClients returns all clients in insertion order.
func (v stateView) ListClients() []Client {
	out := make([]Client, 0, len(v.state.clients))
	for _, c := range v.state.clients {
		out = append(out, cloneClient(c))
	}
	slices.SortFunc(out, func(a, b Client) int { return cmp.Compare(a.Seq, b.Seq) })
	return out
}

func listForClient[T any](records map[string]T, clientID string, owner func(T) (string, int64), clone func(T) T) []T {
	var out []T
	for _, r := range records {
		if id, _ := owner(r); id == clientID {
			out = append(out, clone(r))
		}
	}
	slices.SortFunc(out, func(a, b T) int {
		_, sa := owner(a)
		_, sb := owner(b)
		return cmp.Compare(sa, sb)
	})
	return out
}

// ListEmployment returns the client's employment records in insertion order.
func (v stateView) ListEmployment(clientID string) []EmploymentRecord {
	return listForClient(v.state.employment, clientID, func(r EmploymentRecord) (string, int64) { return r.ClientID, r.Seq }, cloneEmployment)
}

// ListActiveIncome returns the client's income records in insertion order.
func (v stateView) ListActiveIncome(clientID string) []ActiveIncome {
	return listForClient(v.state.income, clientID, func(r ActiveIncome) (string, int64) { return r.ClientID, r.Seq }, cloneIncome)
}

// ListAssets returns the client's assets in insertion order.
func (v stateView) ListAssets(clientID string) []Asset {
	return listForClient(v.state.assets, clientID, func(r Asset) (string, int64) { return r.ClientID, r.Seq }, cloneAsset)
}

// ListRealEstate returns the client's properties in insertion order.
func (v stateView) ListRealEstate(clientID string) []RealEstateRecord {
	return listForClient(v.state.realEstate, clientID, func(r RealEstateRecord) (string, int64) { return r.ClientID, r.Seq }, cloneRealEstate)
}

// ListFormerAddresses returns the client's prior residences in insertion order.
func (v stateView) ListFormerAddresses(clientID string) []FormerAddress {
	return listForClient(v.state.former, clientID, func(r FormerAddress) (string, int64) { return r.ClientID, r.Seq }, cloneFormer)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Changes returns the audit trail recorded so far.
func (tx *transaction) Changes() []Change {
	return append([]Change(nil), tx.changes...)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() StateView {
	return newStateView(&tx.state)
}

func (tx *transaction) stamp(b *domain.Base) {
	if b.ID == "" {
		b.ID = tx.store.newID()
	}
	tx.state.seq++
	b.Seq = tx.state.seq
	b.CreatedAt = tx.now
	b.UpdatedAt = tx.now
}

func (tx *transaction) requireClient(id string) error {
	if _, ok := tx.state.clients[id]; !ok {
		return domain.ErrNotFound{Entity: domain.EntityClient, ID: id}
	}
	return nil
}

// CreateClient stores a new client within the transaction.
func (tx *transaction) CreateClient(c Client) (Client, error) {
	if c.ID != "" {
		if _, exists := tx.state.clients[c.ID]; exists {
			return Client{}, fmt.Errorf("client %q already exists", c.ID)
		}
	}
	tx.stamp(&c.Base)
	tx.state.clients[c.ID] = cloneClient(c)
	tx.recordChange(Change{Entity: domain.EntityClient, Op: domain.OpCreate, After: cloneClient(c)})
	return cloneClient(c), nil
}

// UpdateClient mutates a client using the provided mutator function.
func (tx *transaction) UpdateClient(id string, mutator func(*Client) error) (Client, error) {
	current, ok := tx.state.clients[id]
	if !ok {
		return Client{}, domain.ErrNotFound{Entity: domain.EntityClient, ID: id}
	}
	before := cloneClient(current)
	if err := mutator(&current); err != nil {
		return Client{}, err
	}
	current.Base = before.Base
	current.UpdatedAt = tx.now
	tx.state.clients[id] = cloneClient(current)
	tx.recordChange(Change{Entity: domain.EntityClient, Op: domain.OpUpdate, Before: before, After: cloneClient(current)})
	return cloneClient(current), nil
}

// CreateEmployment stores a new employment record for an existing client.
func (tx *transaction) CreateEmployment(r EmploymentRecord) (EmploymentRecord, error) {
	if err := tx.requireClient(r.ClientID); err != nil {
		return EmploymentRecord{}, err
	}
	tx.stamp(&r.Base)
	tx.state.employment[r.ID] = cloneEmployment(r)
	tx.recordChange(Change{Entity: domain.EntityEmployment, Op: domain.OpCreate, After: cloneEmployment(r)})
	return cloneEmployment(r), nil
}

// UpdateEmployment mutates an employment record.
func (tx *transaction) UpdateEmployment(id string, mutator func(*EmploymentRecord) error) (EmploymentRecord, error) {
	current, ok := tx.state.employment[id]
	if !ok {
		return EmploymentRecord{}, domain.ErrNotFound{Entity: domain.EntityEmployment, ID: id}
	}
	before := cloneEmployment(current)
	if err := mutator(&current); err != nil {
		return EmploymentRecord{}, err
	}
	current.Base, current.ClientID = before.Base, before.ClientID
	current.UpdatedAt = tx.now
	tx.state.employment[id] = cloneEmployment(current)
	tx.recordChange(Change{Entity: domain.EntityEmployment, Op: domain.OpUpdate, Before: before, After: cloneEmployment(current)})
	return cloneEmployment(current), nil
}

// CreateActiveIncome stores a new income record for an existing client.
func (tx *transaction) CreateActiveIncome(r ActiveIncome) (ActiveIncome, error) {
	if err := tx.requireClient(r.ClientID); err != nil {
		return ActiveIncome{}, err
	}
	tx.stamp(&r.Base)
	tx.state.income[r.ID] = cloneIncome(r)
	tx.recordChange(Change{Entity: domain.EntityActiveIncome, Op: domain.OpCreate, After: cloneIncome(r)})
	return cloneIncome(r), nil
}

// UpdateActiveIncome mutates an income record.
func (tx *transaction) UpdateActiveIncome(id string, mutator func(*ActiveIncome) error) (ActiveIncome, error) {
	current, ok := tx.state.income[id]
	if !ok {
		return ActiveIncome{}, domain.ErrNotFound{Entity: domain.EntityActiveIncome, ID: id}
	}
	before := cloneIncome(current)
	if err := mutator(&current); err != nil {
		return ActiveIncome{}, err
	}
	current.Base, current.ClientID = before.Base, before.ClientID
	current.UpdatedAt = tx.now
	tx.state.income[id] = cloneIncome(current)
	tx.recordChange(Change{Entity: domain.EntityActiveIncome, Op: domain.OpUpdate, Before: before, After: cloneIncome(current)})
	return cloneIncome(current), nil
}

// CreateAsset stores a new asset for an existing client.
func (tx *transaction) CreateAsset(a Asset) (Asset, error) {
	if err := tx.requireClient(a.ClientID); err != nil {
		return Asset{}, err
	}
	tx.stamp(&a.Base)
	a.SharedClientIDs = dedupeStrings(a.SharedClientIDs)
	tx.state.assets[a.ID] = cloneAsset(a)
	tx.recordChange(Change{Entity: domain.EntityAsset, Op: domain.OpCreate, After: cloneAsset(a)})
	return cloneAsset(a), nil
}

// UpdateAsset mutates an asset.
func (tx *transaction) UpdateAsset(id string, mutator func(*Asset) error) (Asset, error) {
	current, ok := tx.state.assets[id]
	if !ok {
		return Asset{}, domain.ErrNotFound{Entity: domain.EntityAsset, ID: id}
	}
	before := cloneAsset(current)
	if err := mutator(&current); err != nil {
		return Asset{}, err
	}
	current.Base, current.ClientID = before.Base, before.ClientID
	current.SharedClientIDs = dedupeStrings(current.SharedClientIDs)
	current.UpdatedAt = tx.now
	tx.state.assets[id] = cloneAsset(current)
	tx.recordChange(Change{Entity: domain.EntityAsset, Op: domain.OpUpdate, Before: before, After: cloneAsset(current)})
	return cloneAsset(current), nil
}

// CreateRealEstate stores a new property for an existing client.
func (tx *transaction) CreateRealEstate(r RealEstateRecord) (RealEstateRecord, error) {
	if err := tx.requireClient(r.ClientID); err != nil {
		return RealEstateRecord{}, err
	}
	tx.stamp(&r.Base)
	r.SharedClientIDs = dedupeStrings(r.SharedClientIDs)
	tx.state.realEstate[r.ID] = cloneRealEstate(r)
	tx.recordChange(Change{Entity: domain.EntityRealEstate, Op: domain.OpCreate, After: cloneRealEstate(r)})
	return cloneRealEstate(r), nil
}

// UpdateRealEstate mutates a property record.
func (tx *transaction) UpdateRealEstate(id string, mutator func(*RealEstateRecord) error) (RealEstateRecord, error) {
	current, ok := tx.state.realEstate[id]
	if !ok {
		return RealEstateRecord{}, domain.ErrNotFound{Entity: domain.EntityRealEstate, ID: id}
	}
	before := cloneRealEstate(current)
	if err := mutator(&current); err != nil {
		return RealEstateRecord{}, err
	}
	current.Base, current.ClientID = before.Base, before.ClientID
	current.SharedClientIDs = dedupeStrings(current.SharedClientIDs)
	current.UpdatedAt = tx.now
	tx.state.realEstate[id] = cloneRealEstate(current)
	tx.recordChange(Change{Entity: domain.EntityRealEstate, Op: domain.OpUpdate, Before: before, After: cloneRealEstate(current)})
	return cloneRealEstate(current), nil
}

// CreateFormerAddress stores a prior residence for an existing client.
func (tx *transaction) CreateFormerAddress(f FormerAddress) (FormerAddress, error) {
	if err := tx.requireClient(f.ClientID); err != nil {
		return FormerAddress{}, err
	}
	tx.stamp(&f.Base)
	tx.state.former[f.ID] = cloneFormer(f)
	tx.recordChange(Change{Entity: domain.EntityFormerAddress, Op: domain.OpCreate, After: cloneFormer(f)})
	return cloneFormer(f), nil
}
