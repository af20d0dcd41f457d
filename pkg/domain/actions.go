package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ActionKind enumerates the mutations the intent model may propose.
type ActionKind string

// Supported action kinds. The wire names match the model's tool vocabulary.
const (
	KindAddClient              ActionKind = "addClient"
	KindUpdateClient           ActionKind = "updateClientData"
	KindAddEmploymentRecord    ActionKind = "addEmploymentRecord"
	KindUpdateEmploymentRecord ActionKind = "updateEmploymentRecord"
	KindAddActiveIncome        ActionKind = "addActiveIncome"
	KindUpdateActiveIncome     ActionKind = "updateActiveIncome"
	KindAddRealEstateRecord    ActionKind = "addRealEstateRecord"
	KindUpdateRealEstateRecord ActionKind = "updateRealEstateRecord"
	KindAddAsset               ActionKind = "addAsset"
	KindUpdateAsset            ActionKind = "updateAsset"
	KindSetSharedOwners        ActionKind = "setSharedOwners"
	KindUpdateAddressData      ActionKind = "updateAddressData"
	KindAddFormerAddress       ActionKind = "addFormerAddress"
)

var kindAliases = map[string]ActionKind{
	"updateClient": KindUpdateClient,
}

// Creates reports whether the kind creates a new record and may claim a returnId.
func (k ActionKind) Creates() bool {
	switch k {
	case KindAddClient, KindAddEmploymentRecord, KindAddActiveIncome, KindAddRealEstateRecord, KindAddAsset, KindAddFormerAddress:
		return true
	default:
		return false
	}
}

// Known reports whether the kind belongs to the closed action vocabulary.
func (k ActionKind) Known() bool {
	_, ok := paramsFactories[k]
	return ok
}

// PlaceholderPrefix marks a batch-local reference to a record not yet created.
const PlaceholderPrefix = "$"

// IsPlaceholder reports whether v is a batch-local placeholder reference.
func IsPlaceholder(v string) bool {
	return strings.HasPrefix(strings.TrimSpace(v), PlaceholderPrefix)
}

// NormalizePlaceholder returns the canonical `$name` form of a returnId. The
// model emits both `e1` and `$e1`; both bind the same placeholder.
func NormalizePlaceholder(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.HasPrefix(v, PlaceholderPrefix) {
		return v
	}
	return PlaceholderPrefix + v
}

// RefRole distinguishes client references from record references.
type RefRole int

const (
	// RefClient points at a client id.
	RefClient RefRole = iota + 1
	// RefRecord points at a per-client record id of RefKind.
	RefRecord
)

// IDRef is an addressable id-valued param. Value points into the params
// struct so resolution can rewrite it in place on a cloned copy.
type IDRef struct {
	Role  RefRole
	Kind  RecordKind
	Field string
	Value *string
}

// Params is the kind-specific payload of an Action.
type Params interface {
	Kind() ActionKind
	// Refs returns the id-valued fields in resolution order; client refs first.
	Refs() []IDRef
	Clone() Params
}

// Action is one proposed mutation extracted from the borrower's statement.
type Action struct {
	Kind     ActionKind
	Params   Params
	ReturnID string
	// Index is the action's position in the raw batch.
	Index int
}

// NewAction wraps params into an action of the matching kind.
func NewAction(p Params) Action {
	return Action{Kind: p.Kind(), Params: p}
}

// WithReturnID returns a copy of a claiming returnID.
func (a Action) WithReturnID(id string) Action {
	a.ReturnID = NormalizePlaceholder(id)
	return a
}

// Clone returns a copy whose params can be rewritten without aliasing a.
func (a Action) Clone() Action {
	cp := a
	if a.Params != nil {
		cp.Params = a.Params.Clone()
	}
	return cp
}

// ClientID returns the action's client reference, resolved or not.
func (a Action) ClientID() string {
	if a.Params == nil {
		return ""
	}
	for _, ref := range a.Params.Refs() {
		if ref.Role == RefClient && ref.Field == "clientId" {
			return *ref.Value
		}
	}
	return ""
}

// RecordID returns the action's record reference, if any.
func (a Action) RecordID() string {
	if a.Params == nil {
		return ""
	}
	for _, ref := range a.Params.Refs() {
		if ref.Role == RefRecord {
			return *ref.Value
		}
	}
	return ""
}

// String renders a compact identifier for logs.
func (a Action) String() string {
	if a.ReturnID != "" {
		return fmt.Sprintf("#%d %s -> %s", a.Index, a.Kind, a.ReturnID)
	}
	return fmt.Sprintf("#%d %s", a.Index, a.Kind)
}

type actionWire struct {
	Kind     ActionKind      `json:"kind"`
	Params   json.RawMessage `json:"params,omitempty"`
	ReturnID string          `json:"returnId,omitempty"`
	Index    *int            `json:"index,omitempty"`
}

// MarshalJSON encodes the action in the model's wire shape.
func (a Action) MarshalJSON() ([]byte, error) {
	var raw json.RawMessage
	if a.Params != nil {
		data, err := json.Marshal(a.Params)
		if err != nil {
			return nil, fmt.Errorf("encode %s params: %w", a.Kind, err)
		}
		raw = data
	}
	idx := a.Index
	return json.Marshal(actionWire{Kind: a.Kind, Params: raw, ReturnID: a.ReturnID, Index: &idx})
}

// UnmarshalJSON decodes the wire shape into the typed params for the kind.
// Unknown kinds decode into UnknownParams so validation can pass them through.
func (a *Action) UnmarshalJSON(data []byte) error {
	var wire actionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedAction, err)
	}
	kind := wire.Kind
	if alias, ok := kindAliases[string(kind)]; ok {
		kind = alias
	}
	if kind == "" {
		return fmt.Errorf("%w: missing kind", ErrMalformedAction)
	}
	params, err := decodeParams(kind, wire.Params)
	if err != nil {
		return err
	}
	*a = Action{Kind: kind, Params: params, ReturnID: NormalizePlaceholder(wire.ReturnID)}
	if wire.Index != nil {
		a.Index = *wire.Index
	}
	return nil
}

var paramsFactories = map[ActionKind]func() Params{
	KindAddClient:              func() Params { return &AddClientParams{} },
	KindUpdateClient:           func() Params { return &UpdateClientParams{} },
	KindAddEmploymentRecord:    func() Params { return &AddRecordParams{Record: RecordEmployment} },
	KindUpdateEmploymentRecord: func() Params { return &UpdateEmploymentParams{} },
	KindAddActiveIncome:        func() Params { return &AddRecordParams{Record: RecordActiveIncome} },
	KindUpdateActiveIncome:     func() Params { return &UpdateIncomeParams{} },
	KindAddRealEstateRecord:    func() Params { return &AddRecordParams{Record: RecordRealEstate} },
	KindUpdateRealEstateRecord: func() Params { return &UpdateRealEstateParams{} },
	KindAddAsset:               func() Params { return &AddRecordParams{Record: RecordAsset} },
	KindUpdateAsset:            func() Params { return &UpdateAssetParams{} },
	KindSetSharedOwners:        func() Params { return &SetSharedOwnersParams{} },
	KindUpdateAddressData:      func() Params { return &UpdateAddressParams{} },
	KindAddFormerAddress:       func() Params { return &AddFormerAddressParams{} },
}

func decodeParams(kind ActionKind, raw json.RawMessage) (Params, error) {
	factory, ok := paramsFactories[kind]
	if !ok {
		return &UnknownParams{ActionKind: kind, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
	params := factory()
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return params, nil
	}
	if err := json.Unmarshal(raw, params); err != nil {
		return nil, fmt.Errorf("%w: %s params: %v", ErrMalformedAction, kind, err)
	}
	return params, nil
}

// AddClientParams creates a borrower, optionally with initial fields.
type AddClientParams struct {
	Role string `json:"role,omitempty"`
	ClientFields
}

func (p *AddClientParams) Kind() ActionKind { return KindAddClient }
func (p *AddClientParams) Refs() []IDRef    { return nil }
func (p *AddClientParams) Clone() Params {
	cp := *p
	cp.Dependents = cloneInt(p.Dependents)
	return &cp
}

// UpdateClientParams sets borrower fields. The model uses both `clientId` and
// `id` for the target.
type UpdateClientParams struct {
	ClientID string       `json:"clientId"`
	Updates  ClientFields `json:"updates"`
}

func (p *UpdateClientParams) Kind() ActionKind { return KindUpdateClient }
func (p *UpdateClientParams) Refs() []IDRef {
	return []IDRef{{Role: RefClient, Field: "clientId", Value: &p.ClientID}}
}
func (p *UpdateClientParams) Clone() Params {
	cp := *p
	cp.Updates.Dependents = cloneInt(p.Updates.Dependents)
	return &cp
}

// UnmarshalJSON accepts `id` as an alias of `clientId`.
func (p *UpdateClientParams) UnmarshalJSON(data []byte) error {
	var wire struct {
		ClientID string       `json:"clientId"`
		ID       string       `json:"id"`
		Updates  ClientFields `json:"updates"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	p.ClientID = wire.ClientID
	if p.ClientID == "" {
		p.ClientID = wire.ID
	}
	p.Updates = wire.Updates
	return nil
}

// AddRecordParams creates an empty per-client record of Record kind.
type AddRecordParams struct {
	Record   RecordKind `json:"-"`
	ClientID string     `json:"clientId"`
}

func (p *AddRecordParams) Kind() ActionKind {
	switch p.Record {
	case RecordEmployment:
		return KindAddEmploymentRecord
	case RecordActiveIncome:
		return KindAddActiveIncome
	case RecordAsset:
		return KindAddAsset
	case RecordRealEstate:
		return KindAddRealEstateRecord
	default:
		return ""
	}
}
func (p *AddRecordParams) Refs() []IDRef {
	return []IDRef{{Role: RefClient, Field: "clientId", Value: &p.ClientID}}
}
func (p *AddRecordParams) Clone() Params {
	cp := *p
	return &cp
}

// UpdateEmploymentParams fills an employment record.
type UpdateEmploymentParams struct {
	ClientID string           `json:"clientId"`
	RecordID string           `json:"recordId"`
	Updates  EmploymentFields `json:"updates"`
}

func (p *UpdateEmploymentParams) Kind() ActionKind { return KindUpdateEmploymentRecord }
func (p *UpdateEmploymentParams) Refs() []IDRef {
	return updateRefs(&p.ClientID, &p.RecordID, RecordEmployment)
}
func (p *UpdateEmploymentParams) Clone() Params {
	cp := *p
	cp.Updates.GrossMonthlyIncome = cloneFloat(p.Updates.GrossMonthlyIncome)
	cp.Updates.SelfEmployed = cloneBool(p.Updates.SelfEmployed)
	cp.Updates.Current = cloneBool(p.Updates.Current)
	cp.Updates.EmployerAddress = cloneAddress(p.Updates.EmployerAddress)
	return &cp
}

// UpdateIncomeParams fills an active income record.
type UpdateIncomeParams struct {
	ClientID string       `json:"clientId"`
	RecordID string       `json:"recordId"`
	Updates  IncomeFields `json:"updates"`
}

func (p *UpdateIncomeParams) Kind() ActionKind { return KindUpdateActiveIncome }
func (p *UpdateIncomeParams) Refs() []IDRef {
	return updateRefs(&p.ClientID, &p.RecordID, RecordActiveIncome)
}
func (p *UpdateIncomeParams) Clone() Params {
	cp := *p
	cp.Updates.MonthlyAmount = cloneFloat(p.Updates.MonthlyAmount)
	cp.Updates.Bonus = cloneFloat(p.Updates.Bonus)
	cp.Updates.Commissions = cloneFloat(p.Updates.Commissions)
	cp.Updates.Overtime = cloneFloat(p.Updates.Overtime)
	return &cp
}

// UpdateAssetParams fills an asset record.
type UpdateAssetParams struct {
	ClientID string      `json:"clientId"`
	RecordID string      `json:"recordId"`
	Updates  AssetFields `json:"updates"`
}

func (p *UpdateAssetParams) Kind() ActionKind { return KindUpdateAsset }
func (p *UpdateAssetParams) Refs() []IDRef {
	return updateRefs(&p.ClientID, &p.RecordID, RecordAsset)
}
func (p *UpdateAssetParams) Clone() Params {
	cp := *p
	cp.Updates.Amount = cloneFloat(p.Updates.Amount)
	return &cp
}

// UpdateRealEstateParams fills a real estate record.
type UpdateRealEstateParams struct {
	ClientID string           `json:"clientId"`
	RecordID string           `json:"recordId"`
	Updates  RealEstateFields `json:"updates"`
}

func (p *UpdateRealEstateParams) Kind() ActionKind { return KindUpdateRealEstateRecord }
func (p *UpdateRealEstateParams) Refs() []IDRef {
	return updateRefs(&p.ClientID, &p.RecordID, RecordRealEstate)
}
func (p *UpdateRealEstateParams) Clone() Params {
	cp := *p
	cp.Updates.Address = cloneAddress(p.Updates.Address)
	cp.Updates.PropertyValue = cloneFloat(p.Updates.PropertyValue)
	cp.Updates.MonthlyTaxes = cloneFloat(p.Updates.MonthlyTaxes)
	cp.Updates.MonthlyInsurance = cloneFloat(p.Updates.MonthlyInsurance)
	return &cp
}

// SetSharedOwnersParams marks an asset or property as jointly held.
type SetSharedOwnersParams struct {
	ClientID        string     `json:"clientId"`
	RecordKind      RecordKind `json:"recordKind"`
	RecordID        string     `json:"recordId"`
	SharedClientIDs []string   `json:"sharedClientIds"`
}

func (p *SetSharedOwnersParams) Kind() ActionKind { return KindSetSharedOwners }
func (p *SetSharedOwnersParams) Refs() []IDRef {
	refs := []IDRef{{Role: RefClient, Field: "clientId", Value: &p.ClientID}}
	for i := range p.SharedClientIDs {
		refs = append(refs, IDRef{Role: RefClient, Field: fmt.Sprintf("sharedClientIds[%d]", i), Value: &p.SharedClientIDs[i]})
	}
	return append(refs, IDRef{Role: RefRecord, Kind: p.RecordKind, Field: "recordId", Value: &p.RecordID})
}
func (p *SetSharedOwnersParams) Clone() Params {
	cp := *p
	cp.SharedClientIDs = append([]string(nil), p.SharedClientIDs...)
	return &cp
}

// UpdateAddressParams sets the client's present address.
type UpdateAddressParams struct {
	ClientID string         `json:"clientId"`
	Data     PresentAddress `json:"data"`
}

func (p *UpdateAddressParams) Kind() ActionKind { return KindUpdateAddressData }
func (p *UpdateAddressParams) Refs() []IDRef {
	return []IDRef{{Role: RefClient, Field: "clientId", Value: &p.ClientID}}
}
func (p *UpdateAddressParams) Clone() Params {
	cp := *p
	cp.Data.MonthlyRent = cloneFloat(p.Data.MonthlyRent)
	cp.Data.YearsAtAddress = cloneInt(p.Data.YearsAtAddress)
	return &cp
}

// AddFormerAddressParams records a prior residence.
type AddFormerAddressParams struct {
	ClientID string              `json:"clientId"`
	Address  FormerAddressFields `json:"address"`
}

func (p *AddFormerAddressParams) Kind() ActionKind { return KindAddFormerAddress }
func (p *AddFormerAddressParams) Refs() []IDRef {
	return []IDRef{{Role: RefClient, Field: "clientId", Value: &p.ClientID}}
}
func (p *AddFormerAddressParams) Clone() Params {
	cp := *p
	return &cp
}

// UnknownParams carries the raw payload of a kind outside the vocabulary.
type UnknownParams struct {
	ActionKind ActionKind
	Raw        json.RawMessage
}

func (p *UnknownParams) Kind() ActionKind { return p.ActionKind }
func (p *UnknownParams) Refs() []IDRef    { return nil }
func (p *UnknownParams) Clone() Params {
	return &UnknownParams{ActionKind: p.ActionKind, Raw: append(json.RawMessage(nil), p.Raw...)}
}

// MarshalJSON re-emits the raw payload unchanged.
func (p *UnknownParams) MarshalJSON() ([]byte, error) {
	if len(p.Raw) == 0 {
		return []byte("null"), nil
	}
	return p.Raw, nil
}

func updateRefs(clientID, recordID *string, kind RecordKind) []IDRef {
	return []IDRef{
		{Role: RefClient, Field: "clientId", Value: clientID},
		{Role: RefRecord, Kind: kind, Field: "recordId", Value: recordID},
	}
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

func cloneBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

func cloneAddress(v *Address) *Address {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}
