// Package domain defines the mortgage application records, the intent action
// model produced from a borrower's statements, and the rule evaluation
// primitives shared by the resolution pipeline and the persistence layer.
package domain

import (
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the application store.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityClient identifies a borrower or co-borrower.
	EntityClient EntityType = "client"
	// EntityEmployment identifies an employment history record.
	EntityEmployment EntityType = "employment"
	// EntityActiveIncome identifies a non-employment income record.
	EntityActiveIncome EntityType = "active_income"
	// EntityAsset identifies a bank, retirement or other asset record.
	EntityAsset EntityType = "asset"
	// EntityRealEstate identifies an owned property record.
	EntityRealEstate EntityType = "real_estate"
	// EntityFormerAddress identifies a prior residence record.
	EntityFormerAddress EntityType = "former_address"
	// EntityPresentAddress identifies a client's current residence.
	EntityPresentAddress EntityType = "present_address"
)

// RecordKind names the per-client record collections that actions create and fill.
type RecordKind string

// Record kinds addressable by recordId params and by the most-recent fallback.
const (
	RecordEmployment    RecordKind = "employment"
	RecordActiveIncome  RecordKind = "activeIncome"
	RecordAsset         RecordKind = "asset"
	RecordRealEstate    RecordKind = "realEstate"
	RecordFormerAddress RecordKind = "formerAddress"
)

// Entity maps a record kind onto its persistence bucket.
func (k RecordKind) Entity() EntityType {
	switch k {
	case RecordEmployment:
		return EntityEmployment
	case RecordActiveIncome:
		return EntityActiveIncome
	case RecordAsset:
		return EntityAsset
	case RecordRealEstate:
		return EntityRealEstate
	case RecordFormerAddress:
		return EntityFormerAddress
	default:
		return ""
	}
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine whether an action is dropped.
const (
	// SeverityBlock drops the action from the applied set.
	SeverityBlock Severity = "block"
	// SeverityWarn keeps the action and surfaces the message to the caller.
	SeverityWarn Severity = "warn"
)

// Base contains common fields for all application records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// Seq is the store insertion sequence. It orders records by recency when
	// timestamps collide within one transaction.
	Seq int64 `json:"seq"`
}

// Address is a postal address, either partial (as dictated by the borrower) or
// resolved through the place-lookup service.
type Address struct {
	AddressLine1     string  `json:"address1,omitempty"`
	AddressLine2     string  `json:"address2,omitempty"`
	City             string  `json:"city,omitempty"`
	Region           string  `json:"region,omitempty"`
	PostalCode       string  `json:"zipCode,omitempty"`
	Country          string  `json:"country,omitempty"`
	FormattedAddress string  `json:"formattedAddress,omitempty"`
	Lat              float64 `json:"lat,omitempty"`
	Lng              float64 `json:"lng,omitempty"`
}

// Resolved reports whether the address already carries a provider formatted form.
func (a Address) Resolved() bool {
	return strings.TrimSpace(a.FormattedAddress) != ""
}

// NeedsResolution reports whether a lookup should be attempted for the address.
func (a Address) NeedsResolution() bool {
	return strings.TrimSpace(a.AddressLine1) != "" && !a.Resolved()
}

// OneLine renders the address for summaries, preferring the formatted form.
func (a Address) OneLine() string {
	if a.Resolved() {
		return a.FormattedAddress
	}
	return JoinNonEmpty(", ", a.AddressLine1, a.AddressLine2, a.City, a.Region, a.PostalCode)
}

// JoinNonEmpty joins trimmed, non-blank parts with sep.
func JoinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// ClientFields are the borrower attributes that addClient and updateClientData set.
// Empty strings mean "not provided".
type ClientFields struct {
	FirstName     string `json:"firstName,omitempty"`
	MiddleName    string `json:"middleName,omitempty"`
	LastName      string `json:"lastName,omitempty"`
	Suffix        string `json:"suffix,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	SSN           string `json:"ssn,omitempty"`
	DateOfBirth   string `json:"dob,omitempty"`
	MaritalStatus string `json:"maritalStatus,omitempty"`
	Citizenship   string `json:"citizenship,omitempty"`
	Dependents    *int   `json:"dependents,omitempty"`
}

// Apply copies every provided field onto dst.
func (f ClientFields) Apply(dst *ClientFields) {
	setString(&dst.FirstName, f.FirstName)
	setString(&dst.MiddleName, f.MiddleName)
	setString(&dst.LastName, f.LastName)
	setString(&dst.Suffix, f.Suffix)
	setString(&dst.Email, f.Email)
	setString(&dst.Phone, f.Phone)
	setString(&dst.SSN, f.SSN)
	setString(&dst.DateOfBirth, f.DateOfBirth)
	setString(&dst.MaritalStatus, f.MaritalStatus)
	setString(&dst.Citizenship, f.Citizenship)
	if f.Dependents != nil {
		v := *f.Dependents
		dst.Dependents = &v
	}
}

// PresentAddress is the client's current residence.
type PresentAddress struct {
	Addr           Address  `json:"addr"`
	Housing        string   `json:"housing,omitempty"` // own | rent | rent_free
	MonthlyRent    *float64 `json:"monthlyRent,omitempty"`
	FromDate       string   `json:"fromDate,omitempty"`
	YearsAtAddress *int     `json:"yearsAtAddress,omitempty"`
}

// Client is a borrower on the application.
type Client struct {
	Base
	ClientFields
	Role           string          `json:"role"` // borrower | co_borrower
	PresentAddress *PresentAddress `json:"presentAddress,omitempty"`
}

// DisplayName renders the client's name for summaries.
func (c Client) DisplayName() string {
	if name := JoinNonEmpty(" ", c.FirstName, c.LastName); name != "" {
		return name
	}
	return "client " + c.ID
}

// EmploymentFields are the employment attributes set by updateEmploymentRecord.
type EmploymentFields struct {
	EmployerName       string   `json:"employerName,omitempty"`
	Position           string   `json:"position,omitempty"`
	StartDate          string   `json:"startDate,omitempty"`
	EndDate            string   `json:"endDate,omitempty"`
	EmployerPhone      string   `json:"employerPhone,omitempty"`
	GrossMonthlyIncome *float64 `json:"grossMonthlyIncome,omitempty"`
	SelfEmployed       *bool    `json:"selfEmployed,omitempty"`
	Current            *bool    `json:"current,omitempty"`
	EmployerAddress    *Address `json:"employerAddress,omitempty"`
}

// Apply copies every provided field onto dst.
func (f EmploymentFields) Apply(dst *EmploymentFields) {
	setString(&dst.EmployerName, f.EmployerName)
	setString(&dst.Position, f.Position)
	setString(&dst.StartDate, f.StartDate)
	setString(&dst.EndDate, f.EndDate)
	setString(&dst.EmployerPhone, f.EmployerPhone)
	setFloat(&dst.GrossMonthlyIncome, f.GrossMonthlyIncome)
	setBool(&dst.SelfEmployed, f.SelfEmployed)
	setBool(&dst.Current, f.Current)
	if f.EmployerAddress != nil {
		addr := *f.EmployerAddress
		dst.EmployerAddress = &addr
	}
}

// EmploymentRecord is one employer in the client's employment history.
type EmploymentRecord struct {
	Base
	ClientID string `json:"clientId"`
	EmploymentFields
}

// IncomeFields are the attributes set by updateActiveIncome.
type IncomeFields struct {
	CompanyName   string   `json:"companyName,omitempty"`
	IncomeType    string   `json:"incomeType,omitempty"`
	MonthlyAmount *float64 `json:"monthlyAmount,omitempty"`
	Bonus         *float64 `json:"bonus,omitempty"`
	Commissions   *float64 `json:"commissions,omitempty"`
	Overtime      *float64 `json:"overtime,omitempty"`
}

// Apply copies every provided field onto dst.
func (f IncomeFields) Apply(dst *IncomeFields) {
	setString(&dst.CompanyName, f.CompanyName)
	setString(&dst.IncomeType, f.IncomeType)
	setFloat(&dst.MonthlyAmount, f.MonthlyAmount)
	setFloat(&dst.Bonus, f.Bonus)
	setFloat(&dst.Commissions, f.Commissions)
	setFloat(&dst.Overtime, f.Overtime)
}

// ActiveIncome is an income stream reported alongside employment.
type ActiveIncome struct {
	Base
	ClientID string `json:"clientId"`
	IncomeFields
}

// AssetFields are the attributes set by updateAsset.
type AssetFields struct {
	Category      string   `json:"category,omitempty"`
	Institution   string   `json:"institution,omitempty"`
	AccountNumber string   `json:"accountNumber,omitempty"`
	Amount        *float64 `json:"amount,omitempty"`
}

// Apply copies every provided field onto dst.
func (f AssetFields) Apply(dst *AssetFields) {
	setString(&dst.Category, f.Category)
	setString(&dst.Institution, f.Institution)
	setString(&dst.AccountNumber, f.AccountNumber)
	setFloat(&dst.Amount, f.Amount)
}

// Asset is a financial asset held by one or more clients.
type Asset struct {
	Base
	ClientID string `json:"clientId"`
	AssetFields
	SharedClientIDs []string `json:"sharedClientIds,omitempty"`
}

// RealEstateFields are the attributes set by updateRealEstateRecord.
type RealEstateFields struct {
	Address          *Address `json:"address,omitempty"`
	PropertyType     string   `json:"propertyType,omitempty"`
	Occupancy        string   `json:"occupancy,omitempty"`
	Status           string   `json:"status,omitempty"` // retained | sold | pending_sale
	PropertyValue    *float64 `json:"propertyValue,omitempty"`
	MonthlyTaxes     *float64 `json:"monthlyTaxes,omitempty"`
	MonthlyInsurance *float64 `json:"monthlyInsurance,omitempty"`
}

// Apply copies every provided field onto dst.
func (f RealEstateFields) Apply(dst *RealEstateFields) {
	if f.Address != nil {
		addr := *f.Address
		dst.Address = &addr
	}
	setString(&dst.PropertyType, f.PropertyType)
	setString(&dst.Occupancy, f.Occupancy)
	setString(&dst.Status, f.Status)
	setFloat(&dst.PropertyValue, f.PropertyValue)
	setFloat(&dst.MonthlyTaxes, f.MonthlyTaxes)
	setFloat(&dst.MonthlyInsurance, f.MonthlyInsurance)
}

// RealEstateRecord is a property owned by one or more clients.
type RealEstateRecord struct {
	Base
	ClientID string `json:"clientId"`
	RealEstateFields
	SharedClientIDs []string `json:"sharedClientIds,omitempty"`
}

// FormerAddressFields describe a prior residence.
type FormerAddressFields struct {
	Addr     Address `json:"addr"`
	FromDate string  `json:"fromDate,omitempty"`
	ToDate   string  `json:"toDate,omitempty"`
	Housing  string  `json:"housing,omitempty"`
}

// FormerAddress is a prior residence of a client.
type FormerAddress struct {
	Base
	ClientID string `json:"clientId"`
	FormerAddressFields
}

// RecordRef is the kind-agnostic view of a per-client record returned by
// Mutator.ListRecords.
type RecordRef struct {
	ID        string     `json:"id"`
	ClientID  string     `json:"clientId"`
	Kind      RecordKind `json:"kind"`
	CreatedAt time.Time  `json:"created_at"`
	Seq       int64      `json:"seq"`
}

// ClientSummary is the lightweight client view used for warnings and summaries.
type ClientSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Change describes a mutation applied to a record during a transaction.
type Change struct {
	Entity EntityType `json:"entity"`
	Op     ChangeOp   `json:"op"`
	Before any        `json:"before,omitempty"`
	After  any        `json:"after,omitempty"`
}

// ChangeOp indicates the type of modification performed.
type ChangeOp string

// Change operations captured in the transaction audit trail.
const (
	// OpCreate indicates a record was created.
	OpCreate ChangeOp = "create"
	// OpUpdate indicates a record was updated.
	OpUpdate ChangeOp = "update"
)

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setFloat(dst **float64, v *float64) {
	if v != nil {
		cp := *v
		*dst = &cp
	}
}

func setBool(dst **bool, v *bool) {
	if v != nil {
		cp := *v
		*dst = &cp
	}
}
