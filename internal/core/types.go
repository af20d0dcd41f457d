package core

import "mortgageintake/pkg/domain"

type (
	EntityType        = domain.EntityType
	RecordKind        = domain.RecordKind
	Severity          = domain.Severity
	Action            = domain.Action
	ActionKind        = domain.ActionKind
	Params            = domain.Params
	Address           = domain.Address
	StateView         = domain.StateView
	Mutator           = domain.Mutator
	Violation         = domain.Violation
	Result            = domain.Result
	ValidationOutcome = domain.ValidationOutcome
	ActionIssue       = domain.ActionIssue
	ExecutionReport   = domain.ExecutionReport
	Transaction       = domain.Transaction
	PersistentStore   = domain.PersistentStore
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
)
