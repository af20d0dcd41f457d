package core

import "mortgageintake/pkg/domain"

type (
	Rule        = domain.Rule
	RulesEngine = domain.RulesEngine
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in action checks
// in the order their messages should be reported.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewClientReferenceRule())
	engine.Register(NewClientFieldsRule())
	engine.Register(NewEmploymentRule())
	engine.Register(NewActiveIncomeRule())
	engine.Register(NewAssetRule())
	engine.Register(NewRealEstateRule())
	engine.Register(NewAddressRule())
	return engine
}
