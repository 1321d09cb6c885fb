package realtor

// PlanConfig defines the terms attached to a commission tier.
type PlanConfig struct {
	Plan              Plan
	Name              string
	CommissionBps     int64
	MaxActiveListings int // 0 = unlimited
}

// Plans is the commission tier catalogue.
var Plans = map[Plan]PlanConfig{
	PlanStandard: {
		Plan:              PlanStandard,
		Name:              "Standard",
		CommissionBps:     1000,
		MaxActiveListings: 10,
	},
	PlanPlus: {
		Plan:              PlanPlus,
		Name:              "Plus",
		CommissionBps:     800,
		MaxActiveListings: 50,
	},
	PlanPremium: {
		Plan:              PlanPremium,
		Name:              "Premium",
		CommissionBps:     600,
		MaxActiveListings: 0,
	},
}

// DefaultSettingsForPlan returns the settings a realtor starts with on the
// given plan.
func DefaultSettingsForPlan(p Plan) Settings {
	cfg, ok := Plans[p]
	if !ok {
		cfg = Plans[PlanStandard]
	}
	return Settings{
		CommissionBps:     cfg.CommissionBps,
		MaxActiveListings: cfg.MaxActiveListings,
	}
}

// ValidPlan reports whether p names a known tier.
func ValidPlan(p Plan) bool {
	_, ok := Plans[p]
	return ok
}
