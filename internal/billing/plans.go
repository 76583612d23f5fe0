package billing

import (
	"audiototext/api-gateway/config"
	"audiototext/api-gateway/models"
)

// Plan is one tier of the fixed catalog. PriceID is empty for tiers that
// cannot be purchased through checkout (the free tier is reachable only by
// default or downgrade).
type Plan struct {
	Tag         models.PlanTier `json:"tag"`
	Name        string          `json:"name"`
	Price       string          `json:"price"`
	Period      string          `json:"period"`
	MaxUsage    int             `json:"max_usage"`
	Features    []string        `json:"features"`
	Highlighted bool            `json:"highlighted,omitempty"`
	PriceID     string          `json:"-"`
}

// Catalog returns the purchasable plan tiers in display order.
func Catalog() []Plan {
	return []Plan{
		{
			Tag:      models.PlanFree,
			Name:     "Free",
			Price:    "$0",
			Period:   "forever",
			MaxUsage: config.FreeTierLimit(),
			Features: []string{
				"2 audio transcriptions per month",
				"AI-powered summaries",
				"Action items extraction",
				"Basic history access",
			},
		},
		{
			Tag:      models.PlanPro,
			Name:     "Pro",
			Price:    "$9",
			Period:   "/month",
			MaxUsage: 4,
			Features: []string{
				"4 audio transcriptions per month",
				"AI-powered summaries",
				"Action items extraction",
				"Full history access",
				"Priority processing",
			},
			Highlighted: true,
			PriceID:     config.ProPriceID(),
		},
		{
			Tag:      models.PlanProPlus,
			Name:     "Pro Plus",
			Price:    "$19",
			Period:   "/month",
			MaxUsage: models.UnlimitedUsage,
			Features: []string{
				"Unlimited audio transcriptions",
				"AI-powered summaries",
				"Action items extraction",
				"Full history access",
				"Priority processing",
				"Advanced analytics",
				"Export capabilities",
			},
			PriceID: config.ProPlusPriceID(),
		},
	}
}

// PlanByTag looks a tier up in the catalog.
func PlanByTag(tag models.PlanTier) (Plan, bool) {
	for _, plan := range Catalog() {
		if plan.Tag == tag {
			return plan, true
		}
	}
	return Plan{}, false
}

// AllotmentFor returns the unit allotment a tier grants, defaulting to the
// free allotment for unknown tags.
func AllotmentFor(tag models.PlanTier) int {
	if plan, ok := PlanByTag(tag); ok {
		return plan.MaxUsage
	}
	return config.FreeTierLimit()
}
