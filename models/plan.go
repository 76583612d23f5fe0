package models

// PlanTier identifies a subscription tier.
type PlanTier string

const (
	PlanFree    PlanTier = "free"
	PlanPro     PlanTier = "pro"
	PlanProPlus PlanTier = "pro_plus"
)

// UnlimitedUsage is the max_usage sentinel for tiers with no allotment cap.
const UnlimitedUsage = -1

// Valid reports whether the tag is one of the known tiers.
func (p PlanTier) Valid() bool {
	switch p {
	case PlanFree, PlanPro, PlanProPlus:
		return true
	}
	return false
}

// Elevated reports whether the tier is entitled to enriched action items
// (priority and category tags on extracted tasks).
func (p PlanTier) Elevated() bool {
	return p == PlanPro || p == PlanProPlus
}
