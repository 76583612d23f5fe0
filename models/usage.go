package models

// UsageRecord mirrors a row of the usage_tracking table. One record exists
// per identity (unique user_id constraint enforced by the database).
type UsageRecord struct {
	UserID       string   `json:"user_id"`
	CurrentUsage int      `json:"current_usage"`
	MaxUsage     int      `json:"max_usage"` // UnlimitedUsage means no cap
	Plan         PlanTier `json:"plan"`
}

// Exhausted reports whether the identity has used up its allotment. A
// negative MaxUsage is the unlimited sentinel and never exhausts.
func (u *UsageRecord) Exhausted() bool {
	if u.MaxUsage < 0 {
		return false
	}
	return u.CurrentUsage >= u.MaxUsage
}
