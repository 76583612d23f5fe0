package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	supa "github.com/supabase-community/supabase-go"

	"audiototext/api-gateway/models"
)

const usageTable = "usage_tracking"

var (
	// ErrQuotaExhausted is returned by CheckAndReserve when the identity has
	// no allotment left. Recoverable only via the upgrade flow.
	ErrQuotaExhausted = errors.New("usage quota exhausted")
)

// Ledger tracks consumed vs. allotted units per identity against the
// usage_tracking table.
//
// The check-then-increment sequence around a processing call is advisory, not
// a distributed reservation: two near-simultaneous requests for the same
// identity may both pass CheckAndReserve and both RecordUsage. Plan limits
// are a soft quota; the occasional overrun costs less than transactional
// locking against the external store.
type Ledger struct {
	db        *supa.Client
	logger    *logrus.Logger
	freeLimit int
}

// New creates a Ledger. freeLimit is the allotment granted to lazily-created
// records.
func New(db *supa.Client, logger *logrus.Logger, freeLimit int) *Ledger {
	return &Ledger{db: db, logger: logger, freeLimit: freeLimit}
}

// Get fetches the identity's usage record, creating it with free-tier
// defaults on first access. Concurrent first access is safe: the unique
// user_id constraint makes the second insert fail, which is resolved by
// re-reading instead of erroring.
func (l *Ledger) Get(ctx context.Context, identity string) (*models.UsageRecord, error) {
	record, err := l.fetch(identity)
	if err != nil {
		return nil, err
	}
	if record != nil {
		return record, nil
	}

	l.logger.Infof("Creating usage record for identity %s with free-tier defaults", identity)
	created, err := l.create(identity)
	if err == nil {
		return created, nil
	}

	// Most likely a duplicate-key conflict from a racing first access;
	// whatever the cause, the authoritative row wins if it exists now.
	l.logger.Warnf("Usage record insert for %s failed (%v), re-reading", identity, err)
	record, fetchErr := l.fetch(identity)
	if fetchErr != nil {
		return nil, fetchErr
	}
	if record == nil {
		return nil, fmt.Errorf("could not create usage record for %s: %w", identity, err)
	}
	return record, nil
}

// CheckAndReserve evaluates the quota gate before a processing call. It
// returns the usage snapshot when allowed, so the caller pins the plan tier
// it was admitted with, or ErrQuotaExhausted when current usage has reached
// the allotment. Advisory only; see the type comment.
func (l *Ledger) CheckAndReserve(ctx context.Context, identity string) (*models.UsageRecord, error) {
	record, err := l.Get(ctx, identity)
	if err != nil {
		return nil, err
	}
	if record.Exhausted() {
		return nil, fmt.Errorf("%w: %d/%d used on plan %s", ErrQuotaExhausted, record.CurrentUsage, record.MaxUsage, record.Plan)
	}
	return record, nil
}

// RecordUsage increments current_usage by exactly one. Called only after a
// fully successful processing call, never on failure. The update writes only
// the current_usage column so a concurrent Reconcile (which writes plan and
// max_usage) cannot be clobbered.
func (l *Ledger) RecordUsage(ctx context.Context, identity string) error {
	record, err := l.Get(ctx, identity)
	if err != nil {
		return err
	}

	update := map[string]interface{}{
		"current_usage": record.CurrentUsage + 1,
	}
	_, _, err = l.db.From(usageTable).
		Update(update, "minimal", "").
		Eq("user_id", identity).
		Execute()
	if err != nil {
		return fmt.Errorf("recording usage for %s: %w", identity, err)
	}
	l.logger.Infof("Usage recorded for %s: %d -> %d", identity, record.CurrentUsage, record.CurrentUsage+1)
	return nil
}

// Reconcile overwrites plan and max_usage with the billing provider's
// authoritative state. It never touches current_usage, so it is safe to run
// concurrently with RecordUsage, and calling it repeatedly with a stable
// billing state is idempotent.
func (l *Ledger) Reconcile(ctx context.Context, identity string, plan models.PlanTier, maxUsage int) error {
	// Ensure the row exists before the field-level update.
	if _, err := l.Get(ctx, identity); err != nil {
		return err
	}

	update := map[string]interface{}{
		"plan":      plan,
		"max_usage": maxUsage,
	}
	_, _, err := l.db.From(usageTable).
		Update(update, "minimal", "").
		Eq("user_id", identity).
		Execute()
	if err != nil {
		return fmt.Errorf("reconciling plan for %s: %w", identity, err)
	}
	l.logger.Infof("Reconciled %s to plan %s (max_usage %d)", identity, plan, maxUsage)
	return nil
}

// ResetUsage zeroes current_usage for every identity that has any. Driven by
// the monthly reset scheduler; plans and allotments are untouched.
func (l *Ledger) ResetUsage(ctx context.Context) error {
	update := map[string]interface{}{
		"current_usage": 0,
	}
	_, _, err := l.db.From(usageTable).
		Update(update, "minimal", "").
		Gt("current_usage", "0").
		Execute()
	if err != nil {
		return fmt.Errorf("resetting usage counters: %w", err)
	}
	l.logger.Info("Monthly usage counters reset")
	return nil
}

func (l *Ledger) fetch(identity string) (*models.UsageRecord, error) {
	body, _, err := l.db.From(usageTable).
		Select("*", "", false).
		Eq("user_id", identity).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching usage record for %s: %w", identity, err)
	}

	var records []models.UsageRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("unmarshalling usage record for %s: %w", identity, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func (l *Ledger) create(identity string) (*models.UsageRecord, error) {
	record := models.UsageRecord{
		UserID:       identity,
		CurrentUsage: 0,
		MaxUsage:     l.freeLimit,
		Plan:         models.PlanFree,
	}

	body, _, err := l.db.From(usageTable).
		Insert(record, false, "", "representation", "").
		Execute()
	if err != nil {
		return nil, err
	}

	var created []models.UsageRecord
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("unmarshalling created usage record: %w", err)
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("usage record insert returned no rows")
	}
	return &created[0], nil
}
