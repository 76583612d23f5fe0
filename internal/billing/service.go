package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"audiototext/api-gateway/models"
)

var (
	// ErrAlreadyOnPlan means the upgrade target equals the current plan.
	// Rejected locally; no checkout session is opened.
	ErrAlreadyOnPlan = errors.New("already on the requested plan")

	// ErrNotPurchasable means the target tier has no price reference (e.g.
	// the free tier). Rejected locally.
	ErrNotPurchasable = errors.New("plan is not purchasable")

	// ErrReconciliationFailed wraps billing-provider failures during a plan
	// refresh. Callers log it and move on; it never blocks navigation.
	ErrReconciliationFailed = errors.New("billing reconciliation failed")
)

// LedgerWriter is the slice of the usage ledger the billing flow needs:
// overwriting plan and allotment from provider state.
type LedgerWriter interface {
	Reconcile(ctx context.Context, identity string, plan models.PlanTier, maxUsage int) error
	Get(ctx context.Context, identity string) (*models.UsageRecord, error)
}

// Service owns the plan upgrade flow: catalog validation, checkout
// initiation against the billing provider, and reconciliation of the ledger
// with the provider's authoritative plan state.
type Service struct {
	checkoutURL  string
	reconcileURL string
	apiKey       string
	ledger       LedgerWriter
	logger       *logrus.Logger
	cache        *planCache
	httpClient   *http.Client
}

func NewService(checkoutURL, reconcileURL, apiKey string, ledger LedgerWriter, logger *logrus.Logger) *Service {
	return &Service{
		checkoutURL:  checkoutURL,
		reconcileURL: reconcileURL,
		apiKey:       apiKey,
		ledger:       ledger,
		logger:       logger,
		cache:        newPlanCache(),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// InitiateUpgrade validates the target tier locally and, when purchasable,
// opens a hosted checkout session with the provider. It returns the checkout
// URL; payment completion is handled asynchronously via the redirect
// landings, never awaited here.
func (s *Service) InitiateUpgrade(ctx context.Context, identity string, target models.PlanTier) (string, error) {
	record, err := s.ledger.Get(ctx, identity)
	if err != nil {
		return "", err
	}
	if record.Plan == target {
		return "", fmt.Errorf("%w: %s", ErrAlreadyOnPlan, target)
	}

	plan, ok := PlanByTag(target)
	if !ok || plan.PriceID == "" {
		return "", fmt.Errorf("%w: %s", ErrNotPurchasable, target)
	}

	payload, err := json.Marshal(map[string]string{
		"priceId": plan.PriceID,
		"userId":  identity,
	})
	if err != nil {
		return "", fmt.Errorf("building checkout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.checkoutURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building checkout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("opening checkout session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		s.logger.Errorf("Checkout API error (%d): %s", resp.StatusCode, string(b))
		return "", fmt.Errorf("checkout session failed with status %d", resp.StatusCode)
	}

	var parsed struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding checkout response: %w", err)
	}
	if parsed.URL == "" {
		return "", fmt.Errorf("checkout response contained no URL")
	}

	// The plan is about to change out from under the cache; the next read
	// goes back to the provider.
	s.cache.clear(identity)

	s.logger.Infof("Checkout session opened for %s targeting plan %s", identity, target)
	return parsed.URL, nil
}

// Reconcile pulls the provider's current plan state for the identity and
// overwrites the ledger's plan and max_usage. current_usage is never
// touched. Safe to call redundantly; a provider failure is wrapped in
// ErrReconciliationFailed so callers can log it without blocking.
func (s *Service) Reconcile(ctx context.Context, identity string) error {
	plan, maxUsage, err := s.fetchPlanState(ctx, identity)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrReconciliationFailed, err)
	}

	if err := s.ledger.Reconcile(ctx, identity, plan, maxUsage); err != nil {
		return fmt.Errorf("%w: %v", ErrReconciliationFailed, err)
	}
	s.cache.set(identity, plan, maxUsage)
	return nil
}

// CurrentPlan returns the provider-known plan for the identity, served from
// the short-lived cache when fresh.
func (s *Service) CurrentPlan(ctx context.Context, identity string) (models.PlanTier, int, error) {
	if plan, maxUsage, ok := s.cache.get(identity); ok {
		return plan, maxUsage, nil
	}
	plan, maxUsage, err := s.fetchPlanState(ctx, identity)
	if err != nil {
		return "", 0, err
	}
	s.cache.set(identity, plan, maxUsage)
	return plan, maxUsage, nil
}

func (s *Service) fetchPlanState(ctx context.Context, identity string) (models.PlanTier, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.reconcileURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("building reconcile request: %w", err)
	}
	req.Header.Set("X-User-ID", identity)
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("reaching billing provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		s.logger.Errorf("Billing provider error (%d): %s", resp.StatusCode, string(b))
		return "", 0, fmt.Errorf("billing provider returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Plan     models.PlanTier `json:"plan"`
		MaxUsage *int            `json:"max_usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", 0, fmt.Errorf("decoding billing provider response: %w", err)
	}
	if !parsed.Plan.Valid() {
		return "", 0, fmt.Errorf("billing provider reported unknown plan %q", parsed.Plan)
	}

	maxUsage := AllotmentFor(parsed.Plan)
	if parsed.MaxUsage != nil {
		maxUsage = *parsed.MaxUsage
	}
	return parsed.Plan, maxUsage, nil
}
