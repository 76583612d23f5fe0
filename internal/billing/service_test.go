package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"audiototext/api-gateway/models"
)

type fakeLedger struct {
	record     *models.UsageRecord
	reconciled []struct {
		plan models.PlanTier
		max  int
	}
}

func (f *fakeLedger) Get(ctx context.Context, identity string) (*models.UsageRecord, error) {
	if f.record == nil {
		return &models.UsageRecord{UserID: identity, MaxUsage: 2, Plan: models.PlanFree}, nil
	}
	return f.record, nil
}

func (f *fakeLedger) Reconcile(ctx context.Context, identity string, plan models.PlanTier, maxUsage int) error {
	f.reconciled = append(f.reconciled, struct {
		plan models.PlanTier
		max  int
	}{plan, maxUsage})
	return nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestInitiateUpgradeAlreadyOnPlan(t *testing.T) {
	checkoutCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checkoutCalls++
	}))
	defer server.Close()

	ledger := &fakeLedger{record: &models.UsageRecord{UserID: "u1", MaxUsage: 2, Plan: models.PlanFree}}
	service := NewService(server.URL, server.URL, "", ledger, testLogger())

	_, err := service.InitiateUpgrade(context.Background(), "u1", models.PlanFree)
	if !errors.Is(err, ErrAlreadyOnPlan) {
		t.Fatalf("InitiateUpgrade = %v, want ErrAlreadyOnPlan", err)
	}
	if checkoutCalls != 0 {
		t.Errorf("checkout endpoint was called %d times, want 0", checkoutCalls)
	}
}

func TestInitiateUpgradeNotPurchasable(t *testing.T) {
	checkoutCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checkoutCalls++
	}))
	defer server.Close()

	// Caller is on Pro; the free tier has no price reference.
	ledger := &fakeLedger{record: &models.UsageRecord{UserID: "u1", MaxUsage: 4, Plan: models.PlanPro}}
	service := NewService(server.URL, server.URL, "", ledger, testLogger())

	_, err := service.InitiateUpgrade(context.Background(), "u1", models.PlanFree)
	if !errors.Is(err, ErrNotPurchasable) {
		t.Fatalf("InitiateUpgrade = %v, want ErrNotPurchasable", err)
	}
	if checkoutCalls != 0 {
		t.Errorf("checkout endpoint was called %d times, want 0", checkoutCalls)
	}
}

func TestInitiateUpgradeOpensCheckout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"url":"https://checkout.example/session_123"}`)
	}))
	defer server.Close()

	ledger := &fakeLedger{record: &models.UsageRecord{UserID: "u1", MaxUsage: 2, Plan: models.PlanFree}}
	service := NewService(server.URL, server.URL, "", ledger, testLogger())

	url, err := service.InitiateUpgrade(context.Background(), "u1", models.PlanPro)
	if err != nil {
		t.Fatalf("InitiateUpgrade: %v", err)
	}
	if url != "https://checkout.example/session_123" {
		t.Errorf("url = %q", url)
	}
}

func TestReconcileWritesPlanAndAllotment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"plan":"pro","max_usage":4}`)
	}))
	defer server.Close()

	ledger := &fakeLedger{}
	service := NewService(server.URL, server.URL, "", ledger, testLogger())

	if err := service.Reconcile(context.Background(), "u1"); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(ledger.reconciled) != 1 {
		t.Fatalf("ledger reconciled %d times, want 1", len(ledger.reconciled))
	}
	if ledger.reconciled[0].plan != models.PlanPro || ledger.reconciled[0].max != 4 {
		t.Errorf("reconciled with %s/%d, want pro/4", ledger.reconciled[0].plan, ledger.reconciled[0].max)
	}
}

func TestReconcileProviderDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	ledger := &fakeLedger{}
	service := NewService(server.URL, server.URL, "", ledger, testLogger())

	err := service.Reconcile(context.Background(), "u1")
	if !errors.Is(err, ErrReconciliationFailed) {
		t.Fatalf("Reconcile = %v, want ErrReconciliationFailed", err)
	}
	if len(ledger.reconciled) != 0 {
		t.Errorf("ledger was written %d times on provider failure, want 0", len(ledger.reconciled))
	}
}

func TestReconcileUnknownPlanRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"plan":"enterprise"}`)
	}))
	defer server.Close()

	ledger := &fakeLedger{}
	service := NewService(server.URL, server.URL, "", ledger, testLogger())

	if err := service.Reconcile(context.Background(), "u1"); !errors.Is(err, ErrReconciliationFailed) {
		t.Fatalf("Reconcile = %v, want ErrReconciliationFailed", err)
	}
}

func TestPlanCacheExpiry(t *testing.T) {
	cache := newPlanCache()
	current := time.Now()
	cache.now = func() time.Time { return current }

	cache.set("u1", models.PlanPro, 4)
	if plan, max, ok := cache.get("u1"); !ok || plan != models.PlanPro || max != 4 {
		t.Fatalf("get = (%v, %v, %v), want fresh pro/4", plan, max, ok)
	}

	current = current.Add(cacheTTL + time.Second)
	if _, _, ok := cache.get("u1"); ok {
		t.Error("cache entry survived past its TTL")
	}
}

func TestCatalogShape(t *testing.T) {
	plans := Catalog()
	if len(plans) != 3 {
		t.Fatalf("catalog has %d plans, want 3", len(plans))
	}
	free, _ := PlanByTag(models.PlanFree)
	if free.PriceID != "" {
		t.Error("free tier must not carry a price reference")
	}
	pro, _ := PlanByTag(models.PlanPro)
	if pro.PriceID == "" || pro.MaxUsage != 4 {
		t.Errorf("pro plan = %+v", pro)
	}
	plus, _ := PlanByTag(models.PlanProPlus)
	if plus.MaxUsage != models.UnlimitedUsage {
		t.Errorf("pro plus allotment = %d, want unlimited sentinel", plus.MaxUsage)
	}
}

func TestCurrentPlanServedFromCache(t *testing.T) {
	providerCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		providerCalls++
		fmt.Fprint(w, `{"plan":"pro","max_usage":4}`)
	}))
	defer server.Close()

	service := NewService(server.URL, server.URL, "", &fakeLedger{}, testLogger())

	for i := 0; i < 3; i++ {
		plan, maxUsage, err := service.CurrentPlan(context.Background(), "u1")
		if err != nil {
			t.Fatalf("CurrentPlan #%d: %v", i, err)
		}
		if plan != models.PlanPro || maxUsage != 4 {
			t.Fatalf("CurrentPlan #%d = %s/%d, want pro/4", i, plan, maxUsage)
		}
	}
	if providerCalls != 1 {
		t.Errorf("provider was asked %d times for three reads, want 1", providerCalls)
	}
}

func TestReconcilePrimesPlanCache(t *testing.T) {
	providerCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		providerCalls++
		fmt.Fprint(w, `{"plan":"pro_plus","max_usage":-1}`)
	}))
	defer server.Close()

	service := NewService(server.URL, server.URL, "", &fakeLedger{}, testLogger())

	if err := service.Reconcile(context.Background(), "u1"); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	plan, maxUsage, err := service.CurrentPlan(context.Background(), "u1")
	if err != nil {
		t.Fatalf("CurrentPlan: %v", err)
	}
	if plan != models.PlanProPlus || maxUsage != models.UnlimitedUsage {
		t.Errorf("CurrentPlan = %s/%d, want pro_plus/unlimited", plan, maxUsage)
	}
	if providerCalls != 1 {
		t.Errorf("provider was asked %d times, want 1 (reconcile only)", providerCalls)
	}
}

func TestCheckoutInvalidatesCachedPlan(t *testing.T) {
	planReads := 0
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()
	mux.HandleFunc("/checkout", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"url":"https://checkout.example/session_456"}`)
	})
	mux.HandleFunc("/plan", func(w http.ResponseWriter, r *http.Request) {
		planReads++
		fmt.Fprint(w, `{"plan":"free","max_usage":2}`)
	})

	ledger := &fakeLedger{record: &models.UsageRecord{UserID: "u1", MaxUsage: 2, Plan: models.PlanFree}}
	service := NewService(server.URL+"/checkout", server.URL+"/plan", "", ledger, testLogger())

	if _, _, err := service.CurrentPlan(context.Background(), "u1"); err != nil {
		t.Fatalf("CurrentPlan: %v", err)
	}
	if _, err := service.InitiateUpgrade(context.Background(), "u1", models.PlanPro); err != nil {
		t.Fatalf("InitiateUpgrade: %v", err)
	}
	if _, _, err := service.CurrentPlan(context.Background(), "u1"); err != nil {
		t.Fatalf("CurrentPlan after checkout: %v", err)
	}
	if planReads != 2 {
		t.Errorf("provider was asked %d times, want 2 (checkout dropped the cached entry)", planReads)
	}
}
