package config

import (
	"os"
	"strconv"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Port returns the HTTP listen port.
func Port() string {
	return envOr("PORT", "8080")
}

// AppBaseURL is where the billing redirect landings send users back to.
func AppBaseURL() string {
	return envOr("APP_BASE_URL", "http://localhost:3000")
}

// FreeTierLimit is the monthly allotment granted to lazily-created usage
// records.
func FreeTierLimit() int {
	if v := os.Getenv("FREE_TIER_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 2
}

// OpenAIKey returns the API key for the upstream model provider.
func OpenAIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// OpenAIBaseURL allows pointing the AI client at a different host (tests,
// proxies). Defaults to the public API.
func OpenAIBaseURL() string {
	return envOr("OPENAI_BASE_URL", "https://api.openai.com/v1")
}

// TranscribeModel is the speech-to-text model name.
func TranscribeModel() string {
	return envOr("OPENAI_TRANSCRIBE_MODEL", "whisper-1")
}

// ChatModel is the model used for summaries, titles and action items.
func ChatModel() string {
	return envOr("OPENAI_CHAT_MODEL", "gpt-4o-mini")
}

// BillingCheckoutURL is the endpoint that opens a hosted checkout session.
func BillingCheckoutURL() string {
	return envOr("BILLING_CHECKOUT_URL", "http://localhost:8090/checkout")
}

// BillingReconcileURL is the endpoint that reports the provider's current
// plan state for an identity.
func BillingReconcileURL() string {
	return envOr("BILLING_RECONCILE_URL", "http://localhost:8090/subscription")
}

// BillingAPIKey authenticates calls to the billing provider.
func BillingAPIKey() string {
	return os.Getenv("BILLING_API_KEY")
}

// ProPriceID and ProPlusPriceID are the purchasable price references for the
// paid tiers. The free tier deliberately has none.
func ProPriceID() string {
	return envOr("BILLING_PRO_PRICE_ID", "price_pro_monthly")
}

func ProPlusPriceID() string {
	return envOr("BILLING_PRO_PLUS_PRICE_ID", "price_pro_plus_monthly")
}
