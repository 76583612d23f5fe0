package aiclient

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"audiototext/api-gateway/models"
)

type structuredItem struct {
	Text     string `json:"text"`
	Priority string `json:"priority"`
	Category string `json:"category"`
}

// ParseActionItems interprets the model's action-item output. The model is
// not contractually guaranteed to return valid JSON, so parsing is layered:
// an array of tagged objects, then an array of strings, then a single item
// wrapping the raw text. It never fails; a malformed payload degrades to the
// fallback rather than erroring the whole processing call.
//
// Priority and category survive only on elevated tiers and only when they
// match the known values.
func ParseActionItems(raw string, tier models.PlanTier) []models.ActionItem {
	content := strings.TrimSpace(raw)
	if content == "" {
		return []models.ActionItem{}
	}

	// Models often wrap JSON in a markdown fence.
	content = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(content, "```json"), "```"))
	content = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(content, "```"), "```"))

	var structured []structuredItem
	if err := json.Unmarshal([]byte(content), &structured); err == nil {
		items := make([]models.ActionItem, 0, len(structured))
		for _, s := range structured {
			text := strings.TrimSpace(s.Text)
			if text == "" {
				continue
			}
			items = append(items, newItem(text, s.Priority, s.Category, tier))
		}
		return items
	}

	var plain []string
	if err := json.Unmarshal([]byte(content), &plain); err == nil {
		items := make([]models.ActionItem, 0, len(plain))
		for _, text := range plain {
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			items = append(items, newItem(text, "", "", tier))
		}
		return items
	}

	// Fallback: the whole payload becomes one item.
	return []models.ActionItem{newItem(strings.TrimSpace(raw), "", "", tier)}
}

func newItem(text, priority, category string, tier models.PlanTier) models.ActionItem {
	item := models.ActionItem{
		ID:   uuid.NewString(),
		Text: text,
	}
	if tier.Elevated() {
		if models.ValidPriority(priority) {
			p := priority
			item.Priority = &p
		}
		if models.ValidCategory(category) {
			c := category
			item.Category = &c
		}
	}
	return item
}
