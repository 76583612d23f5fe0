package history

import (
	"encoding/json"
	"testing"

	"audiototext/api-gateway/models"
)

func TestToggleItem(t *testing.T) {
	items := []models.ActionItem{
		{ID: "a", Text: "first"},
		{ID: "b", Text: "second", Completed: true},
	}

	if !toggleItem(items, "a") {
		t.Fatal("toggleItem did not find item a")
	}
	if !items[0].Completed {
		t.Error("item a was not marked completed")
	}

	if !toggleItem(items, "b") {
		t.Fatal("toggleItem did not find item b")
	}
	if items[1].Completed {
		t.Error("item b was not toggled back to incomplete")
	}

	if toggleItem(items, "missing") {
		t.Error("toggleItem reported success for an unknown id")
	}
}

func TestToggleItemPreservesOrderAndFields(t *testing.T) {
	priority := models.PriorityHigh
	items := []models.ActionItem{
		{ID: "a", Text: "first", Priority: &priority},
		{ID: "b", Text: "second"},
		{ID: "c", Text: "third"},
	}

	toggleItem(items, "b")

	if items[0].ID != "a" || items[1].ID != "b" || items[2].ID != "c" {
		t.Errorf("item order changed: %v %v %v", items[0].ID, items[1].ID, items[2].ID)
	}
	if items[0].Priority == nil || *items[0].Priority != models.PriorityHigh {
		t.Error("untouched item lost its priority")
	}
	if items[1].Text != "second" {
		t.Error("toggled item's text changed")
	}
}

func TestSessionItemsRoundTrip(t *testing.T) {
	original := []models.ActionItem{
		{ID: "1", Text: "alpha"},
		{ID: "2", Text: "beta", Completed: true},
		{ID: "3", Text: "gamma"},
	}
	encoded, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	session := models.TranscriptionSession{ActionItems: encoded}
	decoded, err := session.Items()
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(decoded) != 3 {
		t.Fatalf("got %d items, want 3", len(decoded))
	}
	for i := range original {
		if decoded[i].ID != original[i].ID || decoded[i].Text != original[i].Text || decoded[i].Completed != original[i].Completed {
			t.Errorf("items[%d] = %+v, want %+v", i, decoded[i], original[i])
		}
	}
}

func TestSessionItemsEmptyColumn(t *testing.T) {
	session := models.TranscriptionSession{}
	items, err := session.Items()
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("got %d items for empty column, want 0", len(items))
	}
}
