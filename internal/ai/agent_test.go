package ai

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billing-engine/internal/core"
)

func catalog() []core.Product {
	price := decimal.RequireFromString("45")
	return []core.Product{
		{ID: 4, Name: "Faucet cartridge", Type: core.ItemTypeProduct, Price: &price},
		{ID: 9, Name: "Diagnostic visit", Type: core.ItemTypeService},
	}
}

func TestParseDraft(t *testing.T) {
	content := `{
		"title": "Leaky faucet",
		"items": [
			{"product_id": 4, "name": "Faucet cartridge", "type": "PRODUCT", "taxable": true, "quantity": 2, "unit_price": "45.00"},
			{"product_id": 77, "name": "Labour", "type": "SERVICE", "taxable": false, "quantity": 1, "unit_price": "80.00"}
		],
		"notes": "Assumes standard fittings.",
		"confidence": 0.8
	}`
	d, err := ParseDraft(content)
	require.NoError(t, err)
	assert.Equal(t, "Leaky faucet", d.Title)
	require.Len(t, d.Items, 2)

	raw := d.RawItems(catalog())
	require.Len(t, raw, 2)
	require.NotNil(t, raw[0].ProductID)
	assert.Equal(t, 4, *raw[0].ProductID)
	assert.Nil(t, raw[1].ProductID, "unknown catalog ids are dropped")
	assert.False(t, *raw[1].Taxable)

	priced, err := core.PriceLines(raw, decimal.Zero, decimal.NewFromInt(10))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("179").Equal(priced.TotalAmount), priced.TotalAmount.String())
}

func TestParseDraft_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"not json", "sure, here you go"},
		{"no items", `{"title":"x","items":[],"notes":"","confidence":0}`},
		{"bad price", `{"title":"x","items":[{"product_id":0,"name":"a","type":"SERVICE","taxable":false,"quantity":1,"unit_price":"about 40"}],"notes":"","confidence":0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDraft(tt.content)
			assert.Error(t, err)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt("replace kitchen faucet", catalog())
	assert.Contains(t, p, "id=4 | Faucet cartridge | PRODUCT | 45.00")
	assert.Contains(t, p, "id=9 | Diagnostic visit | SERVICE | quoted per job")
	assert.Contains(t, p, "Job description: replace kitchen faucet")

	assert.Contains(t, buildPrompt("x", nil), "(empty)")
}

func TestDraftSchema(t *testing.T) {
	s, err := draftSchema()
	require.NoError(t, err)
	assert.Equal(t, "object", s["type"])
	assert.Equal(t, false, s["additionalProperties"])

	props, ok := s["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "items")
	assert.ElementsMatch(t, []any{"title", "items", "notes", "confidence"}, s["required"])
}

func TestAgent_RequiresDescription(t *testing.T) {
	a := NewAgent("sk-test", "")
	assert.Equal(t, string(DefaultModel), a.model)
	_, err := a.DraftLineItems(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, core.ErrValidation)
}
