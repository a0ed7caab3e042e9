// Package ai drafts estimate line items from a free-text job description.
// Drafts are suggestions only: nothing here writes to the store.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
	"github.com/shopspring/decimal"

	"billing-engine/internal/core"
)

// DefaultModel is used when no model is configured.
const DefaultModel = shared.ChatModelGPT4oMini

// DraftItem is one proposed line. UnitPrice is a decimal string so the model
// never has to produce a float.
type DraftItem struct {
	ProductID int    `json:"product_id" jsonschema_description:"ID of the matching catalog entry, or 0 when none matches"`
	Name      string `json:"name" jsonschema_description:"Short line description shown to the customer"`
	Type      string `json:"type" jsonschema:"enum=PRODUCT,enum=SERVICE"`
	Taxable   bool   `json:"taxable" jsonschema_description:"Goods are usually taxable, labour usually is not"`
	Quantity  int    `json:"quantity" jsonschema:"minimum=1"`
	UnitPrice string `json:"unit_price" jsonschema_description:"Price per unit with two decimals, e.g. \"45.00\""`
}

// LineItemDraft is the structured answer requested from the model.
type LineItemDraft struct {
	Title      string      `json:"title" jsonschema_description:"Short estimate title"`
	Items      []DraftItem `json:"items"`
	Notes      string      `json:"notes" jsonschema_description:"Assumptions or open questions for the operator"`
	Confidence float64     `json:"confidence" jsonschema:"minimum=0,maximum=1"`
}

// Drafter proposes line items for a job description.
type Drafter interface {
	DraftLineItems(ctx context.Context, description string, catalog []core.Product) (*LineItemDraft, error)
}

// Agent is the OpenAI-backed Drafter.
type Agent struct {
	client *openai.Client
	model  string
}

func NewAgent(apiKey, model string) *Agent {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	if model == "" {
		model = string(DefaultModel)
	}
	return &Agent{client: &client, model: model}
}

func (a *Agent) DraftLineItems(ctx context.Context, description string, catalog []core.Product) (*LineItemDraft, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, core.Validationf("a job description is required")
	}

	schemaMap, err := draftSchema()
	if err != nil {
		return nil, err
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(a.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(buildPrompt(description, catalog)),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "estimate_line_items",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("Proposed line items for a small-business estimate"),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}
	return ParseDraft(resp.OutputText())
}

// ParseDraft decodes and sanity-checks a model answer.
func ParseDraft(content string) (*LineItemDraft, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("empty response content")
	}
	var d LineItemDraft
	if err := json.Unmarshal([]byte(content), &d); err != nil {
		return nil, fmt.Errorf("failed to parse completion: %w", err)
	}
	if len(d.Items) == 0 {
		return nil, fmt.Errorf("draft contains no line items")
	}
	for i, it := range d.Items {
		if _, err := decimal.NewFromString(strings.TrimSpace(it.UnitPrice)); err != nil {
			return nil, fmt.Errorf("item %d: unit price %q is not a number", i+1, it.UnitPrice)
		}
	}
	return &d, nil
}

// RawItems converts the draft into normalizer input. Product references the
// caller's catalog does not contain are dropped rather than trusted.
func (d *LineItemDraft) RawItems(catalog []core.Product) []core.RawItem {
	known := make(map[int]bool, len(catalog))
	for _, p := range catalog {
		known[p.ID] = true
	}
	out := make([]core.RawItem, 0, len(d.Items))
	for _, it := range d.Items {
		taxable := it.Taxable
		raw := core.RawItem{
			Name:      it.Name,
			Type:      it.Type,
			Taxable:   &taxable,
			Quantity:  decimal.NewFromInt(int64(it.Quantity)),
			UnitPrice: core.Price(decimal.RequireFromString(strings.TrimSpace(it.UnitPrice))),
		}
		if it.ProductID > 0 && known[it.ProductID] {
			id := it.ProductID
			raw.ProductID = &id
		}
		out = append(out, raw)
	}
	return out
}

func buildPrompt(description string, catalog []core.Product) string {
	var b strings.Builder
	b.WriteString(`You prepare estimates for a small trades business.
Turn the job description into line items.
Rules:
1. Prefer catalog entries; copy their product_id, name, type and price.
2. Use product_id 0 for anything not in the catalog and give your best price.
3. Quantities are whole numbers of at least 1.
4. Prices are strings with two decimals (e.g. "45.00").
5. Mark goods as PRODUCT and labour as SERVICE.
6. Put assumptions in notes and give a confidence score (0.0-1.0).

Catalog:
`)
	if len(catalog) == 0 {
		b.WriteString("(empty)\n")
	}
	for _, p := range catalog {
		price := "quoted per job"
		if p.Price != nil {
			price = p.Price.StringFixed(2)
		}
		fmt.Fprintf(&b, "- id=%d | %s | %s | %s\n", p.ID, p.Name, p.Type, price)
	}
	b.WriteString("\nJob description: ")
	b.WriteString(description)
	return b.String()
}

func draftSchema() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schemaJSON, err := json.Marshal(reflector.Reflect(&LineItemDraft{}))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}
	return schemaMap, nil
}
