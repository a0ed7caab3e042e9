package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// DefaultItemName replaces a blank line-item name.
	DefaultItemName = "Item"
	// MaxItemNameLength is the longest usable line-item name, in characters.
	MaxItemNameLength = 200
	// MaxItemQuantity is the largest quantity accepted on a single line.
	MaxItemQuantity = 1_000_000
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)

	maxQuantity = decimal.NewFromInt(MaxItemQuantity)

	// MaxAmount is the largest money value a stored amount column holds.
	MaxAmount = decimal.RequireFromString("999999999999.99")
)

// RawItem is unvalidated line-item input as received from a caller.
// Taxable is nil when the caller did not say; the item type decides then.
// UnitPrice is invalid when no price was given, which lets a catalog
// reference supply one; an explicit zero is kept.
type RawItem struct {
	ProductID *int                `json:"product_id,omitempty"`
	Name      string              `json:"name"`
	Type      string              `json:"type"`
	Taxable   *bool               `json:"taxable,omitempty"`
	Quantity  decimal.Decimal     `json:"quantity"`
	UnitPrice decimal.NullDecimal `json:"unit_price"`
}

// Price is a convenience for building a RawItem with a known unit price.
func Price(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NewNullDecimal(d)
}

// PricedLines is the normalizer output: validated items plus the derived
// financial fields computed from them.
type PricedLines struct {
	Items []LineItem
	Financials
}

// NormalizeItemType maps free-form input onto PRODUCT or SERVICE.
// Unknown values fall back to PRODUCT.
func NormalizeItemType(raw string) ItemType {
	t := ItemType(strings.ToUpper(strings.TrimSpace(raw)))
	if t.IsValid() {
		return t
	}
	return ItemTypeProduct
}

// NormalizeTaxRate clamps a percentage to [0,100].
func NormalizeTaxRate(rate decimal.Decimal) decimal.Decimal {
	if rate.IsNegative() {
		return decimal.Zero
	}
	if rate.GreaterThan(hundred) {
		return hundred
	}
	return rate.Round(4)
}

// NormalizeDiscount clamps a requested discount to be non-negative.
// The applied discount is further capped at the subtotal by ComputeFinancials.
func NormalizeDiscount(discount decimal.Decimal) decimal.Decimal {
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount.Round(2)
}

// NormalizeItems validates raw items and prices each line.
func NormalizeItems(raw []RawItem) ([]LineItem, error) {
	if len(raw) == 0 {
		return nil, Validationf("at least one line item is required")
	}

	items := make([]LineItem, 0, len(raw))
	for i, r := range raw {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			name = DefaultItemName
		}
		if len([]rune(name)) > MaxItemNameLength {
			return nil, Validationf("line %d: name must be at most %d characters", i+1, MaxItemNameLength)
		}

		qty := r.Quantity.Floor()
		if qty.LessThan(one) {
			qty = one
		}
		if qty.GreaterThan(maxQuantity) {
			return nil, Validationf("line %d: quantity must be at most %d", i+1, MaxItemQuantity)
		}

		price := r.UnitPrice.Decimal
		if !r.UnitPrice.Valid || price.IsNegative() {
			price = decimal.Zero
		}
		price = price.Round(2)
		if price.GreaterThan(MaxAmount) {
			return nil, Validationf("line %d: unit price must be at most %s", i+1, MaxAmount.StringFixed(2))
		}
		lineTotal := qty.Mul(price)
		if lineTotal.GreaterThan(MaxAmount) {
			return nil, Validationf("line %d: line total must be at most %s", i+1, MaxAmount.StringFixed(2))
		}

		itemType := NormalizeItemType(r.Type)
		taxable := itemType == ItemTypeProduct
		if r.Taxable != nil {
			taxable = *r.Taxable
		}

		items = append(items, LineItem{
			ProductID: r.ProductID,
			Name:      name,
			Type:      itemType,
			Taxable:   taxable,
			Quantity:  int(qty.IntPart()),
			UnitPrice: price,
			LineTotal: lineTotal,
		})
	}
	return items, nil
}

// ComputeFinancials derives subtotal, applied discount, tax and total from
// already-normalized items. The discount is allocated proportionally between
// taxable and non-taxable lines; tax applies only to the discounted taxable
// share and is rounded to cents.
func ComputeFinancials(items []LineItem, discount, taxRate decimal.Decimal) Financials {
	discount = NormalizeDiscount(discount)
	taxRate = NormalizeTaxRate(taxRate)

	subtotal := decimal.Zero
	taxableSubtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.LineTotal)
		if it.Taxable {
			taxableSubtotal = taxableSubtotal.Add(it.LineTotal)
		}
	}

	applied := decimal.Min(discount, subtotal)

	taxableDiscount := decimal.Zero
	if subtotal.IsPositive() {
		taxableDiscount = applied.Mul(taxableSubtotal).Div(subtotal)
	}
	taxableBase := decimal.Max(taxableSubtotal.Sub(taxableDiscount), decimal.Zero)
	tax := taxableBase.Mul(taxRate).Div(hundred).Round(2)

	total := decimal.Max(subtotal.Sub(applied).Add(tax), decimal.Zero)

	return Financials{
		SubtotalAmount: subtotal,
		DiscountAmount: applied,
		TaxRate:        taxRate,
		TaxAmount:      tax,
		TotalAmount:    total,
	}
}

// PriceLines runs the full normalizer: item validation followed by the
// financial computation.
func PriceLines(raw []RawItem, discount, taxRate decimal.Decimal) (*PricedLines, error) {
	items, err := NormalizeItems(raw)
	if err != nil {
		return nil, err
	}
	fin := ComputeFinancials(items, discount, taxRate)
	if fin.SubtotalAmount.GreaterThan(MaxAmount) || fin.TotalAmount.GreaterThan(MaxAmount) {
		return nil, Validationf("document total must be at most %s", MaxAmount.StringFixed(2))
	}
	return &PricedLines{Items: items, Financials: fin}, nil
}
