// Package pricing computes proposal and invoice prices. All money is rounded to two
// places, half away from zero, before it is multiplied by a quantity.
package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)

	// DefaultVATRate is the VAT rate applied when none is configured
	DefaultVATRate = decimal.RequireFromString("0.20")
)

// Item is one line of a proposal or invoice as the engine sees it
type Item struct {
	ID             uuid.UUID
	ParentID       *uuid.UUID
	ProductName    string
	Description    string
	Unit           string
	Quantity       decimal.Decimal
	BasePrice      decimal.Decimal
	MarkupPercent  decimal.Decimal
	RetailPrice    decimal.Decimal
	IsBundleHeader bool
	IsManualPrice  bool
}

// IsRoot reports whether the item sits at the top level of the tree
func (it Item) IsRoot() bool {
	return it.ParentID == nil
}

// Round2 rounds to cents, half away from zero
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// UnitPrice is the retail price of one unit of the item
func UnitPrice(it Item) decimal.Decimal {
	if it.IsBundleHeader {
		return Round2(it.RetailPrice)
	}
	if it.BasePrice.IsPositive() {
		factor := decimal.NewFromInt(1).Add(it.MarkupPercent.Div(hundred))
		return Round2(it.BasePrice.Mul(factor))
	}
	return Round2(it.RetailPrice)
}

// LineTotal is the rounded unit price times quantity
func LineTotal(it Item) decimal.Decimal {
	return Round2(UnitPrice(it).Mul(it.Quantity))
}

// BundleAutoPrice sums the line totals of the direct children of bundleID
func BundleAutoPrice(bundleID uuid.UUID, items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		if it.ParentID != nil && *it.ParentID == bundleID {
			sum = sum.Add(LineTotal(it))
		}
	}
	return Round2(sum)
}

// Totals is the financial summary of an item tree
type Totals struct {
	Subtotal      decimal.Decimal
	Cost          decimal.Decimal
	VAT           decimal.Decimal
	Total         decimal.Decimal
	Profit        decimal.Decimal
	MarkupPercent decimal.Decimal
}

// ComputeTotals sums revenue over root items only and cost over every item.
// VAT is added on top of the VAT-exclusive subtotal.
func ComputeTotals(items []Item, hasVAT bool, vatRate decimal.Decimal) Totals {
	subtotal, cost := decimal.Zero, decimal.Zero
	for _, it := range items {
		if it.IsRoot() {
			subtotal = subtotal.Add(LineTotal(it))
		}
		cost = cost.Add(it.BasePrice.Mul(it.Quantity))
	}
	subtotal = Round2(subtotal)
	cost = Round2(cost)

	vat := decimal.Zero
	if hasVAT {
		vat = Round2(subtotal.Mul(vatRate))
	}
	profit := Round2(subtotal.Sub(cost))
	markup := decimal.Zero
	if cost.IsPositive() {
		markup = Round2(profit.Div(cost).Mul(hundred))
	}

	return Totals{
		Subtotal:      subtotal,
		Cost:          cost,
		VAT:           vat,
		Total:         subtotal.Add(vat),
		Profit:        profit,
		MarkupPercent: markup,
	}
}

// ExtractVAT returns the VAT contained in a stored VAT-inclusive total
func ExtractVAT(total decimal.Decimal, vatRate decimal.Decimal) decimal.Decimal {
	net := Round2(total.Div(decimal.NewFromInt(1).Add(vatRate)))
	return total.Sub(net)
}
