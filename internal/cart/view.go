package cart

import (
	"github.com/shopspring/decimal"

	"automart/internal/domain"
)

// View is the derived, read-only state handed to listeners.
type View struct {
	Items             []domain.CartLineItem `json:"items"`
	ItemCount         int                   `json:"itemCount"`
	TotalItems        int                   `json:"totalItems"`
	TotalPrice        decimal.Decimal       `json:"totalPrice"`
	OriginalTotal     decimal.Decimal       `json:"originalTotalPrice"`
	TotalSavings      decimal.Decimal       `json:"totalSavings"`
	IsEmpty           bool                  `json:"isEmpty"`
	FormattedTotal    string                `json:"formattedTotal"`
	FormattedOriginal string                `json:"formattedOriginalTotal"`
	FormattedSavings  string                `json:"formattedSavings"`
}

func buildView(items []domain.CartLineItem) View {
	v := View{
		Items:         copyLines(items),
		ItemCount:     len(items),
		TotalPrice:    decimal.Zero,
		OriginalTotal: decimal.Zero,
		IsEmpty:       len(items) == 0,
	}
	for _, l := range items {
		q := decimal.NewFromInt(int64(l.Quantity))
		v.TotalItems += l.Quantity
		v.TotalPrice = v.TotalPrice.Add(l.Product.Price.Mul(q))
		v.OriginalTotal = v.OriginalTotal.Add(l.Product.ListPrice().Mul(q))
	}
	v.TotalSavings = v.OriginalTotal.Sub(v.TotalPrice)
	v.FormattedTotal = domain.FormatPrice(v.TotalPrice)
	v.FormattedOriginal = domain.FormatPrice(v.OriginalTotal)
	v.FormattedSavings = domain.FormatPrice(v.TotalSavings)
	return v
}
