package cart

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/gomarketplace/pkg/errors"
)

// LineItem is one product entry in the cart with its quantity.
type LineItem struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	ImageURL string          `json:"image_url"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Product is the AddToCart argument: a line item without quantity.
type Product struct {
	ID       string          `json:"id" validate:"required"`
	Title    string          `json:"title"`
	ImageURL string          `json:"image_url"`
	Price    decimal.Decimal `json:"price"`
}

var productValidator = validator.New()

func (p Product) validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required").
			WithDetails(map[string]string{"id": "is required"})
	}
	if err := productValidator.Struct(p); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product")
	}
	return nil
}

func cloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}

func indexOf(items []LineItem, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

// The apply functions below never touch their input; each returns a fresh
// slice so published snapshots stay immutable.

func addProduct(items []LineItem, p Product) []LineItem {
	out := cloneItems(items)
	if i := indexOf(out, p.ID); i >= 0 {
		out[i].Quantity++
		return out
	}
	return append(out, LineItem{
		ID:       p.ID,
		Title:    p.Title,
		ImageURL: p.ImageURL,
		Price:    p.Price,
		Quantity: 1,
	})
}

func incrementItem(items []LineItem, id string) []LineItem {
	out := cloneItems(items)
	if i := indexOf(out, id); i >= 0 {
		out[i].Quantity++
	}
	return out
}

func decrementItem(items []LineItem, id string) []LineItem {
	out := cloneItems(items)
	if i := indexOf(out, id); i >= 0 && out[i].Quantity > 0 {
		out[i].Quantity--
	}
	return out
}
