package checkout

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCartEmpty         = errors.New("cart empty")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Shortfall is one cart line that cannot be filled.
type Shortfall struct {
	ProductID   uint   `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
	Reason      string `json:"reason"`
}

const (
	ReasonOutOfStock  = "out_of_stock"
	ReasonUnavailable = "unavailable"
)

// ShortfallError lists every failing line of a rejected checkout.
type ShortfallError struct {
	Lines []Shortfall
}

func (e *ShortfallError) Error() string {
	parts := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		name := l.ProductName
		if name == "" {
			name = fmt.Sprintf("product %d", l.ProductID)
		}
		parts = append(parts, fmt.Sprintf("%s (requested %d, available %d)", name, l.Requested, l.Available))
	}
	return "insufficient stock: " + strings.Join(parts, ", ")
}

func (e *ShortfallError) Is(target error) bool {
	return target == ErrInsufficientStock
}
