package cartdto

import (
	"time"

	"github.com/angelmondragon/packfinderz-cart/internal/cart"
)

// CartResponse is the cart as returned by every cart endpoint.
type CartResponse struct {
	ID             string              `json:"id"`
	Backend        string              `json:"backend"`
	Items          []cart.Item         `json:"items"`
	Totals         cart.Totals         `json:"totals"`
	Metadata       *cart.StateMetadata `json:"metadata,omitempty"`
	UpdatedAt      time.Time           `json:"updatedAt"`
	StorageWarning string              `json:"storageWarning,omitempty"`
}

// ItemMutationResponse carries the affected line alongside the resulting cart.
type ItemMutationResponse struct {
	Item *cart.Item   `json:"item,omitempty"`
	Cart CartResponse `json:"cart"`
}

// PreviewResponse pairs the preview with the rates it was computed with.
type PreviewResponse struct {
	Rates  cart.Rates  `json:"rates"`
	Totals cart.Totals `json:"totals"`
}
