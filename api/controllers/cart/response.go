package cart

import (
	cartdto "github.com/angelmondragon/packfinderz-cart/api/controllers/cart/dto"
	"github.com/angelmondragon/packfinderz-cart/internal/cart/provider"
	pkgerrors "github.com/angelmondragon/packfinderz-cart/pkg/errors"
)

func newCartResponse(c *provider.Cart) cartdto.CartResponse {
	state := c.State()
	resp := cartdto.CartResponse{
		ID:        c.ID,
		Backend:   c.Store().Backend(),
		Items:     state.Items,
		Totals:    state.Totals,
		Metadata:  state.Metadata,
		UpdatedAt: state.UpdatedAt,
	}
	// The mutation stands even when it could not be saved; surface that without internals.
	if c.Err() != nil {
		resp.StorageWarning = pkgerrors.MetadataFor(pkgerrors.CodeStorage).PublicMessage
	}
	return resp
}
