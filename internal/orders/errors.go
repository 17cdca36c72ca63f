package orders

import apperrors "chatstore/internal/errors"

var (
	ErrOrderNotFound     = apperrors.NotFound("ORDER_NOT_FOUND", "We couldn't find that order.")
	ErrProductNotFound   = apperrors.NotFound("PRODUCT_NOT_FOUND", "That product is no longer available.")
	ErrNotYourOrder      = apperrors.Forbidden("ORDER_FORBIDDEN", "You can't manage that order.")
	ErrInvalidTransition = apperrors.Validation("INVALID_TRANSITION", "That order can't be moved to that status.")
	ErrStoreInactive     = apperrors.Validation("STORE_INACTIVE", "This store isn't taking orders yet.")
	ErrStoreClosed       = apperrors.Validation("STORE_CLOSED", "This store is closed right now. Please try again during trading hours.")
	ErrOutOfStock        = apperrors.Validation("OUT_OF_STOCK", "Sorry, that item is out of stock.")
	ErrEmptyOrder        = apperrors.Validation("EMPTY_ORDER", "Your order has no items.")
	ErrInvalidQuantity   = apperrors.Validation("INVALID_QUANTITY", "Please order between 1 and 50.")
)
