package dialog

import apperrors "chatstore/internal/errors"

const (
	denialText  = "Sorry, you're not allowed to do that."
	apologyText = "Sorry, something went wrong on our side. Please try again."
)

var (
	// ErrStepTargetGone means the entity the current step points at no
	// longer exists; the router clears the step when it sees it.
	ErrStepTargetGone = apperrors.NotFound("STEP_TARGET_GONE", "That item no longer exists.")

	ErrStoreNotFound   = apperrors.NotFound("STORE_NOT_FOUND", "We couldn't find a store with that handle.")
	ErrProductNotFound = apperrors.NotFound("PRODUCT_NOT_FOUND", "We couldn't find that product.")
	ErrOrderNotFound   = apperrors.NotFound("ORDER_NOT_FOUND", "We couldn't find that order.")
	ErrInviteNotFound  = apperrors.NotFound("INVITE_NOT_FOUND", "That invite is no longer available.")

	ErrNotAdmin     = apperrors.Forbidden("NOT_ADMIN", denialText)
	ErrNotYourStore = apperrors.Forbidden("NOT_YOUR_STORE", denialText)

	ErrNeedStore        = apperrors.Validation("NEED_STORE", "That needs your store. Send 'sell' to switch to it.")
	ErrNoStore          = apperrors.Validation("NO_STORE", "You don't manage a store yet. Ask the platform team for an invite.")
	ErrNotBrowsing      = apperrors.Validation("NOT_BROWSING", "Send @handle to visit a store first.")
	ErrInviteUsed       = apperrors.Validation("INVITE_USED", "This invite has already been used or withdrawn.")
	ErrNothingToSend    = apperrors.Validation("NOTHING_TO_SEND", "There's no broadcast waiting to be sent.")
	ErrRemoveSelf       = apperrors.Validation("REMOVE_SELF", "You can't remove yourself. Ask another owner to do it.")
	ErrUnknownLocale    = apperrors.Validation("UNKNOWN_LOCALE", "Please choose English or Afrikaans.")
	ErrInvalidAccount   = apperrors.Validation("INVALID_ACCOUNT", "Please send the account number using digits only.")
	ErrInvalidSunday    = apperrors.Validation("INVALID_SUNDAY", "Reply 'open' to trade on Sundays with Saturday hours, or 'closed'.")
	ErrChooseAction     = apperrors.Validation("CHOOSE_ACTION", "Please tap one of the buttons, or send 'cancel'.")
	ErrImageOrSkip      = apperrors.Validation("IMAGE_OR_SKIP", "Please send a photo of the product, or 'skip'.")
	ErrUnknownAdminName = apperrors.NotFound("ADMIN_HANDLE_NOT_FOUND", "No store uses that admin handle.")
)
