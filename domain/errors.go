package domain

import "errors"

// Conflict errors: valid requests that lose against current state.
var (
	ErrNicknameTaken = errors.New("nickname-taken")
	ErrPlayerExists  = errors.New("player-exists")
	ErrDuplicateItem = errors.New("duplicate-item")
	ErrSlotTaken     = errors.New("slot-taken")
)

// Authorization errors: the acting player may not perform this.
var (
	ErrNotYourTurn = errors.New("not-your-turn")
	ErrNotHost     = errors.New("not-host")
)

// Validation errors.
var (
	ErrEmptyItemText  = errors.New("empty-item-text")
	ErrSlotOutOfRange = errors.New("slot-out-of-range")
	ErrItemLimit      = errors.New("item-limit-reached")
	ErrWrongStatus    = errors.New("wrong-room-status")
)

// Not-found errors are routine, not exceptional.
var (
	ErrRoomNotFound   = errors.New("room-not-found")
	ErrPlayerNotFound = errors.New("player-not-found")
	ErrItemNotFound   = errors.New("item-not-found")
)

var (
	TokenError               = errors.New("token-error")
	ErrInvalidSigningMethod  = errors.New("invalid-signing-method")
	ErrExpiredToken          = errors.New("expired-token")
	ErrInvalidTokenSignature = errors.New("invalid-token-signature")
	ErrCorruptedToken        = errors.New("corrupted-token")
)

// ErrorCode maps a domain error to the short machine code sent inside
// error events. Unknown errors collapse to "internal-error".
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNicknameTaken),
		errors.Is(err, ErrPlayerExists),
		errors.Is(err, ErrDuplicateItem),
		errors.Is(err, ErrSlotTaken),
		errors.Is(err, ErrNotYourTurn),
		errors.Is(err, ErrNotHost),
		errors.Is(err, ErrEmptyItemText),
		errors.Is(err, ErrSlotOutOfRange),
		errors.Is(err, ErrItemLimit),
		errors.Is(err, ErrWrongStatus),
		errors.Is(err, ErrRoomNotFound),
		errors.Is(err, ErrPlayerNotFound),
		errors.Is(err, ErrItemNotFound):
		return err.Error()
	default:
		return "internal-error"
	}
}
