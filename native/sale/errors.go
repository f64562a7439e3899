package sale

import "errors"

var (
	ErrInvalidQuantity = errors.New("sale: quantity must be positive")
	ErrInvalidClass    = errors.New("sale: invalid class")
	ErrSupplyExhausted = errors.New("sale: supply exhausted")
	ErrSplitInvariant  = errors.New("sale: split invariant violated")
	ErrPaymentInvalid  = errors.New("sale: payment authorization invalid")
	ErrReentrantCall   = errors.New("sale: reentrant settlement rejected")
)
