package codes

import "errors"

var (
	ErrUnauthorized = errors.New("codes: unauthorized")
	ErrEmptyCode    = errors.New("codes: empty code")
	ErrCodeExists   = errors.New("codes: code already registered")
	ErrCodeNotFound = errors.New("codes: code not found")
	ErrNullOwner    = errors.New("codes: owner must not be the null address")
	ErrRateTooHigh  = errors.New("codes: discount rate above ceiling")
)
