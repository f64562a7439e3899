package phase

import "errors"

var (
	ErrUnauthorized       = errors.New("phase: unauthorized")
	ErrNoActivePhase      = errors.New("phase: no active phase")
	ErrPhaseNotExhausted  = errors.New("phase: current phase not exhausted")
	ErrPriceNotIncreasing = errors.New("phase: price must strictly increase")
	ErrCapacityExceeded   = errors.New("phase: cap exceeds remaining tier capacity")
	ErrCapBelowSold       = errors.New("phase: cap below units already sold")
	ErrInvalidClass       = errors.New("phase: invalid class")
	ErrSupplyExhausted    = errors.New("phase: class allocation exhausted")
)
