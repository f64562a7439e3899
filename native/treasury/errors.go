package treasury

import "errors"

var (
	ErrNotBoardMember       = errors.New("treasury: caller is not a board member")
	ErrInvalidAmount        = errors.New("treasury: amount must be positive")
	ErrNullRecipient        = errors.New("treasury: recipient must not be the null address")
	ErrInsufficientTreasury = errors.New("treasury: amount exceeds treasury balance")
	ErrRequestNotFound      = errors.New("treasury: withdrawal request not found")
	ErrAlreadyExecuted      = errors.New("treasury: request already executed")
	ErrAlreadyBlocked       = errors.New("treasury: request blocked")
	ErrDuplicateApproval    = errors.New("treasury: member already approved")
	ErrTimeoutNotReached    = errors.New("treasury: approval timeout not reached")
	ErrEmptyBoard           = errors.New("treasury: board not configured")
	ErrReentrantCall        = errors.New("treasury: reentrant call rejected")
)
