package ledger

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidSplit   = errors.New("no one to split the expense with")
	ErrInvalidAmount  = errors.New("amount must be greater than zero")
	ErrForbidden      = errors.New("not allowed")
	ErrSelfSettlement = errors.New("cannot settle with yourself")
)
