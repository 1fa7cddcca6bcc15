package models

import "errors"

var (
	ErrInvalidUser     = errors.New("provided user either does not exist or has no permission for this operation")
	ErrForbidden       = errors.New("provided user does not have permission for this operation")
	ErrNoTender        = errors.New("requested tender does not exist")
	ErrNoBid           = errors.New("requested bid does not exist")
	ErrNoNotification  = errors.New("requested notification does not exist")
	ErrInvalidState    = errors.New("operation is not allowed in the current lifecycle stage")
	ErrDeadlinePassed  = errors.New("bidding deadline has passed")
	ErrDuplicateBid    = errors.New("vendor already has an active bid on this tender")
	ErrAlreadyAwarded  = errors.New("tender already awarded")
	ErrConflictRetry   = errors.New("concurrent modification detected, retry the operation")
	ErrInvalidArgument = errors.New("invalid argument")
)
