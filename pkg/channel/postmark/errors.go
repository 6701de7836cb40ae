package postmark

import "errors"

var (
	ErrInvalidConfig    = errors.New("postmark: invalid configuration")
	ErrInvalidRecipient = errors.New("postmark: invalid recipient address")
	ErrSendFailed       = errors.New("postmark: failed to send email")
)
