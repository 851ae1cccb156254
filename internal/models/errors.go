package models

import "errors"

var (
	ErrValidation       = errors.New("invalid request data")
	ErrUserNotFound     = errors.New("user not found")
	ErrChatNotFound     = errors.New("chat not found")
	ErrMessageNotFound  = errors.New("message not found")
	ErrCallNotFound     = errors.New("call not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrBlocked          = errors.New("sending is blocked between these users")
	ErrBusy             = errors.New("user is busy in another call")
	ErrPeerUnavailable  = errors.New("peer has no live connection")
	ErrStaleSignal      = errors.New("signal does not match the call state")
)
