package domain

import "errors"

var (
	ErrSessionBlocked  = errors.New("session is blocked pending approval")
	ErrSessionNotFound = errors.New("session not found")
)
