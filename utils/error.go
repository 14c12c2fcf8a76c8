package utils

import "errors"

// Error taxonomy. Fatal: ErrConfig, ErrAuthExchangeFailed. Everything else
// is caught at the smallest enclosing scope and turned into a counter.
var (
	ErrConfig                  = errors.New("configuration invalid")
	ErrAuthExchangeFailed      = errors.New("authorization code exchange failed")
	ErrRefreshFailed           = errors.New("token refresh failed")
	ErrNoMapping               = errors.New("no product mapping found")
	ErrUnexpectedResponseShape = errors.New("unexpected response shape")
	ErrorRecordNotFound        = errors.New("record not found")
)
