package kv

import "errors"

var (
	ErrNotFound           = errors.New("kv: key not found")
	ErrEmptyConnectionURL = errors.New("kv: empty connection URL")
	ErrFailedToParseURL   = errors.New("kv: failed to parse connection URL")
	ErrConnectionFailed   = errors.New("kv: failed to establish connection")
)
