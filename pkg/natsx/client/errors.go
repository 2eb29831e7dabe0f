package client

import "errors"

var (
	ErrClientClosed   = errors.New("nats client closed")
	ErrNotConnected   = errors.New("nats client not connected")
	ErrInvalidURL     = errors.New("invalid nats url")
	ErrInvalidSubject = errors.New("invalid subject")
	ErrInvalidName    = errors.New("invalid stream or bucket name")
	ErrInvalidKey     = errors.New("invalid key")
	ErrKeyNotFound    = errors.New("key not found")
)
