package config

import (
	"time"
)

// DSCP is the Differentiated Services Codepoint value to be used by senders of
// time synchronization packets. Valid values must be in range [0, 63].
const DSCP = 46

const (
	DefaultServerAddr = "udp://time.google.com:123"

	ExchangeTimeout = 3000 * time.Millisecond
	PollInterval    = 50 * time.Millisecond

	SyncInterval  = 64 * time.Second
	KoDBackoff    = 64 * time.Second
	MaxKoDBackoff = 1024 * time.Second
)
