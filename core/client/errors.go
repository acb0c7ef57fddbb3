package client

import (
	"errors"
)

var (
	ErrResolving = errors.New("failed to send request: connection still resolving")
)
