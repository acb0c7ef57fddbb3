package sntp

import (
	"errors"
)

var (
	ErrCorruptPacket      = errors.New("corrupt packet")
	ErrNotAServerReply    = errors.New("not a server reply")
	ErrKissOfDeath        = errors.New("server sent a kiss of death")
	ErrUnsupportedVersion = errors.New("unsupported version")
)
