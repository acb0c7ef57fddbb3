//go:build !linux

package udp

import (
	"net"
)

func SetDSCP(conn *net.UDPConn, dscp uint8) error {
	if dscp > 63 {
		return errInvalidDSCP
	}
	return nil
}
