//go:build linux

package udp

import (
	"net"

	"golang.org/x/sys/unix"
)

// SetDSCP marks outgoing IPv4 datagrams with the given Differentiated
// Services Codepoint.
func SetDSCP(conn *net.UDPConn, dscp uint8) error {
	if dscp > 63 {
		return errInvalidDSCP
	}
	sconn, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var res struct {
		err error
	}
	err = sconn.Control(func(fd uintptr) {
		res.err = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TOS, int(dscp<<2))
	})
	if err != nil {
		return err
	}
	return res.err
}
