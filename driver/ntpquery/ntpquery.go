// Package ntpquery measures the offset of the system clock to a server with
// an independent NTP client implementation.
package ntpquery

import (
	"net"
	"strconv"
	"time"

	"github.com/beevik/ntp"

	"go.uber.org/zap"
)

const defaultPort = 123

func address(host string, port uint16) string {
	if port == 0 || port == defaultPort {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(int(port)))
}

// QueryOffset returns the offset of the server's clock relative to the
// system wall clock.
func QueryOffset(log *zap.Logger, host string, port uint16, timeout time.Duration) (
	time.Duration, error) {
	resp, err := ntp.QueryWithOptions(address(host, port), ntp.QueryOptions{
		Timeout: timeout,
	})
	if err != nil {
		return 0, err
	}
	err = resp.Validate()
	if err != nil {
		return 0, err
	}
	log.Debug("reference query",
		zap.String("host", host),
		zap.Uint8("stratum", resp.Stratum),
		zap.Duration("rtt", resp.RTT),
		zap.Duration("clock offset", resp.ClockOffset),
	)
	return resp.ClockOffset, nil
}
