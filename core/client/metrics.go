package client

import (
	"errors"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"example.com/sntp/base/metrics"

	"example.com/sntp/net/sntp"
)

type clientMetrics struct {
	exchanges     prometheus.Counter
	reqsSent      prometheus.Counter
	respsAccepted prometheus.Counter
	respsRejected *prometheus.CounterVec
	timeouts      prometheus.Counter
}

var clntMetrics atomic.Pointer[clientMetrics]

func init() {
	clntMetrics.Store(newClientMetrics())
}

func newClientMetrics() *clientMetrics {
	return &clientMetrics{
		exchanges: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.ClientExchangesN,
			Help: metrics.ClientExchangesH,
		}),
		reqsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.ClientReqsSentN,
			Help: metrics.ClientReqsSentH,
		}),
		respsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.ClientRespsAcceptedN,
			Help: metrics.ClientRespsAcceptedH,
		}),
		respsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.ClientRespsRejectedN,
			Help: metrics.ClientRespsRejectedH,
		}, []string{"reason"}),
		timeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.ClientTimeoutsN,
			Help: metrics.ClientTimeoutsH,
		}),
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, sntp.ErrCorruptPacket):
		return "corrupt_packet"
	case errors.Is(err, sntp.ErrNotAServerReply):
		return "not_a_server_reply"
	case errors.Is(err, sntp.ErrKissOfDeath):
		return "kiss_of_death"
	case errors.Is(err, sntp.ErrUnsupportedVersion):
		return "unsupported_version"
	default:
		return "no_time"
	}
}
