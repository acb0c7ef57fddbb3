package client

import (
	"context"
	"time"

	"github.com/google/uuid"

	"go.uber.org/zap"

	"example.com/sntp/core/config"
	"example.com/sntp/core/timebase"

	"example.com/sntp/net/sntp"
	"example.com/sntp/net/udp"
)

type Client struct {
	Clock   *timebase.Clock
	Timeout time.Duration
	// OnTime is called with the corrected epoch time in milliseconds after a
	// reply updated the clock offset.
	OnTime func(epochMillis int64)
}

// Result describes the outcome of one exchange. Time is 0 unless a reply
// yielded a corrected time.
type Result struct {
	Time           int64
	Offset         int64
	RoundTripDelay int64
	KissCode       string
	Err            error
	TimedOut       bool
}

// Handler drives one exchange over one transport connection.
type Handler struct {
	ID     uuid.UUID
	log    *zap.Logger
	clk    *timebase.Clock
	onTime func(int64)
	mtrcs  *clientMetrics
	x      Exchange
	result Result
}

var _ udp.Handler = (*Handler)(nil)

func (c *Client) NewHandler(log *zap.Logger) *Handler {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = config.ExchangeTimeout
	}
	return &Handler{
		ID:     uuid.New(),
		log:    log,
		clk:    c.Clock,
		onTime: c.OnTime,
		mtrcs:  clntMetrics.Load(),
		x:      NewExchange(timeout.Milliseconds()),
	}
}

func (h *Handler) State() State { return h.x.State }

func (h *Handler) Result() Result { return h.result }

func (h *Handler) HandleEvent(conn *udp.Conn, ev udp.Event) {
	now := h.clk.Millis()
	prev := h.x.State
	x, a := Step(h.x, Event{Kind: ev.Kind, Data: ev.Data, Now: now})
	h.x = x

	switch ev.Kind {
	case udp.EventOpen:
		h.mtrcs.exchanges.Inc()
	case udp.EventClose:
		h.log.Debug("exchange closed",
			zap.Stringer("id", h.ID),
			zap.Stringer("from", prev),
		)
	}

	if a.Send != nil {
		err := send(h.log, conn, a.Send)
		if err != nil {
			h.log.Info("failed to send request", zap.Stringer("id", h.ID), zap.Error(err))
			h.result.Err = err
			h.x.State = StateClosing
			conn.SetClosing()
			return
		}
		h.x = h.x.Sent()
		h.mtrcs.reqsSent.Inc()
	}

	if a.Reply != nil {
		h.log.Debug("received reply",
			zap.Stringer("id", h.ID),
			zap.Int64("at", now),
			zap.Object("data", sntp.PacketMarshaler{Pkt: a.Reply}),
		)
	}

	if a.Err != nil {
		h.result.Err = a.Err
		h.mtrcs.respsRejected.WithLabelValues(rejectReason(a.Err)).Inc()
		if a.Err == sntp.ErrKissOfDeath {
			h.result.KissCode = a.Reply.KissCode()
			h.log.Info("server sent a kiss of death",
				zap.Stringer("id", h.ID),
				zap.String("code", h.result.KissCode),
			)
		} else {
			h.log.Info("failed to parse reply", zap.Stringer("id", h.ID), zap.Error(a.Err))
		}
	} else if a.Time > 0 {
		h.clk.SetTime(a.Time, now)
		h.result.Time = a.Time
		h.result.Offset = h.clk.Offset()
		h.result.RoundTripDelay = a.RoundTripDelay
		h.mtrcs.respsAccepted.Inc()
		h.log.Debug("got time",
			zap.Stringer("id", h.ID),
			zap.Int64("epoch ms", a.Time),
			zap.Int64("offset ms", h.result.Offset),
			zap.Int64("round trip delay ms", a.RoundTripDelay),
		)
		if h.onTime != nil {
			h.onTime(a.Time)
		}
	} else if ev.Kind == udp.EventRead {
		h.mtrcs.respsRejected.WithLabelValues(rejectReason(nil)).Inc()
	}

	if a.TimedOut {
		h.result.TimedOut = true
		h.mtrcs.timeouts.Inc()
		h.log.Info("exchange timed out", zap.Stringer("id", h.ID))
	}

	if a.Close {
		conn.SetClosing()
	}
}

func send(log *zap.Logger, conn *udp.Conn, b []byte) error {
	if conn.IsResolving() {
		log.Error("wait until resolved", zap.Uint64("conn", conn.ID))
		return ErrResolving
	}
	return conn.Send(b)
}

// RequestTime sends one request stamped with the current local clock
// reading on an already open connection.
func RequestTime(log *zap.Logger, clk *timebase.Clock, conn *udp.Conn) error {
	err := send(log, conn, sntp.EncodeRequest(clk.Millis()))
	if err == nil {
		clntMetrics.Load().reqsSent.Inc()
	}
	return err
}

// Exchange performs one request/reply round trip with the server at addr.
// Reply errors and timeouts are reported in the result; the returned error
// is reserved for transport failures.
func (c *Client) Exchange(ctx context.Context, log *zap.Logger,
	addr string, opts udp.Options) (Result, error) {
	h := c.NewHandler(log)
	err := udp.Connect(ctx, log, addr, config.DefaultServerAddr, opts, h)
	if err != nil {
		log.Info("exchange failed", zap.Stringer("id", h.ID), zap.String("to", addr), zap.Error(err))
	}
	return h.result, err
}
