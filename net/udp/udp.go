package udp

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/libp2p/go-reuseport"

	"go.uber.org/zap"
)

const (
	DefaultPort = 123

	maxDatagramLen = 1500
)

var (
	errInvalidDSCP        = errors.New("invalid DSCP value")
	errInvalidAddr        = errors.New("invalid address")
	errNoAddrFound        = errors.New("no address found")
	errNotConnected       = errors.New("connection not established")
	errUnexpectedConnType = errors.New("unexpected connection type")
	errWrite              = errors.New("failed to write packet")

	lastConnID atomic.Uint64
)

type EventKind int

const (
	EventOpen EventKind = iota
	EventConnect
	EventRead
	EventPoll
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventConnect:
		return "connect"
	case EventRead:
		return "read"
	case EventPoll:
		return "poll"
	case EventClose:
		return "close"
	default:
		return "EventKind(" + strconv.Itoa(int(k)) + ")"
	}
}

type Event struct {
	Kind EventKind
	// Data holds the received datagram for EventRead. It is only valid
	// during the HandleEvent call.
	Data []byte
}

type Handler interface {
	HandleEvent(c *Conn, ev Event)
}

type HandlerFunc func(c *Conn, ev Event)

func (f HandlerFunc) HandleEvent(c *Conn, ev Event) { f(c, ev) }

type Options struct {
	LocalAddr    string
	DSCP         uint8
	PollInterval time.Duration
}

type Conn struct {
	ID         uint64
	conn       *net.UDPConn
	remoteAddr netip.AddrPort
	resolving  atomic.Bool
	closing    atomic.Bool
}

func (c *Conn) IsResolving() bool { return c.resolving.Load() }

func (c *Conn) IsClosing() bool { return c.closing.Load() }

// SetClosing asks the event loop to close the connection after the current
// event.
func (c *Conn) SetClosing() { c.closing.Store(true) }

func (c *Conn) RemoteAddr() netip.AddrPort { return c.remoteAddr }

func (c *Conn) Send(b []byte) error {
	if c.conn == nil {
		return errNotConnected
	}
	n, err := c.conn.WriteToUDPAddrPort(b, c.remoteAddr)
	if err != nil {
		return err
	}
	if n != len(b) {
		return errWrite
	}
	return nil
}

// ParseAddr accepts "udp://host:port", "host:port" or "host" and returns
// host and port. An empty address selects defaultAddr.
func ParseAddr(addr, defaultAddr string) (string, uint16, error) {
	if addr == "" {
		addr = defaultAddr
	}
	addr = strings.TrimPrefix(addr, "udp://")
	if addr == "" || strings.Contains(addr, "://") {
		return "", 0, errInvalidAddr
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		var aerr *net.AddrError
		if errors.As(err, &aerr) && aerr.Err == "missing port in address" {
			return addr, DefaultPort, nil
		}
		return "", 0, err
	}
	if host == "" {
		return "", 0, errInvalidAddr
	}
	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil || p == 0 {
		return "", 0, errInvalidAddr
	}
	return host, uint16(p), nil
}

func resolve(ctx context.Context, host string, port uint16) (netip.AddrPort, error) {
	ip, err := netip.ParseAddr(host)
	if err == nil {
		return netip.AddrPortFrom(ip.Unmap(), port), nil
	}
	ips, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return netip.AddrPort{}, err
	}
	for _, ip := range ips {
		if ip.Unmap().Is4() {
			return netip.AddrPortFrom(ip.Unmap(), port), nil
		}
	}
	if len(ips) == 0 {
		return netip.AddrPort{}, errNoAddrFound
	}
	return netip.AddrPortFrom(ips[0], port), nil
}

func listen(localAddr string) (*net.UDPConn, error) {
	if localAddr == "" {
		return net.ListenUDP("udp", nil)
	}
	pc, err := reuseport.ListenPacket("udp", localAddr)
	if err != nil {
		return nil, err
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()
		return nil, errUnexpectedConnType
	}
	return conn, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// Connect opens a UDP connection to addr and drives h until h marks the
// connection closing or ctx is done. All events are delivered on the calling
// goroutine, EventClose always last.
func Connect(ctx context.Context, log *zap.Logger, addr, defaultAddr string,
	opts Options, h Handler) error {
	c := &Conn{ID: lastConnID.Add(1)}
	c.resolving.Store(true)
	defer h.HandleEvent(c, Event{Kind: EventClose})

	h.HandleEvent(c, Event{Kind: EventOpen})

	host, port, err := ParseAddr(addr, defaultAddr)
	if err != nil {
		log.Error("failed to parse address", zap.String("address", addr), zap.Error(err))
		return err
	}
	c.remoteAddr, err = resolve(ctx, host, port)
	if err != nil {
		log.Info("failed to resolve address", zap.String("host", host), zap.Error(err))
		return err
	}
	c.conn, err = listen(opts.LocalAddr)
	if err != nil {
		return err
	}
	defer c.conn.Close()
	err = SetDSCP(c.conn, opts.DSCP)
	if err != nil {
		log.Info("failed to set DSCP", zap.Error(err))
	}
	c.resolving.Store(false)
	log.Debug("connected",
		zap.Uint64("conn", c.ID),
		zap.Stringer("to", c.remoteAddr),
		zap.Stringer("from", c.conn.LocalAddr()),
	)

	h.HandleEvent(c, Event{Kind: EventConnect})

	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 50 * time.Millisecond
	}
	buf := make([]byte, maxDatagramLen)
	for !c.IsClosing() {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = c.conn.SetReadDeadline(time.Now().Add(pollInterval))
		if err != nil {
			return err
		}
		n, srcAddr, err := c.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if !isTimeout(err) {
				log.Info("failed to read packet", zap.Uint64("conn", c.ID), zap.Error(err))
				return err
			}
		} else if srcAddr.Addr().Unmap() != c.remoteAddr.Addr().Unmap() ||
			srcAddr.Port() != c.remoteAddr.Port() {
			log.Info("received packet from unexpected source",
				zap.Uint64("conn", c.ID), zap.Stringer("from", srcAddr))
		} else {
			h.HandleEvent(c, Event{Kind: EventRead, Data: buf[:n]})
		}
		if !c.IsClosing() {
			h.HandleEvent(c, Event{Kind: EventPoll})
		}
	}
	return nil
}
