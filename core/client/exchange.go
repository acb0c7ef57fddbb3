package client

import (
	"strconv"

	"example.com/sntp/net/sntp"
	"example.com/sntp/net/udp"
)

type State int

const (
	// StateOpening: connection created, server address not yet connected.
	StateOpening State = iota
	// StateRequesting: request encoded, not yet written to the connection.
	StateRequesting
	// StateAwaitingReply: request sent, waiting for a reply or the deadline.
	StateAwaitingReply
	// StateClosing: reply received or deadline passed, connection closing.
	StateClosing
	// StateClosed: connection closed, exchange discarded.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateRequesting:
		return "requesting"
	case StateAwaitingReply:
		return "awaiting reply"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

type Event struct {
	Kind udp.EventKind
	Data []byte
	// Now is the local clock reading in milliseconds when the event occurred.
	Now int64
}

type Action struct {
	// Send holds an encoded request to write to the connection.
	Send []byte
	// Time is the corrected epoch time in milliseconds derived from a reply,
	// or 0 if none was derived.
	Time           int64
	RoundTripDelay int64
	Reply          *sntp.Packet
	Err            error
	TimedOut       bool
	Close          bool
}

// Exchange is the state of a single SNTP request/reply round trip.
type Exchange struct {
	State      State
	Timeout    int64
	Expiration int64
}

func NewExchange(timeoutMillis int64) Exchange {
	return Exchange{State: StateOpening, Timeout: timeoutMillis}
}

func (x Exchange) live() bool {
	return x.State == StateOpening || x.State == StateRequesting || x.State == StateAwaitingReply
}

// Sent acknowledges that the request emitted on connect is on the wire.
func (x Exchange) Sent() Exchange {
	if x.State == StateRequesting {
		x.State = StateAwaitingReply
	}
	return x
}

// Step applies ev to x and returns the new state together with the side
// effects the caller has to carry out.
func Step(x Exchange, ev Event) (Exchange, Action) {
	var a Action
	switch ev.Kind {
	case udp.EventOpen:
		if x.State == StateOpening {
			x.Expiration = ev.Now + x.Timeout
		}
	case udp.EventConnect:
		if x.State == StateOpening {
			x.State = StateRequesting
			a.Send = sntp.EncodeRequest(ev.Now)
		}
	case udp.EventRead:
		if x.live() {
			var pkt sntp.Packet
			t, err := sntp.ParsePacket(&pkt, ev.Data, ev.Now)
			if err == nil || err == sntp.ErrKissOfDeath {
				a.Reply = &pkt
			}
			if err != nil {
				a.Err = err
			} else if t > 0 {
				a.Time = t
				a.RoundTripDelay = sntp.RoundTripDelay(
					sntp.MillisFromTime64(pkt.OriginTime),
					sntp.MillisFromTime64(pkt.ReceiveTime),
					sntp.MillisFromTime64(pkt.TransmitTime),
					ev.Now)
			}
			x.State = StateClosing
			a.Close = true
		}
	case udp.EventPoll:
		if x.live() && ev.Now > x.Expiration {
			x.State = StateClosing
			a.TimedOut = true
			a.Close = true
		}
	case udp.EventClose:
		x.State = StateClosed
	}
	return x, a
}
