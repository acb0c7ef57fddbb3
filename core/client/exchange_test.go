package client_test

import (
	"errors"
	"testing"

	"example.com/sntp/core/client"
	"example.com/sntp/net/sntp"
	"example.com/sntp/net/udp"
)

func reply(origin, receive, transmit int64) []byte {
	pkt := sntp.Packet{Stratum: 2}
	pkt.SetVersion(sntp.VersionMax)
	pkt.SetMode(sntp.ModeServer)
	pkt.OriginTime = sntp.Time64FromMillis(origin)
	pkt.ReceiveTime = sntp.Time64FromMillis(receive)
	pkt.TransmitTime = sntp.Time64FromMillis(transmit)
	b := make([]byte, sntp.PacketLen)
	sntp.EncodePacket(&b, &pkt)
	return b
}

func TestStepOpenSetsExpiration(t *testing.T) {
	x := client.NewExchange(3000)
	x, a := client.Step(x, client.Event{Kind: udp.EventOpen, Now: 700})
	if x.State != client.StateOpening {
		t.Errorf("state = %v; expected %v", x.State, client.StateOpening)
	}
	if x.Expiration != 3700 {
		t.Errorf("expiration = %d; expected 3700", x.Expiration)
	}
	if a.Send != nil || a.Close {
		t.Errorf("unexpected action %+v", a)
	}
}

func TestStepConnectSendsOneRequest(t *testing.T) {
	x := client.NewExchange(3000)
	x, _ = client.Step(x, client.Event{Kind: udp.EventOpen, Now: 1000})
	x, a := client.Step(x, client.Event{Kind: udp.EventConnect, Now: 1000})
	if x.State != client.StateRequesting {
		t.Errorf("state = %v; expected %v", x.State, client.StateRequesting)
	}
	if len(a.Send) != sntp.PacketLen || a.Send[0] != 0x23 {
		t.Fatalf("unexpected request %x", a.Send)
	}
	var pkt sntp.Packet
	_ = sntp.DecodePacket(&pkt, a.Send)
	if sntp.MillisFromTime64(pkt.TransmitTime) != 1000 {
		t.Errorf("transmit time = %d; expected 1000", sntp.MillisFromTime64(pkt.TransmitTime))
	}

	x = x.Sent()
	if x.State != client.StateAwaitingReply {
		t.Errorf("state = %v; expected %v", x.State, client.StateAwaitingReply)
	}

	x, a = client.Step(x, client.Event{Kind: udp.EventConnect, Now: 1001})
	if a.Send != nil {
		t.Errorf("second connect must not send another request")
	}
	if x.State != client.StateAwaitingReply {
		t.Errorf("state = %v; expected %v", x.State, client.StateAwaitingReply)
	}
}

func TestStepPollTimeout(t *testing.T) {
	x := client.NewExchange(3000)
	x, _ = client.Step(x, client.Event{Kind: udp.EventOpen, Now: 0})
	x, _ = client.Step(x, client.Event{Kind: udp.EventConnect, Now: 0})
	x = x.Sent()

	x, a := client.Step(x, client.Event{Kind: udp.EventPoll, Now: 3000})
	if x.State != client.StateAwaitingReply || a.Close || a.TimedOut {
		t.Fatalf("poll at the deadline must not time out: state %v, action %+v", x.State, a)
	}
	x, a = client.Step(x, client.Event{Kind: udp.EventPoll, Now: 3001})
	if x.State != client.StateClosing {
		t.Errorf("state = %v; expected %v", x.State, client.StateClosing)
	}
	if !a.Close || !a.TimedOut || a.Err != nil || a.Time != 0 {
		t.Errorf("unexpected action %+v", a)
	}
}

func TestStepPollTimeoutBeforeConnect(t *testing.T) {
	x := client.NewExchange(100)
	x, _ = client.Step(x, client.Event{Kind: udp.EventOpen, Now: 0})
	x, a := client.Step(x, client.Event{Kind: udp.EventPoll, Now: 101})
	if x.State != client.StateClosing || !a.TimedOut {
		t.Errorf("state = %v, action %+v; expected timeout", x.State, a)
	}
}

func TestStepReadReply(t *testing.T) {
	x := client.NewExchange(3000)
	x, _ = client.Step(x, client.Event{Kind: udp.EventOpen, Now: 1000})
	x, _ = client.Step(x, client.Event{Kind: udp.EventConnect, Now: 1000})
	x = x.Sent()

	x, a := client.Step(x, client.Event{
		Kind: udp.EventRead,
		Data: reply(1000, 1500, 1600),
		Now:  2000,
	})
	if x.State != client.StateClosing {
		t.Errorf("state = %v; expected %v", x.State, client.StateClosing)
	}
	if a.Time != 2050 {
		t.Errorf("time = %d; expected 2050", a.Time)
	}
	if a.RoundTripDelay != 900 {
		t.Errorf("round trip delay = %d; expected 900", a.RoundTripDelay)
	}
	if !a.Close || a.Err != nil || a.Reply == nil {
		t.Errorf("unexpected action %+v", a)
	}

	x, a = client.Step(x, client.Event{Kind: udp.EventRead, Data: reply(1000, 1500, 1600), Now: 2001})
	if a.Time != 0 || a.Close {
		t.Errorf("reply after closing must be ignored, got %+v", a)
	}

	x, _ = client.Step(x, client.Event{Kind: udp.EventClose, Now: 2002})
	if x.State != client.StateClosed {
		t.Errorf("state = %v; expected %v", x.State, client.StateClosed)
	}
	x, a = client.Step(x, client.Event{Kind: udp.EventPoll, Now: 1 << 40})
	if x.State != client.StateClosed || a.TimedOut {
		t.Errorf("closed exchange must ignore events, got state %v, action %+v", x.State, a)
	}
}

func TestStepReadInvalidReplyCloses(t *testing.T) {
	tests := []struct {
		name string
		data func() []byte
		want error
	}{
		{"Short", func() []byte { return make([]byte, 47) }, sntp.ErrCorruptPacket},
		{"Client echo", func() []byte { return sntp.EncodeRequest(1000) }, sntp.ErrNotAServerReply},
		{"Kiss of death", func() []byte {
			b := reply(1000, 1500, 1600)
			b[1] = 0
			return b
		}, sntp.ErrKissOfDeath},
		{"Version 2", func() []byte {
			b := reply(1000, 1500, 1600)
			b[0] = 2<<3 | sntp.ModeServer
			return b
		}, sntp.ErrUnsupportedVersion},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			x := client.NewExchange(3000)
			x, _ = client.Step(x, client.Event{Kind: udp.EventOpen, Now: 1000})
			x, _ = client.Step(x, client.Event{Kind: udp.EventConnect, Now: 1000})
			x = x.Sent()
			x, a := client.Step(x, client.Event{Kind: udp.EventRead, Data: test.data(), Now: 2000})
			if !errors.Is(a.Err, test.want) {
				t.Errorf("err = %v; expected %v", a.Err, test.want)
			}
			if a.Time != 0 {
				t.Errorf("time = %d; expected 0", a.Time)
			}
			if !a.Close || x.State != client.StateClosing {
				t.Errorf("exchange must close after any reply")
			}
		})
	}
}

func TestStateString(t *testing.T) {
	if client.StateAwaitingReply.String() != "awaiting reply" {
		t.Errorf("unexpected state name %q", client.StateAwaitingReply.String())
	}
	if client.State(9).String() != "State(9)" {
		t.Errorf("unexpected state name %q", client.State(9).String())
	}
}
