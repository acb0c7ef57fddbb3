package sntp

import (
	"time"
)

const (
	// Seconds from NTP epoch (1900) to Unix epoch (1970), including 17 leap days
	epochOffset = 2208988800

	// Fraction denominator, 2^32 - 1
	maxFraction = 1<<32 - 1

	millisecondsPerSecond = 1000

	ServerPort = 123

	PacketLen = 48

	LeapIndicatorNoWarning    = 0
	LeapIndicatorInsertSecond = 1
	LeapIndicatorDeleteSecond = 2
	LeapIndicatorUnknown      = 3

	VersionMin = 3
	VersionMax = 4

	ModeReserved0        = 0
	ModeSymmetricActive  = 1
	ModeSymmetricPassive = 2
	ModeClient           = 3
	ModeServer           = 4
	ModeBroadcast        = 5
	ModeControl          = 6
	ModeReserved7        = 7
)

type Time32 struct {
	Seconds  uint16
	Fraction uint16
}

type Time64 struct {
	Seconds  uint32
	Fraction uint32
}

type Packet struct {
	LVM            uint8
	Stratum        uint8
	Poll           int8
	Precision      int8
	RootDelay      Time32
	RootDispersion Time32
	ReferenceID    uint32
	ReferenceTime  Time64
	OriginTime     Time64
	ReceiveTime    Time64
	TransmitTime   Time64
}

// Time64FromMillis converts a non-negative millisecond reading to an NTP
// timestamp. The fraction is truncated.
func Time64FromMillis(ms int64) Time64 {
	sec := ms / millisecondsPerSecond
	rem := ms % millisecondsPerSecond
	return Time64{
		Seconds:  uint32(sec + epochOffset),
		Fraction: uint32(uint64(rem) * maxFraction / millisecondsPerSecond),
	}
}

// MillisFromTime64 converts an NTP timestamp to milliseconds since the Unix
// epoch. A zero seconds field carries no time and only the fraction is
// converted. The seconds subtraction wraps modulo 2^32 so that timestamps of
// the era starting in 2036 still map to the right Unix second.
func MillisFromTime64(t Time64) int64 {
	sec := t.Seconds
	if sec != 0 {
		sec -= epochOffset
	}
	frac := (uint64(t.Fraction)*millisecondsPerSecond + maxFraction/2) / maxFraction
	return int64(sec)*millisecondsPerSecond + int64(frac)
}

func TimeFromTime64(t Time64) time.Time {
	return time.UnixMilli(MillisFromTime64(t)).UTC()
}

func (t Time64) Before(u Time64) bool {
	return t.Seconds < u.Seconds ||
		t.Seconds == u.Seconds && t.Fraction < u.Fraction
}

func (t Time64) After(u Time64) bool {
	return t.Seconds > u.Seconds ||
		t.Seconds == u.Seconds && t.Fraction > u.Fraction
}

// RoundTripDelay is the total network delay excluding the time the server
// spent between receiving the request and transmitting the reply.
func RoundTripDelay(origin, receive, transmit, now int64) int64 {
	return (now - origin) - (transmit - receive)
}

// CorrectedTime adds half of the round trip delay to the server transmit
// time. Integer division truncates toward zero.
func CorrectedTime(origin, receive, transmit, now int64) int64 {
	return transmit + RoundTripDelay(origin, receive, transmit, now)/2
}

func putUint32(b []byte, v uint32) {
	_ = b[3]
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func uint32At(b []byte) uint32 {
	_ = b[3]
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func putUint16(b []byte, v uint16) {
	_ = b[1]
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

func uint16At(b []byte) uint16 {
	_ = b[1]
	return uint16(b[0])<<8 | uint16(b[1])
}

func putTime64(b []byte, t Time64) {
	putUint32(b[0:4], t.Seconds)
	putUint32(b[4:8], t.Fraction)
}

func time64At(b []byte) Time64 {
	return Time64{
		Seconds:  uint32At(b[0:4]),
		Fraction: uint32At(b[4:8]),
	}
}

func EncodePacket(b *[]byte, pkt *Packet) {
	if cap(*b) < PacketLen {
		*b = make([]byte, PacketLen)
	} else {
		*b = (*b)[:PacketLen]
	}

	buf := *b
	_ = buf[47]
	buf[0] = pkt.LVM
	buf[1] = pkt.Stratum
	buf[2] = byte(pkt.Poll)
	buf[3] = byte(pkt.Precision)
	putUint16(buf[4:6], pkt.RootDelay.Seconds)
	putUint16(buf[6:8], pkt.RootDelay.Fraction)
	putUint16(buf[8:10], pkt.RootDispersion.Seconds)
	putUint16(buf[10:12], pkt.RootDispersion.Fraction)
	putUint32(buf[12:16], pkt.ReferenceID)
	putTime64(buf[16:24], pkt.ReferenceTime)
	putTime64(buf[24:32], pkt.OriginTime)
	putTime64(buf[32:40], pkt.ReceiveTime)
	putTime64(buf[40:48], pkt.TransmitTime)
}

func DecodePacket(pkt *Packet, b []byte) error {
	if len(b) < PacketLen {
		return ErrCorruptPacket
	}

	_ = b[47]
	pkt.LVM = b[0]
	pkt.Stratum = b[1]
	pkt.Poll = int8(b[2])
	pkt.Precision = int8(b[3])
	pkt.RootDelay.Seconds = uint16At(b[4:6])
	pkt.RootDelay.Fraction = uint16At(b[6:8])
	pkt.RootDispersion.Seconds = uint16At(b[8:10])
	pkt.RootDispersion.Fraction = uint16At(b[10:12])
	pkt.ReferenceID = uint32At(b[12:16])
	pkt.ReferenceTime = time64At(b[16:24])
	pkt.OriginTime = time64At(b[24:32])
	pkt.ReceiveTime = time64At(b[32:40])
	pkt.TransmitTime = time64At(b[40:48])

	return nil
}

func (p *Packet) LeapIndicator() uint8 {
	return (p.LVM >> 6) & 0b0000_0011
}

func (p *Packet) SetLeapIndicator(l uint8) {
	if l&0b0000_0011 != l {
		panic("unexpected NTP leap indicator value")
	}
	p.LVM = (p.LVM & 0b0011_1111) | (l << 6)
}

func (p *Packet) Version() uint8 {
	return (p.LVM >> 3) & 0b0000_0111
}

func (p *Packet) SetVersion(v uint8) {
	if v&0b0000_0111 != v {
		panic("unexpected NTP version value")
	}
	p.LVM = (p.LVM & 0b1100_0111) | (v << 3)
}

func (p *Packet) Mode() uint8 {
	return p.LVM & 0b0000_0111
}

func (p *Packet) SetMode(m uint8) {
	if m&0b0000_0111 != m {
		panic("unexpected NTP mode value")
	}
	p.LVM = (p.LVM & 0b1111_1000) | m
}

// KissCode returns the ASCII kiss code a server places in the reference ID
// of a stratum 0 reply, e.g. "RATE" or "DENY".
func (p *Packet) KissCode() string {
	var b [4]byte
	putUint32(b[:], p.ReferenceID)
	for i, c := range b {
		if c < 0x20 || c > 0x7e {
			return string(b[:i])
		}
	}
	return string(b[:])
}
