package sntp

// EncodeRequest builds a version 4 client request carrying localMillis as
// its transmit timestamp. All other fields are zero.
func EncodeRequest(localMillis int64) []byte {
	req := Packet{}
	req.SetLeapIndicator(LeapIndicatorNoWarning)
	req.SetVersion(VersionMax)
	req.SetMode(ModeClient)
	req.TransmitTime = Time64FromMillis(localMillis)

	buf := make([]byte, PacketLen)
	EncodePacket(&buf, &req)
	return buf
}

// ValidateReply checks a reply in a fixed order. The first failing check
// decides the error.
func ValidateReply(b []byte) error {
	if len(b) < PacketLen {
		return ErrCorruptPacket
	}
	lvm := Packet{LVM: b[0]}
	if mode := lvm.Mode(); mode != ModeServer && mode != ModeBroadcast {
		return ErrNotAServerReply
	}
	if b[1] == 0 {
		return ErrKissOfDeath
	}
	if v := lvm.Version(); v != VersionMin && v != VersionMax {
		return ErrUnsupportedVersion
	}
	return nil
}

// ParseReply validates a server reply and returns the corrected time in
// milliseconds since the Unix epoch. localNowMillis must come from the same
// clock that produced the request's transmit timestamp.
func ParseReply(b []byte, localNowMillis int64) (int64, error) {
	var pkt Packet
	return ParsePacket(&pkt, b, localNowMillis)
}

// ParsePacket is ParseReply that also leaves the decoded header in pkt.
func ParsePacket(pkt *Packet, b []byte, localNowMillis int64) (int64, error) {
	err := ValidateReply(b)
	if err != nil {
		if err == ErrKissOfDeath {
			_ = DecodePacket(pkt, b)
		}
		return 0, err
	}
	err = DecodePacket(pkt, b)
	if err != nil {
		return 0, err
	}
	origin := MillisFromTime64(pkt.OriginTime)
	receive := MillisFromTime64(pkt.ReceiveTime)
	transmit := MillisFromTime64(pkt.TransmitTime)
	return CorrectedTime(origin, receive, transmit, localNowMillis), nil
}
