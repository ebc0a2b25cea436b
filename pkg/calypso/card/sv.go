package card

// SVLogRecord is one Stored Value log entry (load or debit). The two
// card-side record layouts differ in length and field order: a load
// log record is 22 bytes (a reload changes both amount and balance, so
// the record carries both plus a 3-byte signed amount), a debit log
// record is 19 bytes (a 2-byte signed amount, no free bytes).
// CmdCardSvGet.cpp only gives each record's starting offset and total
// length inside the SV_GET response, not its internal field offsets,
// so the layout below is a best-effort reconstruction from the public
// Calypso/Keyple SV log record shape — see DESIGN.md.
type SVLogRecord struct {
	Amount               int32
	Date                 uint16
	Time                 uint16
	KVC                  byte
	Balance              int32
	SamID                [4]byte
	SamTransactionNumber [3]byte
	SvTransactionNumber  uint16
}

func decodeSigned(b []byte) int32 {
	v := int32(0)
	for _, x := range b {
		v = v<<8 | int32(x)
	}
	if len(b) > 0 && b[0]&0x80 != 0 {
		v |= -1 << (8 * uint(len(b)))
	}
	return v
}

// ParseSVLoadLogRecord decodes a 22-byte SV load log record: amount
// (3 bytes), date (2), time (2), a free byte, KVC, a free byte,
// balance (3 bytes), SAM ID (4 bytes), SAM transaction number (3
// bytes), SV transaction number (2 bytes).
func ParseSVLoadLogRecord(b []byte) SVLogRecord {
	var r SVLogRecord
	if len(b) < 22 {
		return r
	}
	r.Amount = decodeSigned(b[0:3])
	r.Date = uint16(b[3])<<8 | uint16(b[4])
	r.Time = uint16(b[5])<<8 | uint16(b[6])
	r.KVC = b[8]
	r.Balance = decodeSigned(b[10:13])
	copy(r.SamID[:], b[13:17])
	copy(r.SamTransactionNumber[:], b[17:20])
	r.SvTransactionNumber = uint16(b[20])<<8 | uint16(b[21])
	return r
}

// ParseSVDebitLogRecord decodes a 19-byte SV debit (or undebit) log
// record: amount (2 bytes), date (2), time (2), KVC, SAM ID (4 bytes),
// SAM transaction number (3 bytes), SV transaction number (2 bytes),
// balance (3 bytes).
func ParseSVDebitLogRecord(b []byte) SVLogRecord {
	var r SVLogRecord
	if len(b) < 19 {
		return r
	}
	r.Amount = decodeSigned(b[0:2])
	r.Date = uint16(b[2])<<8 | uint16(b[3])
	r.Time = uint16(b[4])<<8 | uint16(b[5])
	r.KVC = b[6]
	copy(r.SamID[:], b[7:11])
	copy(r.SamTransactionNumber[:], b[11:14])
	r.SvTransactionNumber = uint16(b[14])<<8 | uint16(b[15])
	r.Balance = decodeSigned(b[16:19])
	return r
}

// SVState is the Stored Value sub-state of the card image (spec.md ##3).
type SVState struct {
	KVC                    byte
	GetHeader              []byte
	LastGetResponse        []byte
	Balance                int32
	LastTransactionNumber  uint16
	LoadLog                SVLogRecord
	DebitLog               SVLogRecord
	LastOperationSignature []byte
}
