package command

import (
	"testing"

	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

func TestSVGet_Request(t *testing.T) {
	c := NewSVGet(false, SVOperationReload, false)
	raw, err := c.Request().Bytes()
	if err != nil {
		t.Fatalf("Bytes() error: %v", err)
	}
	if raw[0] != byte(apdu.ClassISO) || raw[1] != 0x7C || raw[2] != 0x00 || raw[3] != 0x07 {
		t.Errorf("unexpected header %x", raw[:4])
	}
}

func TestSVGet_Request_LegacyClass(t *testing.T) {
	c := NewSVGet(true, SVOperationDebit, false)
	raw, err := c.Request().Bytes()
	if err != nil {
		t.Fatalf("Bytes() error: %v", err)
	}
	if raw[0] != byte(apdu.ClassLegacyStoredValue) {
		t.Errorf("CLA = %02X, want %02X", raw[0], apdu.ClassLegacyStoredValue)
	}
	if raw[3] != 0x09 {
		t.Errorf("P2 = %02X, want 09", raw[3])
	}
}

func TestSVGet_ParseResponse_CompatibilityReload(t *testing.T) {
	d := make([]byte, 0x21)
	d[0] = 0x7B
	d[1], d[2] = 0x00, 0x05
	d[8], d[9], d[10] = 0x00, 0x00, 0x32 // balance 50
	// load log record, d[11:33]: amount, date, time, free, kvc, free,
	// balance, sam id, sam transaction number, sv transaction number.
	d[11], d[12], d[13] = 0x00, 0x00, 0x0A // amount 10
	d[14], d[15] = 0x12, 0x34              // date
	d[16], d[17] = 0x56, 0x78              // time
	d[19] = 0x99                           // kvc
	d[21], d[22], d[23] = 0x00, 0x00, 0x14 // balance 20
	d[24], d[25], d[26], d[27] = 0xAA, 0xBB, 0xCC, 0xDD
	d[28], d[29], d[30] = 0x01, 0x02, 0x03
	d[31], d[32] = 0x00, 0x07
	raw := append(append([]byte{}, d...), 0x90, 0x00)
	resp, _ := apdu.ParseResponse(raw)

	c := NewSVGet(false, SVOperationReload, false)
	img := card.New()
	if err := c.ParseResponse(resp, img); err != nil {
		t.Fatalf("ParseResponse error: %v", err)
	}
	if img.SV.KVC != 0x7B {
		t.Errorf("KVC = %02X, want 7B", img.SV.KVC)
	}
	if img.SV.LastTransactionNumber != 5 {
		t.Errorf("LastTransactionNumber = %d, want 5", img.SV.LastTransactionNumber)
	}
	if img.SV.Balance != 50 {
		t.Errorf("Balance = %d, want 50", img.SV.Balance)
	}

	log := img.SV.LoadLog
	if log.Amount != 10 || log.Date != 0x1234 || log.Time != 0x5678 || log.KVC != 0x99 || log.Balance != 20 {
		t.Errorf("LoadLog = %+v, unexpected", log)
	}
	if log.SamID != [4]byte{0xAA, 0xBB, 0xCC, 0xDD} {
		t.Errorf("LoadLog.SamID = %X, want AABBCCDD", log.SamID)
	}
	if log.SamTransactionNumber != [3]byte{0x01, 0x02, 0x03} {
		t.Errorf("LoadLog.SamTransactionNumber = %X, want 010203", log.SamTransactionNumber)
	}
	if log.SvTransactionNumber != 7 {
		t.Errorf("LoadLog.SvTransactionNumber = %d, want 7", log.SvTransactionNumber)
	}
	if img.SV.DebitLog != (card.SVLogRecord{}) {
		t.Errorf("DebitLog should be zero-value for a reload response, got %+v", img.SV.DebitLog)
	}
}

func TestSVGet_ParseResponse_CompatibilityDebit(t *testing.T) {
	d := make([]byte, 0x1E)
	d[0] = 0x7B
	d[1], d[2] = 0x00, 0x09
	d[8], d[9], d[10] = 0x00, 0x00, 0x0A // balance 10
	// debit log record, d[11:30]: amount(2), date(2), time(2), kvc,
	// sam id(4), sam transaction number(3), sv transaction number(2),
	// balance(3).
	d[11], d[12] = 0x00, 0x05 // amount 5
	d[17] = 0x88              // kvc
	d[27], d[28], d[29] = 0x00, 0x00, 0x2D // balance 45
	raw := append(append([]byte{}, d...), 0x90, 0x00)
	resp, _ := apdu.ParseResponse(raw)

	c := NewSVGet(false, SVOperationDebit, false)
	img := card.New()
	if err := c.ParseResponse(resp, img); err != nil {
		t.Fatalf("ParseResponse error: %v", err)
	}

	log := img.SV.DebitLog
	if log.Amount != 5 || log.KVC != 0x88 || log.Balance != 45 {
		t.Errorf("DebitLog = %+v, unexpected", log)
	}
	if img.SV.LoadLog != (card.SVLogRecord{}) {
		t.Errorf("LoadLog should be zero-value for a debit response, got %+v", img.SV.LoadLog)
	}
}

func TestSVGet_ParseResponse_NegativeBalance(t *testing.T) {
	d := make([]byte, 0x1E)
	d[8] = 0xFF // sign-extend negative
	d[9], d[10] = 0xFF, 0xFF
	raw := append(append([]byte{}, d...), 0x90, 0x00)
	resp, _ := apdu.ParseResponse(raw)

	c := NewSVGet(false, SVOperationDebit, false)
	img := card.New()
	if err := c.ParseResponse(resp, img); err != nil {
		t.Fatalf("ParseResponse error: %v", err)
	}
	if img.SV.Balance != -1 {
		t.Errorf("Balance = %d, want -1", img.SV.Balance)
	}
}
