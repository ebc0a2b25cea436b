package command

import (
	"testing"

	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

func TestSVModify_BadAmount(t *testing.T) {
	if _, err := NewSVModify(SVModifyDebit, false, 40000, [2]byte{}, [2]byte{}, 0, false, false); err == nil {
		t.Fatal("expected an error for amount > 32767")
	}
}

func TestSVModify_Debit_NegatesAmount(t *testing.T) {
	c, err := NewSVModify(SVModifyDebit, false, 100, [2]byte{0x01, 0x02}, [2]byte{0x03, 0x04}, 0x55, false, false)
	if err != nil {
		t.Fatalf("NewSVModify error: %v", err)
	}
	got := int16(c.dataIn[1])<<8 | int16(c.dataIn[2])
	if got != -100 {
		t.Errorf("amount = %d, want -100", got)
	}
}

func TestSVModify_Reload_KeepsAmountPositive(t *testing.T) {
	c, err := NewSVModify(SVModifyReload, false, 100, [2]byte{0x01, 0x02}, [2]byte{0x03, 0x04}, 0x55, false, false)
	if err != nil {
		t.Fatalf("NewSVModify error: %v", err)
	}
	got := int16(c.dataIn[1])<<8 | int16(c.dataIn[2])
	if got != 100 {
		t.Errorf("amount = %d, want 100", got)
	}
}

func TestSVModify_Finalize_SetsPostponedLe(t *testing.T) {
	c, _ := NewSVModify(SVModifyDebit, false, 10, [2]byte{}, [2]byte{}, 0, true, false)
	complementary := make([]byte, 15)
	complementary[4] = 0xAA // P1
	complementary[5] = 0xBB // P2
	if err := c.Finalize(complementary); err != nil {
		t.Fatalf("Finalize error: %v", err)
	}
	raw, err := c.Request().Bytes()
	if err != nil {
		t.Fatalf("Bytes() error: %v", err)
	}
	if raw[1] != 0xBA || raw[2] != 0xAA || raw[3] != 0xBB {
		t.Errorf("INS/P1/P2 = %02X/%02X/%02X, want BA/AA/BB", raw[1], raw[2], raw[3])
	}
	// inside a session the answer is postponed: no Le byte follows the
	// 5-byte header and the 20-byte body
	if len(raw) != 5+20 {
		t.Errorf("request length = %d, want %d (no Le)", len(raw), 5+20)
	}
}

func TestSVModify_Finalize_BodyLengthAndTail(t *testing.T) {
	c, _ := NewSVModify(SVModifyDebit, false, 10, [2]byte{}, [2]byte{}, 0, true, false)
	complementary := make([]byte, 15)
	for i := range complementary {
		complementary[i] = byte(0xA0 + i)
	}
	if err := c.Finalize(complementary); err != nil {
		t.Fatalf("Finalize error: %v", err)
	}
	if len(c.dataIn) != 20 {
		t.Fatalf("dataIn len = %d, want 20", len(c.dataIn))
	}
	// Finalize copies complementaryData[10:15] (the signatureHi tail)
	// into dataIn[15:20]; a buffer too small to hold it would silently
	// drop these bytes instead of failing.
	if got, want := c.dataIn[15:20], complementary[10:15]; string(got) != string(want) {
		t.Errorf("dataIn tail = %X, want %X", got, want)
	}

	raw, err := c.Request().Bytes()
	if err != nil {
		t.Fatalf("Bytes() error: %v", err)
	}
	if raw[4] != 20 {
		t.Errorf("Lc = %d, want 20", raw[4])
	}
}

func TestSVModify_Finalize_ExtendedBodyLengthAndTail(t *testing.T) {
	c, _ := NewSVModify(SVModifyReload, false, 10, [2]byte{}, [2]byte{}, 0, true, true)
	complementary := make([]byte, 20)
	for i := range complementary {
		complementary[i] = byte(0xB0 + i)
	}
	if err := c.Finalize(complementary); err != nil {
		t.Fatalf("Finalize error: %v", err)
	}
	if len(c.dataIn) != 25 {
		t.Fatalf("dataIn len = %d, want 25", len(c.dataIn))
	}
	if got, want := c.dataIn[15:25], complementary[10:20]; string(got) != string(want) {
		t.Errorf("dataIn tail = %X, want %X", got, want)
	}
}

func TestSVModify_Finalize_BadComplementaryLength(t *testing.T) {
	c, _ := NewSVModify(SVModifyUndebit, false, 10, [2]byte{}, [2]byte{}, 0, false, false)
	if err := c.Finalize(make([]byte, 3)); err == nil {
		t.Fatal("expected an error for a malformed complementary data length")
	}
}

func TestSVModify_ParseResponse_Postponed(t *testing.T) {
	c, _ := NewSVModify(SVModifyDebit, false, 10, [2]byte{}, [2]byte{}, 0, true, false)
	_ = c.Finalize(make([]byte, 15))

	resp, _ := apdu.ParseResponse([]byte{0x62, 0x00})
	img := card.New()
	if err := c.ParseResponse(resp, img); err != nil {
		t.Fatalf("ParseResponse error: %v", err)
	}
}

func TestSVModify_ParseResponse_Signature(t *testing.T) {
	c, _ := NewSVModify(SVModifyDebit, false, 10, [2]byte{}, [2]byte{}, 0, false, false)
	_ = c.Finalize(make([]byte, 15))

	dataOut := []byte{1, 2, 3}
	raw := append(append([]byte{}, dataOut...), 0x90, 0x00)
	resp, _ := apdu.ParseResponse(raw)
	img := card.New()
	if err := c.ParseResponse(resp, img); err != nil {
		t.Fatalf("ParseResponse error: %v", err)
	}
	if len(img.SV.LastOperationSignature) != 3 {
		t.Errorf("LastOperationSignature len = %d, want 3", len(img.SV.LastOperationSignature))
	}
}
