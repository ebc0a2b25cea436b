package command

import (
	"encoding/hex"
	"testing"

	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

func TestOpenSession_Rev3_Request(t *testing.T) {
	c := NewOpenSession(card.ProductRev3, 1, []byte{0x11, 0x22, 0x33}, 7, 1, 0, false)
	raw, err := c.Request().Bytes()
	if err != nil {
		t.Fatalf("Bytes() error: %v", err)
	}
	// P1 = rec(1)*8 + key(1) = 9, P2 = sfi(7)*8 + 1 = 57 (0x39), Le=00 (up to 256)
	got := hex.EncodeToString(raw)
	want := "008a093903112233" + "00"
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestOpenSession_Rev3_ParseResponse(t *testing.T) {
	// extended mode: transaction counter 00 00 01, random 5 bytes,
	// ratification flags byte, KIF, KVC, dataLength 0
	dataOut := []byte{0x00, 0x00, 0x01, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0x00, 0x10, 0x20, 0x00}
	raw := append(append([]byte{}, dataOut...), 0x90, 0x00)
	resp, _ := apdu.ParseResponse(raw)

	c := NewOpenSession(card.ProductRev3, 1, []byte{0x11}, 7, 1, 0, true)
	img := card.New()
	if err := c.ParseResponse(resp, img); err != nil {
		t.Fatalf("ParseResponse error: %v", err)
	}
	if !c.PreviousRatified {
		t.Error("expected PreviousRatified = true")
	}
	if c.KIF != 0x10 || c.KVC != 0x20 {
		t.Errorf("KIF/KVC = %02X/%02X, want 10/20", c.KIF, c.KVC)
	}
	if img.Security.TransactionCounter != 1 {
		t.Errorf("TransactionCounter = %d, want 1", img.Security.TransactionCounter)
	}
}
