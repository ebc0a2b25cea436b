package command

import (
	"testing"

	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

func TestChangePin_BadLength(t *testing.T) {
	if _, err := NewChangePin(apdu.ClassISO, []byte{1, 2, 3}); err == nil {
		t.Fatal("expected an error for a 3-byte cryptogram")
	}
}

func TestChangePin_Request(t *testing.T) {
	c, err := NewChangePin(apdu.ClassISO, []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("NewChangePin error: %v", err)
	}
	raw, err := c.Request().Bytes()
	if err != nil {
		t.Fatalf("Bytes() error: %v", err)
	}
	if raw[1] != 0xD8 || raw[3] != 0xFF {
		t.Errorf("INS/P2 = %02X/%02X, want D8/FF", raw[1], raw[3])
	}
}

func TestChangeKey_Request(t *testing.T) {
	c := NewChangeKey(apdu.ClassISO, 0x02, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	raw, err := c.Request().Bytes()
	if err != nil {
		t.Fatalf("Bytes() error: %v", err)
	}
	if raw[1] != 0xD8 || raw[3] != 0x02 {
		t.Errorf("INS/P2 = %02X/%02X, want D8/02", raw[1], raw[3])
	}
}

func TestChangePin_ParseResponse_SecurityError(t *testing.T) {
	resp, _ := apdu.ParseResponse([]byte{0x69, 0x88})
	c, _ := NewChangePin(apdu.ClassISO, []byte{1, 2, 3, 4})
	img := card.New()
	if err := c.ParseResponse(resp, img); err == nil {
		t.Fatal("expected an error for 6988")
	}
}
