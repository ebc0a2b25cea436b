package command

import (
	"testing"

	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

func TestInvalidate_Request(t *testing.T) {
	c := NewInvalidate(apdu.ClassISO)
	raw, err := c.Request().Bytes()
	if err != nil {
		t.Fatalf("Bytes() error: %v", err)
	}
	if raw[1] != 0x04 {
		t.Errorf("INS = %02X, want 04", raw[1])
	}
}

func TestRehabilitate_Request(t *testing.T) {
	c := NewRehabilitate(apdu.ClassISO)
	raw, err := c.Request().Bytes()
	if err != nil {
		t.Fatalf("Bytes() error: %v", err)
	}
	if raw[1] != 0x44 {
		t.Errorf("INS = %02X, want 44", raw[1])
	}
}

func TestInvalidate_ParseResponse_Error(t *testing.T) {
	resp, _ := apdu.ParseResponse([]byte{0x69, 0x85})
	c := NewInvalidate(apdu.ClassISO)
	img := card.New()
	if err := c.ParseResponse(resp, img); err == nil {
		t.Fatal("expected an error for 6985")
	}
}
