package command

import (
	"testing"

	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

func TestSearchRecordMultiple_Request(t *testing.T) {
	c := NewSearchRecordMultiple(apdu.ClassISO, 7, 1, 0, []byte{0xAA, 0xBB}, []byte{0xFF}, false, true)
	raw, err := c.Request().Bytes()
	if err != nil {
		t.Fatalf("Bytes() error: %v", err)
	}
	// P2 = sfi(7)*8 + 1 = 57 (0x39)
	if raw[1] != 0xA2 || raw[3] != 0x39 {
		t.Errorf("INS/P2 = %02X/%02X, want A2/39", raw[1], raw[3])
	}
}

func TestSearchRecordMultiple_ParseResponse(t *testing.T) {
	dataOut := []byte{2, 3, 5, 0xDE, 0xAD}
	raw := append(append([]byte{}, dataOut...), 0x90, 0x00)
	resp, _ := apdu.ParseResponse(raw)

	c := NewSearchRecordMultiple(apdu.ClassISO, 7, 1, 0, []byte{0xAA}, []byte{0xFF}, false, true)
	img := card.New()
	if err := c.ParseResponse(resp, img); err != nil {
		t.Fatalf("ParseResponse error: %v", err)
	}
	if got := c.MatchingRecords(); len(got) != 2 || got[0] != 3 || got[1] != 5 {
		t.Errorf("MatchingRecords = %v, want [3 5]", got)
	}
	if got := c.FirstMatchContent(); len(got) != 2 || got[0] != 0xDE || got[1] != 0xAD {
		t.Errorf("FirstMatchContent = %x, want DEAD", got)
	}
}
