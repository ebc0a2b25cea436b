package command

import (
	"reflect"
	"testing"

	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

func TestCloseSession_ParseResponse_PostponedAndSignature(t *testing.T) {
	// one postponed block of 2 bytes (len=3: 1 length byte + 2 data), then 4-byte signature
	raw := []byte{0x03, 0xAA, 0xBB, 0x01, 0x02, 0x03, 0x04, 0x90, 0x00}
	resp, _ := apdu.ParseResponse(raw)

	c, err := NewCloseSession(apdu.ClassISO, false, nil, false)
	if err != nil {
		t.Fatalf("NewCloseSession error: %v", err)
	}
	if err := c.ParseResponse(resp, card.New()); err != nil {
		t.Fatalf("ParseResponse error: %v", err)
	}

	if !reflect.DeepEqual(c.SignatureLo, []byte{0x01, 0x02, 0x03, 0x04}) {
		t.Errorf("SignatureLo = %X, want 01020304", c.SignatureLo)
	}
	if len(c.PostponedData) != 1 || !reflect.DeepEqual(c.PostponedData[0], []byte{0xAA, 0xBB}) {
		t.Errorf("PostponedData = %X, want [[AABB]]", c.PostponedData)
	}
}

func TestCloseSession_InvalidSignatureLength(t *testing.T) {
	_, err := NewCloseSession(apdu.ClassISO, false, []byte{0x01, 0x02}, false)
	if err == nil {
		t.Error("expected error for invalid signature length")
	}
}

func TestCloseSession_Abort(t *testing.T) {
	c := NewCloseSessionAbort(apdu.ClassISO)
	raw, _ := c.Request().Bytes()
	if len(raw) != 4 {
		t.Errorf("abort request length = %d, want 4", len(raw))
	}
}
