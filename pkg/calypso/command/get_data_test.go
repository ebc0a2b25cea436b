package command

import (
	"testing"

	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

func TestGetData_RequestP1P2(t *testing.T) {
	tests := []struct {
		name       string
		tag        GetDataTag
		wantP1, wantP2 byte
	}{
		{"fci", GetDataFCI, 0x00, 0x6F},
		{"fcp", GetDataFCP, 0x00, 0x62},
		{"ef_list", GetDataEFList, 0x00, 0xC0},
		{"traceability", GetDataTraceabilityInformation, 0x01, 0x85},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewGetData(apdu.ClassISO, card.ProductRev3, tt.tag)
			raw, err := c.Request().Bytes()
			if err != nil {
				t.Fatalf("Bytes() error: %v", err)
			}
			if raw[2] != tt.wantP1 || raw[3] != tt.wantP2 {
				t.Errorf("P1P2 = %02X%02X, want %02X%02X", raw[2], raw[3], tt.wantP1, tt.wantP2)
			}
		})
	}
}

func TestGetData_EfList_ParseResponse(t *testing.T) {
	// header: reserved byte, length-of-descriptors = 8 (one descriptor)
	// descriptor: 2-byte sub-tag, LID, SFI, EF type, record size, records number
	desc := []byte{0xAA, 0xBB, 0x2F, 0xE2, 0x07, efTypeLinear, 29, 3}
	dataOut := append([]byte{0x00, 0x08}, desc...)
	raw := append(append([]byte{}, dataOut...), 0x90, 0x00)
	resp, _ := apdu.ParseResponse(raw)

	c := NewGetData(apdu.ClassISO, card.ProductRev3, GetDataEFList)
	img := card.New()
	if err := c.ParseResponse(resp, img); err != nil {
		t.Fatalf("ParseResponse error: %v", err)
	}
	f := img.GetFileByLid(0x2FE2)
	if f == nil {
		t.Fatal("expected EF 2FE2 to be registered")
	}
	if f.Header.RecordSize != 29 || f.Header.RecordsNumber != 3 {
		t.Errorf("unexpected header %+v", f.Header)
	}
}

func TestGetData_TraceabilityInformation_ParseResponse(t *testing.T) {
	dataOut := []byte{0x00, 0x01, 0x02, 0x03, 0x04}
	raw := append(append([]byte{}, dataOut...), 0x90, 0x00)
	resp, _ := apdu.ParseResponse(raw)

	c := NewGetData(apdu.ClassISO, card.ProductRev3, GetDataTraceabilityInformation)
	img := card.New()
	if err := c.ParseResponse(resp, img); err != nil {
		t.Fatalf("ParseResponse error: %v", err)
	}
	if len(img.Security.TraceabilityInfo) != len(dataOut) {
		t.Errorf("TraceabilityInfo len = %d, want %d", len(img.Security.TraceabilityInfo), len(dataOut))
	}
}
