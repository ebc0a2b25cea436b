package command

import (
	"testing"

	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

func TestNewReadRecords_Accessors(t *testing.T) {
	c := NewReadRecords(apdu.ClassISO, 7, 3, ReadOneRecord, 29)
	if c.SFI() != 7 || c.RecordNumber() != 3 || c.Mode() != ReadOneRecord {
		t.Errorf("got sfi=%d recNo=%d mode=%v, want 7/3/ReadOneRecord", c.SFI(), c.RecordNumber(), c.Mode())
	}
}

func TestReadRecords_P2Encoding(t *testing.T) {
	tests := []struct {
		name   string
		sfi    byte
		mode   ReadMode
		wantP2 byte
	}{
		{"one record", 7, ReadOneRecord, 0x3C},
		{"multiple records", 7, ReadMultipleRecords, 0x3D},
		{"sfi zero", 0, ReadOneRecord, 0x04},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewReadRecords(apdu.ClassISO, tt.sfi, 1, tt.mode, 0)
			if c.Request().P2 != tt.wantP2 {
				t.Errorf("P2 = %#x, want %#x", c.Request().P2, tt.wantP2)
			}
		})
	}
}

func TestReadRecords_ParseResponse_OneRecord(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03, 0x90, 0x00}
	resp, _ := apdu.ParseResponse(raw)
	c := NewReadRecords(apdu.ClassISO, 1, 5, ReadOneRecord, 3)
	img := card.New()

	if err := c.ParseResponse(resp, img); err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	got := img.GetFileBySfi(1).Records[5]
	if len(got) != 3 || got[0] != 0x01 {
		t.Errorf("unexpected record content: %X", got)
	}
}

func TestReadRecords_ParseResponse_MultipleRecords(t *testing.T) {
	// two TLV records: #1 len 2 {0xAA,0xBB}, #2 len 1 {0xCC}
	raw := []byte{0x01, 0x02, 0xAA, 0xBB, 0x02, 0x01, 0xCC, 0x90, 0x00}
	resp, _ := apdu.ParseResponse(raw)
	c := NewReadRecords(apdu.ClassISO, 2, 1, ReadMultipleRecords, 6)
	img := card.New()

	if err := c.ParseResponse(resp, img); err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if got := img.GetFileBySfi(2).Records[1]; len(got) != 2 || got[1] != 0xBB {
		t.Errorf("record 1 = %X, want AABB", got)
	}
	if got := img.GetFileBySfi(2).Records[2]; len(got) != 1 || got[0] != 0xCC {
		t.Errorf("record 2 = %X, want CC", got)
	}
}

func TestReadRecords_ParseResponse_TruncatedTLV(t *testing.T) {
	raw := []byte{0x01, 0x05, 0xAA, 0x90, 0x00} // claims 5 bytes, only has 1
	resp, _ := apdu.ParseResponse(raw)
	c := NewReadRecords(apdu.ClassISO, 2, 1, ReadMultipleRecords, 6)
	img := card.New()

	if err := c.ParseResponse(resp, img); err == nil {
		t.Fatal("expected an error for a truncated record TLV")
	}
}

func TestReadRecords_ParseResponse_FileOrRecordNotFound(t *testing.T) {
	tests := []struct {
		name string
		sw   []byte
	}{
		{"file not found", []byte{0x6A, 0x82}},
		{"record not found", []byte{0x6A, 0x83}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := apdu.ParseResponse(tt.sw)
			c := NewReadRecords(apdu.ClassISO, 1, 1, ReadOneRecord, 0)
			img := card.New()
			if err := c.ParseResponse(resp, img); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
