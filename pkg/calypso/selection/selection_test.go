package selection

import (
	"testing"

	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
	"github.com/gregLibert/calypso-core/pkg/calypso/reader"
)

func TestSelector_FilterByDFName_LengthValidation(t *testing.T) {
	s := NewSelector()
	if _, err := s.FilterByDFName([]byte{0x01, 0x02}); err == nil {
		t.Fatal("expected an error for an AID shorter than 5 bytes")
	}
	if _, err := s.FilterByDFName([]byte{1, 2, 3, 4, 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSelector_MatchesPowerOnData(t *testing.T) {
	s := NewSelector()
	if !s.MatchesPowerOnData([]byte{0xAA, 0xBB}) {
		t.Fatal("an unfiltered selector should match anything")
	}
	if _, err := s.FilterByPowerOnData("^AABB"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.MatchesPowerOnData([]byte{0xAA, 0xBB, 0xCC}) {
		t.Fatal("expected power-on data to match the pattern")
	}
	if s.MatchesPowerOnData([]byte{0x11, 0x22}) {
		t.Fatal("expected power-on data not to match the pattern")
	}
}

func TestSelection_Parse_NoCommands(t *testing.T) {
	startup := []byte{0x06, 0x00, 0x40, 0x01, 0x00, 0x00, 0x00} // rev3 application type
	sel := NewSelection(NewSelector(), apdu.ClassISO, false, card.ProductUnknown)

	img, err := sel.Parse(append([]byte{0x3B, 0x00}, startup...), nil, nil)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if img.Product.Type != card.ProductRev3 {
		t.Errorf("product type = %v, want ProductRev3", img.Product.Type)
	}
	if !img.Product.ExtendedModeSupported {
		t.Error("expected rev3 to report extended-mode support")
	}
}

func TestSelection_Parse_NoIdentityData(t *testing.T) {
	sel := NewSelection(NewSelector(), apdu.ClassISO, false, card.ProductUnknown)
	if _, err := sel.Parse(nil, nil, nil); err == nil {
		t.Fatal("expected an error when no power-on data and no FCI are available")
	}
}

func TestSelection_Parse_ReadRecordBestEffort(t *testing.T) {
	sel := NewSelection(NewSelector(), apdu.ClassISO, false, card.ProductRev3)
	sel.PrepareReadRecord(7, 1)

	resp, _ := apdu.ParseResponse([]byte{0x6A, 0x82})
	cardResp := &reader.CardResponse{Responses: []*apdu.Response{resp}}

	img, err := sel.Parse([]byte{0x3B, 0x00, 0x06, 0x00, 0x40, 0x01, 0x00, 0x00, 0x00}, nil, cardResp)
	if err != nil {
		t.Fatalf("Parse should tolerate a missing record at selection time, got: %v", err)
	}
	if f := img.GetFileBySfi(7); f != nil && len(f.Records) != 0 {
		t.Error("expected no record content to have been stored")
	}
}

func TestSelection_Parse_InconsistentData(t *testing.T) {
	sel := NewSelection(NewSelector(), apdu.ClassISO, false, card.ProductRev3)
	sel.PrepareReadRecord(7, 1)
	sel.PrepareReadRecord(8, 1)

	resp, _ := apdu.ParseResponse([]byte{0x90, 0x00})
	cardResp := &reader.CardResponse{Responses: []*apdu.Response{resp}}

	if _, err := sel.Parse([]byte{0x3B, 0x00, 0x06, 0x00, 0x40, 0x01, 0x00, 0x00, 0x00}, nil, cardResp); err == nil {
		t.Fatal("expected an inconsistent-data error when fewer responses than commands are present")
	}
}
