package transaction

import (
	"testing"

	"github.com/gregLibert/calypso-core/pkg/calypso/calypsoerr"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

func TestPrepareReadRecord_RangeValidation(t *testing.T) {
	tests := []struct {
		name         string
		sfi, recNo   byte
		wantErr      bool
	}{
		{"valid", 1, 1, false},
		{"sfi too large", 31, 1, true},
		{"record zero", 1, 0, true},
		{"record too large", 1, 251, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(newTestCard(), &fakeTransmitter{}, newFakeSAM(), SecuritySettings{})
			err := m.PrepareReadRecord(tt.sfi, tt.recNo)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if _, ok := err.(*calypsoerr.IllegalArgumentError); !ok {
					t.Errorf("got %T, want *calypsoerr.IllegalArgumentError", err)
				}
			}
		})
	}
}

func TestPrepareReadRecord_ForbiddenInContactSession(t *testing.T) {
	m := newTestManager(newTestCard(), &fakeTransmitter{}, newFakeSAM(), SecuritySettings{})
	m.isSessionOpen = true
	m.isContactless = false

	if err := m.PrepareReadRecord(1, 1); err == nil {
		t.Fatal("expected error for unsized read in a contact-mode session")
	}
}

func TestPrepareReadRecords_SplitsAcrossApdus(t *testing.T) {
	img := newTestCard()
	img.Product.PayloadCapacity = 62 // room for two 29+2-byte records per APDU
	m := newTestManager(img, &fakeTransmitter{}, newFakeSAM(), SecuritySettings{})

	if err := m.PrepareReadRecords(1, 1, 5, 29); err != nil {
		t.Fatalf("PrepareReadRecords: %v", err)
	}
	if len(m.commands) < 2 {
		t.Fatalf("expected the range to be split across several commands, got %d", len(m.commands))
	}
}

func TestPrepareReadRecords_SingleRecordFastPath(t *testing.T) {
	m := newTestManager(newTestCard(), &fakeTransmitter{}, newFakeSAM(), SecuritySettings{})
	if err := m.PrepareReadRecords(1, 3, 3, 29); err != nil {
		t.Fatalf("PrepareReadRecords: %v", err)
	}
	if len(m.commands) != 1 {
		t.Fatalf("expected a single command, got %d", len(m.commands))
	}
}

func TestPrepareReadBinary_Rev3Only(t *testing.T) {
	img := newTestCard()
	img.Product.Type = card.ProductRev2
	m := newTestManager(img, &fakeTransmitter{}, newFakeSAM(), SecuritySettings{})

	if err := m.PrepareReadBinary(1, 0, 10); err == nil {
		t.Fatal("expected READ_BINARY to be rejected on a non-rev3 card")
	}
}

func TestPrepareReadBinary_TipReadWhenSfiSet(t *testing.T) {
	m := newTestManager(newTestCard(), &fakeTransmitter{}, newFakeSAM(), SecuritySettings{})
	if err := m.PrepareReadBinary(7, 0, 10); err != nil {
		t.Fatalf("PrepareReadBinary: %v", err)
	}
	if len(m.commands) != 2 {
		t.Fatalf("expected a tip read plus the data read, got %d commands", len(m.commands))
	}
}

func TestPrepareReadBinary_NoTipReadWhenSfiZero(t *testing.T) {
	m := newTestManager(newTestCard(), &fakeTransmitter{}, newFakeSAM(), SecuritySettings{})
	if err := m.PrepareReadBinary(0, 0, 10); err != nil {
		t.Fatalf("PrepareReadBinary: %v", err)
	}
	if len(m.commands) != 1 {
		t.Fatalf("expected a single data read, got %d commands", len(m.commands))
	}
}

func TestPrepareSetCounter_UnknownValue(t *testing.T) {
	m := newTestManager(newTestCard(), &fakeTransmitter{}, newFakeSAM(), SecuritySettings{})
	if err := m.PrepareSetCounter(1, 1, 5); err == nil {
		t.Fatal("expected IllegalStateError for an unknown counter value")
	}
}

func TestPrepareSetCounter_IncreaseDecreaseOrNoop(t *testing.T) {
	tests := []struct {
		name      string
		oldValue  int
		newValue  int
		wantCount int
	}{
		{"increase", 5, 10, 1},
		{"decrease", 10, 5, 1},
		{"equal is a no-op", 5, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := newTestCard()
			img.SetCounter(1, 1, [3]byte{0, 0, byte(tt.oldValue)})
			m := newTestManager(img, &fakeTransmitter{}, newFakeSAM(), SecuritySettings{})
			if err := m.PrepareSetCounter(1, 1, tt.newValue); err != nil {
				t.Fatalf("PrepareSetCounter: %v", err)
			}
			if len(m.commands) != tt.wantCount {
				t.Errorf("got %d queued commands, want %d", len(m.commands), tt.wantCount)
			}
		})
	}
}

func TestPrepareIncreaseCounters_SplitsAcrossApdus(t *testing.T) {
	img := newTestCard()
	img.Product.PayloadCapacity = 8 // 2 counters per APDU
	m := newTestManager(img, &fakeTransmitter{}, newFakeSAM(), SecuritySettings{})

	values := map[byte]int{1: 1, 2: 2, 3: 3, 4: 4, 5: 5}
	if err := m.PrepareIncreaseCounters(1, values); err != nil {
		t.Fatalf("PrepareIncreaseCounters: %v", err)
	}
	if len(m.commands) < 2 {
		t.Fatalf("expected several INCREASE_MULTIPLE batches, got %d", len(m.commands))
	}
}

func TestPrepareInvalidate_AlreadyInvalidated(t *testing.T) {
	img := newTestCard()
	img.DirectoryHeader.DFStatus = 0x01
	img.SetDirectoryHeader(img.DirectoryHeader)
	m := newTestManager(img, &fakeTransmitter{}, newFakeSAM(), SecuritySettings{})

	if err := m.PrepareInvalidate(); err == nil {
		t.Fatal("expected error when invalidating an already-invalidated card")
	}
}

func TestPrepareRehabilitate_NotInvalidated(t *testing.T) {
	m := newTestManager(newTestCard(), &fakeTransmitter{}, newFakeSAM(), SecuritySettings{})
	if err := m.PrepareRehabilitate(); err == nil {
		t.Fatal("expected error when rehabilitating a non-invalidated card")
	}
}

func TestPrepareCheckPinStatus_RequiresPinFeature(t *testing.T) {
	img := newTestCard()
	img.Product.PINFeature = false
	m := newTestManager(img, &fakeTransmitter{}, newFakeSAM(), SecuritySettings{})

	if err := m.PrepareCheckPinStatus(); err == nil {
		t.Fatal("expected error when the card has no PIN feature")
	}
}
