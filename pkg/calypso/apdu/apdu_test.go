package apdu

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestCommand_Bytes(t *testing.T) {
	tests := []struct {
		name     string
		cmd      *Command
		expected string
	}{
		{
			name:     "Case 1: header only",
			cmd:      NewCommand(ClassISO, 0xA4, 0x01, 0x02, nil, 0),
			expected: "00A40102",
		},
		{
			name:     "Case 3: data, no Le",
			cmd:      NewCommand(ClassISO, 0xA4, 0x04, 0x00, []byte{0xA0, 0x00}, 0),
			expected: "00A4040002A000",
		},
		{
			name:     "Case 2: no data, Le=256",
			cmd:      NewCommand(ClassISO, 0xB0, 0x00, 0x00, nil, MaxShortLe),
			expected: "00B0000000",
		},
		{
			name:     "Case 4: data and Le",
			cmd:      NewCommand(ClassLegacy, 0x8A, 0x00, 0x00, []byte{0x01}, 10),
			expected: "948A000001010A",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cmd.Bytes()
			if err != nil {
				t.Fatalf("Bytes() error: %v", err)
			}
			gotHex := strings.ToUpper(hex.EncodeToString(got))
			if gotHex != tt.expected {
				t.Errorf("got %s, want %s", gotHex, tt.expected)
			}
		})
	}
}

func TestParseResponse(t *testing.T) {
	raw, _ := hex.DecodeString("0102039000")
	resp, err := ParseResponse(raw)
	if err != nil {
		t.Fatalf("ParseResponse error: %v", err)
	}
	if len(resp.DataOut()) != 3 {
		t.Errorf("DataOut length = %d, want 3", len(resp.DataOut()))
	}
	if resp.StatusWord() != SWSuccess {
		t.Errorf("StatusWord = %v, want %v", resp.StatusWord(), SWSuccess)
	}
}

func TestParseResponse_TooShort(t *testing.T) {
	_, err := ParseResponse([]byte{0x90})
	if err == nil {
		t.Error("expected error for short response, got nil")
	}
}

func TestResponse_IsSuccessFor(t *testing.T) {
	cmd := NewCommand(ClassISO, 0x32, 0, 0, nil, 0).WithExtraSuccess(0x6200)

	tests := []struct {
		name string
		sw   []byte
		want bool
	}{
		{"plain success", []byte{0x90, 0x00}, true},
		{"postponed success", []byte{0x62, 0x00}, true},
		{"error", []byte{0x6A, 0x83}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := ParseResponse(append([]byte{0x01}, tt.sw...))
			if got := resp.IsSuccessFor(cmd); got != tt.want {
				t.Errorf("IsSuccessFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusTable_Lookup(t *testing.T) {
	table := BaseStatusTable()

	tests := []struct {
		name string
		sw   StatusWord
		kind StatusKind
		ok   bool
	}{
		{"success", SWSuccess, KindSuccess, true},
		{"access forbidden", 0x6985, KindAccessForbidden, false},
		{"unknown", 0x6FFF, KindUnknownStatus, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := table.Lookup(tt.sw)
			if p.Success != tt.ok {
				t.Errorf("Success = %v, want %v", p.Success, tt.ok)
			}
			if p.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", p.Kind, tt.kind)
			}
		})
	}
}
