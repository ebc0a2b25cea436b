package reader

import (
	"testing"

	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
)

func TestNewCardRequest(t *testing.T) {
	c1 := apdu.NewCommand(apdu.ClassISO, 0xB2, 1, 4, nil, 29)
	req := NewCardRequest(true, c1)
	if len(req.Commands) != 1 || !req.StopOnFirstUnsuccessful {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestUnexpectedStatusError(t *testing.T) {
	err := &UnexpectedStatusError{CommandIndex: 2, StatusWord: apdu.NewStatusWord(0x6A, 0x82)}
	if err.Error() == "" {
		t.Fatal("expected non-empty error message")
	}
}
