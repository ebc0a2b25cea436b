package command

import (
	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/calypsoerr"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

var verifyPinStatusTable = func() apdu.StatusTable {
	t := apdu.BaseStatusTable()
	t[0x6700] = apdu.StatusProperty{Message: "Lc value not supported (only 00h, 04h or 08h)", Success: false, Kind: apdu.KindIllegalParameter}
	t[0x6900] = apdu.StatusProperty{Message: "Transaction counter is 0", Success: false, Kind: apdu.KindTerminated}
	t[0x6982] = apdu.StatusProperty{Message: "Challenge unavailable, GET_CHALLENGE not done", Success: false, Kind: apdu.KindSecurityContext}
	t[0x6985] = apdu.StatusProperty{Message: "Access forbidden (session open or DF invalidated)", Success: false, Kind: apdu.KindAccessForbidden}
	t[0x63C1] = apdu.StatusProperty{Message: "Incorrect PIN, 1 attempt remaining", Success: false, Kind: apdu.KindPin}
	t[0x63C2] = apdu.StatusProperty{Message: "Incorrect PIN, 2 attempts remaining", Success: false, Kind: apdu.KindPin}
	t[0x6983] = apdu.StatusProperty{Message: "Presentation rejected, PIN is blocked", Success: false, Kind: apdu.KindPin}
	t[0x6D00] = apdu.StatusProperty{Message: "PIN function not present", Success: false, Kind: apdu.KindIllegalParameter}
	return t
}()

// VerifyPin builds VERIFY_PIN (INS 0x20): presents a 4-byte PIN in
// plain or 8-byte ciphered form, or (with an empty pin) just reads the
// remaining presentation counter without attempting verification
// (spec.md ##4.C).
type VerifyPin struct {
	req            *apdu.Command
	readCounterOnly bool
}

// NewVerifyPin builds a presentation request. pin must be 4 bytes
// (plain) or 8 bytes (ciphered); an IllegalArgumentError is returned
// otherwise.
func NewVerifyPin(cla apdu.Class, pin []byte) (*VerifyPin, error) {
	if len(pin) != 4 && len(pin) != 8 {
		return nil, &calypsoerr.IllegalArgumentError{Command: "VERIFY_PIN", Reason: "pin must be 4 (plain) or 8 (ciphered) bytes"}
	}
	return &VerifyPin{req: apdu.NewCommand(cla, 0x20, 0x00, 0x00, pin, 0)}, nil
}

// NewVerifyPinReadCounter builds a counter-only request (empty body).
func NewVerifyPinReadCounter(cla apdu.Class) *VerifyPin {
	return &VerifyPin{req: apdu.NewCommand(cla, 0x20, 0x00, 0x00, nil, 0), readCounterOnly: true}
}

func (c *VerifyPin) Name() string           { return "VERIFY_PIN" }
func (c *VerifyPin) Request() *apdu.Command { return c.req }
func (c *VerifyPin) UsesSessionBuffer() bool { return false }

func (c *VerifyPin) ParseResponse(resp *apdu.Response, img *card.CalypsoCard) error {
	sw := resp.StatusWord()
	prop := verifyPinStatusTable.Lookup(sw)

	if prop.Success {
		img.Security.PINAttemptsRemaining = 3
		return nil
	}

	switch sw {
	case 0x63C2:
		img.Security.PINAttemptsRemaining = 2
	case 0x63C1:
		img.Security.PINAttemptsRemaining = 1
	case 0x6983:
		img.Security.PINAttemptsRemaining = 0
	}

	if c.readCounterOnly && prop.Kind == apdu.KindPin {
		return nil
	}
	return calypsoerr.NewCommandError(c.Name(), sw, prop)
}
