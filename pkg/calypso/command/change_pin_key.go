package command

import (
	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/calypsoerr"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

var changePinKeyStatusTable = func() apdu.StatusTable {
	t := apdu.BaseStatusTable()
	t[0x6700] = apdu.StatusProperty{Message: "Lc value not supported (not 04h, 10h, 18h, 20h)", Success: false, Kind: apdu.KindIllegalParameter}
	t[0x6900] = apdu.StatusProperty{Message: "Transaction counter is 0", Success: false, Kind: apdu.KindTerminated}
	t[0x6982] = apdu.StatusProperty{Message: "Challenge unavailable, GET_CHALLENGE not done", Success: false, Kind: apdu.KindSecurityContext}
	t[0x6985] = apdu.StatusProperty{Message: "Access forbidden (session open or DF invalidated)", Success: false, Kind: apdu.KindAccessForbidden}
	t[0x6988] = apdu.StatusProperty{Message: "Incorrect cryptogram", Success: false, Kind: apdu.KindSecurityData}
	t[0x6A80] = apdu.StatusProperty{Message: "Decrypted message incorrect", Success: false, Kind: apdu.KindSecurityData}
	t[0x6A87] = apdu.StatusProperty{Message: "Lc not compatible with P2", Success: false, Kind: apdu.KindIllegalParameter}
	return t
}()

// ChangePin builds CHANGE_PIN (INS 0xD8, P2 0xFF): replaces the
// card's PIN with a new ciphered value produced by the SAM (spec.md
// ##4.C).
type ChangePin struct {
	req *apdu.Command
}

// NewChangePin builds the request. newPinCryptogram must be 4 bytes
// (plain new PIN, never sent outside a secure channel) or 16 bytes
// (ciphered).
func NewChangePin(cla apdu.Class, newPinCryptogram []byte) (*ChangePin, error) {
	if len(newPinCryptogram) != 0x04 && len(newPinCryptogram) != 0x10 {
		return nil, &calypsoerr.IllegalArgumentError{Command: "CHANGE_PIN", Reason: "bad PIN data length"}
	}
	return &ChangePin{req: apdu.NewCommand(cla, 0xD8, 0x00, 0xFF, newPinCryptogram, 0)}, nil
}

func (c *ChangePin) Name() string           { return "CHANGE_PIN" }
func (c *ChangePin) Request() *apdu.Command { return c.req }
func (c *ChangePin) UsesSessionBuffer() bool { return false }

func (c *ChangePin) ParseResponse(resp *apdu.Response, img *card.CalypsoCard) error {
	return checkStatus(c.Name(), changePinKeyStatusTable, resp, 0)
}

// ChangeKey builds CHANGE_KEY (INS 0xD8, P2 = key index): replaces one
// of the card's perso/load/debit keys with a cryptogram produced by
// the SAM (spec.md ##4.C).
type ChangeKey struct {
	req *apdu.Command
}

func NewChangeKey(cla apdu.Class, keyIndex byte, cryptogram []byte) *ChangeKey {
	return &ChangeKey{req: apdu.NewCommand(cla, 0xD8, 0x00, keyIndex, cryptogram, 0)}
}

func (c *ChangeKey) Name() string           { return "CHANGE_KEY" }
func (c *ChangeKey) Request() *apdu.Command { return c.req }
func (c *ChangeKey) UsesSessionBuffer() bool { return false }

func (c *ChangeKey) ParseResponse(resp *apdu.Response, img *card.CalypsoCard) error {
	return checkStatus(c.Name(), changePinKeyStatusTable, resp, 0)
}
