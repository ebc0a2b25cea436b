package command

import (
	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/calypsoerr"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

var closeSessionStatusTable = func() apdu.StatusTable {
	t := apdu.BaseStatusTable()
	t[0x6700] = apdu.StatusProperty{Message: "Lc signatureLo not supported", Success: false, Kind: apdu.KindIllegalParameter}
	t[0x6B00] = apdu.StatusProperty{Message: "P1 or P2 not supported", Success: false, Kind: apdu.KindIllegalParameter}
	t[0x6985] = apdu.StatusProperty{Message: "No session was opened", Success: false, Kind: apdu.KindAccessForbidden}
	t[0x6988] = apdu.StatusProperty{Message: "Incorrect signatureLo", Success: false, Kind: apdu.KindSecurityData}
	return t
}()

// CloseSession builds CLOSE_SESSION (INS 0x8E). Two constructors mirror
// the normal-close / abort forms (spec.md ##4.C): NewCloseSession for
// the normal case, NewCloseSessionAbort for a P1=P2=Lc=0 cancel.
type CloseSession struct {
	req                *apdu.Command
	extendedMode       bool
	abort              bool

	PostponedData [][]byte
	SignatureLo   []byte
}

// NewCloseSession builds the normal-close request. terminalSignature
// must be empty, 4, or 8 bytes.
func NewCloseSession(cla apdu.Class, ratificationAsked bool, terminalSignature []byte, extendedMode bool) (*CloseSession, error) {
	if n := len(terminalSignature); n != 0 && n != 4 && n != 8 {
		return nil, &calypsoerr.IllegalArgumentError{Command: "CLOSE_SESSION", Reason: "invalid terminal signature length"}
	}
	p1 := byte(0x00)
	if ratificationAsked {
		p1 = 0x80
	}
	c := &CloseSession{extendedMode: extendedMode}
	c.req = apdu.NewCommand(cla, 0x8E, p1, 0x00, terminalSignature, apdu.MaxShortLe)
	return c, nil
}

// NewCloseSessionAbort builds the abort form: P1=P2=Lc=0 (spec.md
// ##4.F "Cancel").
func NewCloseSessionAbort(cla apdu.Class) *CloseSession {
	c := &CloseSession{abort: true}
	c.req = apdu.NewCommand(cla, 0x8E, 0x00, 0x00, nil, 0)
	return c
}

func (c *CloseSession) Name() string           { return "CLOSE_SESSION" }
func (c *CloseSession) Request() *apdu.Command { return c.req }
func (c *CloseSession) UsesSessionBuffer() bool { return false }

func (c *CloseSession) ParseResponse(resp *apdu.Response, img *card.CalypsoCard) error {
	if err := checkStatus(c.Name(), closeSessionStatusTable, resp, -1); err != nil {
		return err
	}

	d := resp.DataOut()
	if len(d) == 0 {
		c.SignatureLo = nil
		return nil
	}

	sigLen := 4
	if c.extendedMode {
		sigLen = 8
	}

	i := 0
	for i < len(d)-sigLen {
		blockLen := int(d[i])
		c.PostponedData = append(c.PostponedData, d[i+1:i+blockLen])
		i += blockLen
	}
	c.SignatureLo = d[i:]
	return nil
}
