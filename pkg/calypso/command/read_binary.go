package command

import (
	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

// ReadBinary builds READ_BINARY (INS 0xB0). P1 encodes the SFI
// (0x80|SFI) when offset < 256, else the MSB of offset; splitting
// reads larger than payload capacity into several APDUs is the
// transaction manager's responsibility (spec.md ##4.C).
type ReadBinary struct {
	req    *apdu.Command
	sfi    byte
	offset int
	length int
}

// NewReadBinary builds the request.
func NewReadBinary(cla apdu.Class, sfi byte, offset, length int) *ReadBinary {
	var p1, p2 byte
	if offset < 256 {
		p1 = 0x80 | sfi
		p2 = byte(offset)
	} else {
		p1 = byte(offset >> 8)
		p2 = byte(offset)
	}
	return &ReadBinary{req: apdu.NewCommand(cla, 0xB0, p1, p2, nil, length), sfi: sfi, offset: offset, length: length}
}

func (c *ReadBinary) Name() string           { return "READ_BINARY" }
func (c *ReadBinary) Request() *apdu.Command { return c.req }
func (c *ReadBinary) UsesSessionBuffer() bool { return false }

func (c *ReadBinary) ParseResponse(resp *apdu.Response, img *card.CalypsoCard) error {
	if err := checkStatus(c.Name(), readRecordsStatusTable, resp, c.length); err != nil {
		return err
	}
	img.SetContentAtOffset(c.sfi, 1, resp.DataOut(), c.offset)
	return nil
}
