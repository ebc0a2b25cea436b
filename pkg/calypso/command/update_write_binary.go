package command

import (
	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

// UpdateBinary builds UPDATE_BINARY (INS 0xD6): replaces bytes at an
// offset within a binary EF (spec.md ##4.C).
type UpdateBinary struct {
	req    *apdu.Command
	sfi    byte
	offset int
	data   []byte
}

func NewUpdateBinary(cla apdu.Class, sfi byte, offset int, data []byte) *UpdateBinary {
	var p1, p2 byte
	if offset < 256 {
		p1 = 0x80 | sfi
		p2 = byte(offset)
	} else {
		p1 = byte(offset >> 8)
		p2 = byte(offset)
	}
	return &UpdateBinary{req: apdu.NewCommand(cla, 0xD6, p1, p2, data, 0), sfi: sfi, offset: offset, data: data}
}

func (c *UpdateBinary) Name() string           { return "UPDATE_BINARY" }
func (c *UpdateBinary) Request() *apdu.Command { return c.req }
func (c *UpdateBinary) UsesSessionBuffer() bool { return true }

func (c *UpdateBinary) ParseResponse(resp *apdu.Response, img *card.CalypsoCard) error {
	if err := checkStatus(c.Name(), writeStatusTable, resp, 0); err != nil {
		return err
	}
	img.SetContentAtOffset(c.sfi, 1, c.data, c.offset)
	return nil
}

// WriteBinary builds WRITE_BINARY (INS 0xD0): binary-ORs bytes into a
// binary EF at an offset (spec.md ##4.C).
type WriteBinary struct {
	req    *apdu.Command
	sfi    byte
	offset int
	data   []byte
}

func NewWriteBinary(cla apdu.Class, sfi byte, offset int, data []byte) *WriteBinary {
	var p1, p2 byte
	if offset < 256 {
		p1 = 0x80 | sfi
		p2 = byte(offset)
	} else {
		p1 = byte(offset >> 8)
		p2 = byte(offset)
	}
	return &WriteBinary{req: apdu.NewCommand(cla, 0xD0, p1, p2, data, 0), sfi: sfi, offset: offset, data: data}
}

func (c *WriteBinary) Name() string           { return "WRITE_BINARY" }
func (c *WriteBinary) Request() *apdu.Command { return c.req }
func (c *WriteBinary) UsesSessionBuffer() bool { return true }

func (c *WriteBinary) ParseResponse(resp *apdu.Response, img *card.CalypsoCard) error {
	if err := checkStatus(c.Name(), writeStatusTable, resp, 0); err != nil {
		return err
	}
	img.FillContent(c.sfi, 1, c.data, c.offset)
	return nil
}
