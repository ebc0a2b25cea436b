package command

import (
	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

var writeStatusTable = func() apdu.StatusTable {
	t := apdu.BaseStatusTable()
	t[0x6981] = apdu.StatusProperty{Message: "Command forbidden on binary files", Success: false, Kind: apdu.KindDataAccess}
	t[0x6A82] = apdu.StatusProperty{Message: "File not found", Success: false, Kind: apdu.KindDataAccess}
	t[0x6A83] = apdu.StatusProperty{Message: "Record not found", Success: false, Kind: apdu.KindDataAccess}
	return t
}()

// UpdateRecord builds UPDATE_RECORD (INS 0xDC): replaces the full
// record content (spec.md ##4.C).
type UpdateRecord struct {
	req       *apdu.Command
	sfi       byte
	recNumber byte
	data      []byte
}

func NewUpdateRecord(cla apdu.Class, sfi, recNumber byte, data []byte) *UpdateRecord {
	p2 := sfi*8 + 4
	return &UpdateRecord{req: apdu.NewCommand(cla, 0xDC, recNumber, p2, data, 0), sfi: sfi, recNumber: recNumber, data: data}
}

func (c *UpdateRecord) Name() string           { return "UPDATE_RECORD" }
func (c *UpdateRecord) Request() *apdu.Command { return c.req }
func (c *UpdateRecord) UsesSessionBuffer() bool { return true }

func (c *UpdateRecord) ParseResponse(resp *apdu.Response, img *card.CalypsoCard) error {
	if err := checkStatus(c.Name(), writeStatusTable, resp, 0); err != nil {
		return err
	}
	img.SetContent(c.sfi, int(c.recNumber), c.data)
	return nil
}

// WriteRecord builds WRITE_RECORD (INS 0xD2): binary-ORs data into the
// existing record (spec.md ##4.C).
type WriteRecord struct {
	req       *apdu.Command
	sfi       byte
	recNumber byte
	data      []byte
}

func NewWriteRecord(cla apdu.Class, sfi, recNumber byte, data []byte) *WriteRecord {
	p2 := sfi*8 + 4
	return &WriteRecord{req: apdu.NewCommand(cla, 0xD2, recNumber, p2, data, 0), sfi: sfi, recNumber: recNumber, data: data}
}

func (c *WriteRecord) Name() string           { return "WRITE_RECORD" }
func (c *WriteRecord) Request() *apdu.Command { return c.req }
func (c *WriteRecord) UsesSessionBuffer() bool { return true }

func (c *WriteRecord) ParseResponse(resp *apdu.Response, img *card.CalypsoCard) error {
	if err := checkStatus(c.Name(), writeStatusTable, resp, 0); err != nil {
		return err
	}
	img.FillContent(c.sfi, int(c.recNumber), c.data, 0)
	return nil
}
