package command

import (
	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

// AppendRecord builds APPEND_RECORD (INS 0xE2): adds a record to a
// cyclic EF, shifting existing records up (spec.md ##4.C, ##4.D).
type AppendRecord struct {
	req  *apdu.Command
	sfi  byte
	data []byte
}

func NewAppendRecord(cla apdu.Class, sfi byte, data []byte) *AppendRecord {
	p2 := sfi * 8
	return &AppendRecord{req: apdu.NewCommand(cla, 0xE2, 0x00, p2, data, 0), sfi: sfi, data: data}
}

func (c *AppendRecord) Name() string           { return "APPEND_RECORD" }
func (c *AppendRecord) Request() *apdu.Command { return c.req }
func (c *AppendRecord) UsesSessionBuffer() bool { return true }

func (c *AppendRecord) ParseResponse(resp *apdu.Response, img *card.CalypsoCard) error {
	if err := checkStatus(c.Name(), writeStatusTable, resp, 0); err != nil {
		return err
	}
	img.AddCyclicContent(c.sfi, c.data)
	return nil
}
