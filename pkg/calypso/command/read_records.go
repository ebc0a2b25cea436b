package command

import (
	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/calypsoerr"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

var readRecordsStatusTable = func() apdu.StatusTable {
	t := apdu.BaseStatusTable()
	t[0x6981] = apdu.StatusProperty{Message: "Command forbidden on binary files", Success: false, Kind: apdu.KindDataAccess}
	t[0x6A82] = apdu.StatusProperty{Message: "File not found", Success: false, Kind: apdu.KindDataAccess}
	t[0x6A83] = apdu.StatusProperty{Message: "Record not found", Success: false, Kind: apdu.KindDataAccess}
	return t
}()

// ReadMode selects READ_RECORDS' response shape (spec.md ##4.C).
type ReadMode int

const (
	ReadOneRecord ReadMode = iota
	ReadMultipleRecords
)

// ReadRecords builds READ_RECORDS (INS 0xB2).
type ReadRecords struct {
	req       *apdu.Command
	sfi       byte
	recNumber byte
	mode      ReadMode
}

// NewReadRecords builds the request. For ReadMultipleRecords, recNumber
// is the first record of the range and the response is the full TLV
// sequence of matching records.
func NewReadRecords(cla apdu.Class, sfi, recNumber byte, mode ReadMode, expectedLength int) *ReadRecords {
	p2byte := byte(0x04)
	if mode == ReadMultipleRecords {
		p2byte = 0x05
	}
	p2 := sfi*8 + p2byte
	return &ReadRecords{req: apdu.NewCommand(cla, 0xB2, recNumber, p2, nil, expectedLength), sfi: sfi, recNumber: recNumber, mode: mode}
}

func (c *ReadRecords) Name() string           { return "READ_RECORDS" }
func (c *ReadRecords) Request() *apdu.Command { return c.req }
func (c *ReadRecords) UsesSessionBuffer() bool { return false }

// SFI, RecordNumber and Mode expose the fields the session opener
// needs to detect and strip a leading one-record read, so it can be
// inlined into OPEN_SESSION instead of sent as a separate APDU.
func (c *ReadRecords) SFI() byte         { return c.sfi }
func (c *ReadRecords) RecordNumber() byte { return c.recNumber }
func (c *ReadRecords) Mode() ReadMode    { return c.mode }

func (c *ReadRecords) ParseResponse(resp *apdu.Response, img *card.CalypsoCard) error {
	if err := checkStatus(c.Name(), readRecordsStatusTable, resp, -1); err != nil {
		return err
	}
	d := resp.DataOut()

	if c.mode == ReadOneRecord {
		img.SetContent(c.sfi, int(c.recNumber), d)
		return nil
	}

	i := 0
	for i < len(d) {
		if i+2 > len(d) {
			return &calypsoerr.IllegalArgumentError{Command: c.Name(), Reason: "truncated record TLV"}
		}
		recNo := int(d[i])
		length := int(d[i+1])
		if i+2+length > len(d) {
			return &calypsoerr.IllegalArgumentError{Command: c.Name(), Reason: "truncated record TLV"}
		}
		img.SetContent(c.sfi, recNo, d[i+2:i+2+length])
		i += 2 + length
	}
	return nil
}
