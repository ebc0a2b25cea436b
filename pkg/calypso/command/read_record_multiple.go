package command

import (
	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

// ReadRecordMultiple builds READ_RECORD_MULTIPLE (INS 0xB3): reads the
// slice [offset..offset+length) from each record starting at
// firstRecord, for numRecords records. The orchestrator must re-issue
// this command to cover a range larger than one APDU (spec.md ##4.C).
type ReadRecordMultiple struct {
	req         *apdu.Command
	sfi         byte
	firstRecord byte
	offset      int
	numRecords  int
	sliceLength int
}

// NewReadRecordMultiple builds the request.
func NewReadRecordMultiple(cla apdu.Class, sfi, firstRecord byte, offset, sliceLength, numRecords int) *ReadRecordMultiple {
	p2 := sfi*8 + 1
	data := []byte{byte(offset), byte(sliceLength)}
	expected := sliceLength * numRecords
	return &ReadRecordMultiple{
		req:         apdu.NewCommand(cla, 0xB3, firstRecord, p2, data, expected),
		sfi:         sfi,
		firstRecord: firstRecord,
		offset:      offset,
		numRecords:  numRecords,
		sliceLength: sliceLength,
	}
}

func (c *ReadRecordMultiple) Name() string           { return "READ_RECORD_MULTIPLE" }
func (c *ReadRecordMultiple) Request() *apdu.Command { return c.req }
func (c *ReadRecordMultiple) UsesSessionBuffer() bool { return false }

func (c *ReadRecordMultiple) ParseResponse(resp *apdu.Response, img *card.CalypsoCard) error {
	if err := checkStatus(c.Name(), readRecordsStatusTable, resp, c.sliceLength*c.numRecords); err != nil {
		return err
	}
	d := resp.DataOut()
	for i := 0; i < c.numRecords; i++ {
		recNo := int(c.firstRecord) + i
		slice := d[i*c.sliceLength : (i+1)*c.sliceLength]
		img.SetContentAtOffset(c.sfi, recNo, slice, c.offset)
	}
	return nil
}
