package command

import (
	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

// SearchRecordMultiple builds SEARCH_RECORD_MULTIPLE (INS 0xA2):
// searches records of an EF for a data pattern, optionally masked,
// optionally fetching the first match's content (spec.md ##4.C).
type SearchRecordMultiple struct {
	req             *apdu.Command
	sfi             byte
	fetchFirstMatch bool
	matching        []int
	firstMatch      []byte
}

// NewSearchRecordMultiple builds the request. mask pads to the length
// of searchData with 0xFF where shorter. repeatedOffset and
// fetchFirstMatch set the corresponding bits of the flags byte in the
// request data; P1 carries startRecord.
func NewSearchRecordMultiple(cla apdu.Class, sfi, startRecord byte, offset int, searchData, mask []byte, repeatedOffset, fetchFirstMatch bool) *SearchRecordMultiple {
	padded := make([]byte, len(searchData))
	copy(padded, mask)
	for i := len(mask); i < len(padded); i++ {
		padded[i] = 0xFF
	}

	p2 := sfi*8 + 1
	var flags byte
	if repeatedOffset {
		flags |= 0x02
	}
	if fetchFirstMatch {
		flags |= 0x01
	}

	data := make([]byte, 0, 2+len(searchData)+len(padded))
	data = append(data, byte(offset), flags)
	data = append(data, searchData...)
	data = append(data, padded...)

	return &SearchRecordMultiple{
		req:             apdu.NewCommand(cla, 0xA2, startRecord, p2, data, apdu.MaxShortLe),
		sfi:             sfi,
		fetchFirstMatch: fetchFirstMatch,
	}
}

func (c *SearchRecordMultiple) Name() string           { return "SEARCH_RECORD_MULTIPLE" }
func (c *SearchRecordMultiple) Request() *apdu.Command { return c.req }
func (c *SearchRecordMultiple) UsesSessionBuffer() bool { return false }

// MatchingRecords is populated by ParseResponse with the record
// numbers that matched the search.
func (c *SearchRecordMultiple) MatchingRecords() []int { return c.matching }

// FirstMatchContent holds the first match's record content, populated
// only when fetchFirstMatch was requested.
func (c *SearchRecordMultiple) FirstMatchContent() []byte { return c.firstMatch }

func (c *SearchRecordMultiple) ParseResponse(resp *apdu.Response, img *card.CalypsoCard) error {
	if err := checkStatus(c.Name(), readRecordsStatusTable, resp, -1); err != nil {
		return err
	}
	d := resp.DataOut()
	if len(d) == 0 {
		return nil
	}
	count := int(d[0])
	pos := 1
	for i := 0; i < count && pos < len(d); i++ {
		c.matching = append(c.matching, int(d[pos]))
		pos++
	}
	if c.fetchFirstMatch && pos < len(d) {
		c.firstMatch = d[pos:]
		if len(c.matching) > 0 {
			img.SetContent(c.sfi, c.matching[0], c.firstMatch)
		}
	}
	return nil
}
