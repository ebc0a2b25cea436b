package command

import (
	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/calypsoerr"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

var openSessionStatusTable = func() apdu.StatusTable {
	t := apdu.BaseStatusTable()
	t[0x6700] = apdu.StatusProperty{Message: "Lc value not supported", Success: false, Kind: apdu.KindIllegalParameter}
	t[0x6900] = apdu.StatusProperty{Message: "Transaction counter is 0", Success: false, Kind: apdu.KindTerminated}
	t[0x6981] = apdu.StatusProperty{Message: "Command forbidden (current EF is a Binary file)", Success: false, Kind: apdu.KindDataAccess}
	return t
}()

// OpenSession builds OPEN_SESSION (INS 0x8A) and extracts the session
// challenge, ratification flag, and optional inlined record payload
// from the response. Byte layouts below mirror
// original_source/CmdCardOpenSession.cpp exactly (spec.md ##4.C).
type OpenSession struct {
	req            *apdu.Command
	productType    card.ProductType
	sfi            byte
	recordNumber   byte
	recordSize     int
	extendedMode   bool

	CardChallenge       []byte // random number portion
	TransactionCounter  []byte // 3-byte big-endian transaction counter portion
	PreviousRatified    bool
	ManageSessionAuth   bool
	KIF, KVC            byte
	hasKIF, hasKVC      bool
}

// NewOpenSession builds the request for the given product type. sfi/recordNumber
// select a record to read inline as part of opening (0/0 to skip); extendedMode
// requests the rev3 extended-mode response shape (ignored for rev1/rev2).
func NewOpenSession(pt card.ProductType, keyIndex byte, samChallenge []byte, sfi, recordNumber byte, recordSize int, extendedMode bool) *OpenSession {
	c := &OpenSession{productType: pt, sfi: sfi, recordNumber: recordNumber, recordSize: recordSize, extendedMode: extendedMode}

	switch pt {
	case card.ProductRev3:
		p1 := recordNumber*8 + keyIndex
		var p2 byte
		var data []byte
		if extendedMode {
			p2 = sfi*8 + 2
			data = make([]byte, len(samChallenge)+1)
			copy(data[1:], samChallenge)
		} else {
			p2 = sfi*8 + 1
			data = samChallenge
		}
		c.req = apdu.NewCommand(apdu.ClassISO, 0x8A, p1, p2, data, apdu.MaxShortLe)

	case card.ProductRev2:
		p1 := 0x80 + recordNumber*8 + keyIndex
		p2 := sfi * 8
		c.req = apdu.NewCommand(apdu.ClassLegacy, 0x8A, p1, p2, samChallenge, apdu.MaxShortLe)

	default: // ProductRev1 and unknown fall back to rev1 framing
		p1 := recordNumber*8 + keyIndex
		p2 := sfi * 8
		c.req = apdu.NewCommand(apdu.ClassLegacy, 0x8A, p1, p2, samChallenge, apdu.MaxShortLe)
	}

	return c
}

func (c *OpenSession) Name() string          { return "OPEN_SESSION" }
func (c *OpenSession) Request() *apdu.Command { return c.req }
func (c *OpenSession) UsesSessionBuffer() bool { return false }

func (c *OpenSession) ParseResponse(resp *apdu.Response, img *card.CalypsoCard) error {
	if err := checkStatus(c.Name(), openSessionStatusTable, resp, -1); err != nil {
		return err
	}

	d := resp.DataOut()
	var data []byte

	switch c.productType {
	case card.ProductRev3:
		offset := 0
		if c.extendedMode {
			offset = 4
			c.PreviousRatified = d[8]&0x01 == 0
			c.ManageSessionAuth = d[8]&0x02 == 0x02
		} else {
			c.PreviousRatified = d[4] == 0
		}
		c.KIF = d[5+offset]
		c.KVC = d[6+offset]
		c.hasKIF, c.hasKVC = true, true
		dataLength := int(d[7+offset])
		data = d[8+offset : 8+offset+dataLength]
		c.TransactionCounter = d[0:3]
		c.CardChallenge = d[3 : 4+offset]

	case card.ProductRev2:
		switch len(d) {
		case 5:
			c.PreviousRatified = true
		case 34:
			c.PreviousRatified = true
			data = d[5:34]
		case 7:
			c.PreviousRatified = false
		case 36:
			c.PreviousRatified = false
			data = d[7:36]
		default:
			return &calypsoerr.IllegalArgumentError{Command: c.Name(), Reason: "bad response length"}
		}
		c.KVC = d[0]
		c.hasKVC = true
		c.TransactionCounter = d[1:4]
		c.CardChallenge = d[4:5]

	default: // rev1
		switch len(d) {
		case 4:
			c.PreviousRatified = true
		case 33:
			c.PreviousRatified = true
			data = d[4:33]
		case 6:
			c.PreviousRatified = false
		case 35:
			c.PreviousRatified = false
			data = d[6:35]
		default:
			return &calypsoerr.IllegalArgumentError{Command: c.Name(), Reason: "bad response length"}
		}
		c.TransactionCounter = d[0:3]
		c.CardChallenge = d[3:4]
	}

	img.Security.DFRatified = c.PreviousRatified
	if len(c.TransactionCounter) == 3 {
		img.Security.TransactionCounter = uint32(c.TransactionCounter[0])<<16 | uint32(c.TransactionCounter[1])<<8 | uint32(c.TransactionCounter[2])
	}
	img.Security.Challenge = append(append([]byte{}, c.TransactionCounter...), c.CardChallenge...)
	if len(data) > 0 {
		img.SetContent(c.sfi, int(c.recordNumber), data)
	}
	return nil
}
