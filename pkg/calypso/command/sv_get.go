package command

import (
	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/calypsoerr"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

// SVOperation selects which Stored Value operation SV_GET is preparing
// for; it determines P2 and the expected response length.
type SVOperation int

const (
	SVOperationReload SVOperation = iota
	SVOperationDebit
	SVOperationUndebit
)

var svGetStatusTable = func() apdu.StatusTable {
	t := apdu.BaseStatusTable()
	t[0x6982] = apdu.StatusProperty{Message: "Security conditions not fulfilled", Success: false, Kind: apdu.KindSecurityContext}
	t[0x6985] = apdu.StatusProperty{Message: "An SV operation was already done in this session", Success: false, Kind: apdu.KindAccessForbidden}
	t[0x6A81] = apdu.StatusProperty{Message: "Incorrect P1 or P2", Success: false, Kind: apdu.KindDataOutOfBounds}
	t[0x6A86] = apdu.StatusProperty{Message: "Le inconsistent with P2", Success: false, Kind: apdu.KindDataOutOfBounds}
	t[0x6D00] = apdu.StatusProperty{Message: "SV function not present", Success: false, Kind: apdu.KindIllegalParameter}
	return t
}()

// SVGet builds SV_GET (INS 0x7C): reads the card's SV balance and
// signing material ahead of a SV_RELOAD/SV_DEBIT/SV_UNDEBIT, and fixes
// the response length the card must return (spec.md ##4.C, ##9 SV
// sequencing).
type SVGet struct {
	req       *apdu.Command
	operation SVOperation
	extended  bool
	header    []byte
}

// NewSVGet builds the request. legacy selects the CLA class: Calypso
// routes SV_GET through the LegacyStoredValue class on legacy-era
// cards and through ISO on rev3+ cards (original_source
// CmdCardSvGet.cpp).
func NewSVGet(legacy bool, operation SVOperation, extendedMode bool) *SVGet {
	cla := apdu.ClassISO
	if legacy {
		cla = apdu.ClassLegacyStoredValue
	}

	p1 := byte(0x00)
	if extendedMode {
		p1 = 0x01
	}
	p2 := byte(0x09)
	if operation == SVOperationReload {
		p2 = 0x07
	}

	var le int
	switch {
	case extendedMode:
		le = 0x3D
	case operation == SVOperationReload:
		le = 0x21
	default:
		le = 0x1E
	}

	req := apdu.NewCommand(cla, 0x7C, p1, p2, nil, le)
	header := []byte{0x7C, p1, p2, byte(le)}

	return &SVGet{req: req, operation: operation, extended: extendedMode, header: header}
}

func (c *SVGet) Name() string           { return "SV_GET" }
func (c *SVGet) Request() *apdu.Command { return c.req }
func (c *SVGet) UsesSessionBuffer() bool { return false }

func (c *SVGet) ParseResponse(resp *apdu.Response, img *card.CalypsoCard) error {
	if err := checkStatus(c.Name(), svGetStatusTable, resp, -1); err != nil {
		return err
	}

	d := resp.DataOut()
	var kvc byte
	var transactionNumber uint16
	var balance int32
	var loadLog, debitLog card.SVLogRecord

	switch len(d) {
	case 0x21, 0x1E: // compatibility mode: reload or debit/undebit
		kvc = d[0]
		transactionNumber = uint16(d[1])<<8 | uint16(d[2])
		balance = decode24Signed(d[8:11])
		if len(d) == 0x21 {
			loadLog = card.ParseSVLoadLogRecord(d[11:])
		} else {
			debitLog = card.ParseSVDebitLogRecord(d[11:])
		}
	case 0x3D: // rev 3.2 mode
		kvc = d[8]
		transactionNumber = uint16(d[9])<<8 | uint16(d[10])
		balance = decode24Signed(d[17:20])
		loadLog = card.ParseSVLoadLogRecord(d[20:42])
		debitLog = card.ParseSVDebitLogRecord(d[42:])
	default:
		return &calypsoerr.UnexpectedResponseLengthError{Command: c.Name(), Expected: 0x21, Actual: len(d)}
	}

	img.SV = card.SVState{
		KVC:                   kvc,
		GetHeader:             c.header,
		LastGetResponse:       append([]byte(nil), d...),
		Balance:               balance,
		LastTransactionNumber: transactionNumber,
		LoadLog:               loadLog,
		DebitLog:              debitLog,
	}
	return nil
}

func decode24Signed(b []byte) int32 {
	v := int32(b[0])<<16 | int32(b[1])<<8 | int32(b[2])
	if b[0]&0x80 != 0 {
		v |= -1 << 24
	}
	return v
}
