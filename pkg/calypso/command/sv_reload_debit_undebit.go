package command

import (
	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/calypsoerr"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

// svPostponedSW is the status word a SV_RELOAD/SV_DEBIT/SV_UNDEBIT
// returns when issued inside an open session: the card accepts the
// operation but defers applying it until session close, just like the
// counter postponed-response convention (original_source
// CmdCardSvDebitOrUndebit.cpp SW_POSTPONED_DATA).
const svPostponedSW apdu.StatusWord = 0x6200

var svModifyStatusTable = func() apdu.StatusTable {
	t := apdu.BaseStatusTable()
	t[svPostponedSW] = apdu.StatusProperty{Message: "Postponed until session closing", Success: true, Kind: apdu.KindSuccess}
	t[0x6700] = apdu.StatusProperty{Message: "Lc value not supported", Success: false, Kind: apdu.KindIllegalParameter}
	t[0x6900] = apdu.StatusProperty{Message: "Transaction counter is 0 or SV TNum exhausted", Success: false, Kind: apdu.KindTerminated}
	t[0x6985] = apdu.StatusProperty{Message: "Preconditions not satisfied", Success: false, Kind: apdu.KindAccessForbidden}
	t[0x6988] = apdu.StatusProperty{Message: "Incorrect signatureHi", Success: false, Kind: apdu.KindSecurityData}
	return t
}()

// SVModifyKind distinguishes the three operations sharing this
// template/finalize shape; INS and amount sign depend on it.
type SVModifyKind int

const (
	SVModifyReload SVModifyKind = iota
	SVModifyDebit
	SVModifyUndebit
)

func (k SVModifyKind) instruction() byte {
	switch k {
	case SVModifyReload:
		return 0xB8
	case SVModifyDebit:
		return 0xBA
	default:
		return 0xBC
	}
}

func (k SVModifyKind) name() string {
	switch k {
	case SVModifyReload:
		return "SV_RELOAD"
	case SVModifyDebit:
		return "SV_DEBIT"
	default:
		return "SV_UNDEBIT"
	}
}

// SVModify builds SV_RELOAD (INS 0xB8), SV_DEBIT (INS 0xBA) or
// SV_UNDEBIT (INS 0xBC): a two-phase command. The constructor builds a
// template carrying everything known before the SAM signs the
// operation; Finalize splices in the SAM's complementary data (P1, P2,
// and the signatureHi) before the request can be transmitted (spec.md
// ##9 "SV two-phase commands" supplement, grounded on
// original_source/CmdCardSvDebitOrUndebit.cpp for DEBIT/UNDEBIT; the
// RELOAD shape is inferred from the same class since no SV_RELOAD
// source was retrieved — see DESIGN.md).
type SVModify struct {
	kind         SVModifyKind
	cardClass    apdu.Class
	isSessionOpen bool
	extended     bool
	dataIn       []byte
	req          *apdu.Command
}

// NewSVModify builds the template. amount must be within [0, 32767]
// (CL-SV-DEBITVAL.1); for debit/undebit it is stored negated in the
// request, matching the card's signed-amount convention.
func NewSVModify(kind SVModifyKind, legacy bool, amount int, date, timeOfDay [2]byte, kvc byte, isSessionOpen, extendedMode bool) (*SVModify, error) {
	if amount < 0 || amount > 32767 {
		return nil, &calypsoerr.IllegalArgumentError{Command: kind.name(), Reason: "amount must be within 0..32767"}
	}

	size := 20
	if extendedMode {
		size = 25
	}
	dataIn := make([]byte, size)

	signed := amount
	if kind != SVModifyReload {
		signed = -amount
	}
	dataIn[1] = byte(signed >> 8)
	dataIn[2] = byte(signed)
	dataIn[3] = date[0]
	dataIn[4] = date[1]
	dataIn[5] = timeOfDay[0]
	dataIn[6] = timeOfDay[1]
	dataIn[7] = kvc

	cla := apdu.ClassISO
	if legacy {
		cla = apdu.ClassLegacyStoredValue
	}

	return &SVModify{
		kind:          kind,
		cardClass:     cla,
		isSessionOpen: isSessionOpen,
		extended:      extendedMode,
		dataIn:        dataIn,
	}, nil
}

// Finalize splices the SAM's complementary data into the template and
// builds the transmittable request. complementaryData must be 15 bytes
// (standard mode) or 20 bytes (extended mode): [0:4) feeds dataIn[8:12),
// [4] is P1, [5] is P2, [6] is dataIn[0], [7:10) feeds dataIn[12:15),
// and the remainder is the signatureHi tail.
func (c *SVModify) Finalize(complementaryData []byte) error {
	wantLen := 15
	if c.extended {
		wantLen = 20
	}
	if len(complementaryData) != wantLen {
		return &calypsoerr.IllegalArgumentError{Command: c.kind.name(), Reason: "bad SV complementary data length"}
	}

	p1 := complementaryData[4]
	p2 := complementaryData[5]
	c.dataIn[0] = complementaryData[6]
	copy(c.dataIn[8:12], complementaryData[0:4])
	copy(c.dataIn[12:15], complementaryData[7:10])
	copy(c.dataIn[15:], complementaryData[10:])

	le := 0
	if !c.isSessionOpen {
		if c.extended {
			le = 6
		} else {
			le = 3
		}
	}

	c.req = apdu.NewCommand(c.cardClass, c.kind.instruction(), p1, p2, c.dataIn, le).WithExtraSuccess(uint16(svPostponedSW))
	return nil
}

func (c *SVModify) Name() string { return c.kind.name() }

// Request returns the finalized request; it is nil until Finalize has
// run, which the transaction manager must call before transmission.
func (c *SVModify) Request() *apdu.Command  { return c.req }
func (c *SVModify) UsesSessionBuffer() bool { return true }

func (c *SVModify) ParseResponse(resp *apdu.Response, img *card.CalypsoCard) error {
	if err := checkStatus(c.kind.name(), svModifyStatusTable, resp, -1); err != nil {
		return err
	}
	d := resp.DataOut()
	if len(d) != 0 && len(d) != 3 && len(d) != 6 {
		return &calypsoerr.UnexpectedResponseLengthError{Command: c.kind.name(), Expected: 3, Actual: len(d)}
	}
	img.SV.LastOperationSignature = append([]byte(nil), d...)
	return nil
}
