package selection

import (
	"fmt"

	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/calypsoerr"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
	"github.com/gregLibert/calypso-core/pkg/calypso/command"
	"github.com/gregLibert/calypso-core/pkg/calypso/reader"
)

// Selection accumulates the commands to run immediately after the
// low-level application selection, and parses the eventual responses
// into an initial CalypsoCard. cla/legacy/productType are the caller's
// best prior knowledge of the card generation (from a previous
// selection, or ProductUnknown/ISO for "figure it out from the
// answer"); Parse refines them once the real startup info is known.
type Selection struct {
	Selector    *Selector
	cla         apdu.Class
	legacy      bool
	productType card.ProductType
	commands    []command.Command
}

// NewSelection starts a selection batch against selector, assuming the
// given class/product type until the card's own answer says otherwise.
func NewSelection(selector *Selector, cla apdu.Class, legacy bool, pt card.ProductType) *Selection {
	return &Selection{Selector: selector, cla: cla, legacy: legacy, productType: pt}
}

// PrepareReadRecord queues a one-record READ_RECORDS to run right
// after selection (original_source prepareReadRecord/prepareReadRecordFile).
func (s *Selection) PrepareReadRecord(sfi, recordNumber byte) {
	s.commands = append(s.commands, command.NewReadRecords(s.cla, sfi, recordNumber, command.ReadOneRecord, apdu.MaxShortLe))
}

// PrepareSelectFileByLID queues a SELECT_FILE addressed by LID.
func (s *Selection) PrepareSelectFileByLID(lid uint16) {
	s.commands = append(s.commands, command.NewSelectFileByLID(s.cla, s.legacy, s.productType, lid))
}

// PrepareSelectFileByControl queues a SELECT_FILE navigation command
// (first/next EF under the current DF, or the current DF itself).
func (s *Selection) PrepareSelectFileByControl(ctrl command.SelectControl) {
	s.commands = append(s.commands, command.NewSelectFileByControl(s.cla, s.productType, ctrl))
}

// PrepareGetData queues a GET_DATA command for the given tag.
func (s *Selection) PrepareGetData(tag command.GetDataTag) {
	s.commands = append(s.commands, command.NewGetData(s.cla, s.productType, tag))
}

// CardRequest builds the batch of APDU requests for the queued
// commands, ready to transmit right after the low-level SELECT
// exchange. A Selection with no queued commands yields a nil request,
// mirroring the original's "selection-only, no follow-up commands" case.
func (s *Selection) CardRequest() *reader.CardRequest {
	if len(s.commands) == 0 {
		return nil
	}
	cmds := make([]*apdu.Command, len(s.commands))
	for i, c := range s.commands {
		cmds[i] = c.Request()
	}
	return reader.NewCardRequest(false, cmds...)
}

// Parse builds the initial card image from the low-level selection
// outcome (power-on data and/or the application's FCI) and then walks
// resp in lockstep with the queued commands (original_source
// CalypsoCardSelectionAdapter::parse/parseApduResponses).
//
// Best-effort semantics are preserved exactly: a READ_RECORDS answering
// "file not found" (0x6A82) or "record not found" (0x6A83) does not
// abort the batch, a SELECT_FILE failure is reported distinctly from
// every other command failure, and any other command failure aborts
// with the accumulated trace attached.
func (s *Selection) Parse(powerOnData, selectApplicationResponse []byte, resp *reader.CardResponse) (*card.CalypsoCard, error) {
	img := card.New()
	initializeFromPowerOnData(img, powerOnData)
	if len(selectApplicationResponse) > 0 {
		if err := initializeFromFCI(img, selectApplicationResponse); err != nil {
			return nil, err
		}
	}

	if img.Product.Type == card.ProductUnknown && len(selectApplicationResponse) == 0 && len(powerOnData) == 0 {
		return nil, fmt.Errorf("selection: no power-on data and no application FCI, cannot identify the card")
	}

	if len(s.commands) == 0 {
		return img, nil
	}

	var responses []*apdu.Response
	if resp != nil {
		responses = resp.Responses
	}
	if len(responses) > len(s.commands) {
		return nil, &calypsoerr.InconsistentDataError{Requests: len(s.commands), Responses: len(responses)}
	}

	var trace apdu.Trace
	for i, r := range responses {
		cmd := s.commands[i]
		err := cmd.ParseResponse(r, img)
		trace = append(trace, apdu.Transaction{Request: cmd.Request(), Response: r})
		if err == nil {
			continue
		}

		cmdErr, ok := err.(*calypsoerr.CommandError)
		if !ok {
			return nil, err
		}
		switch {
		case cmd.Name() == "READ_RECORDS" && (cmdErr.SW == 0x6A82 || cmdErr.SW == 0x6A83):
			// best effort: a missing file/record at selection time is
			// not fatal, the caller simply won't see that content.
			continue
		case cmd.Name() == "SELECT_FILE":
			return nil, fmt.Errorf("selection: file not found: %w", cmdErr)
		default:
			return nil, &calypsoerr.UnexpectedCommandStatusError{Cause: cmdErr, Trace: trace}
		}
	}

	if len(responses) < len(s.commands) {
		return nil, &calypsoerr.InconsistentDataError{Requests: len(s.commands), Responses: len(responses)}
	}
	return img, nil
}
