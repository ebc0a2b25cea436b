package transaction

import (
	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/calypsoerr"
	"github.com/gregLibert/calypso-core/pkg/calypso/command"
	"github.com/gregLibert/calypso-core/pkg/calypso/reader"
	"github.com/gregLibert/calypso-core/pkg/calypso/sam"
)

// ratificationRequest builds the dedicated single-APDU (CLA/0x82/00/00,
// no data, no Le) Calypso sends right after a ratified CLOSE_SESSION on
// a contactless channel: the card is not expected to answer it, it
// only serves to keep the RF field up long enough to ratify.
func ratificationRequest(cla apdu.Class) *apdu.Command {
	return apdu.NewCommand(cla, 0x82, 0x00, 0x00, nil, 0)
}

// keyIndexFor maps a write access level to the byte OPEN_SESSION
// encodes in P1: Calypso reserves index 1 for personalization, 2 for
// loading, 3 for debiting.
func keyIndexFor(level sam.WriteAccessLevel) byte {
	return byte(level) + 1
}

// processAtomicOpening opens a secure session over cardCommands: it
// extracts a leading single-record READ_RECORDS (if any) to inline
// into OPEN_SESSION itself, gets a challenge from the SAM, transmits,
// and feeds the exchange into both the card image and the SAM's
// running digest (spec.md §4.F, §5).
func (m *CardTransactionManager) processAtomicOpening(cardCommands []command.Command) error {
	m.img.Backup()

	var sfi, recordNumber byte
	var recordSize int
	remaining := cardCommands
	if len(cardCommands) > 0 {
		if rr, ok := cardCommands[0].(*command.ReadRecords); ok && rr.Mode() == command.ReadOneRecord {
			sfi = rr.SFI()
			recordNumber = rr.RecordNumber()
			remaining = cardCommands[1:]
		}
	}

	challenge, err := m.processSamGetChallenge()
	if err != nil {
		return err
	}

	useExtendedMode := m.isExtendedModeAllowed()
	open := command.NewOpenSession(m.img.Product.Type, keyIndexFor(m.writeAccessLevel), challenge, sfi, recordNumber, recordSize, useExtendedMode)

	allCommands := make([]command.Command, 0, len(remaining)+1)
	allCommands = append(allCommands, open)
	allCommands = append(allCommands, remaining...)

	apduRequests := requestsOf(allCommands)
	cardRequest := reader.NewCardRequest(false, apduRequests...)

	m.isSessionOpen = true
	resp, err := m.transmit(cardRequest, reader.KeepOpen)
	if err != nil {
		return err
	}

	if err := parseAll(allCommands, resp, m.img, false); err != nil {
		return err
	}

	cardKif, cardKvc := open.KIF, open.KVC
	kif, err := m.samMgr.ComputeKif(m.writeAccessLevel, cardKif, cardKvc)
	if err != nil {
		return err
	}
	kvc, err := m.samMgr.ComputeKvc(m.writeAccessLevel, cardKvc)
	if err != nil {
		return err
	}
	if !m.samMgr.IsSessionKeyAuthorized(kif, kvc) {
		return &calypsoerr.UnauthorizedKeyError{Kif: kif, Kvc: kvc}
	}

	if err := m.samMgr.InitializeSession(resp.Responses[0].DataOut(), kif, kvc, false, false); err != nil {
		return err
	}

	apduResponses := make([][]byte, len(resp.Responses))
	for i, r := range resp.Responses {
		raw := r.Raw
		apduResponses[i] = raw
	}
	apduRequestBytes := make([][]byte, len(apduRequests))
	for i, c := range apduRequests {
		raw, _ := c.Bytes()
		apduRequestBytes[i] = raw
	}
	return m.samMgr.UpdateSession(apduRequestBytes, apduResponses, 1)
}

// abortSecureSessionSilently tries to cancel an open session,
// discarding any failure: it is only ever called while already
// unwinding from another error.
func (m *CardTransactionManager) abortSecureSessionSilently() {
	if !m.isSessionOpen {
		return
	}
	_ = m.ProcessCancel()
	m.isSessionOpen = false
}

// processAtomicCardCommands transmits cardCommands as a single batch,
// feeding the SAM's running digest when a session is open, and parses
// every response into the card image.
func (m *CardTransactionManager) processAtomicCardCommands(cardCommands []command.Command, cc reader.ChannelControl) (*reader.CardResponse, error) {
	apduRequests := requestsOf(cardCommands)
	cardRequest := reader.NewCardRequest(false, apduRequests...)

	resp, err := m.transmit(cardRequest, cc)
	if err != nil {
		return resp, err
	}

	if m.isSessionOpen {
		reqBytes := make([][]byte, len(apduRequests))
		for i, c := range apduRequests {
			raw, _ := c.Bytes()
			reqBytes[i] = raw
		}
		respBytes := make([][]byte, len(resp.Responses))
		for i, r := range resp.Responses {
			raw := r.Raw
			respBytes[i] = raw
		}
		if err := m.samMgr.UpdateSession(reqBytes, respBytes, 0); err != nil {
			return resp, err
		}
	}

	if err := parseAll(cardCommands, resp, m.img, !m.isSessionOpen); err != nil {
		return resp, err
	}
	return resp, nil
}

// processAtomicClosing closes the current secure session: it appends
// cardCommands' anticipated responses to the SAM's running digest,
// gets the terminal signature, builds CLOSE_SESSION (and, on a
// contactless channel with ratification enabled, a following
// RATIFICATION APDU), transmits, and authenticates the card's
// signature (spec.md §4.F, §5 "digest feed order").
func (m *CardTransactionManager) processAtomicClosing(cardCommands []command.Command, ratificationMechanismEnabled bool, cc reader.ChannelControl) error {
	apduRequests := requestsOf(cardCommands)

	anticipated, err := m.anticipateAll(cardCommands)
	if err != nil {
		return err
	}

	reqBytes := make([][]byte, len(apduRequests))
	for i, c := range apduRequests {
		raw, _ := c.Bytes()
		reqBytes[i] = raw
	}
	respBytes := make([][]byte, len(anticipated))
	for i, r := range anticipated {
		raw := r.Raw
		respBytes[i] = raw
	}
	if err := m.samMgr.UpdateSession(reqBytes, respBytes, 0); err != nil {
		return err
	}

	terminalSignature, err := m.processSamSessionClosing()
	if err != nil {
		return err
	}

	ratificationAsked := !ratificationMechanismEnabled
	closeSession, err := command.NewCloseSession(m.img.CardClass(), ratificationAsked, terminalSignature, m.img.IsExtendedModeSupported())
	if err != nil {
		return err
	}

	allCommands := append(append([]command.Command{}, cardCommands...), closeSession)
	allRequests := requestsOf(allCommands)

	ratificationAppended := ratificationMechanismEnabled && m.isContactless
	if ratificationAppended {
		allRequests = append(allRequests, ratificationRequest(m.img.CardClass()))
	}

	cardRequest := reader.NewCardRequest(false, allRequests...)
	resp, err := m.transmit(cardRequest, cc)
	if err != nil {
		if ratificationAppended && resp != nil && len(resp.Responses) == len(allRequests)-1 {
			// the card closed the physical channel right after
			// ratifying; the missing ratification answer is expected.
		} else {
			return err
		}
	}

	responses := resp.Responses
	if ratificationAppended && len(responses) == len(allRequests) {
		responses = responses[:len(responses)-1]
	}

	if len(responses) == 0 {
		return &calypsoerr.InconsistentDataError{Requests: len(allCommands), Responses: 0}
	}
	closeSessionResponse := responses[len(responses)-1]
	otherResponses := &reader.CardResponse{Responses: responses[:len(responses)-1]}

	m.isSessionOpen = false

	if err := parseAll(cardCommands, otherResponses, m.img, false); err != nil {
		return err
	}
	if err := closeSession.ParseResponse(closeSessionResponse, m.img); err != nil {
		return err
	}

	if err := m.processSamDigestAuthenticate(closeSession.SignatureLo); err != nil {
		return err
	}

	if m.isSvOperationCompleteOneTime() {
		var svData []byte
		for _, d := range closeSession.PostponedData {
			svData = append(svData, d...)
		}
		if err := m.processSamSvCheck(svData); err != nil {
			return err
		}
	}
	return nil
}

func (m *CardTransactionManager) processSamGetChallenge() ([]byte, error) {
	if err := m.samMgr.PrepareGetChallenge(); err != nil {
		return nil, err
	}
	if err := m.samMgr.ProcessCommands(); err != nil {
		return nil, err
	}
	return m.samMgr.GetChallenge()
}

func (m *CardTransactionManager) processSamSessionClosing() ([]byte, error) {
	if err := m.samMgr.PrepareSessionClosing(); err != nil {
		return nil, err
	}
	if err := m.samMgr.ProcessCommands(); err != nil {
		return nil, err
	}
	return m.samMgr.TerminalSignature()
}

func (m *CardTransactionManager) processSamDigestAuthenticate(cardSignature []byte) error {
	if err := m.samMgr.PrepareDigestAuthenticate(cardSignature); err != nil {
		return &calypsoerr.CardSignatureNotVerifiableError{Cause: err}
	}
	if err := m.samMgr.ProcessCommands(); err != nil {
		return &calypsoerr.CardSignatureNotVerifiableError{Cause: err}
	}
	return nil
}

func (m *CardTransactionManager) checkMultipleSessionEnabled() error {
	if !m.settings.MultipleSessionEnabled {
		return &calypsoerr.SessionBufferOverflowError{}
	}
	return nil
}

// ProcessOpening opens a secure session at the given write access
// level and runs every command prepared so far, splitting across
// several atomic sub-sessions if the modifications-buffer budget
// requires it (spec.md §4.F "Modifications-buffer budget").
func (m *CardTransactionManager) ProcessOpening(level sam.WriteAccessLevel) (err error) {
	if err := m.checkNoSession(); err != nil {
		return err
	}
	m.writeAccessLevel = level
	m.resetModificationsBufferCounter()

	defer func() {
		if err != nil {
			m.abortSecureSessionSilently()
		}
	}()

	batches, remaining, splitErr := m.splitBySessionBuffer(m.commands)
	if splitErr != nil {
		return splitErr
	}

	for i, batch := range batches {
		if i > 0 {
			if err = m.checkMultipleSessionEnabled(); err != nil {
				return err
			}
		}
		if err = m.processAtomicOpening(batch); err != nil {
			return err
		}
		if i < len(batches)-1 {
			if err = m.processAtomicClosing(nil, false, reader.KeepOpen); err != nil {
				return err
			}
			m.resetModificationsBufferCounter()
		}
	}
	m.modificationsCounter = remaining

	m.notifyCommandsProcessed()
	m.isSvOperationInsideSession = false
	return nil
}

// processCommandsOutsideSession runs every prepared command outside a
// secure session, then runs any pending SV check.
func (m *CardTransactionManager) processCommandsOutsideSession(cc reader.ChannelControl) error {
	if _, err := m.processAtomicCardCommands(m.commands, cc); err != nil {
		return err
	}
	m.notifyCommandsProcessed()
	if m.isSvOperationCompleteOneTime() {
		return m.processSamSvCheck(m.img.SV.LastOperationSignature)
	}
	return nil
}

// processCommandsInsideSession runs every prepared command inside the
// already-open session, splitting into further atomic sub-sessions
// (each flushed with an empty-close/reopen pair) when the
// modifications-buffer budget requires it.
func (m *CardTransactionManager) processCommandsInsideSession() (err error) {
	defer func() {
		if err != nil {
			m.abortSecureSessionSilently()
		}
	}()

	batches, remaining, splitErr := m.splitBySessionBuffer(m.commands)
	if splitErr != nil {
		return splitErr
	}

	for i, batch := range batches {
		if i < len(batches)-1 {
			if err = m.checkMultipleSessionEnabled(); err != nil {
				return err
			}
			if _, err = m.processAtomicCardCommands(batch, reader.KeepOpen); err != nil {
				return err
			}
			if err = m.processAtomicClosing(nil, false, reader.KeepOpen); err != nil {
				return err
			}
			if err = m.processAtomicOpening(nil); err != nil {
				return err
			}
			m.resetModificationsBufferCounter()
			continue
		}
		if _, err = m.processAtomicCardCommands(batch, m.channelControl); err != nil {
			return err
		}
	}
	m.modificationsCounter = remaining

	m.notifyCommandsProcessed()
	return m.samMgr.ProcessCommands()
}

// ProcessCommands runs every prepared command, either inside the
// currently open session or as a standalone batch.
func (m *CardTransactionManager) ProcessCommands() error {
	if err := m.finalizeSvCommandIfNeeded(); err != nil {
		return err
	}
	if m.isSessionOpen {
		return m.processCommandsInsideSession()
	}
	return m.processCommandsOutsideSession(m.channelControl)
}

// ProcessClosing runs every remaining prepared command and closes the
// secure session, ratifying per the configured security settings.
func (m *CardTransactionManager) ProcessClosing() (err error) {
	if err := m.checkSession(); err != nil {
		return err
	}
	if err := m.finalizeSvCommandIfNeeded(); err != nil {
		return err
	}

	defer func() {
		if err != nil {
			m.abortSecureSessionSilently()
		}
	}()

	batches, _, splitErr := m.splitBySessionBuffer(m.commands)
	if splitErr != nil {
		return splitErr
	}

	for i, batch := range batches {
		if i < len(batches)-1 {
			if err = m.checkMultipleSessionEnabled(); err != nil {
				return err
			}
			if _, err = m.processAtomicCardCommands(batch, reader.KeepOpen); err != nil {
				return err
			}
			if err = m.processAtomicClosing(nil, false, reader.KeepOpen); err != nil {
				return err
			}
			if err = m.processAtomicOpening(nil); err != nil {
				return err
			}
			m.resetModificationsBufferCounter()
			continue
		}
		if err = m.processAtomicClosing(batch, m.settings.RatificationMechanismEnabled, m.channelControl); err != nil {
			return err
		}
	}

	m.notifyCommandsProcessed()
	return nil
}

// ProcessCancel aborts the current secure session: it rolls the card
// image back to its pre-session snapshot and sends an abort-form
// CLOSE_SESSION. The session is considered closed regardless of the
// outcome of that exchange.
func (m *CardTransactionManager) ProcessCancel() error {
	if err := m.checkSession(); err != nil {
		return err
	}
	m.img.Restore()

	abort := command.NewCloseSessionAbort(m.img.CardClass())
	cardRequest := reader.NewCardRequest(false, abort.Request())
	resp, err := m.transmit(cardRequest, reader.KeepOpen)

	m.isSessionOpen = false
	m.notifyCommandsProcessed()

	if err != nil {
		return nil
	}
	if len(resp.Responses) == 0 {
		return nil
	}
	if parseErr := abort.ParseResponse(resp.Responses[0], m.img); parseErr != nil {
		if cmdErr, ok := parseErr.(*calypsoerr.CommandError); ok {
			return &calypsoerr.UnexpectedCommandStatusError{Cause: cmdErr, Trace: m.trace}
		}
		return parseErr
	}
	return nil
}
