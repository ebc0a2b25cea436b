// Package transaction implements the Calypso secure-session
// orchestrator: it queues card commands, drives them through a reader
// collaborator, and coordinates with a SAM collaborator to open, feed,
// and close a secure session (spec.md §4.F, §5).
package transaction

import (
	"fmt"

	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/calypsoerr"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
	"github.com/gregLibert/calypso-core/pkg/calypso/command"
	"github.com/gregLibert/calypso-core/pkg/calypso/reader"
	"github.com/gregLibert/calypso-core/pkg/calypso/sam"
)

// sessionBufferCmdAdditionalCost and apduHeaderLength are the two
// constants the byte-counted modifications-buffer cost formula is
// built from (spec.md §4.F, §9 supplement 4:
// cost = len(apdu) + 6 - 5).
const (
	sessionBufferCmdAdditionalCost = 6
	apduHeaderLength               = 5
)

// SecuritySettings groups the session-policy flags the original
// collects on a SecuritySetting collaborator (spec.md §4.F/§6); this
// manager takes them as plain fields rather than a separate object
// since nothing else in this module needs to share that collaborator.
type SecuritySettings struct {
	PinPlainTransmissionEnabled  bool
	RatificationMechanismEnabled bool
	MultipleSessionEnabled       bool
	SvLoadAndDebitLogEnabled     bool
	SvNegativeBalanceAuthorized  bool

	// ExtendedModeAllowed mirrors the collaborating SAM's capability
	// (SAM_C1/HSM_C1 in the original): it gates the extended SV_GET/
	// SV_RELOAD/SV_DEBIT encoding on cards that otherwise support it.
	// The manager has no way to query the SAM's product type itself,
	// so the caller supplies this alongside the rest of the policy.
	ExtendedModeAllowed bool
}

// SVAction selects whether a prepared SV debit is a plain debit ("DO")
// or cancels a previous debit ("UNDO", which makes PrepareSvDebit queue
// SV_UNDEBIT — inherited naming from the source's SvAction enum,
// spec.md §9). PrepareSvReload does not consult it.
type SVAction int

const (
	SVActionDo SVAction = iota
	SVActionUndo
)

// CardTransactionManager is the stateful orchestrator: it owns the
// card image exclusively for the lifetime of a transaction and issues
// batched card requests through reader.Transmitter, coordinating a
// secure session with an sam.ControlSamTransactionManager collaborator
// (spec.md §4.F).
type CardTransactionManager struct {
	img      *card.CalypsoCard
	rdr      reader.Transmitter
	samMgr   sam.ControlSamTransactionManager
	settings SecuritySettings

	channelControl   reader.ChannelControl
	isSessionOpen    bool
	isContactless    bool
	writeAccessLevel sam.WriteAccessLevel

	commands              []command.Command
	modificationsCounter  int

	svOperation                command.SVOperation
	svAction                   SVAction
	svLastCommandRef           string
	svLastModifyingCommand    *command.SVModify
	isSvOperationInsideSession bool
	isSvOperationComplete      bool

	trace apdu.Trace
}

// New returns a manager driving img through rdr, coordinating with
// samMgr for every cryptographic step. isContactless must reflect the
// physical channel's protocol: it gates whether the ratification APDU
// is ever appended after CLOSE_SESSION.
func New(img *card.CalypsoCard, rdr reader.Transmitter, samMgr sam.ControlSamTransactionManager, isContactless bool, settings SecuritySettings) *CardTransactionManager {
	return &CardTransactionManager{
		img:            img,
		rdr:            rdr,
		samMgr:         samMgr,
		settings:       settings,
		channelControl: reader.KeepOpen,
		isContactless:  isContactless,
	}
}

// Card returns the card image this manager operates on.
func (m *CardTransactionManager) Card() *card.CalypsoCard { return m.img }

// Trace returns the accumulated request/response history ("transaction
// audit data", spec.md §7) across every exchange this manager has run.
func (m *CardTransactionManager) Trace() apdu.Trace { return m.trace }

// PrepareReleaseCardChannel asks the next transmission to close the
// physical channel afterward (spec.md §5).
func (m *CardTransactionManager) PrepareReleaseCardChannel() *CardTransactionManager {
	m.channelControl = reader.CloseAfter
	return m
}

func (m *CardTransactionManager) checkSession() error {
	if !m.isSessionOpen {
		return &calypsoerr.IllegalStateError{Reason: "no session is open"}
	}
	return nil
}

func (m *CardTransactionManager) checkNoSession() error {
	if m.isSessionOpen {
		return &calypsoerr.IllegalStateError{Reason: "a session is already open"}
	}
	return nil
}

// notifyCommandsProcessed clears the queue after a batch has been
// transmitted and parsed, matching the original's post-transmit reset
// (CardTransactionManagerAdapter::notifyCommandsProcessed).
func (m *CardTransactionManager) notifyCommandsProcessed() {
	m.commands = nil
	m.svLastModifyingCommand = nil
}

// transmit sends cardRequest, appends every exchange to the audit
// trace regardless of outcome, and returns the response.
func (m *CardTransactionManager) transmit(cardRequest *reader.CardRequest, cc reader.ChannelControl) (*reader.CardResponse, error) {
	resp, err := m.rdr.Transmit(cardRequest, cc)
	if resp != nil {
		for i, r := range resp.Responses {
			if i < len(cardRequest.Commands) {
				m.trace = append(m.trace, apdu.Transaction{Request: cardRequest.Commands[i], Response: r})
			}
		}
	}
	if err != nil {
		return resp, fmt.Errorf("transaction: transmit failed: %w", err)
	}
	return resp, nil
}

// parseAll feeds resp's responses into cmds in order, returning on the
// first error that is not a best-effort-tolerated one (transmit has
// already added the exchanges to the audit trace). Tolerated errors only apply outside a
// session (spec.md §7 propagation policy); inside a session every
// command failure is fatal.
func parseAll(cmds []command.Command, resp *reader.CardResponse, img *card.CalypsoCard, bestEffort bool) error {
	var responses []*apdu.Response
	if resp != nil {
		responses = resp.Responses
	}
	if len(responses) > len(cmds) {
		return &calypsoerr.InconsistentDataError{Requests: len(cmds), Responses: len(responses)}
	}

	for i, r := range responses {
		cmd := cmds[i]
		err := cmd.ParseResponse(r, img)
		if err == nil {
			continue
		}
		if bestEffort {
			if cmdErr, ok := err.(*calypsoerr.CommandError); ok {
				if isReadCommand(cmd) && (cmdErr.SW == 0x6A82 || cmdErr.SW == 0x6A83) {
					continue
				}
			}
		}
		return err
	}

	if len(responses) < len(cmds) {
		return &calypsoerr.InconsistentDataError{Requests: len(cmds), Responses: len(responses)}
	}
	return nil
}

func isReadCommand(cmd command.Command) bool {
	switch cmd.Name() {
	case "READ_RECORDS", "READ_RECORD_MULTIPLE", "READ_BINARY", "SEARCH_RECORD_MULTIPLE":
		return true
	default:
		return false
	}
}

func requestsOf(cmds []command.Command) []*apdu.Command {
	out := make([]*apdu.Command, len(cmds))
	for i, c := range cmds {
		out[i] = c.Request()
	}
	return out
}
