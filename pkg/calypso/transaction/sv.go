package transaction

import (
	"github.com/gregLibert/calypso-core/pkg/calypso/calypsoerr"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
	"github.com/gregLibert/calypso-core/pkg/calypso/command"
	"github.com/gregLibert/calypso-core/pkg/calypso/sam"
)

// Fixed SV log file locations (original_source CalypsoCardConstant):
// the reload log is a single 29-byte record, the debit/undebit log
// keeps the latest 3.
const (
	svReloadLogFileSFI     = 0x14
	svReloadLogFileNbRec   = 1
	svDebitLogFileSFI      = 0x15
	svDebitLogFileNbRec    = 3
	svLogFileRecLength     = 29
)

func (m *CardTransactionManager) isExtendedModeAllowed() bool {
	return m.img.IsExtendedModeSupported() && m.settings.ExtendedModeAllowed
}

// checkSvInsideSession enforces the one-SV-operation-per-session rule;
// outside a session there is nothing to track.
func (m *CardTransactionManager) checkSvInsideSession() error {
	if !m.isSessionOpen {
		return nil
	}
	if m.isSvOperationInsideSession {
		return &calypsoerr.IllegalStateError{Reason: "only one SV operation is allowed per secure session"}
	}
	m.isSvOperationInsideSession = true
	return nil
}

// PrepareSvGet queues SV_GET ahead of a PrepareSvReload/PrepareSvDebit
// call, recording which operation/action it is preparing so the
// sequencing checks in addStoredValueCommand can verify the pair
// matches (spec.md ##4.C/§9 SV sequencing).
func (m *CardTransactionManager) PrepareSvGet(operation command.SVOperation, action SVAction) error {
	if !m.img.IsSvFeatureAvailable() {
		return &calypsoerr.IllegalStateError{Reason: "Stored Value is not available for this card"}
	}

	useExtendedMode := m.isExtendedModeAllowed()
	if m.settings.SvLoadAndDebitLogEnabled && !useExtendedMode {
		// the card only keeps one log slot per operation; fetch the
		// opposite operation's log first so a caller inspecting both
		// logs after the real SV_GET sees a consistent pair.
		opposite := command.SVOperationDebit
		if operation == command.SVOperationDebit || operation == command.SVOperationUndebit {
			opposite = command.SVOperationReload
		}
		m.addStoredValueCommand(command.NewSVGet(m.img.IsLegacy(), opposite, false), operation, true)
	}

	m.addStoredValueCommand(command.NewSVGet(m.img.IsLegacy(), operation, useExtendedMode), operation, true)
	m.svAction = action
	return nil
}

// PrepareSvReload queues SV_RELOAD for amount, dated date/timeOfDay.
// Must follow a matching PrepareSvGet.
func (m *CardTransactionManager) PrepareSvReload(amount int, date, timeOfDay [2]byte) error {
	if err := m.checkSvInsideSession(); err != nil {
		return err
	}
	cmd, err := command.NewSVModify(command.SVModifyReload, m.img.IsLegacy(), amount, date, timeOfDay, m.img.GetSvKvc(), m.isSessionOpen, m.isExtendedModeAllowed())
	if err != nil {
		return err
	}
	return m.addStoredValueCommand(cmd, command.SVOperationReload, false)
}

// PrepareSvDebit queues SV_DEBIT (or SV_UNDEBIT, when the matching
// PrepareSvGet was given SVActionUndo) for amount, dated date/time.
// Must follow a matching PrepareSvGet.
func (m *CardTransactionManager) PrepareSvDebit(amount int, date, timeOfDay [2]byte) error {
	if err := m.checkSvInsideSession(); err != nil {
		return err
	}
	if m.svAction == SVActionDo && !m.settings.SvNegativeBalanceAuthorized {
		if int(m.img.GetSvBalance())-amount < 0 {
			return &calypsoerr.IllegalStateError{Reason: "negative balances are not allowed"}
		}
	}

	kind := command.SVModifyDebit
	if m.svAction != SVActionDo {
		kind = command.SVModifyUndebit
	}
	cmd, err := command.NewSVModify(kind, m.img.IsLegacy(), amount, date, timeOfDay, m.img.GetSvKvc(), m.isSessionOpen, m.isExtendedModeAllowed())
	if err != nil {
		return err
	}
	return m.addStoredValueCommand(cmd, command.SVOperationDebit, false)
}

// PrepareSvReadAllLogs queues reads of both the SV reload and
// debit/undebit log files, and clears the load and debit logs held on
// the card image (the logs are only meaningful once freshly read).
func (m *CardTransactionManager) PrepareSvReadAllLogs() error {
	if !m.img.IsSvFeatureAvailable() {
		return &calypsoerr.IllegalStateError{Reason: "Stored Value is not available for this card"}
	}
	if !m.img.IsStoredValueApplication() {
		return &calypsoerr.IllegalStateError{Reason: "the SV log files require a Stored Value application"}
	}
	m.img.SV.LoadLog = card.SVLogRecord{}
	m.img.SV.DebitLog = card.SVLogRecord{}

	if err := m.PrepareReadRecords(svReloadLogFileSFI, 1, svReloadLogFileNbRec, svLogFileRecLength); err != nil {
		return err
	}
	return m.PrepareReadRecords(svDebitLogFileSFI, 1, svDebitLogFileNbRec, svLogFileRecLength)
}

// addStoredValueCommand enforces the SV_GET / SV_RELOAD|DEBIT|UNDEBIT
// sequencing rule: a modifying command must be the very first queued
// command and must immediately follow the SV_GET that named the same
// operation (spec.md §9 SV sequencing, original_source
// addStoredValueCommand).
func (m *CardTransactionManager) addStoredValueCommand(cmd command.Command, operation command.SVOperation, isGet bool) error {
	if isGet {
		m.svOperation = operation
	} else {
		if len(m.commands) != 0 {
			return &calypsoerr.IllegalStateError{Reason: "an SV modifying command must be prepared before any other command"}
		}
		if m.svLastCommandRef != "SV_GET" {
			return &calypsoerr.IllegalStateError{Reason: "an SV modifying command must follow an SV Get command"}
		}
		if operation != m.svOperation {
			return &calypsoerr.IllegalStateError{Reason: "inconsistent SV operation"}
		}
		m.isSvOperationComplete = true
		if modify, ok := cmd.(*command.SVModify); ok {
			m.svLastModifyingCommand = modify
		}
	}

	m.svLastCommandRef = cmd.Name()
	m.commands = append(m.commands, cmd)
	return nil
}

// isSvOperationCompleteOneTime reports whether a complete SV_GET +
// modifying-command pair was prepared since the last call, resetting
// the flag (one-shot read, original_source isSvOperationCompleteOneTime).
func (m *CardTransactionManager) isSvOperationCompleteOneTime() bool {
	complete := m.isSvOperationComplete
	m.isSvOperationComplete = false
	return complete
}

// finalizeSvCommandIfNeeded asks the SAM to sign the pending SV
// modifying command and splices the result into its template, right
// before the batch carrying it is transmitted (spec.md §9 SV two-phase
// commands).
func (m *CardTransactionManager) finalizeSvCommandIfNeeded() error {
	if m.svLastModifyingCommand == nil {
		return nil
	}

	var err error
	switch m.svLastModifyingCommand.Name() {
	case "SV_RELOAD":
		err = m.samMgr.PrepareSvPrepareLoad(m.img.GetSvGetHeader(), m.img.GetSvGetData())
	default:
		op := sam.SVOperationDebit
		if m.svLastModifyingCommand.Name() == "SV_UNDEBIT" {
			op = sam.SVOperationUndebit
		}
		err = m.samMgr.PrepareSvPrepareDebitOrUndebit(op, m.img.GetSvGetHeader(), m.img.GetSvGetData())
	}
	if err != nil {
		return err
	}

	if err := m.samMgr.ProcessCommands(); err != nil {
		return err
	}
	complementaryData, err := m.samMgr.SvComplementaryData()
	if err != nil {
		return err
	}
	return m.svLastModifyingCommand.Finalize(complementaryData)
}

// processSamSvCheck asks the SAM to validate the card's SV operation
// signature after a session carrying an SV command has closed. Any SAM
// I/O failure here means the card's signature could not be verified
// rather than that it was rejected.
func (m *CardTransactionManager) processSamSvCheck(svOperationData []byte) error {
	if err := m.samMgr.PrepareSvCheck(svOperationData); err != nil {
		return &calypsoerr.CardSignatureNotVerifiableError{Cause: err}
	}
	if err := m.samMgr.ProcessCommands(); err != nil {
		return &calypsoerr.CardSignatureNotVerifiableError{Cause: err}
	}
	return nil
}
