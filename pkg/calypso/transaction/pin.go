package transaction

import (
	"github.com/gregLibert/calypso-core/pkg/calypso/calypsoerr"
	"github.com/gregLibert/calypso-core/pkg/calypso/command"
	"github.com/gregLibert/calypso-core/pkg/calypso/reader"
)

// ProcessVerifyPin presents pin (always 4 plain bytes; ciphering, when
// required by the security settings, happens transparently via the
// SAM) to the card and runs the resulting batch immediately. No
// command may have been prepared beforehand (spec.md ##4.C PIN flow).
func (m *CardTransactionManager) ProcessVerifyPin(pin []byte) (err error) {
	if len(pin) != 4 {
		return &calypsoerr.IllegalArgumentError{Command: "VERIFY_PIN", Reason: "pin must be 4 bytes"}
	}
	if !m.img.IsPinFeatureAvailable() {
		return &calypsoerr.IllegalStateError{Reason: "PIN is not available for this card"}
	}
	if len(m.commands) != 0 {
		return &calypsoerr.IllegalStateError{Reason: "no commands should have been prepared prior to a PIN submission"}
	}
	if err := m.finalizeSvCommandIfNeeded(); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			m.abortSecureSessionSilently()
		}
	}()

	var toSend []byte
	if !m.settings.PinPlainTransmissionEnabled {
		m.commands = append(m.commands, command.NewGetChallenge(m.img.CardClass()))
		if _, err = m.processAtomicCardCommands(m.commands, reader.KeepOpen); err != nil {
			return err
		}
		m.notifyCommandsProcessed()

		ciphered, err2 := m.processSamCardCipherPin(pin, nil)
		if err2 != nil {
			return err2
		}
		toSend = ciphered
	} else {
		toSend = pin
	}

	verify, err := command.NewVerifyPin(m.img.CardClass(), toSend)
	if err != nil {
		return err
	}
	m.commands = append(m.commands, verify)

	if _, err = m.processAtomicCardCommands(m.commands, m.channelControl); err != nil {
		return err
	}
	m.notifyCommandsProcessed()
	return m.samMgr.ProcessCommands()
}

// ProcessChangePin replaces the card's PIN with newPin (4 plain
// bytes); a session must not be open. Like ProcessVerifyPin, it runs
// immediately rather than joining a prepared batch.
func (m *CardTransactionManager) ProcessChangePin(newPin []byte) (err error) {
	if len(newPin) != 4 {
		return &calypsoerr.IllegalArgumentError{Command: "CHANGE_PIN", Reason: "newPin must be 4 bytes"}
	}
	if !m.img.IsPinFeatureAvailable() {
		return &calypsoerr.IllegalStateError{Reason: "PIN is not available for this card"}
	}
	if m.isSessionOpen {
		return &calypsoerr.IllegalStateError{Reason: "a secure session must not be open to change the PIN"}
	}
	if err := m.finalizeSvCommandIfNeeded(); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			m.abortSecureSessionSilently()
		}
	}()

	var cryptogram []byte
	if m.settings.PinPlainTransmissionEnabled {
		cryptogram = newPin
	} else {
		m.commands = append(m.commands, command.NewGetChallenge(m.img.CardClass()))
		if _, err = m.processAtomicCardCommands(m.commands, reader.KeepOpen); err != nil {
			return err
		}
		m.notifyCommandsProcessed()

		ciphered, err2 := m.processSamCardCipherPin([]byte{0, 0, 0, 0}, newPin)
		if err2 != nil {
			return err2
		}
		cryptogram = ciphered
	}

	change, err := command.NewChangePin(m.img.CardClass(), cryptogram)
	if err != nil {
		return err
	}
	m.commands = append(m.commands, change)

	if _, err = m.processAtomicCardCommands(m.commands, m.channelControl); err != nil {
		return err
	}
	m.notifyCommandsProcessed()
	return m.samMgr.ProcessCommands()
}

// ProcessChangeKey replaces one of the card's keys (index 1..3) with a
// cryptogram the SAM builds from the issuer's current key and the new
// key's KIF/KVC. A session must not be open.
func (m *CardTransactionManager) ProcessChangeKey(keyIndex byte, newKif, newKvc, issuerKif, issuerKvc byte) (err error) {
	if keyIndex < 1 || keyIndex > 3 {
		return &calypsoerr.IllegalArgumentError{Command: "CHANGE_KEY", Reason: "keyIndex must be within 1..3"}
	}
	if m.isSessionOpen {
		return &calypsoerr.IllegalStateError{Reason: "a secure session must not be open to change a key"}
	}
	if err := m.finalizeSvCommandIfNeeded(); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			m.abortSecureSessionSilently()
		}
	}()

	m.commands = append(m.commands, command.NewGetChallenge(m.img.CardClass()))
	if _, err = m.processAtomicCardCommands(m.commands, reader.KeepOpen); err != nil {
		return err
	}
	m.notifyCommandsProcessed()

	cryptogram, err := m.processSamCardGenerateKey(issuerKif, issuerKvc, newKif, newKvc)
	if err != nil {
		return err
	}

	m.commands = append(m.commands, command.NewChangeKey(m.img.CardClass(), keyIndex, cryptogram))
	_, err = m.processAtomicCardCommands(m.commands, m.channelControl)
	if err != nil {
		return err
	}
	m.notifyCommandsProcessed()
	return nil
}

// processSamCardCipherPin asks the SAM to cipher a PIN presentation
// (newPin nil) or a PIN change (both given).
func (m *CardTransactionManager) processSamCardCipherPin(currentPin, newPin []byte) ([]byte, error) {
	if err := m.samMgr.PrepareGiveRandom(); err != nil {
		return nil, err
	}
	if err := m.samMgr.PrepareCardCipherPin(currentPin, newPin); err != nil {
		return nil, err
	}
	if err := m.samMgr.ProcessCommands(); err != nil {
		return nil, err
	}
	return m.samMgr.CipheredPin()
}

// processSamCardGenerateKey asks the SAM to build a CHANGE_KEY
// cryptogram for newKif/newKvc, authorized under issuerKif/issuerKvc.
func (m *CardTransactionManager) processSamCardGenerateKey(issuerKif, issuerKvc, newKif, newKvc byte) ([]byte, error) {
	if err := m.samMgr.PrepareGiveRandom(); err != nil {
		return nil, err
	}
	if err := m.samMgr.PrepareCardGenerateKey(issuerKif, issuerKvc, newKif, newKvc); err != nil {
		return nil, err
	}
	if err := m.samMgr.ProcessCommands(); err != nil {
		return nil, err
	}
	return m.samMgr.CipheredKey()
}
