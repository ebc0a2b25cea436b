// Package sam declares the Secure Access Module collaborator surface
// the transaction core consumes. The SAM itself — a tamper-resistant
// peer holding the Calypso keys — is out of scope: this package only
// names the operations CardTransactionManager calls out to during the
// secure-session protocol. A host application supplies a concrete
// implementation (typically backed by its own SAM reader session).
package sam

// WriteAccessLevel mirrors the session access level negotiated with
// OPEN_SESSION; the SAM needs it to pick the right session key family.
type WriteAccessLevel int

const (
	AccessLevelPersonalization WriteAccessLevel = iota
	AccessLevelLoad
	AccessLevelDebit
)

// SVOperation identifies which stored-value command a prepare call is
// being asked to produce complementary data for.
type SVOperation int

const (
	SVOperationReload SVOperation = iota
	SVOperationDebit
	SVOperationUndebit
)

// ControlSamTransactionManager is the stateful SAM collaborator the
// manager drives through a secure session: a rolling digest accumulates
// every in-session APDU exchange, and at close the SAM is asked for a
// terminal signature to embed in CLOSE_SESSION, then to verify the
// card's own signature back.
type ControlSamTransactionManager interface {
	// PrepareGetChallenge queues a SAM challenge computation; the
	// challenge bytes are only available after ProcessCommands.
	PrepareGetChallenge() error
	// GetChallenge returns the challenge computed by the most recent
	// PrepareGetChallenge + ProcessCommands round trip.
	GetChallenge() ([]byte, error)

	// InitializeSession seeds the digest with the OPEN_SESSION
	// response data and the session's effective KIF/KVC.
	// isSessionAborted covers the case where the queued opening
	// commands failed and the digest must be primed with knowledge of
	// the abort rather than a clean open.
	InitializeSession(openResponseData []byte, kif, kvc byte, isConfidential, isSessionAborted bool) error

	// UpdateSession feeds further request/response pairs into the
	// rolling digest. skipFirstN lets the caller re-submit a batch
	// that included the OPEN_SESSION exchange (already fed during
	// InitializeSession) without double-counting it.
	UpdateSession(requests, responses [][]byte, skipFirstN int) error

	// PrepareSessionClosing queues the terminal signature computation;
	// the signature is attached to the built CLOSE_SESSION command.
	PrepareSessionClosing() error
	// TerminalSignature returns the signature computed by the most
	// recent PrepareSessionClosing + ProcessCommands round trip.
	TerminalSignature() ([]byte, error)

	// PrepareDigestAuthenticate queues verification of the card's
	// closing signature (signature Lo from CLOSE_SESSION) against the
	// digest accumulated so far. The SV operation signature is checked
	// separately, through PrepareSvCheck.
	PrepareDigestAuthenticate(cardSignature []byte) error

	// PrepareGiveRandom queues a GIVE_RANDOM-equivalent SAM-side
	// operation used by some key-diversification flows.
	PrepareGiveRandom() error

	// PrepareCardCipherPin queues PIN-cipher computation for
	// VERIFY_PIN/CHANGE_PIN; newPin is nil for a ciphered VERIFY_PIN
	// presentation of curPin, non-nil when changing the PIN.
	PrepareCardCipherPin(curPin, newPin []byte) error
	// CipheredPin returns the bytes computed by the most recent
	// PrepareCardCipherPin + ProcessCommands round trip.
	CipheredPin() ([]byte, error)

	// PrepareCardGenerateKey queues CHANGE_KEY cryptogram computation.
	PrepareCardGenerateKey(issuerKif, issuerKvc, newKif, newKvc byte) error
	// CipheredKey returns the cryptogram from the most recent
	// PrepareCardGenerateKey + ProcessCommands round trip.
	CipheredKey() ([]byte, error)

	// PrepareSvPrepareLoad / PrepareSvPrepareDebitOrUndebit queue
	// computation of an SV command's complementary data (SAM id,
	// challenge, transaction number, signature-hi) from the SV_GET
	// response data (svGetHeader/svGetData as returned by the card).
	PrepareSvPrepareLoad(svGetHeader, svGetData []byte) error
	PrepareSvPrepareDebitOrUndebit(op SVOperation, svGetHeader, svGetData []byte) error
	// SvComplementaryData returns the bytes computed by the most
	// recent PrepareSv* + ProcessCommands round trip, ready to pass to
	// command.SVModify.Finalize.
	SvComplementaryData() ([]byte, error)

	// PrepareSvCheck queues verification of the postponed SV operation
	// signature returned by the card after session close.
	PrepareSvCheck(svOperationData []byte) error

	// ComputeKif/ComputeKvc resolve the effective session key
	// identifiers from the card's OPEN_SESSION KIF/KVC and the
	// configured access level; a card KIF of 0xFF means "use the
	// security-setting default for this level".
	ComputeKif(level WriteAccessLevel, cardKif byte, kvc byte) (byte, error)
	ComputeKvc(level WriteAccessLevel, cardKvc byte) (byte, error)
	// IsSessionKeyAuthorized reports whether the security settings
	// allow opening a session with the given KIF/KVC pair.
	IsSessionKeyAuthorized(kif, kvc byte) bool

	// ProcessCommands flushes every queued Prepare* call to the SAM in
	// one batch and makes their results available via the matching
	// getter. It is the only call on this interface that blocks on the
	// SAM transport.
	ProcessCommands() error
}
