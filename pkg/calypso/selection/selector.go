// Package selection builds the application-selection step and the
// selection-time command batch, then turns the card's answers into the
// initial CalypsoCard image the transaction manager will operate on
// (spec.md ##6 "Selection interface").
package selection

import (
	"fmt"
	"regexp"
)

// FileOccurrence mirrors the ISO 7816-4 SELECT P2 occurrence bits, used
// when more than one application on the card matches the AID filter.
type FileOccurrence int

const (
	OccurrenceFirst FileOccurrence = iota
	OccurrenceLast
	OccurrenceNext
	OccurrencePrevious
)

// FileControlInformation selects what the low-level SELECT exchange
// asks the card to return.
type FileControlInformation int

const (
	ReturnFCI FileControlInformation = iota
	ReturnNoResponse
)

// invalidatedStatusWord is the status word a card answers with when it
// has been invalidated but is otherwise selectable (original_source
// CalypsoCardSelectionAdapter::SW_CARD_INVALIDATED).
const invalidatedStatusWord = 0x6283

const (
	aidMinLength = 5
	aidMaxLength = 16
)

// Selector is a pure filter descriptor: it is not transmitted by this
// package, it is handed to the reader layer so it can pick which
// candidate card to select and with which low-level SELECT parameters,
// mirroring the original's separation between CardSelector (reader
// concern) and the commands this package queues for afterward.
type Selector struct {
	CardProtocol       string
	PowerOnDataPattern *regexp.Regexp
	AID                []byte
	Occurrence         FileOccurrence
	FCIControl         FileControlInformation
	ExtraSuccessSW     []uint16
	AcceptInvalidated  bool
}

// NewSelector returns an unfiltered selector (matches any card,
// requests FCI, occurrence FIRST).
func NewSelector() *Selector {
	return &Selector{Occurrence: OccurrenceFirst, FCIControl: ReturnFCI}
}

// FilterByCardProtocol restricts matching to cards seen over protocol.
func (s *Selector) FilterByCardProtocol(protocol string) *Selector {
	s.CardProtocol = protocol
	return s
}

// FilterByPowerOnData restricts matching to cards whose power-on data
// (formatted as uppercase hex) matches the given regular expression.
func (s *Selector) FilterByPowerOnData(pattern string) (*Selector, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("selection: invalid power-on data pattern %q: %w", pattern, err)
	}
	s.PowerOnDataPattern = re
	return s, nil
}

// FilterByDFName restricts matching to cards whose application AID
// equals aid (5 to 16 bytes, per ISO 7816-4).
func (s *Selector) FilterByDFName(aid []byte) (*Selector, error) {
	if len(aid) < aidMinLength || len(aid) > aidMaxLength {
		return nil, fmt.Errorf("selection: aid length %d out of range [%d,%d]", len(aid), aidMinLength, aidMaxLength)
	}
	s.AID = append([]byte(nil), aid...)
	return s, nil
}

// SetFileOccurrence overrides the default FIRST occurrence.
func (s *Selector) SetFileOccurrence(o FileOccurrence) *Selector {
	s.Occurrence = o
	return s
}

// SetFileControlInformation overrides the default FCI response request.
func (s *Selector) SetFileControlInformation(c FileControlInformation) *Selector {
	s.FCIControl = c
	return s
}

// AddSuccessfulStatusWord registers an additional status word (beyond
// 0x9000) that the low-level selection should treat as successful.
func (s *Selector) AddSuccessfulStatusWord(sw uint16) *Selector {
	s.ExtraSuccessSW = append(s.ExtraSuccessSW, sw)
	return s
}

// AcceptInvalidatedCard allows selection of a card whose application
// has been invalidated, which otherwise answers SELECT with 0x6283.
func (s *Selector) AcceptInvalidatedCard() *Selector {
	s.AcceptInvalidated = true
	return s.AddSuccessfulStatusWord(invalidatedStatusWord)
}

// MatchesPowerOnData reports whether powerOnData (raw ATR/historical
// bytes) satisfies the configured regex filter. A selector without a
// pattern matches everything.
func (s *Selector) MatchesPowerOnData(powerOnData []byte) bool {
	if s.PowerOnDataPattern == nil {
		return true
	}
	return s.PowerOnDataPattern.MatchString(fmt.Sprintf("%X", powerOnData))
}
