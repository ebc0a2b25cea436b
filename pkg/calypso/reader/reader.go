// Package reader defines the physical-transport interface the
// transaction core drives a card through. The core never talks to a
// PC/SC reader, USB dongle, or simulator directly — it only ever
// issues a CardRequest to a Transmitter and reads back a CardResponse.
package reader

import (
	"errors"
	"fmt"

	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
)

// ChannelControl tells the reader whether to keep the logical channel
// open after the batch completes or release it immediately. Calypso
// secure sessions span several batches, so the channel usually stays
// open until the session (or the whole use case) is done.
type ChannelControl int

const (
	KeepOpen ChannelControl = iota
	CloseAfter
)

// CardRequest is an ordered batch of APDU commands to transmit in a
// single exchange with the card. StopOnFirstUnsuccessful mirrors the
// card-plugin behavior of aborting the batch (and reporting a partial
// CardResponse) the moment a status word outside a command's success
// set is seen, rather than sending the remaining commands regardless.
type CardRequest struct {
	Commands                []*apdu.Command
	StopOnFirstUnsuccessful bool
}

// NewCardRequest builds a request over cmds with the given abort policy.
func NewCardRequest(stopOnFirstUnsuccessful bool, cmds ...*apdu.Command) *CardRequest {
	return &CardRequest{Commands: cmds, StopOnFirstUnsuccessful: stopOnFirstUnsuccessful}
}

// CardResponse carries one apdu.Response per apdu.Command that was
// actually transmitted. When a request was aborted early (stop-on-first
// and an unsuccessful status was hit) Responses is shorter than the
// originating CardRequest.Commands — the manager must align the two by
// position, never by assuming a 1:1 length match.
type CardResponse struct {
	Responses []*apdu.Response
}

// ErrReaderBroken signals a failure of the reader/transport itself
// (timeout, card removed, PC/SC error) as opposed to a card-level
// status-word rejection.
var ErrReaderBroken = errors.New("reader: broken transport")

// ErrCardBroken signals that the card stopped responding mid-batch
// (e.g. muted after a tear) rather than answering with a status word.
var ErrCardBroken = errors.New("reader: card broken")

// UnexpectedStatusError is returned by Transmit when
// CardRequest.StopOnFirstUnsuccessful aborted the batch early. The
// partial CardResponse collected up to (and including) the offending
// command is still returned alongside the error so the caller can
// inspect what happened before the abort.
type UnexpectedStatusError struct {
	CommandIndex int
	StatusWord   apdu.StatusWord
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("reader: unexpected status %s from command #%d", e.StatusWord, e.CommandIndex)
}

// Transmitter abstracts the physical card connection, generalized from
// single-APDU exchanges to the batched request/response shape the
// secure-session protocol needs: OPEN_SESSION, the commands queued
// inside the session, and CLOSE_SESSION routinely travel together in
// one transmission so their bytes can be fed to the SAM digest in the
// same order the card actually saw them.
type Transmitter interface {
	// Transmit sends cardRequest and returns the responses collected
	// so far. channelControl hints whether the physical channel should
	// be released once this exchange completes. A non-nil error is
	// either ErrReaderBroken, ErrCardBroken, or *UnexpectedStatusError
	// — the manager treats all three as "transaction audit data exists,
	// outcome is not further processable" and folds them into the
	// session-level error categories it raises to the host.
	Transmit(cardRequest *CardRequest, channelControl ChannelControl) (*CardResponse, error)
}
