package main

import (
	"fmt"
	"log"

	"github.com/ebfe/scard"

	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/reader"
)

// scardTransmitter adapts a *scard.Card, which only knows how to send
// one raw APDU at a time, to reader.Transmitter, which runs a whole
// CardRequest batch and folds the answers into a CardResponse. It also
// supplies the 61xx/6Cxx auto-retry PC/SC readers expect the caller to
// handle, the way the teacher's iso7816.Client does for a single APDU.
type scardTransmitter struct {
	ctx  *scard.Context
	card *scard.Card
}

// listReaderNames reports the PC/SC reader names visible on this
// machine, without connecting to any of them.
func listReaderNames() ([]string, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("establishing PC/SC context: %w", err)
	}
	defer ctx.Release()
	return ctx.ListReaders()
}

func connectReader(index int) (*scardTransmitter, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("establishing PC/SC context: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("listing readers: %w", err)
	}
	if len(readers) == 0 {
		ctx.Release()
		return nil, fmt.Errorf("no smart card reader found")
	}
	if index < 0 {
		if len(readers) > 1 {
			ctx.Release()
			return nil, fmt.Errorf("multiple readers found, pick one with --reader: %v", readers)
		}
		index = 0
	}
	if index >= len(readers) {
		ctx.Release()
		return nil, fmt.Errorf("reader index %d out of range (%d readers)", index, len(readers))
	}

	// Force T=0 or T=1 to avoid "Parameter Incorrect" errors on some
	// readers that reject a bare ProtocolAny.
	c, err := ctx.Connect(readers[index], scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("connecting to %s: %w", readers[index], err)
	}
	return &scardTransmitter{ctx: ctx, card: c}, nil
}

func (t *scardTransmitter) close(cc reader.ChannelControl) {
	disposition := scard.LeaveCard
	if cc == reader.CloseAfter {
		disposition = scard.ResetCard
	}
	if err := t.card.Disconnect(disposition); err != nil {
		log.Printf("warning: disconnecting from card: %v", err)
	}
	if err := t.ctx.Release(); err != nil {
		log.Printf("warning: releasing PC/SC context: %v", err)
	}
}

func (t *scardTransmitter) status() (*scard.CardStatus, error) {
	return t.card.Status()
}

// Transmit implements reader.Transmitter by sending each command in
// cardRequest in turn, honoring StopOnFirstUnsuccessful the same way
// the card-plugin layer the core was grounded on does.
func (t *scardTransmitter) Transmit(cardRequest *reader.CardRequest, cc reader.ChannelControl) (*reader.CardResponse, error) {
	out := &reader.CardResponse{}
	for i, cmd := range cardRequest.Commands {
		resp, err := t.transmitOne(cmd)
		if err != nil {
			return out, fmt.Errorf("%w: %v", reader.ErrReaderBroken, err)
		}
		out.Responses = append(out.Responses, resp)

		if cardRequest.StopOnFirstUnsuccessful && !resp.IsSuccessFor(cmd) {
			return out, &reader.UnexpectedStatusError{CommandIndex: i, StatusWord: resp.StatusWord()}
		}
	}
	return out, nil
}

// transmitOne sends a single command and resolves the 61xx ("response
// available") and 6Cxx ("wrong Le") transport conventions the teacher's
// iso7816.Client handles for single APDUs.
func (t *scardTransmitter) transmitOne(cmd *apdu.Command) (*apdu.Response, error) {
	raw, err := cmd.Bytes()
	if err != nil {
		return nil, err
	}

	rawResp, err := t.card.Transmit(raw)
	if err != nil {
		return nil, err
	}

	resp, err := apdu.ParseResponse(rawResp)
	if err != nil {
		return nil, err
	}

	sw := resp.StatusWord()
	switch sw.SW1() {
	case 0x61:
		getResponse := apdu.NewCommand(cmd.Class, 0xC0, 0x00, 0x00, nil, int(sw.SW2()))
		return t.transmitOne(getResponse)
	case 0x6C:
		retry := *cmd
		retry.Le = int(sw.SW2())
		return t.transmitOne(&retry)
	}
	return resp, nil
}
