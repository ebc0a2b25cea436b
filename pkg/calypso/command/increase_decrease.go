package command

import (
	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

var increaseDecreaseStatusTable = func() apdu.StatusTable {
	t := apdu.BaseStatusTable()
	t[0x6200] = apdu.StatusProperty{Message: "Successful execution, response data postponed", Success: true, Kind: apdu.KindSuccess}
	t[0x6A80] = apdu.StatusProperty{Message: "Incorrect command data (outside counter bounds)", Success: false, Kind: apdu.KindDataOutOfBounds}
	t[0x6B00] = apdu.StatusProperty{Message: "P1 or P2 incorrect", Success: false, Kind: apdu.KindIllegalParameter}
	return t
}()

// IncreaseDecrease builds INCREASE (0x32) or DECREASE (0x30). The card
// either returns the new counter value directly, or (when the card
// postpones counter updates) status 0x6200 in which case the caller's
// precomputed anticipated value (ComputedValue) is applied instead
// (spec.md ##4.C, original_source/CmdCardIncreaseOrDecrease.cpp).
type IncreaseDecrease struct {
	req            *apdu.Command
	decrease       bool
	sfi            byte
	counterNumber  byte
	incDecValue    int
	postponed      bool

	// ComputedValue is the anticipated new counter value the
	// transaction manager must set before transmitting when the card
	// is known to postpone counter updates inside a session.
	ComputedValue [3]byte
}

// NewIncreaseDecrease builds the request. postponed selects the
// case-3 (postponed, 0x6200 accepted) vs case-4 (plain) encoding.
func NewIncreaseDecrease(cla apdu.Class, decrease bool, sfi, counterNumber byte, incDecValue int, postponed bool) *IncreaseDecrease {
	ins := byte(0x32)
	if decrease {
		ins = 0x30
	}
	v := incDecValue
	valueBuf := []byte{byte(v >> 16), byte(v >> 8), byte(v)}
	p2 := sfi * 8

	c := &IncreaseDecrease{decrease: decrease, sfi: sfi, counterNumber: counterNumber, incDecValue: incDecValue, postponed: postponed}
	if !postponed {
		c.req = apdu.NewCommand(cla, ins, counterNumber, p2, valueBuf, apdu.MaxShortLe)
	} else {
		c.req = apdu.NewCommand(cla, ins, counterNumber, p2, valueBuf, 0).WithExtraSuccess(0x6200)
	}
	return c
}

func (c *IncreaseDecrease) Name() string {
	if c.decrease {
		return "DECREASE"
	}
	return "INCREASE"
}
func (c *IncreaseDecrease) Request() *apdu.Command  { return c.req }
func (c *IncreaseDecrease) UsesSessionBuffer() bool { return true }

// SFI, CounterNumber, IncDecValue and IsDecrease expose the fields an
// anticipated-response builder needs without reaching into the card
// image itself.
func (c *IncreaseDecrease) SFI() byte           { return c.sfi }
func (c *IncreaseDecrease) CounterNumber() int  { return int(c.counterNumber) }
func (c *IncreaseDecrease) IncDecValue() int    { return c.incDecValue }
func (c *IncreaseDecrease) IsDecrease() bool    { return c.decrease }

func (c *IncreaseDecrease) ParseResponse(resp *apdu.Response, img *card.CalypsoCard) error {
	expected := 3
	if c.postponed {
		expected = -1 // postponed success carries no data, checked below
	}
	if err := checkStatus(c.Name(), increaseDecreaseStatusTable, resp, expected); err != nil {
		return err
	}

	if resp.StatusWord() == 0x6200 {
		img.SetCounter(c.sfi, int(c.counterNumber), c.ComputedValue)
		return nil
	}

	var v [3]byte
	copy(v[:], resp.DataOut())
	img.SetCounter(c.sfi, int(c.counterNumber), v)
	return nil
}
