package command

import (
	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

var invalidateRehabilitateStatusTable = func() apdu.StatusTable {
	t := apdu.BaseStatusTable()
	t[0x6700] = apdu.StatusProperty{Message: "Lc value not supported", Success: false, Kind: apdu.KindDataAccess}
	t[0x6982] = apdu.StatusProperty{Message: "Security conditions not fulfilled", Success: false, Kind: apdu.KindSecurityContext}
	t[0x6985] = apdu.StatusProperty{Message: "DF context is invalid", Success: false, Kind: apdu.KindAccessForbidden}
	return t
}()

// Invalidate builds INVALIDATE (INS 0x04): marks the current DF
// invalid, forbidding further secure sessions against it until a
// matching Rehabilitate (spec.md ##4.C).
type Invalidate struct {
	req *apdu.Command
}

func NewInvalidate(cla apdu.Class) *Invalidate {
	return &Invalidate{req: apdu.NewCommand(cla, 0x04, 0x00, 0x00, nil, 0)}
}

func (c *Invalidate) Name() string           { return "INVALIDATE" }
func (c *Invalidate) Request() *apdu.Command { return c.req }
func (c *Invalidate) UsesSessionBuffer() bool { return true }

func (c *Invalidate) ParseResponse(resp *apdu.Response, img *card.CalypsoCard) error {
	return checkStatus(c.Name(), invalidateRehabilitateStatusTable, resp, 0)
}

// Rehabilitate builds REHABILITATE (INS 0x44): clears a prior
// Invalidate, restoring normal secure-session access to the current DF.
// Despite the INS's card-constant name, no "Invalidate" label is used
// for this type; it does the opposite.
type Rehabilitate struct {
	req *apdu.Command
}

func NewRehabilitate(cla apdu.Class) *Rehabilitate {
	return &Rehabilitate{req: apdu.NewCommand(cla, 0x44, 0x00, 0x00, nil, 0)}
}

func (c *Rehabilitate) Name() string           { return "REHABILITATE" }
func (c *Rehabilitate) Request() *apdu.Command { return c.req }
func (c *Rehabilitate) UsesSessionBuffer() bool { return true }

func (c *Rehabilitate) ParseResponse(resp *apdu.Response, img *card.CalypsoCard) error {
	return checkStatus(c.Name(), invalidateRehabilitateStatusTable, resp, 0)
}
