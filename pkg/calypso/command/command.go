// Package command implements one Go type per Calypso INS (spec.md
// ##4.C): each exposes a constructor that validates inputs and builds
// the request, a ParseResponse step that checks the status word then
// applies side-effects onto the card image, and a session-buffer
// classification flag. This is the "tagged command enum" pattern
// called out in spec.md ##9 Design Notes, expressed as one concrete
// struct per command instead of a variant type.
package command

import (
	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/calypsoerr"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

// Command is the common surface every command object in this package
// implements; the transaction manager drives commands only through
// this interface.
type Command interface {
	// Name identifies the command for error messages and tracing.
	Name() string
	// Request returns the built APDU request.
	Request() *apdu.Command
	// ParseResponse validates the status word against the command's
	// table then, on success, mutates img.
	ParseResponse(resp *apdu.Response, img *card.CalypsoCard) error
	// UsesSessionBuffer reports whether this command consumes
	// modifications-buffer budget when issued inside a session.
	UsesSessionBuffer() bool
}

// checkStatus resolves sw against table and returns a *calypsoerr.CommandError
// if it is not a success. expectedLen < 0 disables the length check
// (spec.md ##3 "Lr=-1 disables the check").
func checkStatus(name string, table apdu.StatusTable, resp *apdu.Response, expectedLen int) error {
	sw := resp.StatusWord()
	prop := table.Lookup(sw)
	if !prop.Success {
		return calypsoerr.NewCommandError(name, sw, prop)
	}
	if expectedLen >= 0 && len(resp.DataOut()) != expectedLen {
		return &calypsoerr.UnexpectedResponseLengthError{
			Command: name, Expected: expectedLen, Actual: len(resp.DataOut()),
		}
	}
	return nil
}

// claForProductType returns the class byte OPEN_SESSION and other
// legacy-era commands use for a given product type (spec.md ##9
// "Legacy CLA for SV").
func claForProductType(pt card.ProductType) apdu.Class {
	if pt == card.ProductRev3 {
		return apdu.ClassISO
	}
	return apdu.ClassLegacy
}
