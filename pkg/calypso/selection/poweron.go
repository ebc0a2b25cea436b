package selection

import (
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
	"github.com/gregLibert/calypso-core/pkg/tlv"
)

// Calypso "startup information" is 7 bytes, present either as the tail
// of the ATR historical bytes (contact cards) or nested inside the FCI
// proprietary template (contactless/ISO selection). Byte offsets below
// follow the layout documented across Calypso card products; the exact
// originating adapter (CalypsoCardAdapter::initializeWithPowerOnData /
// initializeWithFci) was not present in the retrieved sources, only its
// header, so this is a best-effort reconstruction — see DESIGN.md.
const (
	startupInfoLength            = 7
	startupInfoBufferSizeOffset  = 0
	startupInfoApplicationOffset = 2
	startupInfoSubtypeOffset     = 3
)

type fciTag struct {
	DFName      []byte `tlv:"84"`
	Proprietary []byte `tlv:"A5"`
}

type fciProprietaryTag struct {
	Issuer []byte `tlv:"BF0C"`
}

type fciIssuerTag struct {
	StartupInfo []byte `tlv:"C7"`
}

// bufferCapacityTable maps the startup info's buffer-size-indicator
// byte to the card's modifications-buffer capacity in bytes, for the
// handful of indicator values publicly documented for Calypso Basic /
// Prime products. An indicator outside this table falls back to 0,
// which the transaction manager treats as "unknown, assume worst case".
var bufferCapacityTable = map[byte]int{
	0x00: 0,
	0x01: 23,
	0x02: 35,
	0x03: 44,
	0x04: 53,
	0x05: 62,
	0x06: 80,
	0x07: 113,
	0x08: 124,
	0x09: 183,
	0x0A: 274,
	0x0B: 397,
	0x0C: 512,
}

// initializeFromPowerOnData seeds the card image from the raw
// answer-to-reset bytes, ahead of any FCI data.
func initializeFromPowerOnData(img *card.CalypsoCard, powerOnData []byte) {
	img.Identity.PowerOnData = append([]byte(nil), powerOnData...)
	if len(powerOnData) < startupInfoLength {
		return
	}
	applyStartupInfo(img, powerOnData[len(powerOnData)-startupInfoLength:])
}

// initializeFromFCI seeds (or refines) the card image from the
// application-selection FCI, which on ISO/contactless cards carries
// the startup info where the ATR did not.
func initializeFromFCI(img *card.CalypsoCard, selectApplicationResponse []byte) error {
	img.Identity.SelectionResponse = append([]byte(nil), selectApplicationResponse...)

	var fci fciTag
	if err := tlv.Unmarshal(selectApplicationResponse, &fci); err != nil {
		return nil //nolint:nilerr // a non-Calypso-shaped FCI is not fatal: fall back to power-on data
	}
	if len(fci.DFName) > 0 {
		img.Identity.DFName = fci.DFName
	}
	if len(fci.Proprietary) == 0 {
		return nil
	}

	var prop fciProprietaryTag
	if err := tlv.Unmarshal(fci.Proprietary, &prop); err != nil || len(prop.Issuer) == 0 {
		return nil
	}

	var issuer fciIssuerTag
	if err := tlv.Unmarshal(prop.Issuer, &issuer); err != nil || len(issuer.StartupInfo) != startupInfoLength {
		return nil
	}
	applyStartupInfo(img, issuer.StartupInfo)
	return nil
}

func applyStartupInfo(img *card.CalypsoCard, info []byte) {
	img.Product.StartupInfoRaw = append([]byte(nil), info...)
	img.Product.Type = computeProductType(info[startupInfoApplicationOffset])
	img.Product.ApplicationSubtype = info[startupInfoSubtypeOffset]
	img.Product.ModificationsBufferCap = bufferCapacityTable[info[startupInfoBufferSizeOffset]]

	switch img.Product.Type {
	case card.ProductRev3:
		img.Product.BufferScheme = card.BufferSchemeBytes
		img.Product.ExtendedModeSupported = true
		img.Product.SVFeature = true
		img.Product.PINFeature = true
	default:
		img.Product.BufferScheme = card.BufferSchemeOperations
	}
}

// computeProductType classifies the card generation from the startup
// info's application-type byte. The three bands below follow the
// generations Calypso products were issued in (rev1 "classic" legacy,
// rev2.4 legacy extended, rev3 ISO-class); see the file comment on the
// exact grounding caveat.
func computeProductType(applicationType byte) card.ProductType {
	switch {
	case applicationType < 0x20:
		return card.ProductRev1
	case applicationType < 0x40:
		return card.ProductRev2
	default:
		return card.ProductRev3
	}
}
