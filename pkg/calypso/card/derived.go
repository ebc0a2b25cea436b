package card

import (
	"github.com/gregLibert/calypso-core/pkg/bits"
	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
)

// dfStatusInvalidatedBit is bit 1 (LSB, 1-indexed per pkg/bits) of the
// DF status byte returned in SELECT_FILE/GET_DATA's proprietary
// information (spec.md §3, §9 "DFStatus"): set once the application
// has been INVALIDATEd.
const dfStatusInvalidatedBit = 1

// IsDfInvalidated reports whether the currently selected DF has been
// invalidated, derived from the directory header's status byte.
func (c *CalypsoCard) IsDfInvalidated() bool {
	return bits.IsSet(c.DirectoryHeader.DFStatus, dfStatusInvalidatedBit)
}

// IsPinFeatureAvailable reports whether the card announced PIN support
// at selection time.
func (c *CalypsoCard) IsPinFeatureAvailable() bool { return c.Product.PINFeature }

// IsSvFeatureAvailable reports whether the card announced Stored Value
// support at selection time.
func (c *CalypsoCard) IsSvFeatureAvailable() bool { return c.Product.SVFeature }

// IsExtendedModeSupported reports whether the card's product type
// supports the rev3.2 extended APDU framing.
func (c *CalypsoCard) IsExtendedModeSupported() bool { return c.Product.ExtendedModeSupported }

// IsLegacy reports whether the card predates the rev3 ISO framing
// (spec.md §9 "Legacy CLA for SV").
func (c *CalypsoCard) IsLegacy() bool { return c.Product.Type != ProductRev3 }

// CardClass returns the class byte this card's non-SV commands are
// framed with (spec.md §9, mirrors command.claForProductType).
func (c *CalypsoCard) CardClass() apdu.Class {
	if c.Product.Type == ProductRev3 {
		return apdu.ClassISO
	}
	return apdu.ClassLegacy
}

// IsModificationsCounterInBytes reports whether the modifications
// buffer is accounted in bytes (rev3+) or in operation count (legacy).
func (c *CalypsoCard) IsModificationsCounterInBytes() bool {
	return c.Product.BufferScheme == BufferSchemeBytes
}

// ModificationsCounter returns the card's declared modifications
// buffer capacity, the counter's starting value for a freshly opened
// session.
func (c *CalypsoCard) ModificationsCounter() int {
	return c.Product.ModificationsBufferCap
}

// defaultPayloadCapacity is used when the card never announced one
// (e.g. an incomplete startup info reconstruction); it matches the
// smallest documented Calypso buffer capacity so splitting stays safe.
const defaultPayloadCapacity = 23

// PayloadCapacity returns the maximum APDU data-field size this card
// accepts, used to split multi-record/multi-byte operations across
// several APDUs (spec.md §9 supplement 5).
func (c *CalypsoCard) PayloadCapacity() int {
	if c.Product.PayloadCapacity > 0 {
		return c.Product.PayloadCapacity
	}
	if c.Product.ModificationsBufferCap > 0 {
		return c.Product.ModificationsBufferCap
	}
	return defaultPayloadCapacity
}

// GetSvKvc returns the KVC captured by the last SV_GET.
func (c *CalypsoCard) GetSvKvc() byte { return c.SV.KVC }

// GetSvGetHeader returns the 4-byte SV_GET request header (INS, P1,
// P2, Le) captured by the last SV_GET, fed to the SAM when preparing
// an SV_RELOAD/DEBIT/UNDEBIT's complementary data.
func (c *CalypsoCard) GetSvGetHeader() []byte { return c.SV.GetHeader }

// GetSvGetData returns the raw data field of the last SV_GET response.
func (c *CalypsoCard) GetSvGetData() []byte { return c.SV.LastGetResponse }

// GetSvBalance returns the balance captured by the last SV_GET.
func (c *CalypsoCard) GetSvBalance() int32 { return c.SV.Balance }

// ApplicationSubtypeStoredValue is the application subtype byte
// identifying an SV-structured application (CalypsoCardConstant
// STORED_VALUE_FILE_STRUCTURE_ID).
const ApplicationSubtypeStoredValue = 0x01

// IsStoredValueApplication reports whether the selected application's
// subtype marks it as an SV file structure.
func (c *CalypsoCard) IsStoredValueApplication() bool {
	return c.Product.ApplicationSubtype == ApplicationSubtypeStoredValue
}
