package command

import (
	"fmt"

	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/calypsoerr"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
	"github.com/gregLibert/calypso-core/pkg/tlv"
)

// SelectControl is the navigation-control alternative to selecting by
// LID (spec.md ##9 supplement, original_source SelectFileControl enum).
type SelectControl int

const (
	SelectFirstEF SelectControl = iota
	SelectNextEF
	SelectCurrentDF
)

// Proprietary-information byte offsets (TAG 0x85), 23 bytes total.
// Mirrors original_source/CalypsoCardConstant.{h,cpp}.
const (
	selSFIOffset     = 0
	selTypeOffset    = 1
	selEFTypeOffset  = 2
	selRecSizeOffset = 3
	selNumRecOffset  = 4
	selACOffset      = 5
	selACLength      = 4
	selNKeyOffset    = 9
	selNKeyLength    = 4
	selDFStatusOffset = 13
	selKVCsOffset    = 14
	selKIFsOffset    = 17
	selLIDOffset     = 21
	// selLIDOffsetRev2 is not defined by the original constant table
	// (referenced by CmdCardSelectFile.cpp but never given a value in
	// the retrieved sources); see DESIGN.md Open Question decisions.
	selLIDOffsetRev2 = 19
)

const (
	fileTypeMF = 1
	fileTypeDF = 2
	fileTypeEF = 4

	efTypeBinary            = 1
	efTypeLinear            = 2
	efTypeCyclic            = 4
	efTypeSimulatedCounters = 8
	efTypeCounters          = 9
)

var selectFileStatusTable = func() apdu.StatusTable {
	t := apdu.BaseStatusTable()
	t[0x6700] = apdu.StatusProperty{Message: "Lc value not supported", Success: false, Kind: apdu.KindIllegalParameter}
	t[0x6A86] = apdu.StatusProperty{Message: "Incorrect P1 or P2", Success: false, Kind: apdu.KindIllegalParameter}
	return t
}()

// SelectFile builds SELECT_FILE (INS 0xA4), either by LID or by
// SelectControl navigation, and decodes the proprietary-information
// block (tag 0x85) into the card's directory header or file header
// (spec.md ##4.C).
type SelectFile struct {
	req         *apdu.Command
	productType card.ProductType
}

type proprietaryTag struct {
	Info []byte `tlv:"85"`
}

// NewSelectFileByLID builds a select-by-LID request.
func NewSelectFileByLID(cla apdu.Class, legacy bool, pt card.ProductType, lid uint16) *SelectFile {
	var p1 byte
	switch {
	case legacy && pt == card.ProductRev2:
		p1 = 0x02
	case legacy:
		p1 = 0x08
	default:
		p1 = 0x09
	}
	data := []byte{byte(lid >> 8), byte(lid)}
	return &SelectFile{req: apdu.NewCommand(cla, 0xA4, p1, 0x00, data, 0), productType: pt}
}

// NewSelectFileByControl builds a select-by-navigation-control request.
func NewSelectFileByControl(cla apdu.Class, pt card.ProductType, ctrl SelectControl) *SelectFile {
	var p1, p2 byte
	switch ctrl {
	case SelectFirstEF:
		p1, p2 = 0x02, 0x00
	case SelectNextEF:
		p1, p2 = 0x02, 0x02
	case SelectCurrentDF:
		p1, p2 = 0x09, 0x00
	}
	return &SelectFile{req: apdu.NewCommand(cla, 0xA4, p1, p2, []byte{0x00, 0x00}, 0), productType: pt}
}

func (c *SelectFile) Name() string           { return "SELECT_FILE" }
func (c *SelectFile) Request() *apdu.Command { return c.req }
func (c *SelectFile) UsesSessionBuffer() bool { return false }

func (c *SelectFile) ParseResponse(resp *apdu.Response, img *card.CalypsoCard) error {
	if err := checkStatus(c.Name(), selectFileStatusTable, resp, -1); err != nil {
		return err
	}
	return parseProprietaryInformation(c.Name(), resp.DataOut(), c.productType, img)
}

// parseProprietaryInformation decodes the tag-0x85 proprietary block
// shared by SELECT_FILE and GET_DATA(FCP) responses into a directory
// header or file header on img (original_source
// CmdCardSelectFile::parseProprietaryInformation).
func parseProprietaryInformation(name string, dataOut []byte, pt card.ProductType, img *card.CalypsoCard) error {
	var tag proprietaryTag
	if err := tlv.Unmarshal(dataOut, &tag); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	info := tag.Info
	if len(info) != 23 {
		return &calypsoerr.IllegalArgumentError{Command: name, Reason: "proprietary information must be 23 bytes"}
	}

	sfi := info[selSFIOffset]
	fileType := info[selTypeOffset]

	switch fileType {
	case fileTypeMF, fileTypeDF:
		img.SetDirectoryHeader(directoryHeaderFromInfo(info, pt))
	case fileTypeEF:
		img.SetFileHeader(sfi, fileHeaderFromInfo(info, pt))
	default:
		return &calypsoerr.IllegalArgumentError{Command: name, Reason: fmt.Sprintf("unknown file type %02X", fileType)}
	}
	return nil
}

func directoryHeaderFromInfo(info []byte, pt card.ProductType) card.DirectoryHeader {
	lidOffset := selLIDOffset
	if pt == card.ProductRev2 {
		lidOffset = selLIDOffsetRev2
	}
	var h card.DirectoryHeader
	copy(h.AccessConditions[:], info[selACOffset:selACOffset+selACLength])
	copy(h.KeyIndexes[:], info[selNKeyOffset:selNKeyOffset+selNKeyLength])
	h.DFStatus = info[selDFStatusOffset]
	h.KVC[card.AccessLevelPerso] = info[selKVCsOffset]
	h.KVC[card.AccessLevelLoad] = info[selKVCsOffset+1]
	h.KVC[card.AccessLevelDebit] = info[selKVCsOffset+2]
	h.KIF[card.AccessLevelPerso] = info[selKIFsOffset]
	h.KIF[card.AccessLevelLoad] = info[selKIFsOffset+1]
	h.KIF[card.AccessLevelDebit] = info[selKIFsOffset+2]
	h.LID = uint16(info[lidOffset])<<8 | uint16(info[lidOffset+1])
	return h
}

func fileHeaderFromInfo(info []byte, pt card.ProductType) card.FileHeader {
	efType := efTypeFromCardValue(info[selEFTypeOffset])

	var recordSize, recordsNumber int
	if efType == card.EFTypeBinary {
		recordSize = int(info[selRecSizeOffset])<<8 | int(info[selNumRecOffset])
		recordsNumber = 1
	} else {
		recordSize = int(info[selRecSizeOffset])
		recordsNumber = int(info[selNumRecOffset])
	}

	lidOffset := selLIDOffset
	if pt == card.ProductRev2 {
		lidOffset = selLIDOffsetRev2
	}

	var h card.FileHeader
	h.Type = efType
	h.RecordSize = recordSize
	h.RecordsNumber = recordsNumber
	copy(h.AccessConditions[:], info[selACOffset:selACOffset+selACLength])
	copy(h.KeyIndexes[:], info[selNKeyOffset:selNKeyOffset+selNKeyLength])
	h.DFStatus = info[selDFStatusOffset]
	h.LID = uint16(info[lidOffset])<<8 | uint16(info[lidOffset+1])
	if efType == card.EFTypeSimulatedCounters {
		h.SharedReference = uint16(info[selDataRefOffset()])<<8 | uint16(info[selDataRefOffset()+1])
	}
	return h
}

func selDataRefOffset() int { return selKVCsOffset } // SEL_DATA_REF_OFFSET aliases SEL_KVCS_OFFSET (both 14)

func efTypeFromCardValue(v byte) card.EFType {
	switch v {
	case efTypeBinary:
		return card.EFTypeBinary
	case efTypeLinear:
		return card.EFTypeLinear
	case efTypeCyclic:
		return card.EFTypeCyclic
	case efTypeCounters:
		return card.EFTypeCounters
	case efTypeSimulatedCounters:
		return card.EFTypeSimulatedCounters
	default:
		return card.EFTypeUnknown
	}
}
