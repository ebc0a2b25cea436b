package command

import (
	"fmt"

	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/calypsoerr"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
)

// GetDataTag selects which object GET_DATA (INS 0xCA) retrieves.
// Each tag carries a distinct P1/P2 and response shape (spec.md ##9
// supplement).
type GetDataTag int

const (
	GetDataFCI GetDataTag = iota
	GetDataFCP
	GetDataEFList
	GetDataTraceabilityInformation
)

const (
	efListDescriptorsOffset  = 2
	efListDescriptorTagLen   = 8
	efListDescriptorDataOff  = 2
	efListDescriptorSfiOff   = 2
	efListDescriptorDataLen  = 6
)

var getDataStatusTable = func() apdu.StatusTable {
	t := apdu.BaseStatusTable()
	t[0x6A88] = apdu.StatusProperty{Message: "Data object not found", Success: false, Kind: apdu.KindDataAccess}
	t[0x6B00] = apdu.StatusProperty{Message: "P1 or P2 value not supported", Success: false, Kind: apdu.KindDataAccess}
	return t
}()

// GetData builds GET_DATA for one of the supported tags and applies
// the card's side effects for it.
type GetData struct {
	req         *apdu.Command
	tag         GetDataTag
	productType card.ProductType
}

// NewGetData builds the request for tag.
func NewGetData(cla apdu.Class, pt card.ProductType, tag GetDataTag) *GetData {
	var p1, p2 byte
	switch tag {
	case GetDataFCI:
		p1, p2 = 0x00, 0x6F
	case GetDataFCP:
		p1, p2 = 0x00, 0x62
	case GetDataEFList:
		p1, p2 = 0x00, 0xC0
	case GetDataTraceabilityInformation:
		p1, p2 = 0x01, 0x85
	}
	return &GetData{req: apdu.NewCommand(cla, 0xCA, p1, p2, nil, 0), tag: tag, productType: pt}
}

func (c *GetData) Name() string {
	switch c.tag {
	case GetDataFCI:
		return "GET_DATA_FCI"
	case GetDataFCP:
		return "GET_DATA_FCP"
	case GetDataEFList:
		return "GET_DATA_EF_LIST"
	default:
		return "GET_DATA_TRACEABILITY_INFORMATION"
	}
}

func (c *GetData) Request() *apdu.Command  { return c.req }
func (c *GetData) UsesSessionBuffer() bool { return false }

func (c *GetData) ParseResponse(resp *apdu.Response, img *card.CalypsoCard) error {
	if err := checkStatus(c.Name(), getDataStatusTable, resp, -1); err != nil {
		return err
	}
	d := resp.DataOut()
	switch c.tag {
	case GetDataFCI:
		img.Identity.SelectionResponse = d
		return nil
	case GetDataFCP:
		return parseProprietaryInformation(c.Name(), d, c.productType, img)
	case GetDataEFList:
		return parseEfList(c.Name(), d, img)
	case GetDataTraceabilityInformation:
		img.Security.TraceabilityInfo = d
		return nil
	}
	return nil
}

// parseEfList decodes the EF_LIST response: a 2-byte header followed
// by one 8-byte descriptor per EF (2-byte tag, 6-byte data), as
// defined by original_source/CmdCardGetDataEfList.cpp.
func parseEfList(name string, d []byte, img *card.CalypsoCard) error {
	if len(d) < 2 {
		return &calypsoerr.IllegalArgumentError{Command: name, Reason: "EF_LIST response too short"}
	}
	nbFiles := int(d[1]) / efListDescriptorTagLen
	for i := 0; i < nbFiles; i++ {
		base := efListDescriptorsOffset + i*efListDescriptorTagLen + efListDescriptorDataOff
		if base+efListDescriptorDataLen > len(d) {
			return &calypsoerr.IllegalArgumentError{Command: name, Reason: fmt.Sprintf("EF_LIST truncated at descriptor %d", i)}
		}
		desc := d[base : base+efListDescriptorDataLen]
		sfi := desc[efListDescriptorSfiOff]
		efType := efTypeFromCardValue(desc[3])
		h := card.FileHeader{
			LID:           uint16(desc[0])<<8 | uint16(desc[1]),
			Type:          efType,
			RecordSize:    int(desc[4]),
			RecordsNumber: int(desc[5]),
		}
		img.SetFileHeader(sfi, h)
	}
	return nil
}
