package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gregLibert/calypso-core/pkg/calypso/apdu"
	"github.com/gregLibert/calypso-core/pkg/calypso/card"
	"github.com/gregLibert/calypso-core/pkg/calypso/reader"
	"github.com/gregLibert/calypso-core/pkg/calypso/selection"
)

var (
	listReaders bool
	selectAID   string
)

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Select the Calypso application and print the card's startup info",
	RunE:  runSelect,
}

func init() {
	selectCmd.Flags().BoolVarP(&listReaders, "list", "l", false, "list available readers and exit")
	selectCmd.Flags().StringVar(&selectAID, "aid", "315449432E494341", "application AID to select (hex)")
	rootCmd.AddCommand(selectCmd)
}

func runSelect(cmd *cobra.Command, args []string) error {
	if listReaders {
		return doListReaders()
	}

	aid, err := hex.DecodeString(selectAID)
	if err != nil {
		return fmt.Errorf("invalid --aid: %w", err)
	}

	tx, err := connectReader(readerIndex)
	if err != nil {
		return err
	}
	defer tx.close(reader.KeepOpen)

	img, _, err := selectApplication(tx, aid)
	if err != nil {
		return err
	}
	describeCard(img)
	return nil
}

func doListReaders() error {
	readers, err := listReaderNames()
	if err != nil {
		return err
	}
	if len(readers) == 0 {
		fmt.Println("no smart card readers found")
		return nil
	}
	for i, name := range readers {
		fmt.Printf("[%d] %s\n", i, name)
	}
	return nil
}

// selectApplication runs the low-level ISO 7816-4 SELECT by AID (the
// reader-layer's job, never the selection package's, since the
// selection package only queues what follows it) and then hands the
// result to a selection.Selection for image construction.
func selectApplication(tx *scardTransmitter, aid []byte) (*card.CalypsoCard, *selection.Selection, error) {
	selector, err := selection.NewSelector().FilterByDFName(aid)
	if err != nil {
		return nil, nil, err
	}

	selectAPDU := apdu.NewCommand(apdu.ClassISO, 0xA4, 0x04, selectP2(selector), aid, apdu.MaxShortLe)
	resp, err := tx.Transmit(reader.NewCardRequest(false, selectAPDU), reader.KeepOpen)
	if err != nil {
		return nil, nil, fmt.Errorf("SELECT by AID: %w", err)
	}
	if len(resp.Responses) == 0 {
		return nil, nil, fmt.Errorf("SELECT by AID: no response")
	}
	selectResp := resp.Responses[0]
	if !selectResp.IsSuccessFor(selectAPDU) {
		return nil, nil, fmt.Errorf("SELECT by AID failed: %s", selectResp.StatusWord())
	}

	status, err := tx.status()
	var atr []byte
	if err == nil {
		atr = status.Atr
	}

	sel := selection.NewSelection(selector, apdu.ClassISO, false, card.ProductUnknown)
	var followUp *reader.CardResponse
	if req := sel.CardRequest(); req != nil {
		followUp, err = tx.Transmit(req, reader.KeepOpen)
		if err != nil {
			return nil, nil, fmt.Errorf("post-selection commands: %w", err)
		}
	}

	img, err := sel.Parse(atr, selectResp.DataOut(), followUp)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing selection result: %w", err)
	}
	return img, sel, nil
}

// selectP2 encodes the ISO 7816-4 SELECT P2 byte (occurrence in bits
// 1-2, FCI control in bits 3-4) from a Selector's filter settings.
func selectP2(s *selection.Selector) byte {
	var p2 byte
	switch s.Occurrence {
	case selection.OccurrenceFirst:
		p2 = 0x00
	case selection.OccurrenceLast:
		p2 = 0x01
	case selection.OccurrenceNext:
		p2 = 0x02
	case selection.OccurrencePrevious:
		p2 = 0x03
	}
	if s.FCIControl == selection.ReturnNoResponse {
		p2 |= 0x0C
	}
	return p2
}

func describeCard(img *card.CalypsoCard) {
	fmt.Printf("DF name:        %X\n", img.Identity.DFName)
	fmt.Printf("Power-on data:  %X\n", img.Identity.PowerOnData)
	fmt.Printf("Product type:   %v\n", img.Product.Type)
	fmt.Printf("Buffer scheme:  %v (cap %d bytes)\n", img.Product.BufferScheme, img.Product.ModificationsBufferCap)
	fmt.Printf("Extended mode:  %v\n", img.Product.ExtendedModeSupported)
	fmt.Printf("PIN feature:    %v\n", img.Product.PINFeature)
	fmt.Printf("SV feature:     %v\n", img.Product.SVFeature)
}
