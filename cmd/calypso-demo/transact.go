package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gregLibert/calypso-core/pkg/calypso/reader"
	"github.com/gregLibert/calypso-core/pkg/calypso/transaction"
)

var (
	transactAID      string
	transactSFI      uint8
	transactCounter  uint8
	transactIncrease int
	transactDecrease int
)

var transactCmd = &cobra.Command{
	Use:   "transact",
	Short: "Run a counter update outside a secure session",
	Long: `transact demonstrates the non-session write path: selecting the
application and committing a counter change with no secure session and
no SAM. A secure session (ProcessOpening/ProcessClosing) additionally
needs a sam.ControlSamTransactionManager wired to a real SAM module to
authenticate and digest the session, which this demo does not ship —
pkg/calypso/sam only declares the interface the card-side manager
consumes, the way it is consumed here.`,
	RunE: runTransact,
}

func init() {
	transactCmd.Flags().StringVar(&transactAID, "aid", "315449432E494341", "application AID to select (hex)")
	transactCmd.Flags().Uint8Var(&transactSFI, "sfi", 8, "SFI of the counter file")
	transactCmd.Flags().Uint8Var(&transactCounter, "counter", 1, "counter number")
	transactCmd.Flags().IntVar(&transactIncrease, "increase", 0, "amount to increase the counter by")
	transactCmd.Flags().IntVar(&transactDecrease, "decrease", 0, "amount to decrease the counter by")
	rootCmd.AddCommand(transactCmd)
}

func runTransact(cmd *cobra.Command, args []string) error {
	if transactIncrease == 0 && transactDecrease == 0 {
		return fmt.Errorf("specify --increase or --decrease")
	}

	aid, err := hex.DecodeString(transactAID)
	if err != nil {
		return fmt.Errorf("invalid --aid: %w", err)
	}

	tx, err := connectReader(readerIndex)
	if err != nil {
		return err
	}
	defer tx.close(reader.CloseAfter)

	img, _, err := selectApplication(tx, aid)
	if err != nil {
		return err
	}

	mgr := transaction.New(img, tx, nil, false, transaction.SecuritySettings{})
	if transactIncrease != 0 {
		if err := mgr.PrepareIncreaseCounter(transactSFI, transactCounter, transactIncrease); err != nil {
			return fmt.Errorf("preparing INCREASE: %w", err)
		}
	}
	if transactDecrease != 0 {
		if err := mgr.PrepareDecreaseCounter(transactSFI, transactCounter, transactDecrease); err != nil {
			return fmt.Errorf("preparing DECREASE: %w", err)
		}
	}
	if err := mgr.ProcessCommands(); err != nil {
		return fmt.Errorf("committing counter update: %w", err)
	}

	fmt.Printf("counter %d in SFI %d updated\n", transactCounter, transactSFI)
	return nil
}
