package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gregLibert/calypso-core/pkg/calypso/reader"
	"github.com/gregLibert/calypso-core/pkg/calypso/transaction"
)

var (
	readAID    string
	readSFI    uint8
	readRecord uint8
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Select the Calypso application and read one record",
	RunE:  runRead,
}

func init() {
	readCmd.Flags().StringVar(&readAID, "aid", "315449432E494341", "application AID to select (hex)")
	readCmd.Flags().Uint8Var(&readSFI, "sfi", 7, "SFI of the file to read")
	readCmd.Flags().Uint8Var(&readRecord, "record", 1, "record number to read")
	rootCmd.AddCommand(readCmd)
}

func runRead(cmd *cobra.Command, args []string) error {
	aid, err := hex.DecodeString(readAID)
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

	// No SAM is wired here: ProcessCommands outside a secure session
	// never calls into the SAM collaborator, so a plain read works
	// against any Transmitter without one.
	mgr := transaction.New(img, tx, nil, false, transaction.SecuritySettings{})
	if err := mgr.PrepareReadRecord(readSFI, readRecord); err != nil {
		return fmt.Errorf("preparing READ_RECORDS: %w", err)
	}
	if err := mgr.ProcessCommands(); err != nil {
		return fmt.Errorf("reading record: %w", err)
	}

	ef := img.GetFileBySfi(readSFI)
	if ef == nil {
		return fmt.Errorf("SFI %d not found after read", readSFI)
	}
	record, ok := ef.Records[int(readRecord)]
	if !ok {
		return fmt.Errorf("record %d not present in SFI %d", readRecord, readSFI)
	}
	fmt.Printf("SFI %d record %d (%d bytes): %s\n", readSFI, readRecord, len(record), hex.EncodeToString(record))
	return nil
}
