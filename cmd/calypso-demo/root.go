package main

import (
	"github.com/spf13/cobra"
)

var readerIndex int

var rootCmd = &cobra.Command{
	Use:   "calypso-demo",
	Short: "Calypso card demo over a PC/SC reader",
	Long: `calypso-demo exercises the Calypso selection and transaction
packages against a real card through a PC/SC reader.

  # List available readers
  calypso-demo select --list

  # Select the Calypso application and dump the startup info
  calypso-demo select

  # Read a record
  calypso-demo read --sfi 7 --record 1

  # Run a write outside a secure session (no SAM required)
  calypso-demo transact --sfi 8 --counter 1 --increase 5`,
}

func init() {
	rootCmd.PersistentFlags().IntVarP(&readerIndex, "reader", "r", -1,
		"reader index (see 'calypso-demo select --list')")
}
