// Command calypso-demo drives a Calypso card over a PC/SC reader using
// the core transaction/selection packages. It is a thin wiring
// exercise, not a product: real deployments supply their own
// reader.Transmitter and sam.ControlSamTransactionManager.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
