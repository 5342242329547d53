// Command mockdecoder sends synthetic transponder-pass UDP packets at a
// running ChronoCore instance, standing in for a real timing decoder during
// development and integration testing. Its main-package shape (a small
// zerolog-configured entry point wiring flags into a single network
// operation) follows the teacher SDK's testclient command; its subcommand
// tree is grounded on the pack's cobra usage.
package main

import (
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	noColor := runtime.GOOS == "windows"
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: noColor, TimeFormat: zerolog.TimeFieldFormat})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("mockdecoder failed")
	}
}

func newRootCmd() *cobra.Command {
	var addr string

	root := &cobra.Command{
		Use:   "mockdecoder",
		Short: "Send synthetic transponder passes at a ChronoCore decoder listener",
	}
	root.PersistentFlags().StringVar(&addr, "addr", "127.0.0.1:9900", "UDP address of the decoder ingestion listener")

	root.AddCommand(newLapCmd(&addr))
	root.AddCommand(newPitInCmd(&addr))
	root.AddCommand(newPitOutCmd(&addr))
	root.AddCommand(newRunCmd(&addr))
	return root
}
