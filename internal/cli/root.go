package cli

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/pairlink/pairlink/internal/ui"
	"github.com/pairlink/pairlink/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "pairlink",
	Short:   "Shared coding workspace for two-person technical interviews",
	Long: `PairLink is a command-line workspace for running live technical
interviews. Two participants share a notes pad, a code editor and a stdin
buffer, run code against a remote execution service, and talk over a
peer-to-peer audio/video call. All workspace traffic is relayed through a
lightweight room server; call media flows directly between peers.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
