package cli

import (
	"github.com/spf13/cobra"

	"github.com/pairlink/pairlink/internal/ui"
)

var languagesCmd = &cobra.Command{
	Use:     "languages",
	Aliases: []string{"langs", "l"},
	Short:   "List supported execution languages",
	Run: func(cmd *cobra.Command, args []string) {
		ui.RenderLanguages()
	},
}

func init() {
	rootCmd.AddCommand(languagesCmd)
}
