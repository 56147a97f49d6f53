package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pairlink/pairlink/internal/ui"
)

var joinCmd = &cobra.Command{
	Use:     "join <room-id>",
	Aliases: []string{"j"},
	Short:   "Join an existing room",
	Long: `Join a room created by a host and enter the shared workspace.

Examples:
  pairlink join calm-otter-lantern
  pairlink join calm-otter-lantern --name bob --audio mic.ogg`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return joinRoom(args[0])
	},
}

func joinRoom(roomID string) error {
	cfg, err := LoadConfig(loadOptions())
	if err != nil {
		return err
	}

	stopSpinner := ui.NewConnectionSpinner("Connecting to server...")
	stopSpinner.Start()
	ctx, err := NewConnectionContext(cfg)
	if err != nil {
		stopSpinner.Stop()
		return err
	}
	defer ctx.Close()
	stopSpinner.Stop()

	if err := enterRoom(ctx, roomID); err != nil {
		return err
	}
	ui.PrintSuccessf("Joined room %s", roomID)

	opts := workspaceOptions{
		room:         roomID,
		name:         participantName("guest"),
		requestState: true,
		peerPresent:  true,
	}

	if !flagNoCall {
		negotiator, err := setupCall(cfg, "")
		if err != nil {
			ui.PrintWarning(fmt.Sprintf("call disabled: %v", err))
		} else {
			// The joiner initiates: the host parks at the room's
			// well-known rendezvous id.
			if err := negotiator.Dial(callID(roomID)); err != nil {
				ui.PrintWarning(fmt.Sprintf("call failed: %v", err))
				negotiator.Close()
			} else {
				opts.negotiator = negotiator
			}
		}
	}

	return runWorkspace(ctx, opts)
}

func enterRoom(ctx *ConnectionContext, roomID string) error {
	ctx.Client.Join(roomID)

	select {
	case <-ctx.Handler.JoinSuccess:
		return nil
	case errMsg := <-ctx.Handler.Error:
		return fmt.Errorf("join room: %s", errMsg)
	case <-ctx.Handler.Disconnected:
		return fmt.Errorf("join room: connection lost")
	}
}

func init() {
	rootCmd.AddCommand(joinCmd)
	addConnectionFlags(joinCmd)
}
