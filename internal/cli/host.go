package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pairlink/pairlink/internal/config"
	"github.com/pairlink/pairlink/internal/ui"
)

var (
	flagDomain   string
	flagExecURL  string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagAudio    string
	flagVideo    string
	flagName     string
	flagNoCall   bool
)

var hostCmd = &cobra.Command{
	Use:     "host",
	Aliases: []string{"h"},
	Short:   "Create a room and wait for a peer",
	Long: `Create a new interview room and wait for a peer to join.

Examples:
  pairlink host
  pairlink host --name alice --audio mic.ogg --video cam.ivf
  pairlink host --domain localhost:8080 --no-call`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return hostRoom()
	},
}

func hostRoom() error {
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

	roomID, err := createRoom(ctx)
	if err != nil {
		return err
	}

	fmt.Println(ui.NewRoomInfo(roomID).View())

	if err := waitForPeer(ctx); err != nil {
		return err
	}

	opts := workspaceOptions{
		room:        roomID,
		name:        participantName("host"),
		peerPresent: true,
	}

	if !flagNoCall {
		// The host parks at a well-known rendezvous id and answers the
		// joiner's offer.
		negotiator, err := setupCall(cfg, callID(roomID))
		if err != nil {
			ui.PrintWarning(fmt.Sprintf("call disabled: %v", err))
		} else {
			opts.negotiator = negotiator
		}
	}

	return runWorkspace(ctx, opts)
}

func createRoom(ctx *ConnectionContext) (string, error) {
	ctx.Client.CreateRoom()

	select {
	case roomID := <-ctx.Handler.RoomCreated:
		return roomID, nil
	case errMsg := <-ctx.Handler.Error:
		return "", fmt.Errorf("create room: %s", errMsg)
	case <-ctx.Handler.Disconnected:
		return "", fmt.Errorf("create room: connection lost")
	}
}

func waitForPeer(ctx *ConnectionContext) error {
	stopSpinner := ui.NewWaitingSpinner("Waiting for peer to join...")
	stopSpinner.Start()
	defer stopSpinner.Stop()

	select {
	case <-ctx.Handler.PeerJoined:
		stopSpinner.Success("Peer joined")
		return nil
	case errMsg := <-ctx.Handler.Error:
		return fmt.Errorf("wait for peer: %s", errMsg)
	case <-ctx.Handler.Disconnected:
		return fmt.Errorf("wait for peer: connection lost")
	}
}

func participantName(fallback string) string {
	if flagName != "" {
		return flagName
	}
	return fallback
}

func loadOptions() config.Options {
	return config.Options{
		Domain:     flagDomain,
		ExecURL:    flagExecURL,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		AudioFile:  flagAudio,
		VideoFile:  flagVideo,
	}
}

func addConnectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagDomain, "domain", "d", "", "Custom domain")
	cmd.Flags().StringVarP(&flagExecURL, "exec-url", "e", "", "Code execution service URL")
	cmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	cmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	cmd.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	cmd.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	cmd.Flags().StringVarP(&flagAudio, "audio", "a", "", "Audio source file (Ogg/Opus)")
	cmd.Flags().StringVarP(&flagVideo, "video", "v", "", "Video source file (IVF/VP8)")
	cmd.Flags().StringVarP(&flagName, "name", "n", "", "Display name in chat")
	cmd.Flags().BoolVar(&flagNoCall, "no-call", false, "Disable the audio/video call")
}

func init() {
	rootCmd.AddCommand(hostCmd)
	addConnectionFlags(hostCmd)
}
