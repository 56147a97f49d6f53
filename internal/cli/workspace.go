package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pion/webrtc/v4"

	"github.com/pairlink/pairlink/internal/call"
	"github.com/pairlink/pairlink/internal/config"
	"github.com/pairlink/pairlink/internal/execute"
	"github.com/pairlink/pairlink/internal/rendezvous"
	"github.com/pairlink/pairlink/internal/session"
	"github.com/pairlink/pairlink/internal/transport"
	"github.com/pairlink/pairlink/internal/ui"
)

type ConnectionContext struct {
	Client  *transport.Client
	Handler *transport.Handler
	Config  *config.Config
}

func NewConnectionContext(cfg *config.Config) (*ConnectionContext, error) {
	client := transport.NewClient(cfg.RelayURL)
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("connect to server: %w", err)
	}

	handler := transport.NewHandler(client)
	go handler.Start()

	return &ConnectionContext{
		Client:  client,
		Handler: handler,
		Config:  cfg,
	}, nil
}

func (c *ConnectionContext) Close() {
	if c.Client != nil {
		c.Client.Close()
	}
}

func LoadConfig(opts config.Options) (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// callID derives the deterministic rendezvous address of a room's host.
// The joiner dials this id; no directory service is needed.
func callID(roomID string) string {
	return roomID + ":host"
}

// setupCall connects to the rendezvous service and prepares the media
// negotiator. ownID is empty for the dialing side, which gets a random
// rendezvous id instead.
func setupCall(cfg *config.Config, ownID string) (*call.Negotiator, error) {
	if cfg.AudioFile == "" {
		return nil, fmt.Errorf("no audio source configured (--audio or AUDIO_FILE)")
	}

	signaler, err := rendezvous.Dial(cfg.RendezvousURL, ownID)
	if err != nil {
		return nil, fmt.Errorf("connect to rendezvous: %w", err)
	}

	capture := call.NewFileCapture(cfg.AudioFile, cfg.VideoFile)

	iceServers := []webrtc.ICEServer{{URLs: cfg.GetSTUNServers()}}
	if turn := cfg.GetTURNServers(); turn != nil {
		user, pass := cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turn,
			Username:   user,
			Credential: pass,
		})
	}

	negotiator := call.NewNegotiator(webrtc.Configuration{ICEServers: iceServers}, signaler, capture)
	return negotiator, nil
}

type workspaceOptions struct {
	room         string
	name         string
	negotiator   *call.Negotiator
	requestState bool
	peerPresent  bool
}

// runWorkspace wires the relay session, the execution client and the
// optional call into the interactive TUI, then blocks until it exits.
func runWorkspace(ctx *ConnectionContext, opts workspaceOptions) error {
	language := execute.Supported()[0].Name

	sess := session.New(ctx.Client, opts.room, opts.name, language, ctx.Config.Debounce)
	runner := execute.NewClient(ctx.Config.ExecURL)

	var callCtl ui.CallController
	if opts.negotiator != nil {
		callCtl = opts.negotiator
	}

	model := ui.NewModel(ui.ModelOptions{
		Session:  sess,
		Runner:   runner,
		Call:     callCtl,
		Room:     opts.room,
		Name:     opts.name,
		Language: language,
	})
	program := tea.NewProgram(model, tea.WithAltScreen())

	// Relay events feed the session; the session's resolved updates feed
	// the view.
	go func() {
		for env := range ctx.Handler.Events {
			sess.HandleEvent(env)
		}
	}()
	go func() {
		for u := range sess.Updates() {
			program.Send(ui.RemoteMsg{Event: u.Event, Chat: u.Chat})
		}
	}()
	go func() {
		for {
			select {
			case <-ctx.Handler.PeerJoined:
				program.Send(ui.PeerMsg{Joined: true})
			case <-ctx.Handler.PeerLeft:
				program.Send(ui.PeerMsg{Joined: false})
			case <-ctx.Handler.Disconnected:
				program.Send(ui.DisconnectedMsg{})
				return
			}
		}
	}()

	if opts.negotiator != nil {
		opts.negotiator.OnStateChange(func(s call.State) {
			program.Send(ui.CallStateMsg{State: s})
		})
		opts.negotiator.Start()
		defer opts.negotiator.Close()
	}

	if opts.peerPresent {
		program.Send(ui.PeerMsg{Joined: true})
	}
	if opts.requestState {
		sess.RequestState()
	}

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("workspace: %w", err)
	}

	ctx.Client.Leave(opts.room)
	return nil
}
