package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Default configuration values (production)
const (
	DefaultDomain   = "pairlink.qzz.io"
	DefaultExecURL  = "https://emkc.org/api/v2/piston"
	DefaultSTUN     = "stun:stun.l.google.com:19302"
	DefaultTURN     = "" // Optional, empty by default
	DefaultTURNUser = ""
	DefaultTURNPass = ""

	// DefaultDebounce is how long edits settle before propagating.
	DefaultDebounce = time.Second
)

// Config holds application configuration
type Config struct {
	// Domain is the backend server domain
	Domain string

	// RelayURL and RendezvousURL are constructed from Domain
	RelayURL      string
	RendezvousURL string

	// ExecURL is the base URL of the code-execution service
	ExecURL string

	// Debounce is the settle window for text edits
	Debounce time.Duration

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// Media sources for the call (looped sample files)
	AudioFile string
	VideoFile string
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain     string
	ExecURL    string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	AudioFile  string
	VideoFile  string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := firstOf(opts.Domain, os.Getenv("DOMAIN"), DefaultDomain)
	execURL := firstOf(opts.ExecURL, os.Getenv("EXEC_URL"), DefaultExecURL)
	stunServer := firstOf(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN)
	turnServer := firstOf(opts.TURNServer, os.Getenv("TURN_SERVER"), DefaultTURN)
	turnUser := firstOf(opts.TURNUser, os.Getenv("TURN_USERNAME"), DefaultTURNUser)
	turnPass := firstOf(opts.TURNPass, os.Getenv("TURN_PASSWORD"), DefaultTURNPass)
	audioFile := firstOf(opts.AudioFile, os.Getenv("AUDIO_FILE"), "")
	videoFile := firstOf(opts.VideoFile, os.Getenv("VIDEO_FILE"), "")

	debounce := DefaultDebounce
	if raw := os.Getenv("DEBOUNCE"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid DEBOUNCE %q: %w", raw, err)
		}
		debounce = parsed
	}

	// Local servers speak plain ws, everything else wss.
	scheme := "wss"
	if strings.HasPrefix(domain, "localhost") || strings.HasPrefix(domain, "127.0.0.1") {
		scheme = "ws"
	}

	return &Config{
		Domain:        domain,
		RelayURL:      fmt.Sprintf("%s://%s/ws", scheme, domain),
		RendezvousURL: fmt.Sprintf("%s://%s/rtc", scheme, domain),
		ExecURL:       execURL,
		Debounce:      debounce,
		STUNServer:    stunServer,
		TURNServer:    turnServer,
		TURNUser:      turnUser,
		TURNPass:      turnPass,
		AudioFile:     audioFile,
		VideoFile:     videoFile,
	}, nil
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
		fmt.Sprintf("turns:%s:5349?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
