package call

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

// ErrNoVideoSource is returned when video capture is requested but no
// source is configured.
var ErrNoVideoSource = errors.New("no video source configured")

// ErrNoAudioSource is the audio counterpart of ErrNoVideoSource.
var ErrNoAudioSource = errors.New("no audio source configured")

// Capture produces the local media tracks fed into the call. Mute is a
// local pump toggle; stopping video releases the source entirely, and
// re-acquiring it may fail (source gone, device busy) without ending
// the call.
type Capture interface {
	AcquireAudio() (webrtc.TrackLocal, error)
	AcquireVideo() (webrtc.TrackLocal, error)
	SetAudioEnabled(enabled bool)
	StopVideo()
	Close() error
}

const audioSampleRate = 48000

// FileCapture loops prerecorded media from disk: Opus audio from an OGG
// container and VP8 video from an IVF container.
type FileCapture struct {
	audioPath string
	videoPath string

	audioEnabled atomic.Bool

	mu        sync.Mutex
	audioStop chan struct{}
	videoStop chan struct{}
}

// NewFileCapture creates a capture source over the given files. Either
// path may be empty; the matching Acquire call then fails.
func NewFileCapture(audioPath, videoPath string) *FileCapture {
	c := &FileCapture{
		audioPath: audioPath,
		videoPath: videoPath,
	}
	c.audioEnabled.Store(true)
	return c
}

// AcquireAudio opens the audio source and starts pumping Opus pages into
// a fresh local track.
func (c *FileCapture) AcquireAudio() (webrtc.TrackLocal, error) {
	if c.audioPath == "" {
		return nil, ErrNoAudioSource
	}

	file, err := os.Open(c.audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio source: %w", err)
	}

	ogg, _, err := oggreader.NewWith(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("parse audio source: %w", err)
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "pairlink")
	if err != nil {
		file.Close()
		return nil, err
	}

	stop := make(chan struct{})
	c.mu.Lock()
	c.audioStop = stop
	c.mu.Unlock()

	go c.pumpAudio(file, ogg, track, stop)

	return track, nil
}

func (c *FileCapture) pumpAudio(file *os.File, ogg *oggreader.OggReader, track *webrtc.TrackLocalStaticSample, stop chan struct{}) {
	defer file.Close()

	var lastGranule uint64

	for {
		select {
		case <-stop:
			return
		default:
		}

		pageData, pageHeader, err := ogg.ParseNextPage()
		if errors.Is(err, io.EOF) {
			// Loop the source.
			if _, err := file.Seek(0, io.SeekStart); err != nil {
				return
			}
			if ogg, _, err = oggreader.NewWith(file); err != nil {
				return
			}
			lastGranule = 0
			continue
		}
		if err != nil {
			return
		}

		sampleCount := float64(pageHeader.GranulePosition - lastGranule)
		lastGranule = pageHeader.GranulePosition
		sampleDuration := time.Duration((sampleCount/audioSampleRate)*1000) * time.Millisecond

		// Muted: keep pacing but send nothing, so unmute resumes in sync.
		if c.audioEnabled.Load() {
			if err := track.WriteSample(media.Sample{Data: pageData, Duration: sampleDuration}); err != nil {
				return
			}
		}

		time.Sleep(sampleDuration)
	}
}

// AcquireVideo opens the video source and starts pumping VP8 frames into
// a fresh local track. Each acquisition re-opens the file, which is what
// can fail after StopVideo released it.
func (c *FileCapture) AcquireVideo() (webrtc.TrackLocal, error) {
	if c.videoPath == "" {
		return nil, ErrNoVideoSource
	}

	file, err := os.Open(c.videoPath)
	if err != nil {
		return nil, fmt.Errorf("open video source: %w", err)
	}

	ivf, header, err := ivfreader.NewWith(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("parse video source: %w", err)
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "pairlink")
	if err != nil {
		file.Close()
		return nil, err
	}

	frameDuration := time.Millisecond * time.Duration(
		(float32(header.TimebaseNumerator)/float32(header.TimebaseDenominator))*1000)

	stop := make(chan struct{})
	c.mu.Lock()
	if c.videoStop != nil {
		close(c.videoStop)
	}
	c.videoStop = stop
	c.mu.Unlock()

	go c.pumpVideo(file, ivf, track, frameDuration, stop)

	return track, nil
}

func (c *FileCapture) pumpVideo(file *os.File, ivf *ivfreader.IVFReader, track *webrtc.TrackLocalStaticSample, frameDuration time.Duration, stop chan struct{}) {
	defer file.Close()

	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		frame, _, err := ivf.ParseNextFrame()
		if errors.Is(err, io.EOF) {
			if _, err := file.Seek(0, io.SeekStart); err != nil {
				return
			}
			if ivf, _, err = ivfreader.NewWith(file); err != nil {
				return
			}
			continue
		}
		if err != nil {
			return
		}

		if err := track.WriteSample(media.Sample{Data: frame, Duration: frameDuration}); err != nil {
			return
		}
	}
}

// SetAudioEnabled toggles the mute state. Purely local; the connection
// is never renegotiated.
func (c *FileCapture) SetAudioEnabled(enabled bool) {
	c.audioEnabled.Store(enabled)
}

// StopVideo stops the video pump and releases the source file.
func (c *FileCapture) StopVideo() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.videoStop != nil {
		close(c.videoStop)
		c.videoStop = nil
	}
}

// Close stops all pumps.
func (c *FileCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.audioStop != nil {
		close(c.audioStop)
		c.audioStop = nil
	}
	if c.videoStop != nil {
		close(c.videoStop)
		c.videoStop = nil
	}
	return nil
}
