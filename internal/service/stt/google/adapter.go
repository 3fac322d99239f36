// Package google provides a Google Cloud Speech-to-Text streaming adapter.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"

	"clinical-speech-translator/internal/observability/logging"
	"clinical-speech-translator/internal/service/stt"
)

// Config holds Google STT configuration.
type Config struct {
	SampleRateHz   int
	InterimResults bool
	AudioEncoding  string        // LINEAR16, MULAW, FLAC, etc.
	ChunkSize      int           // bytes of audio per request
	ChunkInterval  time.Duration // pause after each chunk to pace file input in real time
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		SampleRateHz:   16000,
		InterimResults: true,
		AudioEncoding:  "LINEAR16",
		ChunkSize:      3200, // 100ms of 16kHz 16-bit mono
		ChunkInterval:  100 * time.Millisecond,
	}
}

// recognizeStream is the subset of the streaming RPC the adapter uses.
type recognizeStream interface {
	Send(*speechpb.StreamingRecognizeRequest) error
	Recv() (*speechpb.StreamingRecognizeResponse, error)
	CloseSend() error
}

type dialFunc func(ctx context.Context) (recognizeStream, error)

// Adapter implements stt.Adapter using Google Cloud Speech-to-Text.
// Audio is read from source until it is exhausted or the adapter stops.
type Adapter struct {
	cfg    Config
	source io.Reader
	dial   dialFunc
	client *speech.Client
	logger zerolog.Logger

	mu      sync.Mutex
	cb      stt.Callback
	cancel  context.CancelFunc
	stopped bool
}

// New creates a Google STT adapter streaming audio from source.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config, source io.Reader) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	a := newAdapter(cfg, source, func(ctx context.Context) (recognizeStream, error) {
		return c.StreamingRecognize(ctx)
	})
	a.client = c
	return a, nil
}

func newAdapter(cfg Config, source io.Reader, dial dialFunc) *Adapter {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultConfig().ChunkSize
	}
	return &Adapter{
		cfg:    cfg,
		source: source,
		dial:   dial,
		logger: logging.WithComponent("stt.google"),
	}
}

// Start opens a streaming recognition session and sends the initial config.
func (a *Adapter) Start(ctx context.Context, languageCode string, cb stt.Callback) error {
	ctx, cancel := context.WithCancel(ctx)
	stream, err := a.dial(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("open recognize stream: %w", err)
	}

	// Send streaming config as the first message
	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        parseAudioEncoding(a.cfg.AudioEncoding),
					SampleRateHertz: int32(a.cfg.SampleRateHz),
					LanguageCode:    languageCode,
				},
				InterimResults: a.cfg.InterimResults,
			},
		},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("send streaming config: %w", err)
	}

	a.mu.Lock()
	a.cb = cb
	a.cancel = cancel
	a.mu.Unlock()

	a.logger.Info().
		Str("languageCode", languageCode).
		Int("sampleRateHz", a.cfg.SampleRateHz).
		Msg("Recognize stream opened")

	go a.pump(ctx, stream)
	go a.listen(stream)
	return nil
}

// pump forwards audio from the source until EOF, then half-closes the stream.
func (a *Adapter) pump(ctx context.Context, stream recognizeStream) {
	buf := make([]byte, a.cfg.ChunkSize)
	for {
		n, err := a.source.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			sendErr := stream.Send(&speechpb.StreamingRecognizeRequest{
				StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
					AudioContent: chunk,
				},
			})
			if sendErr != nil {
				a.logger.Debug().Err(sendErr).Msg("Audio send stopped")
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				a.emit(func(cb stt.Callback) { cb.OnError(fmt.Errorf("read audio: %w", err)) })
			}
			_ = stream.CloseSend()
			return
		}
		if a.isStopped() {
			_ = stream.CloseSend()
			return
		}
		if a.cfg.ChunkInterval > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(a.cfg.ChunkInterval):
			}
		}
	}
}

// listen receives transcript responses and invokes callbacks.
func (a *Adapter) listen(stream recognizeStream) {
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			a.emit(func(cb stt.Callback) { cb.OnEnd() })
			return
		}
		if err != nil {
			a.emit(func(cb stt.Callback) { cb.OnError(err) })
			return
		}
		if resp.Error != nil {
			a.emit(func(cb stt.Callback) {
				cb.OnError(fmt.Errorf("recognition failed: %s", resp.Error.Message))
			})
			return
		}

		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			alt := r.Alternatives[0]
			if r.IsFinal {
				a.emit(func(cb stt.Callback) { cb.OnFinal(alt.Transcript) })
			} else {
				a.emit(func(cb stt.Callback) { cb.OnInterim(alt.Transcript) })
			}
		}
	}
}

// emit invokes fn unless the adapter has stopped. The lock is not held
// during the callback so a blocked receiver cannot stall Stop.
func (a *Adapter) emit(fn func(stt.Callback)) {
	a.mu.Lock()
	cb := a.cb
	stopped := a.stopped
	a.mu.Unlock()
	if stopped || cb == nil {
		return
	}
	fn(cb)
}

func (a *Adapter) isStopped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}

// Stop ends the streaming session and releases the client.
func (a *Adapter) Stop() error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	cancel := a.cancel
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

// parseAudioEncoding maps an upper-case encoding name to the proto enum,
// falling back to LINEAR16.
func parseAudioEncoding(s string) speechpb.RecognitionConfig_AudioEncoding {
	switch s {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
