// Package translator calls the correction/translation endpoint on behalf of
// the recording client. Each call is exactly one HTTP attempt; retry
// scheduling belongs to the caller.
package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"clinical-speech-translator/internal/language"
	"clinical-speech-translator/internal/models"
	"clinical-speech-translator/internal/observability/logging"
)

const (
	// MsgNetworkError is shown when the endpoint could not be reached.
	MsgNetworkError = "Network error"
	// MsgTranslationFailed is shown when the endpoint gave no error text.
	MsgTranslationFailed = "Translation failed"
)

// Kind classifies a failed attempt.
type Kind int

const (
	KindTransport Kind = iota
	KindRateLimited
	KindStatus
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRateLimited:
		return "rate_limited"
	case KindStatus:
		return "status"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Error is a failed translation attempt. Message is what the user sees.
type Error struct {
	Message    string
	StatusCode int
	Kind       Kind
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// RequestIDHeader carries the attempt id so server logs can be correlated.
const RequestIDHeader = "X-Request-Id"

// Request is one translation attempt.
type Request struct {
	ID         string
	Text       string
	Pair       language.Pair
	RetryCount int
}

// ShouldRetry reports whether err warrants another attempt after retryCount
// attempts have already been retried.
func ShouldRetry(err error, retryCount, maxRetries int) bool {
	var te *Error
	if !errors.As(err, &te) {
		return false
	}
	return te.Kind == KindRateLimited && retryCount < maxRetries
}

// Message returns the user-facing text for err.
func Message(err error) string {
	var te *Error
	if errors.As(err, &te) && te.Message != "" {
		return te.Message
	}
	return MsgTranslationFailed
}

// Client posts transcripts to the generate endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	logger   zerolog.Logger
}

// New creates a client for endpoint with a per-attempt timeout.
func New(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		logger:   logging.WithComponent("translator"),
	}
}

// Translate performs a single attempt and returns the trimmed translation.
// Failures are always *Error.
func (c *Client) Translate(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(models.GenerateRequest{
		Text:       req.Text,
		SourceLang: req.Pair.SourceName(),
		TargetLang: req.Pair.TargetName(),
	})
	if err != nil {
		return "", &Error{Message: MsgNetworkError, Kind: KindTransport, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Message: MsgNetworkError, Kind: KindTransport, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.ID != "" {
		httpReq.Header.Set(RequestIDHeader, req.ID)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", &Error{Message: MsgNetworkError, Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	// Body is decoded as a superset of the success and error shapes.
	var payload struct {
		Output *string `json:"output"`
		Error  string  `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", &Error{Message: MsgNetworkError, StatusCode: resp.StatusCode, Kind: KindTransport, Err: err}
	}

	c.logger.Debug().
		Str("requestId", req.ID).
		Int("status", resp.StatusCode).
		Int("retryCount", req.RetryCount).
		Dur("latency", time.Since(start)).
		Msg("Translate attempt finished")

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if payload.Output == nil {
			return "", &Error{Message: MsgNetworkError, StatusCode: resp.StatusCode, Kind: KindTransport, Err: errMissingOutput}
		}
		return strings.TrimSpace(*payload.Output), nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &Error{Message: orDefault(payload.Error), StatusCode: resp.StatusCode, Kind: KindRateLimited}
	default:
		return "", &Error{Message: orDefault(payload.Error), StatusCode: resp.StatusCode, Kind: KindStatus}
	}
}

var errMissingOutput = errors.New("response has no output")

func orDefault(msg string) string {
	if msg == "" {
		return MsgTranslationFailed
	}
	return msg
}
