// Package generate implements the two-stage correction and translation
// pipeline behind POST /api/generate.
package generate

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"clinical-speech-translator/internal/events"
	"clinical-speech-translator/internal/models"
	"clinical-speech-translator/internal/observability/logging"
	"clinical-speech-translator/internal/observability/metrics"
	"clinical-speech-translator/internal/schema"
	"clinical-speech-translator/internal/service/llm"
)

// User-facing messages returned in the error body.
const (
	MsgRateLimited = "Rate limit exceeded. Please wait a few seconds and try again."
	MsgFallback    = "Failed to generate"
)

// StageError records which model call failed. The stage appears in logs;
// the HTTP body carries only the upstream message.
type StageError struct {
	Stage llm.Stage
	Err   error
}

func (e *StageError) Error() string { return string(e.Stage) + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// Result is the outcome of a successful pipeline run.
type Result struct {
	RequestID string
	Corrected string
	Output    string
	Latency   time.Duration
}

// Service runs correction then translation for one request at a time.
type Service struct {
	completer llm.Completer
	validator *schema.Validator
	publisher *events.Publisher
	metrics   *metrics.Metrics
}

// New creates a generate service. publisher may be nil.
func New(completer llm.Completer, publisher *events.Publisher) *Service {
	return &Service{
		completer: completer,
		validator: schema.New(),
		publisher: publisher,
		metrics:   metrics.DefaultMetrics,
	}
}

// Generate validates req, corrects req.Text, and translates the corrected
// text. Errors are classified by StatusFor.
func (s *Service) Generate(ctx context.Context, requestID string, req models.GenerateRequest) (*Result, error) {
	logger := logging.WithRequest(requestID, req.SourceLang, req.TargetLang)

	if err := s.validator.Validate(req); err != nil {
		s.metrics.RecordTranslation("invalid")
		return nil, err
	}

	start := time.Now()
	logger.Debug().Str("text", req.Text).Msg("Correcting transcript")

	corrected, err := s.stage(ctx, llm.Request{
		RequestID: requestID,
		Stage:     llm.StageCorrection,
		Prompt:    correctionPrompt(req.Text),
		Text:      req.Text,
	})
	if err != nil {
		return nil, s.fail(ctx, requestID, req, &StageError{Stage: llm.StageCorrection, Err: err})
	}
	logger.Debug().Str("correctedText", corrected).Msg("Transcript corrected")

	output, err := s.stage(ctx, llm.Request{
		RequestID: requestID,
		Stage:     llm.StageTranslation,
		Prompt:    translationPrompt(corrected, req.SourceLang, req.TargetLang),
		Text:      corrected,
	})
	if err != nil {
		return nil, s.fail(ctx, requestID, req, &StageError{Stage: llm.StageTranslation, Err: err})
	}

	res := &Result{
		RequestID: requestID,
		Corrected: corrected,
		Output:    output,
		Latency:   time.Since(start),
	}
	s.metrics.RecordTranslation("success")
	logger.Info().Dur("latency", res.Latency).Msg("Translation completed")

	if s.publisher != nil {
		ev := models.TranslationCompleted{
			EventType:     models.EventTranslationCompleted,
			RequestID:     requestID,
			SourceLang:    req.SourceLang,
			TargetLang:    req.TargetLang,
			Text:          req.Text,
			CorrectedText: corrected,
			Output:        output,
			LatencyMs:     res.Latency.Milliseconds(),
			Timestamp:     time.Now().UnixMilli(),
		}
		if err := s.publisher.PublishCompleted(ctx, requestID, ev); err != nil {
			logger.Warn().Err(err).Msg("Failed to publish completed event")
		}
	}
	return res, nil
}

// stage runs one model call and returns its trimmed output.
func (s *Service) stage(ctx context.Context, req llm.Request) (string, error) {
	start := time.Now()
	out, err := s.completer.Complete(ctx, req)
	errType := ""
	if err != nil {
		errType = "upstream"
		if errors.Is(err, llm.ErrRateLimited) {
			errType = "rate_limited"
		}
	}
	s.metrics.RecordUpstreamCall(string(req.Stage), errType, time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (s *Service) fail(ctx context.Context, requestID string, req models.GenerateRequest, err error) error {
	status, msg := StatusFor(err)
	logger := logging.WithRequest(requestID, req.SourceLang, req.TargetLang)

	if status == http.StatusTooManyRequests {
		s.metrics.RecordTranslation("rate_limited")
		logger.Warn().Err(err).Msg("Upstream rate limited")
	} else {
		s.metrics.RecordTranslation("failed")
		logger.Error().Err(err).Msg("Translation failed")
	}

	if s.publisher != nil {
		ev := models.TranslationFailed{
			EventType:  models.EventTranslationFailed,
			RequestID:  requestID,
			SourceLang: req.SourceLang,
			TargetLang: req.TargetLang,
			StatusCode: status,
			Error:      msg,
			Timestamp:  time.Now().UnixMilli(),
		}
		if perr := s.publisher.PublishFailed(ctx, requestID, ev); perr != nil {
			logger.Warn().Err(perr).Msg("Failed to publish failed event")
		}
	}
	return err
}

// StatusFor maps a Generate error to an HTTP status and the message placed in
// the error body.
func StatusFor(err error) (int, string) {
	var verr *schema.ValidationError
	var serr *StageError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, llm.ErrRateLimited):
		return http.StatusTooManyRequests, MsgRateLimited
	case errors.As(err, &serr):
		return http.StatusInternalServerError, upstreamMessage(serr.Err)
	default:
		return http.StatusInternalServerError, upstreamMessage(err)
	}
}

func upstreamMessage(err error) string {
	msg := err.Error()
	if msg == "" {
		return MsgFallback
	}
	return msg
}
