package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"clinical-speech-translator/internal/models"
	"clinical-speech-translator/internal/schema"
	"clinical-speech-translator/internal/service/generate"
)

const maxBodyBytes = 1 << 20

func generateHandler(svc *generate.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		if requestID == "" {
			requestID = uuid.NewString()
		}

		var req models.GenerateRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			log.Warn().Err(err).Str("requestId", requestID).Msg("Unreadable generate request")
			writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
			return
		}

		res, err := svc.Generate(r.Context(), requestID, req)
		if err != nil {
			status, msg := generate.StatusFor(err)
			var verr *schema.ValidationError
			if errors.As(err, &verr) {
				log.Info().Str("requestId", requestID).Str("detail", verr.Detail()).Msg("Rejected generate request")
			}
			writeJSON(w, status, models.ErrorResponse{Error: msg})
			return
		}

		writeJSON(w, http.StatusOK, models.GenerateResponse{Output: res.Output})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Int("status", status).Msg("Failed to write response")
	}
}
