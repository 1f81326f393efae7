package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"premiumcat/db"
	"premiumcat/ml"
	"premiumcat/monitoring"
	"premiumcat/predictor"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Predictor is what the predict endpoint needs from the inference caller.
type Predictor interface {
	Predict(ctx context.Context, applicant ml.Applicant) (*predictor.Prediction, error)
	Classes() []string
}

type HistoryStore interface {
	QueryPredictions(ctx context.Context, limit int) ([]db.PredictionRecord, error)
}

type StreamHandler interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request)
}

// Components are wired once at startup, before the server starts.
var (
	predictionService Predictor
	historyStore      HistoryStore
	predictionStream  StreamHandler
	serviceMetrics    *monitoring.Metrics
	handlerLogger     = zap.NewNop()
)

// SetPredictor installs the inference caller; nil means no model is loaded.
func SetPredictor(p Predictor) {
	predictionService = p
}

func SetHistoryStore(store HistoryStore) {
	historyStore = store
}

func SetPredictionStream(stream StreamHandler) {
	predictionStream = stream
}

func SetMetrics(m *monitoring.Metrics) {
	serviceMetrics = m
}

func SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	handlerLogger = logger
}

func RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/options", handleOptions)
	mux.HandleFunc("POST /api/features", handleFeatures)
	mux.HandleFunc("POST /api/predict", handlePredict)
	mux.HandleFunc("GET /api/predictions", handlePredictions)
	mux.HandleFunc("GET /api/ws/predictions", handlePredictionStream)
	mux.HandleFunc("GET /metrics", handleMetrics)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"model_loaded": predictionService != nil,
	})
}

func handleOptions(w http.ResponseWriter, r *http.Request) {
	var classes []string
	if predictionService != nil {
		classes = predictionService.Classes()
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"occupations":  ml.Occupations(),
		"tier1_cities": ml.Tier1Cities(),
		"tier2_cities": ml.Tier2Cities(),
		"cities":       ml.KnownCities(),
		"classes":      classes,
	})
}

func handleFeatures(w http.ResponseWriter, r *http.Request) {
	applicant, ok := readApplicant(w, r)
	if !ok {
		return
	}

	features, err := ml.Derive(applicant)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"features": features,
		"display":  features.Display(),
	})
}

func handlePredict(w http.ResponseWriter, r *http.Request) {
	if predictionService == nil {
		respondError(w, http.StatusServiceUnavailable, "no model loaded", nil)
		return
	}

	applicant, ok := readApplicant(w, r)
	if !ok {
		return
	}

	prediction, err := predictionService.Predict(r.Context(), applicant)
	if err != nil {
		var inferenceErr *ml.InferenceError
		switch {
		case errors.Is(err, ml.ErrInvalidInput):
			respondError(w, http.StatusBadRequest, err.Error(), nil)
		case errors.As(err, &inferenceErr):
			respondError(w, http.StatusUnprocessableEntity, err.Error(), nil)
		default:
			handlerLogger.Error("prediction failed",
				zap.String("request_id", GetRequestID(r.Context())),
				zap.Error(err))
			respondError(w, http.StatusInternalServerError, "prediction failed", nil)
		}
		return
	}

	respondJSON(w, http.StatusOK, prediction)
}

func handlePredictions(w http.ResponseWriter, r *http.Request) {
	if historyStore == nil {
		respondError(w, http.StatusServiceUnavailable, "prediction history not available", nil)
		return
	}

	limit := defaultHistoryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer", nil)
			return
		}
		limit = min(l, maxHistoryLimit)
	}

	records, err := historyStore.QueryPredictions(r.Context(), limit)
	if err != nil {
		handlerLogger.Error("query predictions failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load predictions", nil)
		return
	}
	if records == nil {
		records = []db.PredictionRecord{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"predictions": records,
		"count":       len(records),
	})
}

func handlePredictionStream(w http.ResponseWriter, r *http.Request) {
	if predictionStream == nil {
		respondError(w, http.StatusServiceUnavailable, "prediction stream not available", nil)
		return
	}
	predictionStream.HandleWebSocket(w, r)
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	if serviceMetrics == nil {
		respondError(w, http.StatusNotFound, "metrics disabled", nil)
		return
	}
	promhttp.HandlerFor(serviceMetrics.Registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

// readApplicant writes the error response itself and reports whether the
// handler should continue.
func readApplicant(w http.ResponseWriter, r *http.Request) (ml.Applicant, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "request body too large", nil)
		} else {
			respondError(w, http.StatusBadRequest, "failed to read request body", nil)
		}
		return ml.Applicant{}, false
	}

	applicant, details, err := decodeApplicant(body)
	if err != nil {
		if serviceMetrics != nil {
			serviceMetrics.PredictionErrors.WithLabelValues("invalid_input").Inc()
		}
		if len(details) == 0 {
			details = []string{err.Error()}
		}
		respondError(w, http.StatusBadRequest, "invalid applicant", details)
		return ml.Applicant{}, false
	}
	return applicant, true
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func respondError(w http.ResponseWriter, status int, message string, details []string) {
	respondJSON(w, status, errorResponse{Error: message, Details: details})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		handlerLogger.Warn("failed to encode JSON", zap.Error(err))
	}
}
