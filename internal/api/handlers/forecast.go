package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/salescast/salescast/internal/contracts"
	"github.com/salescast/salescast/internal/predictor"
	"github.com/salescast/salescast/pkg/redis"
)

// ForecastHandler serves on-demand forecasts from the loaded artifact.
type ForecastHandler struct {
	predictor *predictor.Predictor
	cache     *redis.Cache
	cacheTTL  time.Duration
	log       zerolog.Logger
}

// NewForecastHandler creates a forecast handler.
func NewForecastHandler(p *predictor.Predictor, cache *redis.Cache, cacheTTL time.Duration, log zerolog.Logger) *ForecastHandler {
	return &ForecastHandler{
		predictor: p,
		cache:     cache,
		cacheTTL:  cacheTTL,
		log:       log.With().Str("component", "forecast_handler").Logger(),
	}
}

type forecastRow struct {
	Location   string             `json:"location"`
	Product    string             `json:"product"`
	Date       string             `json:"date"`
	Exogenous  map[string]float64 `json:"exogenous,omitempty"`
	EventFlags map[string]int     `json:"event_flags,omitempty"`
}

type forecastRequest struct {
	Rows []forecastRow `json:"rows"`
}

type predictionRow struct {
	Location        string  `json:"location"`
	Product         string  `json:"product"`
	Period          string  `json:"period"`
	PredictedVolume float64 `json:"predicted_volume"`
	Degraded        bool    `json:"degraded"`
}

type errorRow struct {
	Location string `json:"location"`
	Product  string `json:"product"`
	Period   string `json:"period"`
	Reason   string `json:"reason"`
	Detail   string `json:"detail,omitempty"`
}

type forecastResponse struct {
	Predictions []predictionRow `json:"predictions"`
	Errors      []errorRow      `json:"errors,omitempty"`
}

// Forecast handles POST /api/forecast.
func (h *ForecastHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	var req forecastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if len(req.Rows) == 0 {
		writeError(w, http.StatusBadRequest, "rows must not be empty")
		return
	}

	requests, err := buildRequests(req.Rows)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Identical request bodies produce identical forecasts, so the
	// canonicalized request hash is a safe cache key.
	key := cacheKey(req)
	var cached forecastResponse
	if hit, err := h.cache.Get(r.Context(), key, &cached); err == nil && hit {
		h.log.Debug().Str("key", key).Msg("cache hit")
		writeJSON(w, http.StatusOK, cached)
		return
	}

	results, rowErrs, err := h.predictor.Predict(r.Context(), requests)
	if err != nil {
		h.log.Error().Err(err).Msg("prediction failed")
		writeError(w, http.StatusInternalServerError, "prediction failed")
		return
	}

	resp := buildResponse(results, rowErrs)
	if err := h.cache.Set(r.Context(), key, resp, h.cacheTTL); err != nil {
		h.log.Warn().Err(err).Msg("cache write failed")
	}
	writeJSON(w, http.StatusOK, resp)
}

func buildRequests(rows []forecastRow) ([]predictor.Request, error) {
	requests := make([]predictor.Request, 0, len(rows))
	for _, row := range rows {
		if row.Location == "" || row.Product == "" {
			return nil, contracts.NewSchemaError("location and product are required", "location", "product")
		}
		date, err := contracts.ParsePeriod(row.Date)
		if err != nil {
			return nil, err
		}
		requests = append(requests, predictor.Request{
			Entity:     contracts.EntityKey{Location: row.Location, Product: row.Product},
			Date:       date,
			Exogenous:  row.Exogenous,
			EventFlags: row.EventFlags,
		})
	}
	return requests, nil
}

func buildResponse(results []contracts.PredictionResult, rowErrs []contracts.RowError) forecastResponse {
	resp := forecastResponse{Predictions: make([]predictionRow, 0, len(results))}
	for _, p := range results {
		resp.Predictions = append(resp.Predictions, predictionRow{
			Location:        p.Entity.Location,
			Product:         p.Entity.Product,
			Period:          contracts.FormatPeriod(p.Date),
			PredictedVolume: p.PredictedVolume,
			Degraded:        p.Degraded,
		})
	}
	for _, e := range rowErrs {
		row := errorRow{
			Location: e.Entity.Location,
			Product:  e.Entity.Product,
			Period:   contracts.FormatPeriod(e.Date),
			Reason:   e.Reason,
		}
		if e.Err != nil {
			row.Detail = e.Err.Error()
		}
		resp.Errors = append(resp.Errors, row)
	}
	return resp
}

func cacheKey(req forecastRequest) string {
	data, _ := json.Marshal(req)
	sum := sha256.Sum256(data)
	return "forecast:" + hex.EncodeToString(sum[:])
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
