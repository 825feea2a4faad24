// Package server exposes the advice and forecast workflows over HTTP so
// other tools on the farm network can reuse a single configured client.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/agri-agent/agriagent-cli/internal/forecast"
	"github.com/agri-agent/agriagent-cli/internal/model"
	"github.com/agri-agent/agriagent-cli/internal/store"
	"github.com/agri-agent/agriagent-cli/pkg/agriapi"
)

// maxUploadBytes caps image uploads at 10 MiB.
const maxUploadBytes = 10 << 20

// Server handles HTTP requests by delegating to the backend client and
// recording outcomes in the local store. History is nil-safe: without a
// store the server still serves queries, it just keeps no history.
type Server struct {
	client  agriapi.Client
	history store.Store
}

// New creates a Server.
func New(client agriapi.Client, history store.Store) *Server {
	return &Server{client: client, history: history}
}

// Router builds the chi router with CORS and logging middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/api/chat", s.handleChat)
	r.Post("/api/detect-language", s.handleDetectLanguage)
	r.Post("/upload", s.handleUpload)
	r.Post("/forecast", s.handleForecast)
	r.Get("/forecast/locations", s.handleLocations)
	r.Get("/forecast/reverse-geocode", s.handleReverseGeocode)
	r.Get("/forecast/export", s.handleForecastExport)
	r.Get("/history", s.handleHistory)

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message  string             `json:"message"`
		CropName string             `json:"crop_name"`
		Location *model.Coordinates `json:"location"`
		Language string             `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var loc model.Coordinates
	if req.Location != nil {
		loc = *req.Location
	}
	query := model.QueryRequest{Chat: &model.ChatQuery{
		Text:         req.Message,
		CropName:     req.CropName,
		Location:     loc,
		LanguageHint: req.Language,
	}}
	if err := query.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	result := s.client.Submit(r.Context(), query)
	s.record(r.Context(), model.ModalityChat, req.Message, req.Language, result)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDetectLanguage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusUnprocessableEntity, "text is required")
		return
	}

	lang, err := s.client.DetectLanguage(r.Context(), req.Text)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"language": lang})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read file")
		return
	}

	var loc model.Coordinates
	if v := r.FormValue("location"); v != "" {
		fmt.Sscanf(v, "%f,%f", &loc.Lat, &loc.Lng)
	}

	query := model.QueryRequest{Image: &model.ImageQuery{
		ImageBytes:   data,
		Filename:     header.Filename,
		Location:     loc,
		LanguageHint: r.FormValue("language"),
	}}
	if err := query.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	result := s.client.Submit(r.Context(), query)
	s.record(r.Context(), model.ModalityImage, header.Filename, r.FormValue("language"), result)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	var req agriapi.ForecastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.State == "" || req.District == "" || req.Crop == "" {
		writeError(w, http.StatusUnprocessableEntity, "state, district, and crop are required")
		return
	}
	if req.PriceType == "" {
		req.PriceType = model.PriceTypeModal
	}
	req.ForecastDays = forecast.ClampHorizon(req.ForecastDays)

	series, err := s.client.Forecast(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	if s.history != nil {
		if _, err := s.history.RecordForecast(r.Context(), req.State, req.District, req.Crop,
			req.PriceType, req.ForecastDays, *series); err != nil {
			zap.L().Warn("forecast history write failed", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, series)
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	taxonomy, err := s.client.Locations(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, taxonomy)
}

func (s *Server) handleReverseGeocode(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeError(w, http.StatusUnprocessableEntity, "lat and lon are required")
		return
	}

	place, err := s.client.ReverseGeocode(r.Context(), lat, lon)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, place)
}

func (s *Server) handleForecastExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sel := forecast.Selection{
		State:    q.Get("state"),
		District: q.Get("district"),
		Crop:     q.Get("crop"),
	}
	if !sel.Complete() {
		writeError(w, http.StatusUnprocessableEntity, "state, district, and crop are required")
		return
	}

	pt := model.PriceType(q.Get("price_type"))
	if pt == "" {
		pt = model.PriceTypeModal
	}
	days := forecast.DefaultHorizonDays
	if v := q.Get("forecast_days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			days = n
		}
	}

	series, err := s.client.Forecast(r.Context(), agriapi.ForecastRequest{
		State:        sel.State,
		District:     sel.District,
		Crop:         sel.Crop,
		PriceType:    pt,
		ForecastDays: forecast.ClampHorizon(days),
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", forecast.ExportFilename(sel, "csv")))
	if err := forecast.ExportCSV(w, series, sel, pt); err != nil {
		zap.L().Error("forecast export failed", zap.Error(err))
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history is not enabled")
		return
	}

	filter := store.QueryFilter{
		Modality: model.Modality(r.URL.Query().Get("modality")),
		Language: r.URL.Query().Get("language"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}

	records, err := s.history.ListQueries(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []model.QueryRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) record(ctx context.Context, modality model.Modality, query, language string, result model.QueryResult) {
	if s.history == nil {
		return
	}
	if _, err := s.history.RecordQuery(ctx, modality, query, language, result); err != nil {
		zap.L().Warn("query history write failed", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
