package agriapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agri-agent/agriagent-cli/internal/model"
	"github.com/agri-agent/agriagent-cli/internal/resilience"
	"github.com/agri-agent/agriagent-cli/internal/session"
)

// noRetry keeps transient-status tests to a single attempt.
var noRetry = resilience.RetryConfig{MaxAttempts: 1}

func TestSubmit_Chat(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/chat", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"response": "Water in the early morning.",
			"lang": "en",
			"confidence": 0.92,
			"recommendations": ["Mulch the beds"],
			"sources": ["ICAR advisory"]
		}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(noRetry))
	result := c.Submit(context.Background(), model.QueryRequest{
		Chat: &model.ChatQuery{
			Text:         "How often should I water?",
			CropName:     "Tomato",
			Location:     model.Coordinates{Lat: 12.97, Lng: 77.59},
			LanguageHint: "en",
		},
	})

	require.Empty(t, result.Error)
	assert.NotEmpty(t, result.Response)
	assert.Equal(t, []string{"Mulch the beds"}, result.Recommendations)
	require.NotNil(t, result.Confidence)
	assert.InDelta(t, 0.92, *result.Confidence, 0.001)

	assert.Equal(t, "How often should I water?", gotBody["message"])
	assert.Equal(t, "Tomato", gotBody["crop_name"])
	assert.Equal(t, "en", gotBody["language"])
	loc := gotBody["location"].(map[string]any)
	assert.InDelta(t, 12.97, loc["lat"].(float64), 0.001)
}

func TestSubmit_VoiceOmitsCropName(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		io.WriteString(w, `{"response": "ok"}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(noRetry))
	result := c.Submit(context.Background(), model.QueryRequest{
		Voice: &model.VoiceQuery{Transcript: "when to harvest wheat", LanguageHint: "pa"},
	})

	require.Empty(t, result.Error)
	assert.Equal(t, "when to harvest wheat", gotBody["message"])
	_, hasCrop := gotBody["crop_name"]
	assert.False(t, hasCrop)
}

func TestSubmit_ImageMultipart(t *testing.T) {
	captured := time.Date(2025, 6, 14, 10, 30, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "hi", r.FormValue("language"))
		assert.Equal(t, "29.0588,76.0856", r.FormValue("location"))
		assert.Equal(t, "2025-06-14", r.FormValue("date"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "leaf.jpg", header.Filename)
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xff, 0xd8, 0xff}, data)

		io.WriteString(w, `{"response": "Early blight detected", "confidence": 0.87}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(noRetry))
	result := c.Submit(context.Background(), model.QueryRequest{
		Image: &model.ImageQuery{
			ImageBytes:   []byte{0xff, 0xd8, 0xff},
			Filename:     "leaf.jpg",
			LanguageHint: "hi",
			Location:     model.Coordinates{Lat: 29.0588, Lng: 76.0856},
			CapturedAt:   captured,
		},
	})

	require.Empty(t, result.Error)
	assert.Equal(t, "Early blight detected", result.Response)
}

func TestSubmit_PreconditionFailureMakesNoNetworkCall(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		io.WriteString(w, `{"response": "ok"}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(noRetry))

	tests := []struct {
		name string
		req  model.QueryRequest
	}{
		{"empty_union", model.QueryRequest{}},
		{"chat_empty_text", model.QueryRequest{Chat: &model.ChatQuery{CropName: "Rice"}}},
		{"chat_empty_crop", model.QueryRequest{Chat: &model.ChatQuery{Text: "hi"}}},
		{"image_no_bytes", model.QueryRequest{Image: &model.ImageQuery{Filename: "x.jpg"}}},
		{"voice_empty_transcript", model.QueryRequest{Voice: &model.VoiceQuery{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Submit(context.Background(), tt.req)
			assert.True(t, result.IsError())
		})
	}

	assert.Equal(t, int64(0), calls.Load())
}

func TestSubmit_BackendDetailPassthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"detail": "Service unavailable"}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(noRetry))
	result := c.Submit(context.Background(), model.QueryRequest{
		Chat: &model.ChatQuery{Text: "hi", CropName: "Rice", LanguageHint: "en"},
	})

	require.True(t, result.IsError())
	assert.Contains(t, result.Error, "Service unavailable")
}

func TestSubmit_GenericMessageWithoutDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, `upstream exploded`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(noRetry))
	result := c.Submit(context.Background(), model.QueryRequest{
		Chat: &model.ChatQuery{Text: "hi", CropName: "Rice", LanguageHint: "en"},
	})

	require.True(t, result.IsError())
	assert.Contains(t, result.Error, "status 502")
}

func TestSubmit_NetworkErrorNormalized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused

	c := NewClient(WithBaseURL(srv.URL), WithRetry(noRetry))
	result := c.Submit(context.Background(), model.QueryRequest{
		Chat: &model.ChatQuery{Text: "hi", CropName: "Rice", LanguageHint: "en"},
	})

	require.True(t, result.IsError())
	assert.Contains(t, result.Error, "Unable to reach the advice service")
}

func TestSubmit_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"response": "ok"}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(resilience.RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
	}))
	result := c.Submit(context.Background(), model.QueryRequest{
		Chat: &model.ChatQuery{Text: "hi", CropName: "Rice", LanguageHint: "en"},
	})

	assert.Empty(t, result.Error)
	assert.Equal(t, int64(2), calls.Load())
}

func TestDetectLanguage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/detect-language", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "गेहूं कब बोना चाहिए", body["text"])
		io.WriteString(w, `{"language": "hi"}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(noRetry))
	lang, err := c.DetectLanguage(context.Background(), "गेहूं कब बोना चाहिए")
	require.NoError(t, err)
	assert.Equal(t, "hi", lang)
}

func TestForecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/forecast", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Punjab", body["state"])
		assert.Equal(t, "Modal_price", body["price_type"])
		assert.Equal(t, float64(30), body["forecast_days"])

		io.WriteString(w, `{
			"historical_data": [{"date": "2025-05-01", "min_price": 1800, "modal_price": 2000, "max_price": 2200}],
			"forecast_data": [{"date": "2025-05-02", "min_price": 1810, "modal_price": 2010, "max_price": 2210, "confidence_upper": 2100, "confidence_lower": 1920}],
			"metrics": {"trend": "rising", "avg_price": 2005.0, "volatility": 12.5, "mape": 4.2, "data_points": 1}
		}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(noRetry))
	series, err := c.Forecast(context.Background(), ForecastRequest{
		State:        "Punjab",
		District:     "Ludhiana",
		Crop:         "Wheat",
		PriceType:    model.PriceTypeModal,
		ForecastDays: 30,
	})
	require.NoError(t, err)

	require.Len(t, series.Historical, 1)
	require.Len(t, series.Forecast, 1)
	assert.InDelta(t, 2100, series.Forecast[0].ConfidenceUpper, 0.001)
	assert.Equal(t, "rising", series.Metrics.Trend)
	assert.Equal(t, 1, series.Metrics.DataPoints)
}

func TestForecast_BackendDetailError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"detail": "No data found for crop 'Wheat'"}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(noRetry))
	_, err := c.Forecast(context.Background(), ForecastRequest{State: "Punjab", District: "X", Crop: "Wheat"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No data found for crop 'Wheat'")
}

func TestLocations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/forecast/locations", r.URL.Path)
		io.WriteString(w, `{
			"states": ["Punjab"],
			"districts": {"Punjab": ["Ludhiana"]},
			"crops": {"Punjab": {"Ludhiana": ["Wheat"]}}
		}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(noRetry))
	tax, err := c.Locations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Punjab"}, tax.States)
	assert.Equal(t, []string{"Wheat"}, tax.CropsFor("Punjab", "Ludhiana"))
}

func TestReverseGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/forecast/reverse-geocode", r.URL.Path)
		assert.Equal(t, "30.9", r.URL.Query().Get("lat"))
		assert.Equal(t, "75.85", r.URL.Query().Get("lon"))
		io.WriteString(w, `{"district": "Ludhiana", "state": "Punjab"}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(noRetry))
	place, err := c.ReverseGeocode(context.Background(), 30.9, 75.85)
	require.NoError(t, err)
	assert.Equal(t, "Ludhiana", place.District)
	assert.Equal(t, "Punjab", place.State)
}

func TestSessionHeaderAttached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		io.WriteString(w, `{"language": "en"}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithSession(session.Session{Token: "tok-1"}), WithRetry(noRetry))
	_, err := c.DetectLanguage(context.Background(), "hello")
	require.NoError(t, err)
}
