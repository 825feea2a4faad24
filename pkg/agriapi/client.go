// Package agriapi is the HTTP client for the AgriAgent advice backend.
package agriapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/agri-agent/agriagent-cli/internal/model"
	"github.com/agri-agent/agriagent-cli/internal/resilience"
	"github.com/agri-agent/agriagent-cli/internal/session"
)

const defaultBaseURL = "http://localhost:8000"

// Client performs calls against the advice backend.
type Client interface {
	// Submit dispatches a validated query through the endpoint matching its
	// modality and normalizes every outcome, transport failures included,
	// into a QueryResult. It never returns a raw transport error.
	Submit(ctx context.Context, req model.QueryRequest) model.QueryResult

	// DetectLanguage asks the backend to identify the language of text.
	DetectLanguage(ctx context.Context, text string) (string, error)

	// Forecast requests a price forecast for a state/district/crop tuple.
	Forecast(ctx context.Context, req ForecastRequest) (*model.ForecastSeries, error)

	// Locations fetches the state/district/crop selection taxonomy.
	Locations(ctx context.Context) (*model.LocationTaxonomy, error)

	// ReverseGeocode resolves coordinates to a district and state.
	ReverseGeocode(ctx context.Context, lat, lng float64) (*Place, error)
}

// ForecastRequest is the body for POST /forecast.
type ForecastRequest struct {
	State        string          `json:"state"`
	District     string          `json:"district"`
	Crop         string          `json:"crop"`
	PriceType    model.PriceType `json:"price_type"`
	ForecastDays int             `json:"forecast_days"`
}

// Place is the reverse-geocode result.
type Place struct {
	District string `json:"district"`
	State    string `json:"state"`
	Error    string `json:"error,omitempty"`
}

// APIError is a non-2xx backend response. Detail carries the backend's own
// message when the body included one.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("advice backend returned status %d", e.StatusCode)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default backend base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithSession attaches an authenticated session to every request.
func WithSession(s session.Session) Option {
	return func(c *httpClient) {
		c.sess = s
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	sess    session.Session
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates an advice backend client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 90 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// chatBody is the wire shape for POST /api/chat, shared by the chat and
// voice modalities (voice omits crop_name).
type chatBody struct {
	Message  string            `json:"message"`
	CropName string            `json:"crop_name,omitempty"`
	Location model.Coordinates `json:"location"`
	Language string            `json:"language"`
}

func (c *httpClient) Submit(ctx context.Context, req model.QueryRequest) model.QueryResult {
	if err := req.Validate(); err != nil {
		// Precondition failures are caught by the orchestrator before
		// Submit; this is a second gate so no malformed union ever
		// reaches the network.
		return model.ErrorResult(err.Error())
	}

	var (
		result *model.QueryResult
		err    error
	)
	switch req.Modality() {
	case model.ModalityChat:
		result, err = c.chat(ctx, chatBody{
			Message:  req.Chat.Text,
			CropName: req.Chat.CropName,
			Location: req.Chat.Location,
			Language: req.Chat.LanguageHint,
		})
	case model.ModalityVoice:
		result, err = c.chat(ctx, chatBody{
			Message:  req.Voice.Transcript,
			Location: req.Voice.Location,
			Language: req.Voice.LanguageHint,
		})
	case model.ModalityImage:
		result, err = c.upload(ctx, req.Image)
	}

	if err != nil {
		return model.ErrorResult(normalizeError(err))
	}
	return *result
}

func (c *httpClient) chat(ctx context.Context, body chatBody) (*model.QueryResult, error) {
	var result model.QueryResult
	if err := c.postJSON(ctx, "/api/chat", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *httpClient) upload(ctx context.Context, q *model.ImageQuery) (*model.QueryResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", q.Filename)
	if err != nil {
		return nil, eris.Wrap(err, "agriapi: create form file")
	}
	if _, err := part.Write(q.ImageBytes); err != nil {
		return nil, eris.Wrap(err, "agriapi: write image")
	}
	fields := map[string]string{
		"language": q.LanguageHint,
		"location": q.Location.String(),
		"date":     q.CapturedAt.Format("2006-01-02"),
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, eris.Wrapf(err, "agriapi: write field %s", name)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, eris.Wrap(err, "agriapi: close multipart writer")
	}

	respBody, err := c.do(ctx, http.MethodPost, "/upload", buf.Bytes(), writer.FormDataContentType())
	if err != nil {
		return nil, err
	}

	var result model.QueryResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "agriapi: unmarshal upload response")
	}
	return &result, nil
}

func (c *httpClient) DetectLanguage(ctx context.Context, text string) (string, error) {
	var resp struct {
		Language string `json:"language"`
	}
	body := map[string]string{"text": text}
	if err := c.postJSON(ctx, "/api/detect-language", body, &resp); err != nil {
		return "", err
	}
	return resp.Language, nil
}

func (c *httpClient) Forecast(ctx context.Context, req ForecastRequest) (*model.ForecastSeries, error) {
	var series model.ForecastSeries
	if err := c.postJSON(ctx, "/forecast", req, &series); err != nil {
		return nil, err
	}
	return &series, nil
}

func (c *httpClient) Locations(ctx context.Context) (*model.LocationTaxonomy, error) {
	respBody, err := c.do(ctx, http.MethodGet, "/forecast/locations", nil, "")
	if err != nil {
		return nil, err
	}
	var tax model.LocationTaxonomy
	if err := json.Unmarshal(respBody, &tax); err != nil {
		return nil, eris.Wrap(err, "agriapi: unmarshal taxonomy")
	}
	return &tax, nil
}

func (c *httpClient) ReverseGeocode(ctx context.Context, lat, lng float64) (*Place, error) {
	path := fmt.Sprintf("/forecast/reverse-geocode?lat=%s&lon=%s",
		url.QueryEscape(fmt.Sprintf("%g", lat)), url.QueryEscape(fmt.Sprintf("%g", lng)))

	respBody, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	var place Place
	if err := json.Unmarshal(respBody, &place); err != nil {
		return nil, eris.Wrap(err, "agriapi: unmarshal place")
	}
	if place.Error != "" {
		return nil, eris.Errorf("agriapi: reverse geocode: %s", place.Error)
	}
	return &place, nil
}

func (c *httpClient) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return eris.Wrapf(err, "agriapi: marshal %s request", path)
	}
	respBody, err := c.do(ctx, http.MethodPost, path, data, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrapf(err, "agriapi: unmarshal %s response", path)
	}
	return nil
}

// do issues one HTTP call with rate limiting and transient-failure retry,
// returning the response body on 2xx and an *APIError otherwise.
func (c *httpClient) do(ctx context.Context, method, path string, body []byte, contentType string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "agriapi: rate limit wait")
		}
	}

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, eris.Wrapf(err, "agriapi: create %s request", path)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if auth := c.sess.AuthorizationHeader(); auth != "" {
			req.Header.Set("Authorization", auth)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrapf(err, "agriapi: send %s request", path)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrapf(err, "agriapi: read %s response", path)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &APIError{StatusCode: resp.StatusCode, Detail: extractDetail(respBody)}
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(apiErr, resp.StatusCode)
			}
			return nil, apiErr
		}

		return respBody, nil
	})
}

// extractDetail pulls the backend's own error message out of an error body.
// FastAPI-style bodies carry it under "detail"; a bare "error" key is also
// accepted.
func extractDetail(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Detail != "" {
		return payload.Detail
	}
	return payload.Error
}

// normalizeError flattens any submission failure into the user-visible
// message stored in QueryResult.Error. Backend-provided detail wins over
// the generic transport string.
func normalizeError(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	if apiErr != nil {
		return fmt.Sprintf("The advice service returned an error (status %d). Please try again.", apiErr.StatusCode)
	}
	return "Unable to reach the advice service. Please check your connection and try again."
}
