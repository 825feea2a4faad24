// Package geo acquires device coordinates once per view lifecycle.
package geo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/agri-agent/agriagent-cli/internal/model"
)

// Locator is the platform location capability. Implementations resolve the
// device position once; errors degrade to the sentinel at the Provider
// level, never to the caller.
type Locator interface {
	Locate(ctx context.Context) (model.Coordinates, error)
}

// Provider wraps a Locator into the one-shot acquisition contract: the
// first Acquire resolves the position (or the sentinel) and every later
// call returns the same value. There is no retry; a denied or failed
// acquisition stays the sentinel for the lifetime of the provider.
type Provider struct {
	locator Locator

	once    sync.Once
	coords  model.Coordinates
	warning string
}

// NewProvider creates a provider over the given capability. A nil locator
// models an unsupported platform: Acquire resolves immediately with the
// sentinel.
func NewProvider(locator Locator) *Provider {
	return &Provider{locator: locator}
}

// Acquire resolves device coordinates, or the `{0,0}` sentinel when the
// capability is absent, denied, or failing. It never returns an error;
// Warning reports why a sentinel was produced.
func (p *Provider) Acquire(ctx context.Context) model.Coordinates {
	p.once.Do(func() {
		if p.locator == nil {
			p.warning = "Location is not supported on this device. Using no location."
			zap.L().Warn("geolocation capability absent")
			return
		}

		coords, err := p.locator.Locate(ctx)
		if err != nil {
			p.warning = "Could not get your location. Using no location."
			zap.L().Warn("geolocation failed", zap.Error(err))
			return
		}
		p.coords = coords
	})
	return p.coords
}

// Warning returns the user-visible message for a failed acquisition, or ""
// when a real position was acquired. Only meaningful after Acquire.
func (p *Provider) Warning() string {
	return p.warning
}

// IPLocator resolves an approximate device position from an IP-geolocation
// endpoint (ip-api.com JSON shape).
type IPLocator struct {
	ProbeURL string
	HTTP     *http.Client
}

// NewIPLocator creates a locator against the given probe endpoint.
func NewIPLocator(probeURL string, timeout time.Duration) *IPLocator {
	return &IPLocator{
		ProbeURL: probeURL,
		HTTP:     &http.Client{Timeout: timeout},
	}
}

func (l *IPLocator) Locate(ctx context.Context) (model.Coordinates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.ProbeURL, nil)
	if err != nil {
		return model.Coordinates{}, eris.Wrap(err, "geo: create probe request")
	}

	resp, err := l.HTTP.Do(req)
	if err != nil {
		return model.Coordinates{}, eris.Wrap(err, "geo: probe request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Coordinates{}, eris.Wrap(err, "geo: read probe response")
	}
	if resp.StatusCode != http.StatusOK {
		return model.Coordinates{}, eris.Errorf("geo: probe returned status %d", resp.StatusCode)
	}

	var payload struct {
		Status string  `json:"status"`
		Lat    float64 `json:"lat"`
		Lon    float64 `json:"lon"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return model.Coordinates{}, eris.Wrap(err, "geo: unmarshal probe response")
	}
	if payload.Status != "" && payload.Status != "success" {
		return model.Coordinates{}, eris.Errorf("geo: probe status %q", payload.Status)
	}

	return model.Coordinates{Lat: payload.Lat, Lng: payload.Lon}, nil
}
