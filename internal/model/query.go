package model

import (
	"fmt"
	"strings"
	"time"
)

// Modality identifies one of the three input channels.
type Modality string

const (
	ModalityChat  Modality = "chat"
	ModalityImage Modality = "image"
	ModalityVoice Modality = "voice"
)

// Coordinates is a lat/lng pair. The zero value is the sentinel meaning
// "no location available"; consumers must not treat it as a real position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether c is the no-location sentinel.
func (c Coordinates) IsZero() bool {
	return c.Lat == 0 && c.Lng == 0
}

// String renders the "lat,lng" form the upload endpoint expects, or
// "Unknown" for the sentinel.
func (c Coordinates) String() string {
	if c.IsZero() {
		return "Unknown"
	}
	return fmt.Sprintf("%g,%g", c.Lat, c.Lng)
}

// ChatQuery is a typed question about a named crop.
type ChatQuery struct {
	Text         string      `json:"text"`
	CropName     string      `json:"crop_name"`
	Location     Coordinates `json:"location"`
	LanguageHint string      `json:"language"`
}

// ImageQuery is an uploaded crop image for disease analysis.
type ImageQuery struct {
	ImageBytes   []byte      `json:"-"`
	Filename     string      `json:"filename"`
	LanguageHint string      `json:"language"`
	Location     Coordinates `json:"location"`
	CapturedAt   time.Time   `json:"captured_at"`
}

// VoiceQuery is a recognized spoken transcript.
type VoiceQuery struct {
	Transcript   string      `json:"transcript"`
	Location     Coordinates `json:"location"`
	LanguageHint string      `json:"language"`
}

// QueryRequest is the tagged union of the three modality request shapes.
// Exactly one variant is populated per submission.
type QueryRequest struct {
	Chat  *ChatQuery  `json:"chat,omitempty"`
	Image *ImageQuery `json:"image,omitempty"`
	Voice *VoiceQuery `json:"voice,omitempty"`
}

// Modality returns the populated variant's modality, or "" when the union
// is empty or ambiguous.
func (r QueryRequest) Modality() Modality {
	var set []Modality
	if r.Chat != nil {
		set = append(set, ModalityChat)
	}
	if r.Image != nil {
		set = append(set, ModalityImage)
	}
	if r.Voice != nil {
		set = append(set, ModalityVoice)
	}
	if len(set) != 1 {
		return ""
	}
	return set[0]
}

// Validate rejects a request whose required fields are empty or whose union
// is malformed. A failed Validate must never reach the network.
func (r QueryRequest) Validate() error {
	switch r.Modality() {
	case ModalityChat:
		if strings.TrimSpace(r.Chat.Text) == "" {
			return fmt.Errorf("chat query: message is required")
		}
		if strings.TrimSpace(r.Chat.CropName) == "" {
			return fmt.Errorf("chat query: crop name is required")
		}
	case ModalityImage:
		if len(r.Image.ImageBytes) == 0 {
			return fmt.Errorf("image query: image data is required")
		}
	case ModalityVoice:
		if strings.TrimSpace(r.Voice.Transcript) == "" {
			return fmt.Errorf("voice query: transcript is required")
		}
	default:
		return fmt.Errorf("query request: exactly one modality must be set")
	}
	return nil
}

// WeatherBlock is the weather context attached to a result.
type WeatherBlock struct {
	Temperature float64  `json:"temperature"`
	Humidity    float64  `json:"humidity"`
	Description string   `json:"description"`
	WindSpeed   *float64 `json:"wind_speed,omitempty"`
}

// MarketBlock is the mandi price context attached to a result.
type MarketBlock struct {
	Crop            string  `json:"crop"`
	PricePerQuintal float64 `json:"price_per_quintal"`
	Market          string  `json:"market"`
	Trend           string  `json:"trend"`
}

// QueryResult is the normalized, modality-agnostic result shape every
// submission path converges to. When Error is set all other fields are
// suppressed at render time. When Error is empty, Response is expected to
// be present (an empty string on malformed backend output is not itself an
// error).
type QueryResult struct {
	Query           string        `json:"query,omitempty"`
	Response        string        `json:"response"`
	Language        string        `json:"lang,omitempty"`
	Confidence      *float64      `json:"confidence,omitempty"`
	Recommendations []string      `json:"recommendations,omitempty"`
	WeatherData     *WeatherBlock `json:"weather_data,omitempty"`
	MarketData      *MarketBlock  `json:"market_data,omitempty"`
	Sources         []string      `json:"sources,omitempty"`
	AudioResponse   string        `json:"audio_response,omitempty"`
	Error           string        `json:"error,omitempty"`
}

// IsError reports whether the result is a terminal error result.
func (r QueryResult) IsError() bool {
	return r.Error != ""
}

// ErrorResult wraps a message into a terminal error result.
func ErrorResult(msg string) QueryResult {
	return QueryResult{Error: msg}
}
