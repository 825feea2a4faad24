package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCoordinates_IsZero(t *testing.T) {
	t.Parallel()

	assert.True(t, Coordinates{}.IsZero())
	assert.False(t, Coordinates{Lat: 12.9716, Lng: 77.5946}.IsZero())
	assert.False(t, Coordinates{Lat: 0, Lng: 77.5946}.IsZero())
}

func TestCoordinates_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Unknown", Coordinates{}.String())
	assert.Equal(t, "12.9716,77.5946", Coordinates{Lat: 12.9716, Lng: 77.5946}.String())
}

func TestQueryRequest_Modality(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  QueryRequest
		want Modality
	}{
		{"chat", QueryRequest{Chat: &ChatQuery{}}, ModalityChat},
		{"image", QueryRequest{Image: &ImageQuery{}}, ModalityImage},
		{"voice", QueryRequest{Voice: &VoiceQuery{}}, ModalityVoice},
		{"empty", QueryRequest{}, Modality("")},
		{"ambiguous", QueryRequest{Chat: &ChatQuery{}, Voice: &VoiceQuery{}}, Modality("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.req.Modality())
		})
	}
}

func TestQueryRequest_Validate(t *testing.T) {
	t.Parallel()

	loc := Coordinates{Lat: 30.9, Lng: 75.85}

	tests := []struct {
		name    string
		req     QueryRequest
		wantErr string
	}{
		{
			name: "chat_valid",
			req:  QueryRequest{Chat: &ChatQuery{Text: "leaf spots on my wheat", CropName: "Wheat", Location: loc, LanguageHint: "en"}},
		},
		{
			name:    "chat_missing_message",
			req:     QueryRequest{Chat: &ChatQuery{Text: "   ", CropName: "Wheat"}},
			wantErr: "message is required",
		},
		{
			name:    "chat_missing_crop",
			req:     QueryRequest{Chat: &ChatQuery{Text: "hello", CropName: ""}},
			wantErr: "crop name is required",
		},
		{
			name: "image_valid",
			req:  QueryRequest{Image: &ImageQuery{ImageBytes: []byte{0xff, 0xd8}, Filename: "leaf.jpg", LanguageHint: "hi", CapturedAt: time.Now()}},
		},
		{
			name:    "image_missing_bytes",
			req:     QueryRequest{Image: &ImageQuery{Filename: "leaf.jpg"}},
			wantErr: "image data is required",
		},
		{
			name: "voice_valid",
			req:  QueryRequest{Voice: &VoiceQuery{Transcript: "when should I irrigate", Location: loc}},
		},
		{
			name:    "voice_missing_transcript",
			req:     QueryRequest{Voice: &VoiceQuery{Transcript: ""}},
			wantErr: "transcript is required",
		},
		{
			name:    "empty_union",
			req:     QueryRequest{},
			wantErr: "exactly one modality",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestQueryResult_IsError(t *testing.T) {
	t.Parallel()

	assert.True(t, ErrorResult("Service unavailable").IsError())
	assert.False(t, QueryResult{Response: "ok"}.IsError())
	assert.False(t, QueryResult{}.IsError()) // empty response is not an error
}

func TestForecastPoint_Price(t *testing.T) {
	t.Parallel()

	p := ForecastPoint{MinPrice: 1800, ModalPrice: 2000, MaxPrice: 2200}

	assert.Equal(t, 1800.0, p.Price(PriceTypeMin))
	assert.Equal(t, 2000.0, p.Price(PriceTypeModal))
	assert.Equal(t, 2200.0, p.Price(PriceTypeMax))
	assert.Equal(t, 2000.0, p.Price(PriceType("bogus")))
}

func TestLocationTaxonomy_Lookups(t *testing.T) {
	t.Parallel()

	tax := LocationTaxonomy{
		States:    []string{"Punjab"},
		Districts: map[string][]string{"Punjab": {"Ludhiana", "Amritsar"}},
		Crops: map[string]map[string][]string{
			"Punjab": {"Ludhiana": {"Wheat", "Rice"}},
		},
	}

	assert.Equal(t, []string{"Ludhiana", "Amritsar"}, tax.DistrictsFor("Punjab"))
	assert.Nil(t, tax.DistrictsFor("Kerala"))
	assert.Equal(t, []string{"Wheat", "Rice"}, tax.CropsFor("Punjab", "Ludhiana"))
	assert.Nil(t, tax.CropsFor("Punjab", "Patiala"))
	assert.Nil(t, LocationTaxonomy{}.DistrictsFor("Punjab"))
	assert.Nil(t, LocationTaxonomy{}.CropsFor("Punjab", "Ludhiana"))
}
