package maps

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"GeoInfo-App/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNominatimReverseGeocode(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantCity    string
		wantCountry string
	}{
		{
			name:        "cityがあればcityを使う",
			body:        `{"address":{"city":"Kyoto","town":"X","country":"Japan"}}`,
			wantCity:    "Kyoto",
			wantCountry: "Japan",
		},
		{
			name:        "cityが無ければtown",
			body:        `{"address":{"town":"Hakone","village":"Y","country":"Japan"}}`,
			wantCity:    "Hakone",
			wantCountry: "Japan",
		},
		{
			name:        "townも無ければvillage",
			body:        `{"address":{"village":"Shirakawa","country":"Japan"}}`,
			wantCity:    "Shirakawa",
			wantCountry: "Japan",
		},
		{
			name:        "何も無ければUnknown",
			body:        `{"address":{}}`,
			wantCity:    model.UnknownCity,
			wantCountry: model.UnknownCountry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/reverse", r.URL.Path)
				assert.Equal(t, "json", r.URL.Query().Get("format"))
				assert.Equal(t, "35.0116", r.URL.Query().Get("lat"))
				assert.Equal(t, "135.7681", r.URL.Query().Get("lon"))
				assert.Equal(t, "geoinfo-test", r.Header.Get("User-Agent"))
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			g := NewNominatimGeocoder(server.URL, "geoinfo-test")
			addr, err := g.ReverseGeocode(context.Background(), model.LatLng{Lat: 35.0116, Lng: 135.7681})
			require.NoError(t, err)
			assert.Equal(t, tt.wantCity, addr.City)
			assert.Equal(t, tt.wantCountry, addr.Country)
		})
	}
}

func TestNominatimReverseGeocodeErrors(t *testing.T) {
	t.Run("エラーステータス", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		_, err := NewNominatimGeocoder(server.URL, "").ReverseGeocode(context.Background(), model.LatLng{Lat: 1, Lng: 2})
		assert.Error(t, err)
	})

	t.Run("海上などで住所が無い", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error":"Unable to geocode"}`))
		}))
		defer server.Close()

		_, err := NewNominatimGeocoder(server.URL, "").ReverseGeocode(context.Background(), model.LatLng{Lat: 0.1, Lng: -30})
		assert.Error(t, err)
	})
}
