package credential

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BioHazard786/Warpmeet/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchSendsRoomAndUID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getToken", r.URL.Path)
		assert.Equal(t, "abcd12", r.URL.Query().Get("channelName"))
		assert.Equal(t, "4242", r.URL.Query().Get("uid"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token":"T"}`))
	}))
	defer srv.Close()

	token, err := NewClient(srv.URL+"/").Fetch(context.Background(), "abcd12", 4242)

	require.NoError(t, err)
	assert.Equal(t, "T", token)
}

func TestFetchFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>"))
		}},
		{"empty token", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"token":""}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewClient(srv.URL).Fetch(context.Background(), "abcd12", 1)

			assert.ErrorIs(t, err, domain.ErrCredential)
		})
	}
}

func TestFetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Fetch(context.Background(), "abcd12", 1)

	assert.ErrorIs(t, err, domain.ErrCredential)
}
