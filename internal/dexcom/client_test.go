package dexcom

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
	}{
		{
			name:     "valid timestamp",
			input:    "Date(1705887600000)",
			expected: 1705887600000,
		},
		{
			name:     "another valid timestamp",
			input:    "Date(1234567890123)",
			expected: 1234567890123,
		},
		{
			name:     "invalid format - no Date wrapper",
			input:    "1705887600000",
			expected: 0,
		},
		{
			name:     "invalid format - empty",
			input:    "",
			expected: 0,
		},
		{
			name:     "invalid format - malformed",
			input:    "Date(abc)",
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseTimestamp(tt.input)
			if result != tt.expected {
				t.Errorf("ParseTimestamp(%q) = %d, want %d", tt.input, result, tt.expected)
			}
		})
	}
}

// fakeShare is a minimal Dexcom Share server for tests.
type fakeShare struct {
	mux          *http.ServeMux
	logins       atomic.Int32
	fetches      atomic.Int32
	failFetches  int32 // first N fetches return 500
	failAllAuth  bool
	readingsJSON string
}

func newFakeShare(t *testing.T) (*fakeShare, *httptest.Server) {
	f := &fakeShare{
		mux:          http.NewServeMux(),
		readingsJSON: `[{"WT":"Date(1705887600000)","Value":120,"Trend":"Flat"}]`,
	}
	f.mux.HandleFunc("/General/AuthenticatePublisherAccount", func(w http.ResponseWriter, r *http.Request) {
		if f.failAllAuth {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode("account-123")
	})
	f.mux.HandleFunc("/General/LoginPublisherAccountById", func(w http.ResponseWriter, r *http.Request) {
		if f.failAllAuth {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		f.logins.Add(1)
		json.NewEncoder(w).Encode("session-abc")
	})
	f.mux.HandleFunc("/Publisher/ReadPublisherLatestGlucoseValues", func(w http.ResponseWriter, r *http.Request) {
		n := f.fetches.Add(1)
		if n <= atomic.LoadInt32(&f.failFetches) {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(f.readingsJSON))
	})

	server := httptest.NewServer(f.mux)
	t.Cleanup(server.Close)
	return f, server
}

func newTestClient(server *httptest.Server) *Client {
	c := NewClient("user", "pass")
	c.BaseURL = server.URL
	return c
}

func TestAuthenticate(t *testing.T) {
	_, server := newFakeShare(t)
	client := newTestClient(server)

	require.False(t, client.IsAuthenticated())
	err := client.Authenticate(context.Background())
	require.NoError(t, err)

	assert.True(t, client.IsAuthenticated())
	assert.Equal(t, "account-123", client.AccountID())
}

func TestAuthenticateFailure(t *testing.T) {
	f, server := newFakeShare(t)
	f.failAllAuth = true
	client := newTestClient(server)

	err := client.Authenticate(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.False(t, client.IsAuthenticated())
}

func TestFetchReadings(t *testing.T) {
	_, server := newFakeShare(t)
	client := newTestClient(server)

	readings, err := client.FetchReadings(context.Background(), 2, 30)
	require.NoError(t, err)

	require.Len(t, readings, 1)
	assert.Equal(t, 120, readings[0].Value)
	assert.Equal(t, "Flat", readings[0].Trend)
}

func TestFetchReadingsReauthenticatesOnce(t *testing.T) {
	f, server := newFakeShare(t)
	f.failFetches = 1
	client := newTestClient(server)

	readings, err := client.FetchReadings(context.Background(), 2, 30)
	require.NoError(t, err)

	assert.Len(t, readings, 1)
	// Initial login plus one re-login after the failed fetch.
	assert.Equal(t, int32(2), f.logins.Load())
	assert.Equal(t, int32(2), f.fetches.Load())
}

func TestFetchReadingsSecondFailureAborts(t *testing.T) {
	f, server := newFakeShare(t)
	f.failFetches = 10
	client := newTestClient(server)

	_, err := client.FetchReadings(context.Background(), 2, 30)
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	// Exactly one retry: two fetch attempts total.
	assert.Equal(t, int32(2), f.fetches.Load())
}
