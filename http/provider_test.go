package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/equinegpt/racecal"
	rchttp "github.com/equinegpt/racecal/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeetingsClient_Meetings(t *testing.T) {
	t.Parallel()

	date := racecal.Date(2025, time.November, 14)

	t.Run("sends api key and D MMM YYYY date", func(t *testing.T) {
		t.Parallel()

		var apiKey, meetingDate string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey = r.URL.Query().Get("apiKey")
			meetingDate = r.URL.Query().Get("meetingDate")
			_, _ = w.Write([]byte(`{"payLoad": []}`))
		}))
		defer server.Close()

		client := rchttp.NewMeetingsClient("secret", rchttp.WithBaseURL(server.URL))
		_, err := client.Meetings(context.Background(), date)

		require.NoError(t, err)
		assert.Equal(t, "secret", apiKey)
		assert.Equal(t, "14 Nov 2025", meetingDate)
	})

	t.Run("decodes payload with numeric and string ids", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"statusCode":200,"payLoad":[
				{"meetingId": 231145, "track": {"name": "Ballarat", "state": "VIC"}},
				{"meetingId": "231146", "track": {"name": "Randwick Kensington", "state": "nsw"}},
				{"meetingId": 1, "track": {"name": "Ellerslie", "state": "NZ"}},
				{"meetingId": 2, "track": {"name": "", "state": "VIC"}}
			]}`))
		}))
		defer server.Close()

		client := rchttp.NewMeetingsClient("k", rchttp.WithBaseURL(server.URL))
		meetings, err := client.Meetings(context.Background(), date)

		require.NoError(t, err)
		require.Len(t, meetings, 2)
		assert.Equal(t, racecal.ProviderMeeting{Date: date, Region: racecal.VIC, RawName: "Ballarat", ProviderID: "231145"}, meetings[0])
		assert.Equal(t, racecal.ProviderMeeting{Date: date, Region: racecal.NSW, RawName: "Randwick Kensington", ProviderID: "231146"}, meetings[1])
	})

	t.Run("accepts lower case payload key", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"payload":[{"meetingId": 7, "track": {"name": "Ascot", "state": "WA"}}]}`))
		}))
		defer server.Close()

		client := rchttp.NewMeetingsClient("k", rchttp.WithBaseURL(server.URL))
		meetings, err := client.Meetings(context.Background(), date)

		require.NoError(t, err)
		require.Len(t, meetings, 1)
		assert.Equal(t, "7", meetings[0].ProviderID)
	})

	t.Run("treats non-200 as no meetings", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		client := rchttp.NewMeetingsClient("k", rchttp.WithBaseURL(server.URL))
		meetings, err := client.Meetings(context.Background(), date)

		require.NoError(t, err)
		assert.Empty(t, meetings)
	})

	t.Run("treats empty body as no meetings", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := rchttp.NewMeetingsClient("k", rchttp.WithBaseURL(server.URL))
		meetings, err := client.Meetings(context.Background(), date)

		require.NoError(t, err)
		assert.Empty(t, meetings)
	})

	t.Run("returns error on malformed json", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"payLoad": [`))
		}))
		defer server.Close()

		client := rchttp.NewMeetingsClient("k", rchttp.WithBaseURL(server.URL))
		_, err := client.Meetings(context.Background(), date)

		require.Error(t, err)
	})

	t.Run("requires api key", func(t *testing.T) {
		t.Parallel()

		client := rchttp.NewMeetingsClient("")
		_, err := client.Meetings(context.Background(), date)

		require.Error(t, err)
		assert.Equal(t, racecal.EINVALID, racecal.ErrorCode(err))
	})
}
