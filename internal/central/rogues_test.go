package central

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/central-rogues/internal/models"
)

func newTestClient(server *httptest.Server, opts ...ClientOption) *Client {
	opts = append([]ClientOption{
		WithHTTPClient(server.Client()),
		WithLogger(createTestLogger()),
		WithRateLimit(1000),
	}, opts...)
	return NewClient(server.URL, opts...)
}

func TestFetchRogues_FollowsPagination(t *testing.T) {
	var (
		mu      sync.Mutex
		offsets []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, RoguesPath, r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "cust-1", r.URL.Query().Get("cust_id"))

		offset := r.URL.Query().Get("offset")
		mu.Lock()
		offsets = append(offsets, offset)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch offset {
		case "0":
			fmt.Fprint(w, `{"count":1,"offset":0,"total":2,"rogue_aps":[{"id":"aa:aa:aa:aa:aa:01","ssid":"First","last_det_device_name":"AP-1"}]}`)
		case "1":
			fmt.Fprint(w, `{"count":1,"offset":1,"total":2,"rogue_aps":[{"id":"aa:aa:aa:aa:aa:02","ssid":"Second","last_det_device":"CNXXXX"}]}`)
		default:
			t.Errorf("unexpected offset %s", offset)
			fmt.Fprint(w, `{"rogue_aps":[]}`)
		}
	}))
	defer server.Close()

	client := newTestClient(server, WithPageLimit(1))

	records, err := client.FetchRogues(context.Background(), "tok", "cust-1")

	require.NoError(t, err)
	require.Len(t, records, 2)
	mu.Lock()
	assert.Equal(t, []string{"0", "1"}, offsets)
	mu.Unlock()
	assert.Equal(t, "First", records[0].SSID)
	assert.Equal(t, "AP-1", records[0].APDetecting)
	assert.Equal(t, "Second", records[1].SSID)
	assert.Equal(t, "CNXXXX", records[1].APDetecting)
	assert.Equal(t, models.ListTypeRogue, records[1].ListType)
}

func TestFetchRogues_EmptyListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"count":0,"offset":0,"total":0,"rogue_aps":[]}`)
	}))
	defer server.Close()

	records, err := newTestClient(server).FetchRogues(context.Background(), "tok", "")

	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestFetchRogues_ShortPageWithoutTotalStops(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"rogue_aps":[{"id":"01","ssid":"A"}]}`)
	}))
	defer server.Close()

	records, err := newTestClient(server, WithPageLimit(10)).FetchRogues(context.Background(), "tok", "")

	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchRogues_SkipsMalformedRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total":5,"rogue_aps":[
			{"id":"01","ssid":"Good","first_seen":"2024-05-01T10:00:00.000Z","signal":-61},
			{"id":"02","ssid":null},
			{"id":"","ssid":"NoBSSID"},
			{"id":"04","ssid":""},
			{"id":"05","ssid":42}
		]}`)
	}))
	defer server.Close()

	records, err := newTestClient(server).FetchRogues(context.Background(), "tok", "")

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "01", records[0].BSSID)
	assert.Equal(t, -61, records[0].Signal)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), records[0].FirstSeen)
	assert.Equal(t, "04", records[1].BSSID)
	assert.Equal(t, "", records[1].SSID, "hidden network is reported")
}

func TestFetchRogues_MissingSSIDSkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total":3,"rogue_aps":[
			{"id":"01"},
			{"id":42,"ssid":"NumericBSSID"},
			{"id":"03","ssid":"Kept"}
		]}`)
	}))
	defer server.Close()

	records, err := newTestClient(server).FetchRogues(context.Background(), "tok", "")

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "03", records[0].BSSID)
}

func TestFetchRogues_BadOptionalFieldsKeepRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total":4,"rogue_aps":[
			{"id":"01","ssid":"EvilTwin","signal":"-70"},
			{"id":"02","ssid":"EvilTwin","signal":-70.5},
			{"id":"03","ssid":"EvilTwin","signal":{"dbm":-70},"classification":7,"name":["x"],"last_det_device_name":null,"last_det_device":"CN01"},
			{"id":"04","ssid":"EvilTwin","first_seen":1714557600,"encryption":true}
		]}`)
	}))
	defer server.Close()

	records, err := newTestClient(server).FetchRogues(context.Background(), "tok", "")

	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, -70, records[0].Signal)
	assert.Equal(t, -71, records[1].Signal, "fractions round half away from zero")

	assert.Equal(t, 0, records[2].Signal)
	assert.Equal(t, "7", records[2].Classification)
	assert.Empty(t, records[2].Name)
	assert.Equal(t, "CN01", records[2].APDetecting)

	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), records[3].FirstSeen)
	assert.Empty(t, records[3].Encryption)
	for _, record := range records {
		assert.Equal(t, "EvilTwin", record.SSID)
	}
}

func TestFetchSuspects_UsesSuspectListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, SuspectsPath, r.URL.Path)
		fmt.Fprint(w, `{"total":1,"suspect_aps":[{"id":"01","ssid":"Maybe"}]}`)
	}))
	defer server.Close()

	records, err := newTestClient(server).FetchSuspects(context.Background(), "tok", "")

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.ListTypeSuspect, records[0].ListType)
}

func TestFetchRogues_ServerErrorIsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "upstream unavailable")
	}))
	defer server.Close()

	_, err := newTestClient(server).FetchRogues(context.Background(), "tok", "")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "upstream unavailable", apiErr.Body)
	assert.Equal(t, RoguesPath, apiErr.Endpoint)
}

func TestFetchRogues_UnreachableHostIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := newTestClient(server)
	server.Close()

	_, err := client.FetchRogues(context.Background(), "tok", "")

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, RoguesPath, transportErr.Endpoint)
}

func TestFetchRogues_NoRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(server).FetchRogues(context.Background(), "tok", "")

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchRogues_RetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"total":1,"rogue_aps":[{"id":"01","ssid":"A"}]}`)
	}))
	defer server.Close()

	client := newTestClient(server, WithRetry(2, time.Millisecond))

	records, err := client.FetchRogues(context.Background(), "tok", "")

	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchRogues_DoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := newTestClient(server, WithRetry(3, time.Millisecond))

	_, err := client.FetchRogues(context.Background(), "tok", "")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"empty", "", time.Time{}},
		{"rfc3339", "2024-05-01T10:00:00Z", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"millis", "2024-05-01T10:00:00.250Z", time.Date(2024, 5, 1, 10, 0, 0, 250e6, time.UTC)},
		{"space separated", "2024-05-01 10:00:00", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"epoch seconds", "1714557600", time.Unix(1714557600, 0).UTC()},
		{"epoch millis", "1714557600000", time.UnixMilli(1714557600000).UTC()},
		{"garbage", "yesterday", time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(parseTimestamp(tt.input)), "got %v", parseTimestamp(tt.input))
		})
	}
}
