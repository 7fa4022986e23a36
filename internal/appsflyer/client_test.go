package appsflyer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pausee/internal/engine"
)

const reportCSV = "Attributed Touch Type,Install Time,Media Source,Campaign,Campaign ID,Country Code\n" +
	"click,2024-05-01 11:40:00,googleadwords_int,Brand,111,IL\n" +
	"click,2024-05-01 11:41:00,googleadwords_int,\"Generic, broad\",222,IL\n" +
	"click,2024-05-01 11:42:00,googleadwords_int,Brand,111,US\n"

func newTestClient(url string, retries int) *Client {
	c := New(Options{
		BaseURL:       url,
		APIToken:      "secret",
		MediaSource:   "googleadwords_int",
		Timeout:       time.Second,
		Retries:       retries,
		RetryInterval: time.Millisecond,
	})
	c.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	return c
}

func TestFetchInstalls(t *testing.T) {
	jerusalem, err := time.LoadLocation("Asia/Jerusalem")
	require.NoError(t, err)

	var gotReq *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(reportCSV))
	}))
	defer srv.Close()

	rows, err := newTestClient(srv.URL, 0).FetchInstalls(context.Background(), "com.app", jerusalem, 30*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, []engine.InstallRow{
		{CampaignID: "111", CampaignName: "Brand"},
		{CampaignID: "222", CampaignName: "Generic, broad"},
		{CampaignID: "111", CampaignName: "Brand"},
	}, rows)

	require.NotNil(t, gotReq)
	assert.Equal(t, "/api/raw-data/export/app/com.app/installs_report/v5", gotReq.URL.Path)
	assert.Equal(t, "Bearer secret", gotReq.Header.Get("Authorization"))
	q := gotReq.URL.Query()
	// 09:00 UTC is 12:00 in Jerusalem (UTC+3 in May).
	assert.Equal(t, "2024-05-01 11:30", q.Get("from"))
	assert.Equal(t, "2024-05-01 12:00", q.Get("to"))
	assert.Equal(t, "Asia/Jerusalem", q.Get("timezone"))
	assert.Equal(t, "googleadwords_int", q.Get("media_source"))
	assert.Equal(t, "standard", q.Get("category"))
}

func TestFetchInstalls_Retries(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		retries   int
		wantCalls int32
		wantErr   bool
	}{
		{"recovers after server errors", []int{500, 503, 200}, 3, 3, false},
		{"gives up after retries", []int{500, 500, 500, 500}, 2, 3, true},
		{"rate limit retried", []int{429, 200}, 1, 2, false},
		{"not found is permanent", []int{404, 200}, 3, 1, true},
		{"unauthorized is permanent", []int{401, 200}, 3, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				status := tt.statuses[min(int(n)-1, len(tt.statuses)-1)]
				if status != http.StatusOK {
					http.Error(w, "nope", status)
					return
				}
				_, _ = w.Write([]byte(reportCSV))
			}))
			defer srv.Close()

			rows, err := newTestClient(srv.URL, tt.retries).FetchInstalls(context.Background(), "id1", time.UTC, time.Hour)
			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantErr {
				require.Error(t, err)
				var se *StatusError
				assert.ErrorAs(t, err, &se)
				return
			}
			require.NoError(t, err)
			assert.Len(t, rows, 3)
		})
	}
}

func TestParseInstalls(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    []engine.InstallRow
		wantErr string
	}{
		{name: "empty body", body: "", want: nil},
		{name: "header only", body: "Campaign,Campaign ID\n", want: nil},
		{
			name: "bom and short rows",
			body: "\ufeffCampaign ID,Campaign\n7,Seven\n8\n",
			want: []engine.InstallRow{{CampaignID: "7", CampaignName: "Seven"}, {CampaignID: "8"}},
		},
		{name: "missing id column", body: "Campaign\nBrand\n", wantErr: "Campaign ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInstalls(strings.NewReader(tt.body))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
