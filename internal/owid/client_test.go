package owid

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rewired-gh/covidboard/internal/models"
)

func testClient(url string) *Client {
	return NewClient(url, 5*time.Second, ClientConfig{
		MaxRetries:     3,
		RetryDelayBase: time.Millisecond,
	})
}

func TestFetchEntity_StampsCountry(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/country/IND.csv" {
			t.Errorf("Expected path /v1/country/IND.csv, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("date,total_cases,total_deaths\n2021-01-02,110,2\n2021-01-01,100,1\n"))
	}))
	defer mockServer.Close()

	table, err := testClient(mockServer.URL).FetchEntity(context.Background(), "IND")
	if err != nil {
		t.Fatalf("FetchEntity failed: %v", err)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(table.Rows))
	}
	for _, row := range table.Rows {
		if row.Text[CountryColumn] != "IND" {
			t.Errorf("Expected stamped country IND, got %q", row.Text[CountryColumn])
		}
	}
}

func TestFetchBulk_Path(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/owid-covid-data.csv.gz" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(bulkCSV))
	}))
	defer mockServer.Close()

	table, err := testClient(mockServer.URL).Fetch(context.Background(), models.Descriptor{Variant: models.Bulk})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !table.HasColumn(LocationColumn) {
		t.Error("Expected location column")
	}
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls int32
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("date,total_cases\n2021-01-01,1\n"))
	}))
	defer mockServer.Close()

	if _, err := testClient(mockServer.URL).FetchEntity(context.Background(), "IND"); err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Expected 3 calls, got %d", got)
	}
}

func TestFetch_Errors(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantParse  bool
	}{
		{
			name: "not found is not retried",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "persistent server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name: "unparseable payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("no,dates,here\n1,2,3\n"))
			},
			wantParse: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockServer := httptest.NewServer(tt.handler)
			defer mockServer.Close()

			_, err := testClient(mockServer.URL).FetchEntity(context.Background(), "IND")
			var fe *models.FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("Expected FetchError, got %v", err)
			}
			if fe.Status != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, fe.Status)
			}
			var pe *models.ParseError
			if errors.As(err, &pe) != tt.wantParse {
				t.Errorf("ParseError present mismatch, want %v (err %v)", tt.wantParse, err)
			}
		})
	}
}

func TestFetch_Unreachable(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := mockServer.URL
	mockServer.Close()

	_, err := testClient(url).FetchBulk(context.Background())
	var fe *models.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected FetchError, got %v", err)
	}
	if fe.Status != 0 {
		t.Errorf("Expected no status for unreachable host, got %d", fe.Status)
	}
}

func TestFetchEntityList_Sorted(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/owid-covid-latest.json" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"USA":{"location":"United States"},"FRA":{"location":"France"},"IND":{"location":"India"}}`))
	}))
	defer mockServer.Close()

	keys, err := testClient(mockServer.URL).FetchEntityList(context.Background())
	if err != nil {
		t.Fatalf("FetchEntityList failed: %v", err)
	}
	want := []string{"FRA", "IND", "USA"}
	if len(keys) != len(want) {
		t.Fatalf("Expected %v, got %v", want, keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %s, want %s", i, keys[i], want[i])
		}
	}
}
