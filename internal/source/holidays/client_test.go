package holidays_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/soundseasons/internal/config"
	"github.com/tigerroll/soundseasons/internal/domain/model"
	"github.com/tigerroll/soundseasons/internal/source/holidays"
	"github.com/tigerroll/soundseasons/internal/support/exception"
)

func pipelineConfig(endpoint string, regions ...model.HolidayRegion) *config.PipelineConfig {
	return &config.PipelineConfig{
		Retry: config.RetryConfig{
			MaxAttempts:                 3,
			InitialInterval:             1,
			MaxInterval:                 10,
			Factor:                      2.0,
			CircuitBreakerThreshold:     50,
			CircuitBreakerResetInterval: 60000,
		},
		Holidays: config.HolidaysConfig{
			APIEndpoint: endpoint,
			Regions:     regions,
		},
	}
}

func periodJSON(start, end, name string) map[string]string {
	return map[string]string{"start": start, "end": end, "name": name}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFetchRangeExpandsPeriodsIntoDays(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/BE/2024"))
		json.NewEncoder(w).Encode([]map[string]string{
			periodJSON("2024-03-25T00:00", "2024-03-27T00:00", "osterferien"),
		})
	}))
	defer server.Close()

	client := holidays.NewClient(pipelineConfig(server.URL,
		model.HolidayRegion{Code: "BE", Name: "Berlin"}))
	got, err := client.FetchRange(context.Background(), day(2024, 3, 1), day(2024, 3, 31))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, day(2024, 3, 25), got[0].Date)
	assert.Equal(t, "Berlin", got[0].Region)
	assert.Equal(t, "osterferien", got[0].Name)
	assert.Equal(t, day(2024, 3, 27), got[2].Date)
}

func TestFetchRangeClipsPeriodsToRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{
			periodJSON("2024-03-23T00:00", "2024-04-07T00:00", "osterferien"),
		})
	}))
	defer server.Close()

	client := holidays.NewClient(pipelineConfig(server.URL,
		model.HolidayRegion{Code: "BE", Name: "Berlin"}))
	got, err := client.FetchRange(context.Background(), day(2024, 3, 25), day(2024, 3, 31))
	require.NoError(t, err)
	require.Len(t, got, 7)
	assert.Equal(t, day(2024, 3, 25), got[0].Date)
	assert.Equal(t, day(2024, 3, 31), got[6].Date)
}

func TestFetchRangeCoversEveryRegionAndYear(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		json.NewEncoder(w).Encode([]map[string]string{})
	}))
	defer server.Close()

	client := holidays.NewClient(pipelineConfig(server.URL,
		model.HolidayRegion{Code: "BE", Name: "Berlin"},
		model.HolidayRegion{Code: "BY", Name: "Bayern"}))
	got, err := client.FetchRange(context.Background(), day(2023, 12, 18), day(2024, 1, 7))
	require.NoError(t, err)
	assert.Empty(t, got)

	// Two regions across the year boundary means four calendar fetches.
	assert.ElementsMatch(t, []string{"/BE/2023", "/BY/2023", "/BE/2024", "/BY/2024"}, paths)
}

func TestFetchRangeSortsByDateThenRegion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{
			periodJSON("2024-03-25T00:00", "2024-03-26T00:00", "osterferien"),
		})
	}))
	defer server.Close()

	client := holidays.NewClient(pipelineConfig(server.URL,
		model.HolidayRegion{Code: "BY", Name: "Bayern"},
		model.HolidayRegion{Code: "BE", Name: "Berlin"}))
	got, err := client.FetchRange(context.Background(), day(2024, 3, 1), day(2024, 3, 31))
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "Bayern", got[0].Region)
	assert.Equal(t, "Berlin", got[1].Region)
	assert.Equal(t, day(2024, 3, 25), got[1].Date)
	assert.Equal(t, day(2024, 3, 26), got[2].Date)
}

func TestFetchRangeSkipsUnpublishedRegionYear(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/BY/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode([]map[string]string{
			periodJSON("2024-03-25T00:00", "2024-03-25T00:00", "osterferien"),
		})
	}))
	defer server.Close()

	client := holidays.NewClient(pipelineConfig(server.URL,
		model.HolidayRegion{Code: "BE", Name: "Berlin"},
		model.HolidayRegion{Code: "BY", Name: "Bayern"}))
	got, err := client.FetchRange(context.Background(), day(2024, 3, 1), day(2024, 3, 31))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Berlin", got[0].Region)
}

func TestFetchRangeRetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode([]map[string]string{
			periodJSON("2024-03-25T00:00", "2024-03-25T00:00", "osterferien"),
		})
	}))
	defer server.Close()

	client := holidays.NewClient(pipelineConfig(server.URL,
		model.HolidayRegion{Code: "BE", Name: "Berlin"}))
	got, err := client.FetchRange(context.Background(), day(2024, 3, 1), day(2024, 3, 31))
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchRangeExhaustedRetriesWrapSourceUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := holidays.NewClient(pipelineConfig(server.URL,
		model.HolidayRegion{Code: "BE", Name: "Berlin"}))
	_, err := client.FetchRange(context.Background(), day(2024, 3, 1), day(2024, 3, 31))
	require.Error(t, err)
	assert.True(t, exception.IsSourceUnavailable(err))
}

func TestFetchRangeInvalidPeriodFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{
			periodJSON("not-a-date", "2024-03-25T00:00", "osterferien"),
		})
	}))
	defer server.Close()

	client := holidays.NewClient(pipelineConfig(server.URL,
		model.HolidayRegion{Code: "BE", Name: "Berlin"}))
	_, err := client.FetchRange(context.Background(), day(2024, 3, 1), day(2024, 3, 31))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid holiday start")
}
