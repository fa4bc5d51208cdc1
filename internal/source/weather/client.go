// Package weather implements the weather archive source adapter. It fetches
// daily observations per configured location and averages them into one
// national observation per day.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/sony/gobreaker"

	"github.com/tigerroll/soundseasons/internal/config"
	"github.com/tigerroll/soundseasons/internal/domain/model"
	"github.com/tigerroll/soundseasons/internal/support/exception"
	"github.com/tigerroll/soundseasons/internal/support/logger"
	"github.com/tigerroll/soundseasons/internal/support/retry"
)

const moduleName = "weather_source"

// dailyVariables are the archive API variables this adapter requests.
const dailyVariables = "temperature_2m_mean,precipitation_sum,windspeed_10m_max,sunshine_duration"

// WeatherSource fetches daily weather observations for a date range.
type WeatherSource interface {
	// FetchRange returns national daily observations covering [from, to].
	// Failures after retry exhaustion wrap exception.ErrSourceUnavailable.
	FetchRange(ctx context.Context, from, to time.Time) ([]model.WeatherObservation, error)
}

// Client is the HTTP implementation of WeatherSource.
type Client struct {
	httpClient *http.Client
	cfg        config.WeatherConfig
	policy     retry.Policy
	breaker    *gobreaker.CircuitBreaker
}

var _ WeatherSource = (*Client)(nil)

// NewClient creates a weather archive client from pipeline configuration.
func NewClient(pipelineCfg *config.PipelineConfig) *Client {
	r := pipelineCfg.Retry
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cfg:        pipelineCfg.Weather,
		policy: retry.NewPolicy(r.MaxAttempts,
			time.Duration(r.InitialInterval)*time.Millisecond,
			time.Duration(r.MaxInterval)*time.Millisecond,
			r.Factor),
		breaker: retry.NewBreaker(moduleName, uint32(r.CircuitBreakerThreshold),
			time.Duration(r.CircuitBreakerResetInterval)*time.Millisecond),
	}
}

// archiveResponse is the archive API's daily payload. Variables arrive as
// parallel arrays indexed by date.
type archiveResponse struct {
	Daily struct {
		Time             []string   `json:"time"`
		TemperatureMean  []*float64 `json:"temperature_2m_mean"`
		PrecipitationSum []*float64 `json:"precipitation_sum"`
		WindSpeedMax     []*float64 `json:"windspeed_10m_max"`
		SunshineDuration []*float64 `json:"sunshine_duration"`
	} `json:"daily"`
}

// FetchRange fetches each configured location and averages the per-location
// values into one national observation per day. Days for which no location
// reported a value are omitted.
func (c *Client) FetchRange(ctx context.Context, from, to time.Time) ([]model.WeatherObservation, error) {
	logger.Infof("Fetching weather archive for %s .. %s (%d locations).",
		from.Format("2006-01-02"), to.Format("2006-01-02"), len(c.cfg.Locations))

	type accum struct {
		temperature, precipitation, windSpeed, sunshine float64
		count                                           int
	}
	byDate := make(map[string]*accum)

	for _, loc := range c.cfg.Locations {
		resp, err := c.fetchLocation(ctx, loc, from, to)
		if err != nil {
			return nil, err
		}

		d := resp.Daily
		for i, day := range d.Time {
			if !allPresent(i, d.TemperatureMean, d.PrecipitationSum, d.WindSpeedMax, d.SunshineDuration) {
				logger.Debugf("Skipping %s at '%s': incomplete daily record.", day, loc.Name)
				continue
			}
			a := byDate[day]
			if a == nil {
				a = &accum{}
				byDate[day] = a
			}
			a.temperature += *d.TemperatureMean[i]
			a.precipitation += *d.PrecipitationSum[i]
			a.windSpeed += *d.WindSpeedMax[i]
			// The archive reports sunshine in seconds; normalize to hours.
			a.sunshine += *d.SunshineDuration[i] / 3600.0
			a.count++
		}
	}

	observations := make([]model.WeatherObservation, 0, len(byDate))
	for day, a := range byDate {
		date, err := time.Parse("2006-01-02", day)
		if err != nil {
			return nil, exception.New(moduleName, fmt.Sprintf("invalid date '%s' in archive response", day), err, false)
		}
		n := float64(a.count)
		observations = append(observations, model.WeatherObservation{
			Date:            date,
			Location:        "national",
			TemperatureMean: a.temperature / n,
			PrecipitationMM: a.precipitation / n,
			WindSpeedKMH:    a.windSpeed / n,
			SunshineHours:   a.sunshine / n,
		})
	}
	sort.Slice(observations, func(i, j int) bool {
		return observations[i].Date.Before(observations[j].Date)
	})

	logger.Infof("Fetched %d national daily observations.", len(observations))
	return observations, nil
}

// fetchLocation retrieves one location's archive slice under the retry policy.
func (c *Client) fetchLocation(ctx context.Context, loc model.Location, from, to time.Time) (*archiveResponse, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", loc.Latitude))
	q.Set("longitude", fmt.Sprintf("%.4f", loc.Longitude))
	q.Set("start_date", from.Format("2006-01-02"))
	q.Set("end_date", to.Format("2006-01-02"))
	q.Set("daily", dailyVariables)
	if c.cfg.Timezone != "" {
		q.Set("timezone", c.cfg.Timezone)
	}
	endpoint := c.cfg.APIEndpoint + "?" + q.Encode()

	var resp archiveResponse
	err := retry.Do(ctx, moduleName, c.policy, c.breaker, func(ctx context.Context) error {
		return c.getJSON(ctx, endpoint, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// getJSON performs one GET and decodes the JSON response.
// 429 and 5xx responses are retryable; other non-2xx statuses are not.
func (c *Client) getJSON(ctx context.Context, rawURL string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return exception.New(moduleName, "failed to build request", err, false)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return exception.New(moduleName, "request failed", err, true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return exception.New(moduleName,
			fmt.Sprintf("unexpected status %d from archive API", resp.StatusCode), nil, retryable)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return exception.New(moduleName, "failed to decode response", err, false)
	}
	return nil
}

// allPresent reports whether index i exists and is non-null in every series.
func allPresent(i int, series ...[]*float64) bool {
	for _, s := range series {
		if i >= len(s) || s[i] == nil {
			return false
		}
	}
	return true
}
