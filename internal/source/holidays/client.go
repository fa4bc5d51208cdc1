// Package holidays implements the school holiday calendar source adapter. It
// fetches per-region holiday periods and expands them into per-day records.
package holidays

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

const moduleName = "holidays_source"

// HolidaySource fetches per-region school holiday days for a date range.
type HolidaySource interface {
	// FetchRange returns one record per (region, day) covered by a holiday
	// within [from, to]. Failures after retry exhaustion wrap
	// exception.ErrSourceUnavailable.
	FetchRange(ctx context.Context, from, to time.Time) ([]model.Holiday, error)
}

// Client is the HTTP implementation of HolidaySource.
type Client struct {
	httpClient *http.Client
	cfg        config.HolidaysConfig
	policy     retry.Policy
	breaker    *gobreaker.CircuitBreaker
}

var _ HolidaySource = (*Client)(nil)

// NewClient creates a holiday calendar client from pipeline configuration.
func NewClient(pipelineCfg *config.PipelineConfig) *Client {
	r := pipelineCfg.Retry
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cfg:        pipelineCfg.Holidays,
		policy: retry.NewPolicy(r.MaxAttempts,
			time.Duration(r.InitialInterval)*time.Millisecond,
			time.Duration(r.MaxInterval)*time.Millisecond,
			r.Factor),
		breaker: retry.NewBreaker(moduleName, uint32(r.CircuitBreakerThreshold),
			time.Duration(r.CircuitBreakerResetInterval)*time.Millisecond),
	}
}

// holidayItem is one holiday period of the calendar API's payload. Start and
// end arrive as ISO timestamps; only the date part matters.
type holidayItem struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Name  string `json:"name"`
}

// FetchRange fetches every configured region's calendar for each year touched
// by [from, to] and expands the periods into per-day records clipped to the
// range. Records come back sorted by date, then region.
func (c *Client) FetchRange(ctx context.Context, from, to time.Time) ([]model.Holiday, error) {
	logger.Infof("Fetching holiday calendar for %s .. %s (%d regions).",
		from.Format("2006-01-02"), to.Format("2006-01-02"), len(c.cfg.Regions))

	var holidays []model.Holiday
	for year := from.Year(); year <= to.Year(); year++ {
		for _, region := range c.cfg.Regions {
			items, err := c.fetchRegionYear(ctx, region.Code, year)
			if err != nil {
				return nil, err
			}
			for _, item := range items {
				expanded, err := expandDays(item, region.Name, from, to)
				if err != nil {
					return nil, err
				}
				holidays = append(holidays, expanded...)
			}
		}
	}

	sort.Slice(holidays, func(i, j int) bool {
		if !holidays[i].Date.Equal(holidays[j].Date) {
			return holidays[i].Date.Before(holidays[j].Date)
		}
		return holidays[i].Region < holidays[j].Region
	})
	logger.Infof("Fetched %d holiday region-days.", len(holidays))
	return holidays, nil
}

// fetchRegionYear retrieves one region's calendar year under the retry policy.
// A region-year the calendar has not published yet resolves to nothing rather
// than failing the whole range.
func (c *Client) fetchRegionYear(ctx context.Context, regionCode string, year int) ([]holidayItem, error) {
	endpoint := fmt.Sprintf("%s/%s/%d", c.cfg.APIEndpoint, url.PathEscape(regionCode), year)

	var items []holidayItem
	err := retry.Do(ctx, moduleName, c.policy, c.breaker, func(ctx context.Context) error {
		return c.getJSON(ctx, endpoint, &items)
	})
	if err != nil {
		if statusOf(err) == http.StatusNotFound {
			logger.Warnf("No holiday calendar published for %s/%d.", regionCode, year)
			return nil, nil
		}
		return nil, err
	}
	return items, nil
}

// expandDays turns one holiday period into per-day records, clipped to
// [from, to]. The period's end date is inclusive.
func expandDays(item holidayItem, region string, from, to time.Time) ([]model.Holiday, error) {
	start, err := parseDay(item.Start)
	if err != nil {
		return nil, exception.New(moduleName,
			fmt.Sprintf("invalid holiday start '%s'", item.Start), err, false)
	}
	end, err := parseDay(item.End)
	if err != nil {
		return nil, exception.New(moduleName,
			fmt.Sprintf("invalid holiday end '%s'", item.End), err, false)
	}

	var days []model.Holiday
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Before(from) || d.After(to) {
			continue
		}
		days = append(days, model.Holiday{Date: d, Region: region, Name: item.Name})
	}
	return days, nil
}

// parseDay parses the date part of the calendar API's ISO timestamps
// (e.g. "2024-03-23T00:00").
func parseDay(s string) (time.Time, error) {
	if len(s) > 10 {
		s = s[:10]
	}
	return time.Parse("2006-01-02", s)
}

// httpStatusError marks a non-2xx response so the retry loop can classify it.
type httpStatusError struct {
	status int
	url    string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.status, e.url)
}

func statusOf(err error) int {
	for err != nil {
		if se, ok := err.(*httpStatusError); ok {
			return se.status
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return 0
		}
		err = u.Unwrap()
	}
	return 0
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
		return exception.New(moduleName, "unexpected response",
			&httpStatusError{status: resp.StatusCode, url: rawURL}, retryable)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return exception.New(moduleName, "failed to decode response", err, false)
	}
	return nil
}
