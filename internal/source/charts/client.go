// Package charts implements the chart provider source adapter. It ingests one
// weekly Top-N snapshot per ISO week, resolving each ranked track's audio
// features through the provider's song metadata endpoint.
package charts

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

const moduleName = "charts_source"

// pageSize is the provider's maximum ranking page size.
const pageSize = 100

// ChartSource fetches weekly chart snapshots.
type ChartSource interface {
	// FetchWeek returns the full ranked snapshot for one ISO week.
	// Failures after retry exhaustion wrap exception.ErrSourceUnavailable.
	FetchWeek(ctx context.Context, week model.WeekKey) ([]model.ChartEntry, error)
}

// Client is the HTTP implementation of ChartSource.
type Client struct {
	httpClient *http.Client
	cfg        config.ChartsConfig
	chartSize  int
	policy     retry.Policy
	breaker    *gobreaker.CircuitBreaker
}

var _ ChartSource = (*Client)(nil)

// NewClient creates a chart provider client from pipeline configuration.
func NewClient(pipelineCfg *config.PipelineConfig) *Client {
	r := pipelineCfg.Retry
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cfg:        pipelineCfg.Charts,
		chartSize:  pipelineCfg.ChartSize,
		policy: retry.NewPolicy(r.MaxAttempts,
			time.Duration(r.InitialInterval)*time.Millisecond,
			time.Duration(r.MaxInterval)*time.Millisecond,
			r.Factor),
		breaker: retry.NewBreaker(moduleName, uint32(r.CircuitBreakerThreshold),
			time.Duration(r.CircuitBreakerResetInterval)*time.Millisecond),
	}
}

// rankingItem is one entry of the provider's ranking payload.
type rankingItem struct {
	Position int `json:"position"`
	Song     struct {
		UUID       string `json:"uuid"`
		Name       string `json:"name"`
		CreditName string `json:"creditName"`
	} `json:"song"`
}

type rankingPage struct {
	Items []rankingItem `json:"items"`
}

// songMetadata is the provider's song detail payload.
type songMetadata struct {
	Object struct {
		Name       string `json:"name"`
		CreditName string `json:"creditName"`
		Genres     []struct {
			Root string `json:"root"`
		} `json:"genres"`
		Audio struct {
			Valence      float64 `json:"valence"`
			Energy       float64 `json:"energy"`
			Tempo        float64 `json:"tempo"`
			Danceability float64 `json:"danceability"`
			Acousticness float64 `json:"acousticness"`
			Loudness     float64 `json:"loudness"`
		} `json:"audio"`
	} `json:"object"`
}

// FetchWeek fetches the ranking pages for the week's Sunday snapshot and
// resolves audio features per track. Entries come back sorted by rank.
func (c *Client) FetchWeek(ctx context.Context, week model.WeekKey) ([]model.ChartEntry, error) {
	sunday := week.Sunday().Format("2006-01-02")
	logger.Infof("Fetching chart '%s' for %s (%s).", c.cfg.ChartSlug, week, sunday)

	var items []rankingItem
	for offset := 0; offset < c.chartSize; offset += pageSize {
		page, err := c.fetchRankingPage(ctx, sunday, offset)
		if err != nil {
			return nil, err
		}
		items = append(items, page...)
		if len(page) < pageSize {
			break
		}
	}
	if len(items) > c.chartSize {
		items = items[:c.chartSize]
	}
	if len(items) == 0 {
		return nil, exception.New(moduleName,
			fmt.Sprintf("no chart snapshot published for %s", week),
			exception.ErrSourceUnavailable, false)
	}

	entries := make([]model.ChartEntry, 0, len(items))
	metaCache := make(map[string]*songMetadata)
	for _, item := range items {
		meta, ok := metaCache[item.Song.UUID]
		if !ok {
			var err error
			meta, err = c.fetchSongMetadata(ctx, item.Song.UUID)
			if err != nil {
				return nil, err
			}
			metaCache[item.Song.UUID] = meta
		}

		entry := model.ChartEntry{
			Week:    week,
			Rank:    item.Position,
			TrackID: item.Song.UUID,
			Title:   item.Song.Name,
			Artist:  item.Song.CreditName,
		}
		if meta != nil {
			entry.Features = model.AudioFeatures{
				Valence:      meta.Object.Audio.Valence,
				Energy:       meta.Object.Audio.Energy,
				Tempo:        meta.Object.Audio.Tempo,
				Danceability: meta.Object.Audio.Danceability,
				Acousticness: meta.Object.Audio.Acousticness,
				Loudness:     meta.Object.Audio.Loudness,
			}
			for _, g := range meta.Object.Genres {
				if g.Root != "" {
					entry.Genres = append(entry.Genres, g.Root)
				}
			}
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Rank < entries[j].Rank })
	entries = dedupeByTrack(week, entries)
	logger.Infof("Fetched %d chart entries for %s.", len(entries), week)
	return entries, nil
}

// dedupeByTrack drops repeated tracks from a snapshot, keeping the best rank.
// A provider payload occasionally lists the same song twice; downstream the
// pair (week, track_id) must be unique.
func dedupeByTrack(week model.WeekKey, entries []model.ChartEntry) []model.ChartEntry {
	seen := make(map[string]struct{}, len(entries))
	deduped := entries[:0]
	for _, entry := range entries {
		if _, dup := seen[entry.TrackID]; dup {
			logger.Warnf("Duplicate track '%s' at rank %d in %s snapshot. Keeping the best rank.",
				entry.TrackID, entry.Rank, week)
			continue
		}
		seen[entry.TrackID] = struct{}{}
		deduped = append(deduped, entry)
	}
	return deduped
}

// fetchRankingPage retrieves one ranking page under the retry policy.
func (c *Client) fetchRankingPage(ctx context.Context, sunday string, offset int) ([]rankingItem, error) {
	endpoint := fmt.Sprintf("%s/chart/song/%s/ranking/%s",
		c.cfg.APIEndpoint, url.PathEscape(c.cfg.ChartSlug), sunday)

	var page rankingPage
	err := retry.Do(ctx, moduleName, c.policy, c.breaker, func(ctx context.Context) error {
		q := url.Values{}
		q.Set("offset", fmt.Sprintf("%d", offset))
		q.Set("limit", fmt.Sprintf("%d", pageSize))
		return c.getJSON(ctx, endpoint+"?"+q.Encode(), &page)
	})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// fetchSongMetadata retrieves a track's metadata under the retry policy.
// An unknown track resolves to nil rather than failing the whole snapshot.
func (c *Client) fetchSongMetadata(ctx context.Context, uuid string) (*songMetadata, error) {
	endpoint := fmt.Sprintf("%s/song/%s", c.cfg.APIEndpoint, url.PathEscape(uuid))

	var meta songMetadata
	err := retry.Do(ctx, moduleName, c.policy, c.breaker, func(ctx context.Context) error {
		return c.getJSON(ctx, endpoint, &meta)
	})
	if err != nil {
		if statusOf(err) == http.StatusNotFound {
			logger.Warnf("Song metadata not found for '%s'. Keeping zeroed features.", uuid)
			return nil, nil
		}
		return nil, err
	}
	return &meta, nil
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

// getJSON performs one authenticated GET and decodes the JSON response.
// 429 and 5xx responses are retryable; other non-2xx statuses are not.
func (c *Client) getJSON(ctx context.Context, rawURL string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return exception.New(moduleName, "failed to build request", err, false)
	}
	req.Header.Set("x-app-id", c.cfg.AppID)
	req.Header.Set("x-api-key", c.cfg.APIKey)
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
