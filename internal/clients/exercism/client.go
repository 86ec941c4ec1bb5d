// Package exercism implements the source client over the Exercism v2 API.
package exercism

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/requestmirror/internal/clientdata"
	"github.com/aristath/requestmirror/internal/domain"
	"github.com/rs/zerolog"
)

const (
	trackCacheKey = "all"
	// maxPages bounds pagination when the API reports a runaway page count.
	maxPages = 50
)

// Client for the Exercism mentoring API
type Client struct {
	baseURL   string
	token     string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new Exercism API client.
// cacheRepo is optional - if nil, the track list is not cached.
func NewClient(baseURL, token string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		client:    &http.Client{Timeout: 15 * time.Second},
		log:       log.With().Str("client", "exercism").Logger(),
		cacheRepo: cacheRepo,
	}
}

// requestsPage is one page of /mentoring/requests.
type requestsPage struct {
	Results []apiRequest `json:"results"`
	Meta    struct {
		CurrentPage int `json:"current_page"`
		TotalCount  int `json:"total_count"`
		TotalPages  int `json:"total_pages"`
	} `json:"meta"`
}

type apiRequest struct {
	UUID  string `json:"uuid"`
	Track struct {
		Title string `json:"title"`
	} `json:"track"`
	Exercise struct {
		Title string `json:"title"`
	} `json:"exercise"`
	Student struct {
		Handle string `json:"handle"`
	} `json:"student"`
	Status    string `json:"status"`
	URL       string `json:"url"`
	UpdatedAt string `json:"updated_at"`
}

func (r apiRequest) toDomain(track string) domain.SourceRequest {
	req := domain.SourceRequest{
		ID:            r.UUID,
		TrackSlug:     track,
		TrackTitle:    r.Track.Title,
		ExerciseTitle: r.Exercise.Title,
		StudentHandle: r.Student.Handle,
		Status:        r.Status,
		URL:           r.URL,
	}
	if r.UpdatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, r.UpdatedAt); err == nil {
			req.UpdatedAt = ts.UTC()
		}
	}
	return req
}

// ListRequests returns every outstanding mentoring request for a track,
// following pagination until the last page.
func (c *Client) ListRequests(ctx context.Context, track string) ([]domain.SourceRequest, error) {
	var out []domain.SourceRequest

	for page := 1; page <= maxPages; page++ {
		params := url.Values{}
		params.Set("track_slug", track)
		params.Set("page", strconv.Itoa(page))

		var result requestsPage
		if err := c.get(ctx, "/mentoring/requests?"+params.Encode(), &result); err != nil {
			return nil, domain.Transient("exercism.list_requests", err)
		}

		for _, r := range result.Results {
			if r.UUID == "" {
				continue
			}
			out = append(out, r.toDomain(track))
		}

		if result.Meta.TotalPages <= page {
			break
		}
	}

	c.log.Debug().
		Str("track", track).
		Int("requests", len(out)).
		Msg("Fetched mentoring requests")

	return out, nil
}

// ListTracks returns every track known to Exercism.
// Fresh cached data is served first; if the API fails, stale cached data is returned.
func (c *Client) ListTracks(ctx context.Context) ([]domain.TrackInfo, error) {
	if c.cacheRepo != nil {
		data, err := c.cacheRepo.GetIfFresh(clientdata.TableTracks, trackCacheKey)
		if err == nil && data != nil {
			var cached []domain.TrackInfo
			if err := json.Unmarshal(data, &cached); err == nil {
				c.log.Debug().Int("tracks", len(cached)).Msg("Cache hit")
				return cached, nil
			}
		}
	}

	var result struct {
		Tracks []domain.TrackInfo `json:"tracks"`
	}
	if err := c.get(ctx, "/tracks", &result); err != nil {
		if stale, ok := c.getStaleTracks(); ok {
			c.log.Warn().
				Err(err).
				Int("tracks", len(stale)).
				Msg("API failed, using stale cached track list")
			return stale, nil
		}
		return nil, domain.Transient("exercism.list_tracks", err)
	}

	tracks := make([]domain.TrackInfo, 0, len(result.Tracks))
	for _, t := range result.Tracks {
		if t.Slug == "" {
			continue
		}
		tracks = append(tracks, t)
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(clientdata.TableTracks, trackCacheKey, tracks, clientdata.TTLTrackList); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache track list")
		}
	}

	c.log.Info().Int("tracks", len(tracks)).Msg("Fetched track list")
	return tracks, nil
}

// getStaleTracks retrieves the cached track list even if expired.
func (c *Client) getStaleTracks() ([]domain.TrackInfo, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}

	data, err := c.cacheRepo.Get(clientdata.TableTracks, trackCacheKey)
	if err != nil || data == nil {
		return nil, false
	}

	var cached []domain.TrackInfo
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false
	}
	return cached, true
}

// get performs an authenticated GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
