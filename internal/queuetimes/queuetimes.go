// Package queuetimes reads park and ride data from queue-times.com, or from
// a directory laid out the same way for offline runs.
package queuetimes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/coreman2200/themeparkwaits/internal/model"
)

const DefaultBaseURL = "https://queue-times.com"

var ErrStatus = errors.New("unexpected status")

// Source provides the park catalogue and live ride data.
type Source interface {
	Parks(ctx context.Context) ([]*model.Park, error)
	Rides(ctx context.Context, parkID int) ([]model.Ride, error)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client

	// attempts and pause between them, per request kind
	ParkAttempts int
	ParkBackoff  time.Duration
	RideAttempts int
	RideBackoff  time.Duration

	logger zerolog.Logger
}

var _ Source = (*Client)(nil)

func New(logger zerolog.Logger) *Client {
	return &Client{
		BaseURL:      DefaultBaseURL,
		HTTP:         &http.Client{Timeout: 10 * time.Second},
		ParkAttempts: 3,
		ParkBackoff:  time.Second,
		RideAttempts: 2,
		RideBackoff:  500 * time.Millisecond,
		logger:       logger.With().Str("component", "queuetimes").Logger(),
	}
}

func (c *Client) Parks(ctx context.Context) ([]*model.Park, error) {
	b, err := c.get(ctx, "/parks.json", c.ParkAttempts, c.ParkBackoff)
	if err != nil {
		return nil, err
	}
	parks, err := ParseParks(b)
	if err != nil {
		return nil, err
	}
	c.logger.Info().Int("parks", len(parks)).Msg("Fetched park list")
	return parks, nil
}

func (c *Client) Rides(ctx context.Context, parkID int) ([]model.Ride, error) {
	b, err := c.get(ctx, fmt.Sprintf("/parks/%d/queue_times.json", parkID), c.RideAttempts, c.RideBackoff)
	if err != nil {
		return nil, err
	}
	return ParseRides(b)
}

func (c *Client) get(ctx context.Context, path string, attempts int, pause time.Duration) ([]byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	var (
		body    []byte
		attempt int
	)
	fetch := func() error {
		attempt++
		b, err := c.getOnce(ctx, url)
		body = b
		return err
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(pause), uint64(max(attempts, 1)-1)), ctx)
	notify := func(err error, wait time.Duration) {
		c.logger.Warn().Err(err).Str("url", url).Int("attempt", attempt).Dur("retry_in", wait).Msg("Fetch failed")
	}
	if err := backoff.RetryNotify(fetch, policy, notify); err != nil {
		return nil, fmt.Errorf("get %s (%d attempts): %w", url, attempt, err)
	}
	return body, nil
}

func (c *Client) getOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%w: %s", ErrStatus, resp.Status)
		// no point asking again for a park that does not exist
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, errors.New("empty response")
	}
	return b, nil
}

// Dir reads parks.json and parks/{id}/queue_times.json under a directory.
type Dir string

var _ Source = Dir("")

func (d Dir) Parks(ctx context.Context) ([]*model.Park, error) {
	b, err := os.ReadFile(filepath.Join(string(d), "parks.json"))
	if err != nil {
		return nil, err
	}
	return ParseParks(b)
}

func (d Dir) Rides(ctx context.Context, parkID int) ([]model.Ride, error) {
	b, err := os.ReadFile(filepath.Join(string(d), "parks", strconv.Itoa(parkID), "queue_times.json"))
	if err != nil {
		return nil, err
	}
	return ParseRides(b)
}

// coord is a latitude/longitude that the feed sends as a string.
type coord float64

func (c *coord) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*c = coord(f)
	return nil
}

type wirePark struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Latitude  coord  `json:"latitude"`
	Longitude coord  `json:"longitude"`
}

type wireCompany struct {
	Name  string     `json:"name"`
	Parks []wirePark `json:"parks"`
}

type wireRide struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	IsOpen   bool   `json:"is_open"`
	WaitTime int    `json:"wait_time"`
}

type wireQueueTimes struct {
	Lands []struct {
		Name  string     `json:"name"`
		Rides []wireRide `json:"rides"`
	} `json:"lands"`
	Rides []wireRide `json:"rides"`
}

// ParseParks flattens companies into parks sorted by name. Entries without
// a name or id are dropped.
func ParseParks(b []byte) ([]*model.Park, error) {
	var companies []wireCompany
	if err := json.Unmarshal(b, &companies); err != nil {
		return nil, fmt.Errorf("parse parks: %w", err)
	}
	var parks []*model.Park
	for _, co := range companies {
		for _, wp := range co.Parks {
			name := RemoveNonASCII(wp.Name)
			if name == "" || wp.ID == 0 {
				continue
			}
			p := model.NewPark(name, wp.ID, nil)
			p.Latitude, p.Longitude = float64(wp.Latitude), float64(wp.Longitude)
			parks = append(parks, p)
		}
	}
	slices.SortStableFunc(parks, func(a, b *model.Park) int { return strings.Compare(a.Name, b.Name) })
	return parks, nil
}

// ParseRides collects rides from every land, then any listed outside a land.
func ParseRides(b []byte) ([]model.Ride, error) {
	var qt wireQueueTimes
	if err := json.Unmarshal(b, &qt); err != nil {
		return nil, fmt.Errorf("parse queue times: %w", err)
	}
	var rides []model.Ride
	add := func(rs []wireRide) {
		for _, r := range rs {
			rides = append(rides, model.NewRide(RemoveNonASCII(r.Name), r.ID, r.WaitTime, r.IsOpen))
		}
	}
	for _, land := range qt.Lands {
		add(land.Rides)
	}
	add(qt.Rides)
	return rides, nil
}

// RemoveNonASCII drops every rune above 127; the matrix font has no glyphs
// for them.
func RemoveNonASCII(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r < 128 {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
