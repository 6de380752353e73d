package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/stitts-dev/rotation-optimizer/internal/models"
)

const (
	DefaultFangraphsURL     = "https://cdn.fangraphs.com"
	DefaultRequestInterval  = 3 * time.Second
	DefaultPosition         = "P"
	aggregateTeam           = "- - -"
	maxMajorLeagueStatsType = 5
)

// FangraphsConfig holds the client settings
type FangraphsConfig struct {
	BaseURL          string
	RequestInterval  time.Duration
	Timeout          time.Duration
	BreakerThreshold int
	Position         string
}

// FangraphsClient fetches player season histories from the Fangraphs
// player stats endpoint
type FangraphsClient struct {
	httpClient  *http.Client
	baseURL     string
	position    string
	rateLimiter *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	logger      *logrus.Logger
	now         func() time.Time
}

// NewFangraphsClient creates a new Fangraphs client
func NewFangraphsClient(cfg FangraphsConfig, logger *logrus.Logger) *FangraphsClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultFangraphsURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.Position == "" {
		cfg.Position = DefaultPosition
	}

	limit := rate.Inf
	if cfg.RequestInterval > 0 {
		limit = rate.Every(cfg.RequestInterval)
	}

	threshold := uint32(cfg.BreakerThreshold)
	settings := gobreaker.Settings{
		Name:        "fangraphs",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"component": "circuit_breaker",
				"service":   name,
				"from":      from.String(),
				"to":        to.String(),
			}).Info("Circuit breaker state changed")
		},
	}

	return &FangraphsClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		position:    cfg.Position,
		rateLimiter: rate.NewLimiter(limit, 1),
		breaker:     gobreaker.NewCircuitBreaker(settings),
		logger:      logger,
		now:         time.Now,
	}
}

type fangraphsStatsResponse struct {
	Data []fangraphsSeasonRow `json:"data"`
}

type fangraphsSeasonRow struct {
	Type   int          `json:"type"`
	TeamID int          `json:"teamId"`
	Team   string       `json:"ateam"`
	Season flexibleText `json:"aseason"`
}

// flexibleText accepts a JSON string or number
type flexibleText string

func (f *flexibleText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexibleText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("season is neither text nor number: %s", data)
	}
	*f = flexibleText(n.String())
	return nil
}

// FetchHistory downloads one player's season rows. Minor league rows and
// the multi-team aggregate rows are dropped.
func (c *FangraphsClient) FetchHistory(ctx context.Context, playerID string) ([]models.SeasonRecord, error) {
	if playerID == "" {
		return nil, fmt.Errorf("player id is required")
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, playerID)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("fangraphs unavailable: %w", err)
		}
		return nil, err
	}
	rows := result.(*fangraphsStatsResponse).Data

	records := make([]models.SeasonRecord, 0, len(rows))
	for _, row := range rows {
		if row.Type < 0 || row.Type > maxMajorLeagueStatsType {
			continue
		}
		if row.Team == aggregateTeam {
			continue
		}
		records = append(records, models.SeasonRecord{
			PlayerID: playerID,
			TeamID:   row.TeamID,
			Team:     row.Team,
			Season:   string(row.Season),
		})
	}

	c.logger.WithFields(logrus.Fields{
		"player_id": playerID,
		"rows":      len(rows),
		"seasons":   len(records),
	}).Debug("Fetched player history")

	return records, nil
}

func (c *FangraphsClient) fetch(ctx context.Context, playerID string) (*fangraphsStatsResponse, error) {
	q := url.Values{}
	q.Set("playerid", playerID)
	q.Set("position", c.position)
	q.Set("z", strconv.FormatInt(c.now().Unix(), 10))
	endpoint := fmt.Sprintf("%s/api/players/stats?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fangraphs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fangraphs returned status %d for player %s", resp.StatusCode, playerID)
	}

	var body fangraphsStatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode fangraphs response: %w", err)
	}
	return &body, nil
}

// BreakerState exposes the circuit breaker state for health checks
func (c *FangraphsClient) BreakerState() gobreaker.State {
	return c.breaker.State()
}
