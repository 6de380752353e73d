package providers

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/rotation-optimizer/internal/models"
)

// HistoryFetcher downloads a player's history
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, playerID string) ([]models.SeasonRecord, error)
}

// ScrapingSource serves histories from the store and falls back to the
// fetcher, saving what it downloads. A nil fetcher makes it read-only.
type ScrapingSource struct {
	store   *CSVStore
	fetcher HistoryFetcher
	logger  *logrus.Logger
}

// NewScrapingSource creates a history source over a store and a fetcher
func NewScrapingSource(store *CSVStore, fetcher HistoryFetcher, logger *logrus.Logger) *ScrapingSource {
	return &ScrapingSource{
		store:   store,
		fetcher: fetcher,
		logger:  logger,
	}
}

// History implements teammates.HistorySource
func (s *ScrapingSource) History(ctx context.Context, playerID string) ([]models.SeasonRecord, error) {
	records, err := s.store.History(ctx, playerID)
	if err == nil || !IsNotExist(err) || s.fetcher == nil {
		return records, err
	}

	records, err = s.fetcher.FetchHistory(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveHistory(playerID, records); err != nil {
		s.logger.WithError(err).WithField("player_id", playerID).Warn("Failed to save fetched history")
	}
	return records, nil
}

// ScrapeResult summarizes a scrape run
type ScrapeResult struct {
	Fetched int      `json:"fetched"`
	Skipped int      `json:"skipped"`
	Failed  []string `json:"failed,omitempty"`
}

// Scrape downloads every player without a saved history. A failed player
// is recorded and the run continues; cancellation stops it.
func (s *ScrapingSource) Scrape(ctx context.Context, playerIDs []string) (*ScrapeResult, error) {
	if s.fetcher == nil {
		return nil, fmt.Errorf("scraping requires a fetcher")
	}
	result := &ScrapeResult{}
	for i, id := range playerIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if s.store.HasHistory(id) {
			result.Skipped++
			continue
		}

		log := s.logger.WithFields(logrus.Fields{
			"player_id": id,
			"progress":  fmt.Sprintf("%d/%d", i+1, len(playerIDs)),
		})
		records, err := s.fetcher.FetchHistory(ctx, id)
		if err == nil {
			err = s.store.SaveHistory(id, records)
		}
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			log.WithError(err).Warn("Failed to scrape player")
			result.Failed = append(result.Failed, id)
			continue
		}
		result.Fetched++
		log.WithField("seasons", len(records)).Info("Scraped player")
	}
	return result, nil
}
