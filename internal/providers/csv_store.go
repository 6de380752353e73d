// Package providers loads candidate pools and player histories from the
// local data directory and from Fangraphs.
package providers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/rotation-optimizer/internal/models"
)

var historyHeader = []string{"teamId", "ateam", "aseason"}

// PoolLoader loads a franchise's candidate pool
type PoolLoader interface {
	LoadPool(ctx context.Context, franchise string) ([]models.Candidate, error)
}

// CSVStore reads and writes the data directory:
//
//	<dir>/franchise/<Team>.csv  playerid,Name,WAR
//	<dir>/player/<id>.csv       teamId,ateam,aseason
//	<dir>/players.csv           playerid,Name
type CSVStore struct {
	dir    string
	logger *logrus.Logger
}

// NewCSVStore creates a store over dir
func NewCSVStore(dir string, logger *logrus.Logger) *CSVStore {
	return &CSVStore{dir: dir, logger: logger}
}

func (s *CSVStore) franchisePath(name string) string {
	return filepath.Join(s.dir, "franchise", name+".csv")
}

func (s *CSVStore) playerPath(playerID string) string {
	return filepath.Join(s.dir, "player", playerID+".csv")
}

// LoadPool reads a franchise's candidates in file order
func (s *CSVStore) LoadPool(ctx context.Context, franchise string) ([]models.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := readTable(s.franchisePath(franchise), "playerid", "Name", "WAR")
	if err != nil {
		return nil, fmt.Errorf("failed to load pool for %s: %w", franchise, err)
	}

	pool := make([]models.Candidate, 0, len(rows))
	for i, row := range rows {
		id := strings.TrimSpace(row[0])
		if id == "" {
			return nil, fmt.Errorf("pool for %s: row %d has no playerid", franchise, i+2)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("pool for %s: row %d has bad WAR %q: %w", franchise, i+2, row[2], err)
		}
		pool = append(pool, models.Candidate{ID: id, Name: row[1], Value: value})
	}

	s.logger.WithFields(logrus.Fields{
		"franchise":  franchise,
		"candidates": len(pool),
	}).Debug("Loaded candidate pool")
	return pool, nil
}

// HasHistory reports whether a player's history file exists
func (s *CSVStore) HasHistory(playerID string) bool {
	_, err := os.Stat(s.playerPath(playerID))
	return err == nil
}

// History reads a player's saved season history
func (s *CSVStore) History(ctx context.Context, playerID string) ([]models.SeasonRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := readTable(s.playerPath(playerID), historyHeader...)
	if err != nil {
		return nil, fmt.Errorf("failed to read history for player %s: %w", playerID, err)
	}

	records := make([]models.SeasonRecord, 0, len(rows))
	for i, row := range rows {
		teamID, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("history for player %s: row %d has bad teamId %q", playerID, i+2, row[0])
		}
		records = append(records, models.SeasonRecord{
			PlayerID: playerID,
			TeamID:   teamID,
			Team:     row[1],
			Season:   strings.TrimSpace(row[2]),
		})
	}
	return records, nil
}

// SaveHistory writes a player's history, replacing any existing file
func (s *CSVStore) SaveHistory(playerID string, records []models.SeasonRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.playerPath(playerID)), 0o755); err != nil {
		return fmt.Errorf("failed to create player dir: %w", err)
	}
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{strconv.Itoa(r.TeamID), r.Team, r.Season}
	}
	if err := writeTable(s.playerPath(playerID), historyHeader, rows); err != nil {
		return fmt.Errorf("failed to save history for player %s: %w", playerID, err)
	}
	return nil
}

// PlayerEntry is one row of the player list
type PlayerEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PlayerList collects the distinct players across the given franchise
// files, in first-seen order, and writes them to players.csv
func (s *CSVStore) PlayerList(ctx context.Context, franchises []string) ([]PlayerEntry, error) {
	seen := make(map[PlayerEntry]struct{})
	var players []PlayerEntry
	for _, name := range franchises {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := readTable(s.franchisePath(name), "playerid", "Name")
		if err != nil {
			return nil, fmt.Errorf("failed to read franchise %s: %w", name, err)
		}
		for _, row := range rows {
			p := PlayerEntry{ID: strings.TrimSpace(row[0]), Name: row[1]}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			players = append(players, p)
		}
	}

	rows := make([][]string, len(players))
	for i, p := range players {
		rows[i] = []string{p.ID, p.Name}
	}
	if err := writeTable(filepath.Join(s.dir, "players.csv"), []string{"playerid", "Name"}, rows); err != nil {
		return nil, fmt.Errorf("failed to save player list: %w", err)
	}

	s.logger.WithField("players", len(players)).Info("Player list saved")
	return players, nil
}

// Franchises lists the franchise files present in the data directory
func (s *CSVStore) Franchises() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "franchise"))
	if err != nil {
		return nil, fmt.Errorf("failed to list franchise files: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".csv" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".csv"))
	}
	sort.Strings(names)
	return names, nil
}

// readTable returns the requested columns of every data row, in the
// order asked for
func readTable(path string, columns ...string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s is empty", filepath.Base(path))
	}
	if err != nil {
		return nil, err
	}

	index := make([]int, len(columns))
	for i, col := range columns {
		index[i] = -1
		for j, h := range header {
			if strings.TrimPrefix(strings.TrimSpace(h), "\ufeff") == col {
				index[i] = j
				break
			}
		}
		if index[i] < 0 {
			return nil, fmt.Errorf("%s has no %q column", filepath.Base(path), col)
		}
	}

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make([]string, len(columns))
		for i, j := range index {
			if j < len(rec) {
				row[i] = rec[j]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func writeTable(path string, header []string, rows [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.csv")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// IsNotExist reports whether err means a data file is missing
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
