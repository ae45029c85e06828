// services/scoretable.go
package services

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ScoreTable maps a mission difficulty ordinal to the points it is worth.
// Campaigns vary, so the table is configuration rather than a constant.
type ScoreTable map[int]int

// DefaultScoreTable is the reference deployment's mapping.
func DefaultScoreTable() ScoreTable {
	return ScoreTable{0: 0, 1: 2, 2: 3, 3: 5}
}

// ParseScoreTable parses "0:0,1:2,2:3,3:5" style pairs.
func ParseScoreTable(raw string) (ScoreTable, error) {
	table := ScoreTable{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("bad score table entry %q", pair)
		}
		difficulty, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("bad difficulty in %q: %w", pair, err)
		}
		points, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("bad points in %q: %w", pair, err)
		}
		table[difficulty] = points
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("empty score table %q", raw)
	}
	return table, nil
}

// ScoreTableFromEnv reads SCORE_TABLE, falling back to the default mapping
// when unset or malformed.
func ScoreTableFromEnv() ScoreTable {
	raw := os.Getenv("SCORE_TABLE")
	if raw == "" {
		return DefaultScoreTable()
	}
	table, err := ParseScoreTable(raw)
	if err != nil {
		log.Warnf("Invalid SCORE_TABLE %q, using defaults: %v", raw, err)
		return DefaultScoreTable()
	}
	return table
}

// Points returns the value for a difficulty; unknown difficulties are worth
// nothing rather than an error, so a miscataloged mission cannot abort a pass.
func (t ScoreTable) Points(difficulty int) int {
	return t[difficulty]
}
