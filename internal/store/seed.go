package store

import (
	"context"
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedFile []byte

type seedCard struct {
	Title   string `yaml:"title"`
	Details string `yaml:"details"`
}

type seedColumn struct {
	Title string     `yaml:"title"`
	Cards []seedCard `yaml:"cards"`
}

var loadSeedColumns = sync.OnceValues(func() ([]seedColumn, error) {
	var seed struct {
		Columns []seedColumn `yaml:"columns"`
	}
	if err := yaml.Unmarshal(seedFile, &seed); err != nil {
		return nil, fmt.Errorf("parse seed data: %w", err)
	}
	return seed.Columns, nil
})

// ensureSeedData populates a brand-new board with the default columns and
// cards. A board with any columns at all is left alone.
func (s *SQLStore) ensureSeedData(ctx context.Context, q dbtx, boardID int64) error {
	var columnCount int
	err := q.QueryRowContext(ctx,
		s.rebind(`SELECT COUNT(*) FROM columns WHERE board_id = ?`),
		boardID,
	).Scan(&columnCount)
	if err != nil {
		return fmt.Errorf("count columns: %w", err)
	}
	if columnCount > 0 {
		return nil
	}

	columns, err := loadSeedColumns()
	if err != nil {
		return err
	}
	for columnIndex, column := range columns {
		var columnID int64
		if err := q.QueryRowContext(ctx,
			s.rebind(`INSERT INTO columns (board_id, title, position) VALUES (?, ?, ?) RETURNING id`),
			boardID, column.Title, columnIndex,
		).Scan(&columnID); err != nil {
			return fmt.Errorf("seed column: %w", err)
		}
		for cardIndex, card := range column.Cards {
			if _, err := q.ExecContext(ctx,
				s.rebind(`INSERT INTO cards (column_id, title, details, position) VALUES (?, ?, ?, ?)`),
				columnID, card.Title, card.Details, cardIndex,
			); err != nil {
				return fmt.Errorf("seed card: %w", err)
			}
		}
	}
	return nil
}
