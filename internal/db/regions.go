package db

import (
	"time"

	"github.com/rotisserie/eris"

	"track-finder/internal/models"
)

// UpsertState inserts or updates a state row
func (db *DB) UpsertState(s models.State) error {
	query := `
		INSERT INTO states (iso_code, name, relation_id)
		VALUES (?, ?, ?)
		ON CONFLICT(iso_code) DO UPDATE SET
			name = excluded.name,
			relation_id = CASE WHEN excluded.relation_id > 0 THEN excluded.relation_id ELSE states.relation_id END
	`
	_, err := db.Exec(query, s.Code, s.Name, int64(s.RelationID))
	return eris.Wrapf(err, "failed to upsert state %s", s.Code)
}

// ReplaceCounties swaps the stored counties of a state for a fresh list
func (db *DB) ReplaceCounties(stateCode string, counties []models.County) error {
	tx, err := db.Beginx()
	if err != nil {
		return eris.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM counties WHERE state_code = ?", stateCode); err != nil {
		return eris.Wrapf(err, "failed to clear counties for %s", stateCode)
	}

	now := time.Now().UTC()
	for _, c := range counties {
		_, err := tx.Exec(`
			INSERT INTO counties (relation_id, state_code, name, synced_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(relation_id) DO UPDATE SET
				state_code = excluded.state_code,
				name = excluded.name,
				synced_at = excluded.synced_at
		`, int64(c.RelationID), stateCode, c.Name, now)
		if err != nil {
			return eris.Wrapf(err, "failed to insert county %s", c.Name)
		}
	}

	return eris.Wrap(tx.Commit(), "failed to commit counties")
}

// ListStates returns all stored states ordered by name
func (db *DB) ListStates() ([]models.State, error) {
	var states []models.State
	err := db.Select(&states, "SELECT iso_code, name, relation_id FROM states ORDER BY name")
	if err != nil {
		return nil, eris.Wrap(err, "failed to list states")
	}
	return states, nil
}

// ListCounties returns the stored counties, optionally limited to one state
func (db *DB) ListCounties(stateCode string) ([]models.County, error) {
	query := "SELECT relation_id, state_code, name, synced_at FROM counties"
	args := make([]interface{}, 0, 1)
	if stateCode != "" {
		query += " WHERE state_code = ?"
		args = append(args, stateCode)
	}
	query += " ORDER BY state_code, name"

	var counties []models.County
	if err := db.Select(&counties, query, args...); err != nil {
		return nil, eris.Wrap(err, "failed to list counties")
	}
	return counties, nil
}

// GetCountyCount returns the number of stored counties
func (db *DB) GetCountyCount() (int, error) {
	var count int
	err := db.Get(&count, "SELECT COUNT(*) FROM counties")
	return count, eris.Wrap(err, "failed to count counties")
}
