package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/escribajus/hearing-transcription/internal/types"
)

// EmptyTranscriptText is persisted as a single placeholder utterance when a
// backend returns nothing at all, so a completed job never has zero rows.
const EmptyTranscriptText = "[Nenhuma fala foi reconhecida neste áudio.]"

// InsertUtterances persists the ordered backend output for a job in a single
// transaction. Sort order is assigned from input position (0-based). An empty
// input produces exactly one placeholder utterance.
func (d *DB) InsertUtterances(jobID string, items []types.RawUtterance) error {
	if len(items) == 0 {
		items = []types.RawUtterance{{Speaker: "SPEAKER_00", Text: EmptyTranscriptText}}
	}

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
	INSERT INTO utterances (job_id, speaker, text, start_time, end_time, words, sort_order)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %v", err)
	}
	defer stmt.Close()

	for i, item := range items {
		var words sql.NullString
		if len(item.Words) > 0 {
			data, err := json.Marshal(item.Words)
			if err != nil {
				return fmt.Errorf("failed to marshal words: %v", err)
			}
			words = sql.NullString{String: string(data), Valid: true}
		}
		if _, err := stmt.Exec(jobID, item.Speaker, item.Text, item.Start, item.End, words, i); err != nil {
			return fmt.Errorf("failed to insert utterance %d: %v", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit utterances: %v", err)
	}
	return nil
}

// ListUtterances returns all utterances of a job in sort order
func (d *DB) ListUtterances(jobID string) ([]types.Utterance, error) {
	query := `
	SELECT id, job_id, speaker, text, start_time, end_time, words, sort_order
	FROM utterances WHERE job_id = ? ORDER BY sort_order ASC
	`
	rows, err := d.db.Query(query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list utterances: %v", err)
	}
	defer rows.Close()

	var utterances []types.Utterance
	for rows.Next() {
		var u types.Utterance
		var words sql.NullString
		if err := rows.Scan(&u.ID, &u.JobID, &u.Speaker, &u.Text,
			&u.StartTime, &u.EndTime, &words, &u.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan utterance: %v", err)
		}
		if words.Valid && words.String != "" {
			if err := json.Unmarshal([]byte(words.String), &u.Words); err != nil {
				// Word detail is auxiliary; a bad blob should not hide the row.
				u.Words = nil
			}
		}
		utterances = append(utterances, u)
	}
	return utterances, rows.Err()
}

// UpdateUtteranceCorrection rewrites the speaker label and text of one
// utterance. Timing and sort order are never touched by correction.
func (d *DB) UpdateUtteranceCorrection(id int64, speaker, text string) error {
	query := `UPDATE utterances SET speaker = ?, text = ? WHERE id = ?`
	_, err := d.db.Exec(query, speaker, text, id)
	if err != nil {
		return fmt.Errorf("failed to update utterance %d: %v", id, err)
	}
	return nil
}

// DeleteUtterances removes all utterances of a job
func (d *DB) DeleteUtterances(jobID string) error {
	_, err := d.db.Exec(`DELETE FROM utterances WHERE job_id = ?`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete utterances: %v", err)
	}
	return nil
}
