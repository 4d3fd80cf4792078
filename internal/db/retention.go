package db

import (
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// runRetentionOnce performs a single retention pass: events older than the
// retention window are deleted, and oversized score_history arrays are
// trimmed to the newest historyMax entries. Trimming here keeps the hot-path
// append a single atomic statement while still bounding growth.
func runRetentionOnce(db *gorm.DB, retentionDays, historyMax int) error {
	if retentionDays > 0 {
		cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
		if err := db.Where("timestamp < ?", cutoff).Delete(&Event{}).Error; err != nil {
			return err
		}
	}

	if historyMax > 0 {
		err := db.Exec(
			`UPDATE events
			 SET metadata = jsonb_set(
				metadata,
				'{score_history}',
				(SELECT jsonb_agg(e ORDER BY ord)
				 FROM (
					SELECT e, ord
					FROM jsonb_array_elements(metadata -> 'score_history') WITH ORDINALITY AS t(e, ord)
					ORDER BY ord DESC
					LIMIT ?
				 ) trimmed)
			 )
			 WHERE jsonb_array_length(metadata -> 'score_history') > ?`,
			historyMax, historyMax,
		).Error
		if err != nil {
			return err
		}
	}

	return nil
}

// StartRetentionWorker launches a background goroutine that runs the
// retention pass once at startup and then once per day.
func StartRetentionWorker(db *gorm.DB, retentionDays, historyMax int) {
	go func() {
		if err := runRetentionOnce(db, retentionDays, historyMax); err != nil {
			log.Error().Err(err).Msg("retention cleanup error (startup)")
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			if err := runRetentionOnce(db, retentionDays, historyMax); err != nil {
				log.Error().Err(err).Msg("retention cleanup error")
			}
		}
	}()
}
