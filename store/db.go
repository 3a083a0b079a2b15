package store

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	log2 "github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/grobbelaar/cdntest/trial"
)

// TrialDB persists trial records into postgres so runs can be compared over
// time. It is optional; the CSV report stays authoritative.
type TrialDB struct {
	db  *gorm.DB
	log zerolog.Logger
}

func OpenTrialDB(connectionString string) (*TrialDB, error) {
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	if err := db.AutoMigrate(&trial.Trial{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate trial model")
	}

	return &TrialDB{
		db:  db,
		log: log2.With().Str("component", "trial_db").Caller().Logger(),
	}, nil
}

func (t *TrialDB) SaveTrials(ctx context.Context, records []trial.Trial) error {
	if len(records) == 0 {
		return nil
	}

	err := t.db.WithContext(ctx).Create(&records).Error
	if err != nil {
		return errors.Wrap(err, "failed to insert trial records")
	}

	t.log.Info().Int("count", len(records)).Msg("trial records stored")

	return nil
}
