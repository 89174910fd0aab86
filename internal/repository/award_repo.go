package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"sorteio/internal/models"
	"sorteio/internal/services"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrRunNotFound is returned by FindRun for an unknown run ID.
var ErrRunNotFound = errors.New("adjudication run not found")

// AwardRepository stores the outcome of adjudication runs, one row per prize.
type AwardRepository struct {
	db *gorm.DB
}

func NewAwardRepository(db *gorm.DB) *AwardRepository {
	return &AwardRepository{db: db}
}

// AutoMigrate creates the tables owned by this service. numeros_da_sorte
// belongs to the enrollment portal and is left alone.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.PrizeAwardRow{})
}

// SaveRun writes all awards of a run in one transaction. The full award,
// trail included, goes into the jsonb column.
func (r *AwardRepository) SaveRun(ctx context.Context, run services.AdjudicationRun) error {
	rows := make([]models.PrizeAwardRow, 0, len(run.Awards))
	for _, a := range run.Awards {
		trail, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode award %d: %w", a.Slot, err)
		}
		rows = append(rows, models.PrizeAwardRow{
			RunID:         run.RunID,
			CampaignID:    run.CampaignID,
			PoolSize:      run.PoolSize,
			Slot:          a.Slot,
			DrawValue:     a.DrawValue,
			WinningNumber: a.WinningNumber,
			ParticipantID: a.ParticipantID,
			DecisionTier:  string(a.DecisionTier),
			Trail:         datatypes.JSON(trail),
			CreatedAt:     run.DecidedAt,
		})
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("save run %s: %w", run.RunID, err)
		}
		return nil
	})
}

// FindRun rebuilds a stored run, awards in slot order.
func (r *AwardRepository) FindRun(ctx context.Context, runID string) (*services.AdjudicationRun, error) {
	var rows []models.PrizeAwardRow
	if err := r.db.WithContext(ctx).Where("run_id = ?", runID).Order("slot").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find run %s: %w", runID, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	run := &services.AdjudicationRun{
		RunID:      runID,
		CampaignID: rows[0].CampaignID,
		PoolSize:   rows[0].PoolSize,
		DecidedAt:  rows[0].CreatedAt,
	}
	for _, row := range rows {
		var a models.PrizeAward
		if err := json.Unmarshal(row.Trail, &a); err != nil {
			return nil, fmt.Errorf("decode award %d of run %s: %w", row.Slot, runID, err)
		}
		run.Awards = append(run.Awards, a)
		run.Draws = append(run.Draws, models.DrawResult{Slot: a.Slot, RawValue: a.DrawValue, Centena: a.TargetCentena})
	}
	return run, nil
}
