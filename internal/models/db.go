package models

import (
	"time"

	"gorm.io/datatypes"
)

// LuckyNumberRow maps the portal's numeros_da_sorte table.
type LuckyNumberRow struct {
	ID          uint64  `gorm:"column:id;primaryKey;autoIncrement"`
	Aluno       string  `gorm:"column:Aluno;type:text"`
	Numero      int     `gorm:"column:numero_da_sorte;type:int;not null;uniqueIndex"`
	CPF         string  `gorm:"column:cpf;type:varchar(14)"`
	CodigoAluno *string `gorm:"column:codigo_aluno;type:varchar(32)"`
	Lote        int     `gorm:"column:lote;type:int"`
}

// PrizeAwardRow is the persisted form of a PrizeAward for one adjudication run.
type PrizeAwardRow struct {
	ID            uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	RunID         string         `gorm:"column:run_id;type:varchar(64);not null;index"`
	CampaignID    string         `gorm:"column:campaign_id;type:varchar(64);not null"`
	PoolSize      int            `gorm:"column:pool_size;type:int;not null"`
	Slot          int            `gorm:"column:slot;type:int;not null"`
	DrawValue     int            `gorm:"column:draw_value;type:int;not null"`
	WinningNumber string         `gorm:"column:winning_number;type:char(6);not null"`
	ParticipantID string         `gorm:"column:participant_id;type:varchar(64);not null"`
	DecisionTier  string         `gorm:"column:decision_tier;type:varchar(32);not null"`
	Trail         datatypes.JSON `gorm:"column:trail;type:jsonb;not null"`
	CreatedAt     time.Time      `gorm:"column:created_at;type:timestamp"`
}

func (LuckyNumberRow) TableName() string { return "numeros_da_sorte" }
func (PrizeAwardRow) TableName() string  { return "prize_awards" }
