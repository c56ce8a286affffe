package ledger

import (
	"context"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// UsageRecord is one persisted model invocation.
type UsageRecord struct {
	ID        uint      `gorm:"primarykey"`
	Model     string    `gorm:"index;size:128"`
	TokensIn  int       `gorm:"column:tokens_in"`
	TokensOut int       `gorm:"column:tokens_out"`
	Cost      float64   `gorm:"column:cost"`
	CreatedAt time.Time `gorm:"index"`
}

// GormLedger persists usage rows. It implements the CostLedger contract:
// callers treat Record as fire-and-forget and the engine swallows failures.
type GormLedger struct {
	db *gorm.DB
}

// NewGormLedger migrates the usage table and returns the ledger.
func NewGormLedger(db *gorm.DB) (*GormLedger, error) {
	if err := db.AutoMigrate(&UsageRecord{}); err != nil {
		return nil, err
	}
	return &GormLedger{db: db}, nil
}

// Record inserts one usage row.
func (l *GormLedger) Record(ctx context.Context, model string, tokensIn, tokensOut int, cost float64) error {
	record := UsageRecord{
		Model:     model,
		TokensIn:  tokensIn,
		TokensOut: tokensOut,
		Cost:      cost,
		CreatedAt: time.Now(),
	}
	if err := l.db.WithContext(ctx).Create(&record).Error; err != nil {
		fiberlog.Warnf("Ledger: failed to record usage for %s: %v", model, err)
		return err
	}
	return nil
}

// NoopLedger discards usage rows; used when no ledger database is
// configured.
type NoopLedger struct{}

func NewNoopLedger() *NoopLedger { return &NoopLedger{} }

func (NoopLedger) Record(context.Context, string, int, int, float64) error { return nil }
