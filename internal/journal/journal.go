// Package journal persists one row per order forwarded by a runner. The
// channel offers no acknowledgement path back to the producer, so the journal
// is the only durable record of what actually went out and how the venue
// answered.
package journal

import (
	"context"
	"time"

	"github.com/yanun0323/logs"
	"gorm.io/gorm"
	"main/internal/model"
	"main/internal/runner"
	"main/pkg/conn"
)

// Entry is one forwarding attempt with its outcome.
type Entry struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	Venue         string `gorm:"index"`
	Symbol        string
	Side          string
	Kind          string
	Quantity      string
	Price         string
	ClientOrderID string
	Status        string `gorm:"index"`
	Detail        string
	CreatedAt     time.Time
}

func (Entry) TableName() string { return "order_journal" }

// Journal writes entries through a shared Postgres pool.
type Journal struct {
	db *gorm.DB
}

// New migrates the journal table and returns a writer.
func New(client *conn.Client) (*Journal, error) {
	db := client.DB()
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Record implements runner.Recorder. A journal write failure never fails the
// forwarding path; it is logged and dropped.
func (j *Journal) Record(ctx context.Context, venue string, req model.OrderRequest, status runner.Status, detail string) {
	entry := Entry{
		Venue:         venue,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Kind:          req.Type,
		Quantity:      req.Quantity,
		Price:         req.Price,
		ClientOrderID: req.ClientOrderID,
		Status:        string(status),
		Detail:        detail,
	}
	if err := j.db.WithContext(ctx).Create(&entry).Error; err != nil {
		logs.Errorf("journal write failed, err: %+v", err)
	}
}
