package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/autobid/auction-api/internal/metrics"
	"github.com/autobid/auction-api/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Sweeper moves auctions along their schedule: waiting auctions whose start
// time has passed are started, and started auctions whose end time has
// passed are completed.
type Sweeper struct {
	ledger   *Service
	interval time.Duration
}

func NewSweeper(ledger *Service, interval time.Duration) *Sweeper {
	return &Sweeper{ledger: ledger, interval: interval}
}

// Run sweeps every interval until ctx is done.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.ledger.logger.WithField("interval", w.interval.String()).Info("Auction sweeper started")
	for {
		select {
		case <-ctx.Done():
			w.ledger.logger.Info("Auction sweeper stopped")
			return
		case <-ticker.C:
			if _, err := w.SweepOnce(ctx); err != nil {
				w.ledger.logger.WithError(err).Warn("Auction sweep failed")
			}
		}
	}
}

// SweepOnce applies due transitions and returns how many auctions changed.
func (w *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := w.ledger.now().UTC()
	db := w.ledger.db.WithContext(ctx)

	started, err := advance(db, models.AuctionWaiting, models.AuctionStarted, "start_time <= ?", now)
	if err != nil {
		return 0, err
	}
	completed, err := advance(db, models.AuctionStarted, models.AuctionCompleted, "end_time < ?", now)
	if err != nil {
		return started, err
	}

	if started+completed > 0 {
		w.ledger.logger.WithFields(logrus.Fields{
			"started":   started,
			"completed": completed,
		}).Info("Auction sweep applied transitions")
	}
	return started + completed, nil
}

func advance(db *gorm.DB, from, to models.AuctionStatus, due string, now time.Time) (int, error) {
	var ids []uint
	if err := db.Model(&models.Auction{}).Where("status = ?", from).Where(due, now).Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("ledger: find %s auctions: %w", from, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	// The status guard skips rows changed by hand since the lookup.
	res := db.Model(&models.Auction{}).Where("id IN ? AND status = ?", ids, from).Update("status", to)
	if res.Error != nil {
		return 0, fmt.Errorf("ledger: %s -> %s: %w", from, to, res.Error)
	}
	for i := int64(0); i < res.RowsAffected; i++ {
		metrics.RecordAuctionTransition(string(from), string(to))
	}
	return int(res.RowsAffected), nil
}
