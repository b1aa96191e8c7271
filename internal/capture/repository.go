package capture

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/n4ldr/smcontrol/internal/session"
)

// Repository provides capture store operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a repository over an open store.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db.db}
}

// Record stores an accepted session pair.
func (r *Repository) Record(radioAddr string, id session.Identity) error {
	capture := SessionCapture{
		RadioAddr:   radioAddr,
		SessionA:    id.A,
		SessionB:    id.B,
		AcceptedVia: id.Tag,
		CapturedAt:  time.Now(),
	}
	if err := r.db.Create(&capture).Error; err != nil {
		return fmt.Errorf("record capture: %w", err)
	}
	return nil
}

// Seed returns the most recent accepted pair for radioAddr as handshake seed
// data. With no capture on file it returns an empty seed, which limits the
// resolver to time-derived strategies.
func (r *Repository) Seed(radioAddr string) (session.Seed, error) {
	var capture SessionCapture
	err := r.db.Where("radio_addr = ?", radioAddr).Order("captured_at DESC").First(&capture).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return session.Seed{}, nil
	}
	if err != nil {
		return session.Seed{}, fmt.Errorf("load capture seed: %w", err)
	}
	return session.Seed{
		CapturedA:  capture.SessionA,
		CapturedB:  capture.SessionB,
		HasCapture: true,
	}, nil
}

// Prune deletes captures older than keep, except the newest one per radio.
func (r *Repository) Prune(keep time.Duration) error {
	cutoff := time.Now().Add(-keep)
	return r.db.
		Where("captured_at < ? AND id NOT IN (?)", cutoff,
			r.db.Model(&SessionCapture{}).Select("MAX(id)").Group("radio_addr")).
		Delete(&SessionCapture{}).Error
}

// Count returns the number of stored captures.
func (r *Repository) Count() (int64, error) {
	var n int64
	err := r.db.Model(&SessionCapture{}).Count(&n).Error
	return n, err
}
