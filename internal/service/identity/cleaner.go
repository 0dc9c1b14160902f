package identity

import (
	"context"
	"log"
	"time"
)

const DefaultCleanupInterval = time.Hour

// StartCleaner periodically purges expired session tokens and consumed-link records.
func (s *Service) StartCleaner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	go s.cleanupLoop(ctx, interval)
}

func (s *Service) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.cleanupExpired(ctx); err != nil {
				log.Printf("cleanup expired auth records error: %v", err)
			}
		}
	}
}

func (s *Service) cleanupExpired(ctx context.Context) error {
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE expires_at <= ?`, now); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM consumed_links WHERE expires_at <= ?`, now)
	return err
}
