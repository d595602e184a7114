package sqlstore

import (
	"context"
	"fmt"

	"github.com/garnizeh/clinicmatch/internal/models"
)

func (s *Store) CreateSwipe(ctx context.Context, sw *models.Swipe) (bool, error) {
	if sw == nil {
		return false, fmt.Errorf("swipe is nil")
	}
	if sw.Created == 0 {
		sw.Created = now()
	}
	res, err := s.sess().InsertBySql(
		`INSERT INTO swipes (swiper_id, swiped_id, type, created) VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		sw.SwiperID, sw.SwipedID, sw.Type, sw.Created,
	).ExecContext(ctx)
	if err != nil {
		return false, fmt.Errorf("insert swipe: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert swipe: %w", err)
	}
	return n > 0, nil
}

func (s *Store) HasSwiped(ctx context.Context, swiperID, swipedID string, t models.SwipeType) (bool, error) {
	var n int
	err := s.sess().SelectBySql(
		`SELECT COUNT(1) FROM swipes WHERE swiper_id = ? AND swiped_id = ? AND type = ?`,
		swiperID, swipedID, t,
	).LoadOneContext(ctx, &n)
	if err != nil {
		return false, fmt.Errorf("has swiped: %w", err)
	}
	return n > 0, nil
}
