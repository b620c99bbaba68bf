package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kilupskalvis/vizedit/internal/models"
	bolt "go.etcd.io/bbolt"
)

// Record appends an analytics event.
func (s *Store) Record(_ context.Context, ev models.Event) error {
	_, err := s.AppendEvent(ev)
	return err
}

// AppendEvent stores an event and returns it with its assigned ID.
func (s *Store) AppendEvent(ev models.Event) (*models.Event, error) {
	if ev.Action == "" {
		return nil, fmt.Errorf("event action cannot be empty")
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		id, err := nextID(tx, counterEventID)
		if err != nil {
			return err
		}
		ev.ID = id
		if ev.Timestamp.IsZero() {
			ev.Timestamp = time.Now().UTC()
		}

		data, err := json.Marshal(&ev)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		return tx.Bucket(bucketEvents).Put(idKey(id), data)
	})
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// ListEvents returns up to limit events, newest first. A limit of zero or
// less returns all events.
func (s *Store) ListEvents(limit int) ([]*models.Event, error) {
	var events []*models.Event

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(events) >= limit {
				break
			}
			var ev models.Event
			if err := json.Unmarshal(v, &ev); err != nil {
				return fmt.Errorf("unmarshal event: %w", err)
			}
			events = append(events, &ev)
		}
		return nil
	})

	return events, err
}
