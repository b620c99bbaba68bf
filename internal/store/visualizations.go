package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kilupskalvis/vizedit/internal/models"
	bolt "go.etcd.io/bbolt"
)

// SaveVisualization creates v when its ID is zero and replaces the stored
// visualization otherwise. The owning query must exist. The saved copy is
// returned with its ID and timestamps set.
func (s *Store) SaveVisualization(_ context.Context, v *models.Visualization) (*models.Visualization, error) {
	if v == nil {
		return nil, fmt.Errorf("visualization is nil")
	}
	if v.Type == "" {
		return nil, fmt.Errorf("visualization type cannot be empty")
	}

	saved := v.Clone()
	err := s.db.Update(func(tx *bolt.Tx) error {
		if !queryExists(tx, saved.QueryID) {
			return fmt.Errorf("query %d: %w", saved.QueryID, ErrNotFound)
		}

		bucket := tx.Bucket(bucketVisualizations)
		now := time.Now().UTC()

		if saved.ID == 0 {
			id, err := nextID(tx, counterVizID)
			if err != nil {
				return err
			}
			saved.ID = id
			saved.CreatedAt = now
		} else {
			data := bucket.Get(idKey(saved.ID))
			if data == nil {
				return fmt.Errorf("visualization %d: %w", saved.ID, ErrNotFound)
			}
			var prior models.Visualization
			if err := json.Unmarshal(data, &prior); err != nil {
				return fmt.Errorf("unmarshal visualization: %w", err)
			}
			if prior.QueryID != saved.QueryID {
				return fmt.Errorf("visualization %d belongs to query %d: %w", saved.ID, prior.QueryID, ErrQueryMismatch)
			}
			if saved.CreatedAt.IsZero() {
				saved.CreatedAt = prior.CreatedAt
			}
		}
		saved.UpdatedAt = now
		if saved.Options == nil {
			saved.Options = models.Options{}
		}

		data, err := json.Marshal(saved)
		if err != nil {
			return fmt.Errorf("marshal visualization: %w", err)
		}
		return bucket.Put(idKey(saved.ID), data)
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// GetVisualization retrieves a visualization by ID. Returns (nil, nil) if not found.
func (s *Store) GetVisualization(id int64) (*models.Visualization, error) {
	var v *models.Visualization

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketVisualizations).Get(idKey(id))
		if data == nil {
			return nil
		}
		v = &models.Visualization{}
		return json.Unmarshal(data, v)
	})

	return v, err
}

// ListVisualizations returns the visualizations of a query in creation order.
func (s *Store) ListVisualizations(queryID int64) ([]*models.Visualization, error) {
	var vizs []*models.Visualization
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		vizs, err = visualizationsForQuery(tx, queryID)
		return err
	})
	return vizs, err
}

// DeleteVisualization removes a visualization.
func (s *Store) DeleteVisualization(id int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketVisualizations)
		if bucket.Get(idKey(id)) == nil {
			return fmt.Errorf("visualization %d: %w", id, ErrNotFound)
		}
		return bucket.Delete(idKey(id))
	})
}

// visualizationsForQuery scans the bucket in key order, which is ID order.
func visualizationsForQuery(tx *bolt.Tx, queryID int64) ([]*models.Visualization, error) {
	var out []*models.Visualization
	err := tx.Bucket(bucketVisualizations).ForEach(func(_, data []byte) error {
		var v models.Visualization
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("unmarshal visualization: %w", err)
		}
		if v.QueryID == queryID {
			out = append(out, &v)
		}
		return nil
	})
	return out, err
}
