// Package store persists briefings in the briefings table through GORM.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jimdaga/briefdesk/internal/briefing"
	"github.com/jimdaga/briefdesk/internal/metrics"
	"github.com/jimdaga/briefdesk/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Page is one window of an owner's briefings, newest first, plus the exact
// number of briefings the owner has.
type Page struct {
	Items []briefing.Briefing
	Total int64
}

// Store wraps the briefings table. Every query is scoped to one owner.
type Store struct {
	db *gorm.DB
	// shape controls how documents are serialized into the content column.
	shape briefing.Shape
}

// New returns a Store writing content as JSON objects.
func New(db *gorm.DB) *Store {
	return &Store{db: db, shape: briefing.ShapeObject}
}

// List returns page (1-based) of the owner's briefings ordered by creation
// time, newest first.
func (s *Store) List(ctx context.Context, ownerID uint, page, pageSize int) (Page, error) {
	if page < 1 || pageSize < 1 {
		return Page{}, briefing.ValidationError("list", fmt.Sprintf("invalid page %d/size %d", page, pageSize))
	}

	var out Page
	err := s.observe("list", func() error {
		q := s.db.WithContext(ctx).Model(&models.Briefing{}).Where("user_id = ?", ownerID)
		if err := q.Count(&out.Total).Error; err != nil {
			return err
		}

		var rows []models.Briefing
		if err := s.db.WithContext(ctx).
			Where("user_id = ?", ownerID).
			Order("created_at DESC").
			Limit(pageSize).
			Offset((page - 1) * pageSize).
			Find(&rows).Error; err != nil {
			return err
		}

		out.Items = make([]briefing.Briefing, 0, len(rows))
		for _, row := range rows {
			b, err := toBriefing(row)
			if err != nil {
				return err
			}
			out.Items = append(out.Items, b)
		}
		return nil
	})
	if err != nil {
		return Page{}, briefing.DataStoreError("list", err)
	}
	return out, nil
}

// Get fetches one briefing by id.
func (s *Store) Get(ctx context.Context, ownerID uint, id string) (*briefing.Briefing, error) {
	var row models.Briefing
	err := s.observe("get", func() error {
		return s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).First(&row).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, briefing.NotFoundError("get", id)
	}
	if err != nil {
		return nil, briefing.DataStoreError("get", err)
	}

	b, err := toBriefing(row)
	if err != nil {
		return nil, briefing.DataStoreError("get", err)
	}
	return &b, nil
}

// Create inserts a briefing and returns the stored row with its id and
// timestamps filled in.
func (s *Store) Create(ctx context.Context, ownerID uint, title string, doc briefing.Document) (*briefing.Briefing, error) {
	return s.insert(ctx, ownerID, title, doc, time.Time{})
}

// Import inserts a briefing keeping its original creation time, used when
// loading rows exported from the legacy store.
func (s *Store) Import(ctx context.Context, ownerID uint, b briefing.Briefing) (*briefing.Briefing, error) {
	return s.insert(ctx, ownerID, b.Title, b.Document, b.CreatedAt)
}

func (s *Store) insert(ctx context.Context, ownerID uint, title string, doc briefing.Document, createdAt time.Time) (*briefing.Briefing, error) {
	content, err := briefing.EncodeContent(doc, s.shape)
	if err != nil {
		return nil, briefing.DataStoreError("create", err)
	}

	row := models.Briefing{
		UserID:    ownerID,
		Title:     title,
		Content:   datatypes.JSON(content),
		CreatedAt: createdAt,
	}
	if err := s.observe("create", func() error {
		return s.db.WithContext(ctx).Omit(clause.Associations).Create(&row).Error
	}); err != nil {
		return nil, briefing.DataStoreError("create", err)
	}

	b, err := toBriefing(row)
	if err != nil {
		return nil, briefing.DataStoreError("create", err)
	}
	return &b, nil
}

// Update rewrites title and content of an existing briefing in place.
func (s *Store) Update(ctx context.Context, ownerID uint, id, title string, doc briefing.Document) (*briefing.Briefing, error) {
	content, err := briefing.EncodeContent(doc, s.shape)
	if err != nil {
		return nil, briefing.DataStoreError("update", err)
	}

	var row models.Briefing
	err = s.observe("update", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("id = ? AND user_id = ?", id, ownerID).First(&row).Error; err != nil {
				return err
			}
			return tx.Model(&row).Updates(map[string]interface{}{
				"title":   title,
				"content": datatypes.JSON(content),
			}).Error
		})
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, briefing.NotFoundError("update", id)
	}
	if err != nil {
		return nil, briefing.DataStoreError("update", err)
	}

	row.Title = title
	row.Content = datatypes.JSON(content)
	b, err := toBriefing(row)
	if err != nil {
		return nil, briefing.DataStoreError("update", err)
	}
	return &b, nil
}

// Delete removes a briefing. Deleting an id that does not exist succeeds.
func (s *Store) Delete(ctx context.Context, ownerID uint, id string) error {
	err := s.observe("delete", func() error {
		return s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, ownerID).Delete(&models.Briefing{}).Error
	})
	if err != nil {
		return briefing.DataStoreError("delete", err)
	}
	return nil
}

func (s *Store) observe(op string, fn func() error) error {
	err := fn()
	outcome := metrics.Outcome(err)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		outcome = "not_found"
	}
	metrics.StoreOperations.WithLabelValues(op, outcome).Inc()
	return err
}

func toBriefing(row models.Briefing) (briefing.Briefing, error) {
	doc, err := briefing.DecodeContent(row.Content)
	if err != nil {
		return briefing.Briefing{}, fmt.Errorf("briefing %s: %w", row.ID, err)
	}
	return briefing.Briefing{
		ID:        row.ID,
		OwnerID:   row.UserID,
		Title:     row.Title,
		Document:  doc,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}
