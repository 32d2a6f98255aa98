// Package store is the persistence layer for connections, projects and the
// mirrored artifacts. Every artifact write is an upsert on the artifact's
// natural key, so re-running an extraction never duplicates rows.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/adomirror/adomirror/pkg/secret"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalid marks input rejected by validation.
var ErrInvalid = errors.New("invalid input")

// ErrInvalidPageToken is returned when a listing token does not parse.
var ErrInvalidPageToken = errors.New("invalid page token")

// Store provides database operations for the mirror.
type Store struct {
	db  *gorm.DB
	box *secret.Box
}

// New creates a Store. box may be nil, in which case tokens are stored as
// given.
func New(db *gorm.DB, box *secret.Box) *Store {
	if box == nil {
		box = &secret.Box{}
	}
	return &Store{db: db, box: box}
}

// WithDB returns a Store bound to another handle, typically a session
// pinned to one connection or a transaction.
func (s *Store) WithDB(db *gorm.DB) *Store {
	return &Store{db: db, box: s.box}
}

// DB returns the underlying handle.
func (s *Store) DB() *gorm.DB { return s.db }

// AutoMigrate creates or updates every table owned by the store.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(Models()...)
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func notFound(err error, what string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", what, err)
}

func onConflict(key []string, updates []string) clause.OnConflict {
	cols := make([]clause.Column, len(key))
	for i, k := range key {
		cols[i] = clause.Column{Name: k}
	}
	return clause.OnConflict{Columns: cols, DoUpdates: clause.AssignmentColumns(updates)}
}

// upsertAll inserts rows, updating the given columns of rows whose natural
// key already exists.
func upsertAll[T any](db *gorm.DB, rows []T, key []string, updates []string) error {
	if len(rows) == 0 {
		return nil
	}
	return db.Clauses(onConflict(key, updates)).CreateInBatches(rows, 100).Error
}

// Page selects one page of a listing. Token is opaque to callers.
type Page struct {
	Size  int
	Token string
}

func (p Page) limit() int {
	switch {
	case p.Size <= 0:
		return 50
	case p.Size > 500:
		return 500
	}
	return p.Size
}

// PageResult is one page of rows.
type PageResult[T any] struct {
	Items         []T    `json:"items"`
	NextPageToken string `json:"nextPageToken"`
	TotalSize     int64  `json:"totalSize"`
}

// row is implemented by every listable model.
type row interface{ GetID() uint }

// listPage pages rows by ascending id. The token is the last id served.
func listPage[T row](ctx context.Context, db *gorm.DB, page Page, scope func(*gorm.DB) *gorm.DB) (*PageResult[T], error) {
	var model T
	base := func() *gorm.DB { return scope(db.WithContext(ctx).Model(&model)) }

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}

	size := page.limit()
	q := base().Order("id ASC").Limit(size + 1)
	if page.Token != "" {
		after, err := strconv.ParseUint(page.Token, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w %q", ErrInvalidPageToken, page.Token)
		}
		q = q.Where("id > ?", after)
	}

	items := []T{}
	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}

	res := &PageResult[T]{TotalSize: total}
	if len(items) > size {
		items = items[:size]
		res.NextPageToken = strconv.FormatUint(uint64(items[size-1].GetID()), 10)
	}
	res.Items = items
	return res, nil
}

func byProject(projectID uint) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB { return q.Where("project_id = ?", projectID) }
}
