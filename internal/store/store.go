// Package store is the table-scoped client of the relational database:
// filtered selects, insert, update-by-id and delete-by-id, each write
// followed by a realtime change event.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/toiture-backoffice/internal/realtime"
	"github.com/diewo77/toiture-backoffice/internal/status"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrMissingID = errors.New("record has no id")
)

// Record is anything with a string identity.
type Record interface {
	GetID() string
}

// Query selects rows of a table.
type Query struct {
	Search string
	// Status is an exact status code, or "" / status.All for no filter.
	Status string
	Limit  int
}

// Schema describes how a table is searched and ordered.
type Schema struct {
	Table         string
	SearchColumns []string
	StatusColumn  string
	// Order defaults to "created_at DESC".
	Order string
}

// Table is the client of one table.
type Table[T Record] struct {
	db     *gorm.DB
	schema Schema
	pub    realtime.Publisher
}

// NewTable builds a table client. pub may be nil when another component
// (the PostgreSQL trigger) emits change events.
func NewTable[T Record](db *gorm.DB, schema Schema, pub realtime.Publisher) *Table[T] {
	if schema.Order == "" {
		schema.Order = "created_at DESC"
	}
	return &Table[T]{db: db, schema: schema, pub: pub}
}

// Name is the table name.
func (t *Table[T]) Name() string { return t.schema.Table }

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// List returns the rows matching q: a case-insensitive substring search
// across the search columns and an exact status match.
func (t *Table[T]) List(ctx context.Context, q Query) ([]T, error) {
	tx := t.db.WithContext(ctx).Model(new(T))
	if term := strings.TrimSpace(q.Search); term != "" && len(t.schema.SearchColumns) > 0 {
		like := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
		conds := make([]string, 0, len(t.schema.SearchColumns))
		args := make([]any, 0, len(t.schema.SearchColumns))
		for _, col := range t.schema.SearchColumns {
			conds = append(conds, "LOWER(COALESCE("+col+", '')) LIKE ? ESCAPE '\\'")
			args = append(args, like)
		}
		tx = tx.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
	if st := strings.TrimSpace(q.Status); st != "" && st != status.All && t.schema.StatusColumn != "" {
		tx = tx.Where(t.schema.StatusColumn+" = ?", status.Normalize(st))
	}
	tx = tx.Order(t.schema.Order)
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	var rows []T
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", t.schema.Table, err)
	}
	return rows, nil
}

// Select returns every row ordered by order, loading only columns
// (all when empty).
func (t *Table[T]) Select(ctx context.Context, order string, columns ...string) ([]T, error) {
	tx := t.db.WithContext(ctx).Model(new(T))
	if len(columns) > 0 {
		tx = tx.Select(columns)
	}
	var rows []T
	if err := tx.Order(order).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("select %s: %w", t.schema.Table, err)
	}
	return rows, nil
}

// Get loads one row by id.
func (t *Table[T]) Get(ctx context.Context, id string) (T, error) {
	var rec T
	err := t.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("get %s: %w", t.schema.Table, err)
	}
	return rec, nil
}

// Create inserts rec and returns the stored row.
func (t *Table[T]) Create(ctx context.Context, rec *T) (T, error) {
	if err := t.db.WithContext(ctx).Create(rec).Error; err != nil {
		return *rec, fmt.Errorf("create %s: %w", t.schema.Table, err)
	}
	t.publish(realtime.OpInsert, (*rec).GetID())
	return t.Get(ctx, (*rec).GetID())
}

// Update overwrites the row identified by rec's id and returns it as stored.
// The row creation timestamp is never overwritten.
func (t *Table[T]) Update(ctx context.Context, rec *T) (T, error) {
	id := (*rec).GetID()
	if id == "" {
		return *rec, ErrMissingID
	}
	if _, err := t.Get(ctx, id); err != nil {
		return *rec, err
	}
	if err := t.db.WithContext(ctx).Omit("created_at").Save(rec).Error; err != nil {
		return *rec, fmt.Errorf("update %s: %w", t.schema.Table, err)
	}
	t.publish(realtime.OpUpdate, id)
	return t.Get(ctx, id)
}

// Delete removes the row with id.
func (t *Table[T]) Delete(ctx context.Context, id string) error {
	res := t.db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	if res.Error != nil {
		return fmt.Errorf("delete %s: %w", t.schema.Table, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	t.publish(realtime.OpDelete, id)
	return nil
}

func (t *Table[T]) publish(op realtime.Op, id string) {
	if t.pub != nil {
		t.pub.Publish(realtime.Event{Table: t.schema.Table, Op: op, ID: id})
	}
}
