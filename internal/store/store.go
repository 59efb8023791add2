package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"batchtrack-backend/internal/apperr"
	"batchtrack-backend/internal/model"
	"batchtrack-backend/internal/partition"
)

// Store is the single shared relational store every lifecycle goes through.
type Store interface {
	// DB returns a handle for reads outside a transaction.
	DB(ctx context.Context) *gorm.DB
	// Transaction runs fn in one database transaction. Any error rolls back
	// every write made through tx.
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// FindByID loads the row with id from h into dest.
func FindByID(db *gorm.DB, h partition.Handle, id string, dest any) error {
	err := h.Scope(db).Where("id = ?", id).Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s %s not found", h.Kind(), id)
	}
	return apperr.FromDB(err, fmt.Sprintf("load %s %s", h.Kind(), id))
}

// LockByID loads the row with id from h into dest and holds a row lock on it
// until tx ends. SQLite ignores the lock clause; its single writer gives the
// same serialization.
func LockByID(tx *gorm.DB, h partition.Handle, id string, dest any) error {
	err := h.Scope(tx).Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id).Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s %s not found", h.Kind(), id)
	}
	return apperr.FromDB(err, fmt.Sprintf("lock %s %s", h.Kind(), id))
}

// LockIDs takes row locks on the rows of h whose id is in ids, in id order so
// concurrent callers acquire them in the same sequence. It returns the ids
// that exist; missing ones are not an error here.
func LockIDs(tx *gorm.DB, h partition.Handle, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var locked []string
	err := h.Scope(tx).Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id IN ?", ids).Order("id").Pluck("id", &locked).Error
	if err != nil {
		return nil, apperr.FromDB(err, fmt.Sprintf("lock %s rows", h.Kind()))
	}
	return locked, nil
}

// Exists reports whether h has a row matching query.
func Exists(db *gorm.DB, h partition.Handle, query string, args ...any) (bool, error) {
	var count int64
	if err := h.Scope(db).Where(query, args...).Limit(1).Count(&count).Error; err != nil {
		return false, apperr.FromDB(err, fmt.Sprintf("check %s", h.Kind()))
	}
	return count > 0, nil
}

// NextBatchNumber issues the next processing batch number of the partition
// behind h: the largest stored number plus one, so an empty partition starts
// at 01 again. The per-partition sequence row is locked inside tx first, which
// makes concurrent creators queue instead of reading the same maximum.
func NextBatchNumber(tx *gorm.DB, h partition.Handle) (string, error) {
	seq := model.BatchSequence{PartitionKey: h.Table()}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seq).Error; err != nil {
		return "", apperr.FromDB(err, "init batch sequence")
	}
	var locked model.BatchSequence
	if err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("partition_key = ?", h.Table()).Take(&locked).Error; err != nil {
		return "", apperr.FromDB(err, "lock batch sequence")
	}

	var current int
	if err := h.Scope(tx).Select("COALESCE(MAX(CAST(batch_number AS INTEGER)), 0)").Scan(&current).Error; err != nil {
		return "", apperr.FromDB(err, "read max batch number")
	}

	next := current + 1
	if err := tx.Model(&model.BatchSequence{}).Where("partition_key = ?", h.Table()).
		UpdateColumn("last_value", next).Error; err != nil {
		return "", apperr.FromDB(err, "record batch sequence")
	}
	return FormatBatchNumber(next), nil
}

// FormatBatchNumber zero-pads n to at least two digits.
func FormatBatchNumber(n int) string {
	return fmt.Sprintf("%02d", n)
}
