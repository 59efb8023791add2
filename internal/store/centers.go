package store

import (
	"context"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"batchtrack-backend/internal/apperr"
	"batchtrack-backend/internal/model"
)

const allCentersKey = "centers:all"

// CenterDirectory reads collection-center reference data through a short
// lived in-memory cache. Only reference data goes through it; batch state is
// always read from the database.
type CenterDirectory struct {
	db    *gorm.DB
	cache *cache.Cache
	ttl   time.Duration
}

// NewCenterDirectory creates a directory caching entries for ttl.
func NewCenterDirectory(db *gorm.DB, ttl time.Duration) *CenterDirectory {
	return &CenterDirectory{
		db:    db,
		cache: cache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

// Get returns the active center with id.
func (d *CenterDirectory) Get(ctx context.Context, id string) (model.CollectionCenter, error) {
	if v, found := d.cache.Get("center:" + id); found {
		return v.(model.CollectionCenter), nil
	}

	var center model.CollectionCenter
	err := d.db.WithContext(ctx).Where("id = ? AND active = ?", id, true).Take(&center).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CollectionCenter{}, apperr.NotFound("collection center %s not found", id)
	}
	if err != nil {
		return model.CollectionCenter{}, apperr.FromDB(err, "load collection center")
	}
	d.cache.Set("center:"+id, center, d.ttl)
	return center, nil
}

// List returns every active center ordered by code.
func (d *CenterDirectory) List(ctx context.Context) ([]model.CollectionCenter, error) {
	if v, found := d.cache.Get(allCentersKey); found {
		return v.([]model.CollectionCenter), nil
	}

	var centers []model.CollectionCenter
	if err := d.db.WithContext(ctx).Where("active = ?", true).Order("code").Find(&centers).Error; err != nil {
		return nil, apperr.FromDB(err, "list collection centers")
	}
	d.cache.Set(allCentersKey, centers, d.ttl)
	return centers, nil
}
