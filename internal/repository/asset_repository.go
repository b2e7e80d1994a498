package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/wrenchworks/cmms-api/internal/models"
)

// AssetRepository reads equipment assets. Asset CRUD lives outside the
// lifecycle engine; only lookups are needed here.
type AssetRepository struct {
	db *sqlx.DB
}

// NewAssetRepository constructs the repository.
func NewAssetRepository(db *sqlx.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// FindByID fetches an asset by identifier.
func (r *AssetRepository) FindByID(ctx context.Context, id string) (*models.Asset, error) {
	const query = `SELECT id, name, type, location, created_at FROM assets WHERE id = $1`
	var asset models.Asset
	if err := sqlx.GetContext(ctx, r.db, &asset, query, id); err != nil {
		return nil, err
	}
	return &asset, nil
}
