package reserve

import (
	"context"
	"errors"

	"auralend/core"

	"github.com/fox-one/pkg/store/db"
)

type reserveStore struct {
	db *db.DB
}

// New new reserve store
func New(db *db.DB) core.IReserveStore {
	return &reserveStore{db: db}
}

func init() {
	db.RegisterMigrate(func(db *db.DB) error {
		tx := db.Update().Model(core.Reserve{})
		if err := tx.AutoMigrate(core.Reserve{}).Error; err != nil {
			return err
		}

		return nil
	})
}

func (s *reserveStore) Save(ctx context.Context, tx *db.DB, reserve *core.Reserve) error {
	if err := tx.Update().Create(reserve).Error; err != nil {
		return err
	}
	return nil
}

func (s *reserveStore) Find(ctx context.Context, assetID string) (*core.Reserve, error) {
	if assetID == "" {
		return nil, errors.New("invalid asset_id")
	}

	var reserve core.Reserve
	if err := s.db.View().Where("asset_id=?", assetID).First(&reserve).Error; err != nil {
		return nil, err
	}

	return &reserve, nil
}

func (s *reserveStore) All(ctx context.Context) ([]*core.Reserve, error) {
	var reserves []*core.Reserve
	if err := s.db.View().Find(&reserves).Error; err != nil {
		return nil, err
	}
	return reserves, nil
}

func (s *reserveStore) AllAsMap(ctx context.Context) (map[string]*core.Reserve, error) {
	reserves, e := s.All(ctx)
	if e != nil {
		return nil, e
	}

	maps := make(map[string]*core.Reserve)
	for _, r := range reserves {
		maps[r.AssetID] = r
	}

	return maps, nil
}

func (s *reserveStore) Update(ctx context.Context, tx *db.DB, reserve *core.Reserve) error {
	version := reserve.Version
	reserve.Version++
	if err := tx.Update().Model(core.Reserve{}).Where("asset_id=? and version=?", reserve.AssetID, version).Update(reserve).Error; err != nil {
		return err
	}

	return nil
}
