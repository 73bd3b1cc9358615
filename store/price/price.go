package price

import (
	"context"
	"errors"

	"auralend/core"

	"github.com/fox-one/pkg/store/db"
	"github.com/jinzhu/gorm"
)

type priceStore struct {
	db *db.DB
}

// New new price store
func New(db *db.DB) core.IPriceStore {
	return &priceStore{db: db}
}

func init() {
	db.RegisterMigrate(func(db *db.DB) error {
		tx := db.Update().Model(core.Price{})
		if err := tx.AutoMigrate(core.Price{}).Error; err != nil {
			return err
		}

		return nil
	})
}

func (s *priceStore) Save(ctx context.Context, tx *db.DB, price *core.Price) error {
	var existing core.Price
	err := tx.Update().Where("feed_id=?", price.FeedID).First(&existing).Error
	if gorm.IsRecordNotFoundError(err) {
		return tx.Update().Create(price).Error
	}
	if err != nil {
		return err
	}

	return tx.Update().Model(core.Price{}).Where("feed_id=?", price.FeedID).Updates(map[string]interface{}{
		"content":   price.Content,
		"passed_at": price.PassedAt,
	}).Error
}

func (s *priceStore) Find(ctx context.Context, feedID string) (*core.Price, error) {
	if feedID == "" {
		return nil, errors.New("invalid feed_id")
	}

	var price core.Price
	err := s.db.View().Where("feed_id=?", feedID).First(&price).Error
	if gorm.IsRecordNotFoundError(err) {
		return &price, nil
	}
	if err != nil {
		return nil, err
	}

	return &price, nil
}

func (s *priceStore) All(ctx context.Context) ([]*core.Price, error) {
	var prices []*core.Price
	if err := s.db.View().Find(&prices).Error; err != nil {
		return nil, err
	}
	return prices, nil
}
