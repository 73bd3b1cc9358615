package obligation

import (
	"context"
	"errors"

	"auralend/core"

	"github.com/fox-one/pkg/store/db"
)

type obligationStore struct {
	db *db.DB
}

// New new obligation store
func New(db *db.DB) core.IObligationStore {
	return &obligationStore{db: db}
}

func init() {
	db.RegisterMigrate(func(db *db.DB) error {
		tx := db.Update().Model(core.Obligation{})
		if err := tx.AutoMigrate(core.Obligation{}).Error; err != nil {
			return err
		}

		return nil
	})
}

func (s *obligationStore) Save(ctx context.Context, tx *db.DB, obligation *core.Obligation) error {
	if err := tx.Update().Create(obligation).Error; err != nil {
		return err
	}
	return nil
}

func (s *obligationStore) Find(ctx context.Context, userID string) (*core.Obligation, error) {
	if userID == "" {
		return nil, errors.New("invalid user_id")
	}

	var obligation core.Obligation
	if err := s.db.View().Where("user_id=?", userID).First(&obligation).Error; err != nil {
		return nil, err
	}

	return &obligation, nil
}

func (s *obligationStore) All(ctx context.Context) ([]*core.Obligation, error) {
	var obligations []*core.Obligation
	if err := s.db.View().Find(&obligations).Error; err != nil {
		return nil, err
	}
	return obligations, nil
}

func (s *obligationStore) Update(ctx context.Context, tx *db.DB, obligation *core.Obligation) error {
	version := obligation.Version
	obligation.Version++
	if err := tx.Update().Model(core.Obligation{}).Where("user_id=? and version=?", obligation.UserID, version).Update(obligation).Error; err != nil {
		return err
	}

	return nil
}
