package inmemdb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Bigestdave/LCUPrep/core/purchase"
)

type purchaseRepository struct {
	db *DB
}

var _ purchase.Repository = (*purchaseRepository)(nil) // interface compliance check

func NewPurchaseRepository(db *DB) *purchaseRepository {
	return &purchaseRepository{db: db}
}

func (repo *purchaseRepository) ListPurchases(_ context.Context, userID string) ([]purchase.Purchase, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	purchases := make([]purchase.Purchase, 0)
	for _, p := range repo.db.purchases {
		if p.UserID == userID {
			purchases = append(purchases, p)
		}
	}
	return purchases, nil
}

func (repo *purchaseRepository) CreatePurchase(_ context.Context, p purchase.Purchase) (purchase.Purchase, bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.users[p.UserID]; !ok {
		return purchase.Purchase{}, false, errors.Errorf("inserting purchase: unknown user %s", p.UserID)
	}
	if _, ok := repo.db.courses[p.CourseID]; !ok {
		return purchase.Purchase{}, false, errors.Errorf("inserting purchase: unknown course %s", p.CourseID)
	}
	for _, existing := range repo.db.purchases {
		if existing.UserID == p.UserID && existing.CourseID == p.CourseID {
			return existing, false, nil
		}
	}
	for _, existing := range repo.db.purchases {
		if existing.Reference == p.Reference {
			return purchase.Purchase{}, false, errors.Wrapf(purchase.ErrReferenceUsed, "reference %q", p.Reference)
		}
	}
	repo.db.purchases = append(repo.db.purchases, p)
	return p, true, nil
}
