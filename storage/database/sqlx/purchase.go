package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/Bigestdave/LCUPrep/core"
	"github.com/Bigestdave/LCUPrep/core/purchase"
)

type (
	purchaseRow struct {
		ID        string    `db:"id"`
		UserID    string    `db:"user_id"`
		CourseID  string    `db:"course_id"`
		Reference string    `db:"reference"`
		Amount    int       `db:"amount"`
		CreatedAt time.Time `db:"created_at"`
	}

	purchaseRepository struct {
		db core.DB
	}
)

var _ purchase.Repository = (*purchaseRepository)(nil) // interface compliance check

func NewPurchaseRepository(db core.DB) *purchaseRepository {
	return &purchaseRepository{db: db}
}

const purchaseColumns = "id, user_id, course_id, reference, amount, created_at"

func (r purchaseRow) purchase() purchase.Purchase {
	return purchase.Purchase{
		ID:        r.ID,
		UserID:    r.UserID,
		CourseID:  r.CourseID,
		Reference: r.Reference,
		Amount:    r.Amount,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func (repo *purchaseRepository) ListPurchases(ctx context.Context, userID string) ([]purchase.Purchase, error) {
	q := repo.db.Rebind("SELECT " + purchaseColumns + " FROM purchases WHERE user_id = ? ORDER BY created_at, id")

	var rows []purchaseRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "listing purchases")
	}
	purchases := make([]purchase.Purchase, 0, len(rows))
	for _, r := range rows {
		purchases = append(purchases, r.purchase())
	}
	return purchases, nil
}

func (repo *purchaseRepository) CreatePurchase(ctx context.Context, p purchase.Purchase) (purchase.Purchase, bool, error) {
	row := purchaseRow{
		ID:        p.ID,
		UserID:    p.UserID,
		CourseID:  p.CourseID,
		Reference: p.Reference,
		Amount:    p.Amount,
		CreatedAt: p.CreatedAt.UTC(),
	}
	q := "INSERT INTO purchases (" + purchaseColumns + ") " +
		"VALUES (:id, :user_id, :course_id, :reference, :amount, :created_at) " +
		"ON CONFLICT DO NOTHING"
	res, err := sqlx.NamedExecContext(ctx, repo.db, q, row)
	if err != nil {
		return purchase.Purchase{}, false, errors.Wrap(err, "inserting purchase")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return purchase.Purchase{}, false, errors.Wrap(err, "inserting purchase")
	}
	if n > 0 {
		return row.purchase(), true, nil
	}

	var stored purchaseRow
	sel := repo.db.Rebind("SELECT " + purchaseColumns + " FROM purchases WHERE user_id = ? AND course_id = ?")
	if err = sqlx.GetContext(ctx, repo.db, &stored, sel, p.UserID, p.CourseID); err != nil {
		if errors.Cause(err) == sql.ErrNoRows { // the reference conflicted, not the pair
			return purchase.Purchase{}, false, errors.Wrapf(purchase.ErrReferenceUsed, "reference %q", p.Reference)
		}
		return purchase.Purchase{}, false, errors.Wrap(err, "getting existing purchase")
	}
	return stored.purchase(), false, nil
}
