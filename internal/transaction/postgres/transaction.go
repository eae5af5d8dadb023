package postgres

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frahmantamala/payment-verification/internal/core/datamodel/transaction"
	transactionpkg "github.com/frahmantamala/payment-verification/internal/transaction"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) transactionpkg.RepositoryAPI {
	return &TransactionRepository{db: db}
}

// Record inserts the row unless (gateway, external_id) already exists.
// The duplicate path is a first-class return value: inserted=false plus
// the previously stored row, never a uniqueness error.
func (r *TransactionRepository) Record(row *transaction.SMSTransaction) (bool, *transaction.SMSTransaction, error) {
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "gateway"}, {Name: "external_id"}},
		DoNothing: true,
	}).Create(row)
	if res.Error != nil {
		return false, nil, res.Error
	}

	if res.RowsAffected > 0 {
		return true, row, nil
	}

	var existing transaction.SMSTransaction
	err := r.db.Where("gateway = ? AND external_id = ?", row.Gateway, row.ExternalID).
		First(&existing).Error
	if err != nil {
		return false, nil, err
	}
	return false, &existing, nil
}

func (r *TransactionRepository) FindByExternalID(gw, externalID string) (*transaction.SMSTransaction, error) {
	var row transaction.SMSTransaction
	err := r.db.Where("gateway = ? AND external_id = ?", gw, externalID).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *TransactionRepository) FindUnprocessedByGatewayAndAmount(gw string, amount, tolerance decimal.Decimal) ([]*transaction.SMSTransaction, error) {
	var rows []*transaction.SMSTransaction
	err := r.db.
		Where("gateway = ? AND is_processed = ? AND amount BETWEEN ? AND ?",
			gw, false, amount.Sub(tolerance), amount.Add(tolerance)).
		Order("occurred_at ASC").
		Find(&rows).Error
	return rows, err
}
