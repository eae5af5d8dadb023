package postgres

import (
	stderrors "errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frahmantamala/payment-verification/internal/core/datamodel/order"
	"github.com/frahmantamala/payment-verification/internal/core/datamodel/transaction"
	"github.com/frahmantamala/payment-verification/internal/core/datamodel/verification"
	verificationpkg "github.com/frahmantamala/payment-verification/internal/verification"
)

type VerificationRepository struct {
	db *gorm.DB
}

func NewVerificationRepository(db *gorm.DB) verificationpkg.RepositoryAPI {
	return &VerificationRepository{db: db}
}

// FindOrCreate inserts the claim unless (order_id, gateway, transaction_id)
// already exists, returning the stored row either way. Concurrent duplicate
// submissions collapse onto the same claim.
func (r *VerificationRepository) FindOrCreate(v *verification.Verification) (*verification.Verification, error) {
	res := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "order_id"}, {Name: "payment_gateway"}, {Name: "transaction_id"},
		},
		DoNothing: true,
	}).Create(v)
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected > 0 {
		return v, nil
	}

	var existing verification.Verification
	err := r.db.Where("order_id = ? AND payment_gateway = ? AND transaction_id = ?",
		v.OrderID, v.Gateway, v.TransactionID).
		First(&existing).Error
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

func (r *VerificationRepository) GetByID(id string) (*verification.Verification, error) {
	var v verification.Verification
	err := r.db.Where("id = ?", id).First(&v).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

func (r *VerificationRepository) GetLatestByOrderID(orderID string) (*verification.Verification, error) {
	var v verification.Verification
	err := r.db.Where("order_id = ?", orderID).Order("created_at DESC").First(&v).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

// GetByGatewayAndTransactionID prefers a pending claim and falls back to
// the most recent closed one, so re-invocations can observe the terminal
// state instead of reporting a miss.
func (r *VerificationRepository) GetByGatewayAndTransactionID(gw, transactionID string) (*verification.Verification, error) {
	var v verification.Verification
	err := r.db.Where("payment_gateway = ? AND transaction_id = ? AND status = ?",
		gw, transactionID, verification.StatusPending).
		Order("created_at ASC").
		First(&v).Error
	if err == nil {
		return &v, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	err = r.db.Where("payment_gateway = ? AND transaction_id = ?", gw, transactionID).
		Order("created_at DESC").
		First(&v).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

func (r *VerificationRepository) GetOrder(orderID string) (*order.Order, error) {
	var o order.Order
	err := r.db.Where("id = ?", orderID).First(&o).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// errTransactionConsumed aborts the verify transaction when the SMS row
// was already spent on another order.
var errTransactionConsumed = stderrors.New("transaction already consumed")

// VerifyAndMarkPaid applies the whole terminal transition in one database
// transaction. The verification update is conditional on status=pending;
// a zero affected-row count means a concurrent attempt already won and
// nothing else is touched. The SMS flip is conditional on is_processed
// still being false, so one notification can only ever pay one order: a
// losing race rolls the claim transition back. The paid transition on the
// order carries its own guard so it can never be applied twice.
func (r *VerificationRepository) VerifyAndMarkPaid(verificationID, orderID, gw, externalID string) (bool, error) {
	applied := false

	err := r.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		res := tx.Model(&verification.Verification{}).
			Where("id = ? AND status = ?", verificationID, verification.StatusPending).
			Updates(map[string]interface{}{
				"status":      verification.StatusVerified,
				"verified_at": now,
				"updated_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := tx.Model(&order.Order{}).
			Where("id = ? AND payment_status <> ?", orderID, order.PaymentStatusPaid).
			Updates(map[string]interface{}{
				"payment_status": order.PaymentStatusPaid,
				"updated_at":     now,
			}).Error; err != nil {
			return err
		}

		res = tx.Model(&transaction.SMSTransaction{}).
			Where("gateway = ? AND external_id = ? AND is_processed = ?", gw, externalID, false).
			Updates(map[string]interface{}{
				"is_processed": true,
				"updated_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errTransactionConsumed
		}

		applied = true
		return nil
	})
	if stderrors.Is(err, errTransactionConsumed) {
		return false, nil
	}

	return applied, err
}

// FailClaim conditionally closes a pending claim; same affected-row-count
// discipline as the verify path.
func (r *VerificationRepository) FailClaim(verificationID, reason string) (bool, error) {
	now := time.Now()
	res := r.db.Model(&verification.Verification{}).
		Where("id = ? AND status = ?", verificationID, verification.StatusPending).
		Updates(map[string]interface{}{
			"status":        verification.StatusFailed,
			"failed_at":     now,
			"failed_reason": reason,
			"updated_at":    now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
