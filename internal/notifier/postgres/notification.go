package postgres

import (
	"gorm.io/gorm"

	"github.com/frahmantamala/payment-verification/internal/core/datamodel/notification"
	notifierpkg "github.com/frahmantamala/payment-verification/internal/notifier"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) notifierpkg.RepositoryAPI {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Append(log *notification.Log) error {
	return r.db.Create(log).Error
}

func (r *NotificationRepository) Recent(limit int) ([]*notification.Log, error) {
	var logs []*notification.Log
	err := r.db.Order("created_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
