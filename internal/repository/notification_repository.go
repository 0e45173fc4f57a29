package repository

import (
	"errors"
	"school_portal_backend/internal/model"
	"school_portal_backend/internal/util"
	"time"

	"gorm.io/gorm"
)

type NotificationRepository struct {
	DB *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{DB: db}
}

func (r *NotificationRepository) Create(n *model.Notification) error {
	return r.DB.Create(n).Error
}

// ListForUser returns the notifications visible to a user: those addressed to
// them directly, to their role, or to everyone.
func (r *NotificationRepository) ListForUser(userID uint, role model.UserRole, page, limit int) ([]model.Notification, int64, error) {
	var ns []model.Notification
	var total int64

	query := r.DB.Model(&model.Notification{}).
		Where("receiver_id = ? OR role = ? OR role = ?", userID, role, model.RoleAll)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&ns).Error
	return ns, total, err
}

func (r *NotificationRepository) CountUnread(userID uint, role model.UserRole) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Notification{}).
		Where("(receiver_id = ? OR role = ? OR role = ?) AND is_read = ?", userID, role, model.RoleAll, false).
		Count(&count).Error
	return count, err
}

// MarkRead flips the read flag for a notification the user can see. It is the
// only mutation notifications ever receive.
func (r *NotificationRepository) MarkRead(id string, userID uint, role model.UserRole) error {
	now := time.Now()
	res := r.DB.Model(&model.Notification{}).
		Where("id = ? AND (receiver_id = ? OR role = ? OR role = ?)", id, userID, role, model.RoleAll).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": &now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrNotFound
	}
	return nil
}

func (r *NotificationRepository) FindByID(id string) (*model.Notification, error) {
	var n model.Notification
	err := r.DB.First(&n, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrNotFound
	}
	return &n, err
}
