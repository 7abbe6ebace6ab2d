package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anihan/coop-market-backend/pkg/enums"
)

// Notification is a row dispatched to a recipient after an order transition
// commits.
type Notification struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	RecipientID uuid.UUID               `gorm:"column:recipient_id;type:uuid;not null;index"`
	OrderID     *uuid.UUID              `gorm:"column:order_id;type:uuid"`
	Event       enums.NotificationEvent `gorm:"column:event;type:text;not null"`
	Message     string                  `gorm:"column:message;not null"`
	ReadAt      *time.Time              `gorm:"column:read_at"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime;index"`
}

func (n *Notification) BeforeCreate(_ *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
