package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/anihan/coop-market-backend/pkg/enums"
)

// Order is the aggregate commercial transaction. Financial fields are zero
// until approval freezes them; delivery timestamps are stamped once per
// stage and never rewound.
type Order struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID     uuid.UUID            `gorm:"column:customer_id;type:uuid;not null;index"`
	Status         enums.OrderStatus    `gorm:"column:status;type:text;not null;default:'pending'"`
	DeliveryStatus enums.DeliveryStatus `gorm:"column:delivery_status;type:text;not null;default:'pending'"`

	Subtotal    decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
	CoopShare   decimal.Decimal `gorm:"column:coop_share;type:numeric(12,2);not null"`
	MemberShare decimal.Decimal `gorm:"column:member_share;type:numeric(12,2);not null"`
	TotalAmount decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null"`

	RejectReason *string `gorm:"column:reject_reason"`
	Rating       *int    `gorm:"column:rating"`
	Feedback     *string `gorm:"column:feedback"`

	CustomerReceived bool `gorm:"column:customer_received;not null;default:false"`

	ApprovedAt          *time.Time `gorm:"column:approved_at"`
	RejectedAt          *time.Time `gorm:"column:rejected_at"`
	DelayedAt           *time.Time `gorm:"column:delayed_at"`
	CancelledAt         *time.Time `gorm:"column:cancelled_at"`
	ReadyAt             *time.Time `gorm:"column:ready_at"`
	DispatchedAt        *time.Time `gorm:"column:dispatched_at"`
	DeliveredAt         *time.Time `gorm:"column:delivered_at"`
	CustomerConfirmedAt *time.Time `gorm:"column:customer_confirmed_at"`

	Items []OrderLineItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(_ *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// FinancialsFrozen reports whether the revenue split has been computed and
// locked for this order.
func (o *Order) FinancialsFrozen() bool {
	return o.ApprovedAt != nil
}
