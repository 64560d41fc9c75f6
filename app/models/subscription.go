package models

import "time"

// Local subscription status values. The payment gateway is the authority for
// the true billing state; these are the reconciled local view.
const (
	SubscriptionStatusIncomplete = "incomplete"
	SubscriptionStatusActive     = "active"
	SubscriptionStatusPastDue    = "past_due"
	SubscriptionStatusCanceled   = "canceled"
)

// Subscription binds a buyer to an automation with billing status. The row is
// created in incomplete state at checkout initiation, referencing the
// checkout session id; the first confirmed webhook patches in the gateway's
// durable subscription id and promotes it to active. LastEventAt carries the
// timestamp of the newest applied gateway event so stale out-of-order
// deliveries cannot downgrade or resurrect the row.
type Subscription struct {
	ID                   uint        `gorm:"primaryKey" json:"id"`
	AutomationID         uint        `gorm:"not null;index" json:"automation_id"`
	Automation           *Automation `gorm:"foreignKey:AutomationID" json:"automation,omitempty"`
	BuyerID              uint        `gorm:"not null;index" json:"buyer_id"`
	Buyer                *User       `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`
	Status               string      `gorm:"type:varchar(32);not null;default:'incomplete';index" json:"status"`
	StripeSubscriptionID string      `gorm:"type:varchar(191);not null;index" json:"stripe_subscription_id"`
	MonthlyPrice         float64     `gorm:"type:decimal(10,2);not null;default:0" json:"monthly_price"`
	LastEventAt          *time.Time  `gorm:"type:timestamp;default:null" json:"last_event_at,omitempty"`
	CreatedAt            time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsCanceled reports whether the subscription reached its terminal state.
func (s *Subscription) IsCanceled() bool {
	return s.Status == SubscriptionStatusCanceled
}
