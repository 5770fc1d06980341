package domain

import "time"

// Типы событий в истории заказа.
const (
	TimelineShopResolved  = "ShopResolved"
	TimelineOrderCreated  = "OrderCreated"
	TimelineLinesCreated  = "LinesCreated"
	TimelineSubmitFailed  = "SubmissionFailed"
	TimelineStatusChanged = "StatusChanged"
	TimelineOrderDeleted  = "OrderDeleted"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}
