package rewards

import "time"

// Событие активности из Kafka (топик activities)
type ActivityEvent struct {
	EventID    string         `json:"eventId"`
	AccountID  string         `json:"accountId"`
	ActionType string         `json:"actionType"`
	Metadata   map[string]any `json:"metadata"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// Возврат заказа из Kafka (топик returns)
type ReturnEvent struct {
	OrderID   string `json:"orderId"`
	AccountID string `json:"accountId"`
}

// Запрос списания из RabbitMQ (очередь redeems)
type RedeemMessage struct {
	RedeemID  string `json:"redeemId"`
	AccountID string `json:"accountId"`
	Amount    int64  `json:"amount"`
}
