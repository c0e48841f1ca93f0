package usecase

// Published to exchange "order.crud" with routing key "created". Consumers
// de-duplicate by order id; additive field changes are allowed.
type OrderCreatedMsg struct {
	User  UserSnapshot  `json:"user"`
	Order OrderSnapshot `json:"order"`
}

type UserSnapshot struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type OrderSnapshot struct {
	ID        string         `json:"id"`
	Status    string         `json:"status"`
	Subtotal  int64          `json:"subtotal"`
	Discount  int64          `json:"discount"`
	Total     int64          `json:"total"`
	AddressID string         `json:"addressId"`
	Products  []LineSnapshot `json:"products"`
}

type LineSnapshot struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
}

// Consumed from Kafka; emitted by the payment collaborator once it settles
// an order.
type OrderStatusChangedMsg struct {
	OrderID string `json:"orderId"`
	UserID  string `json:"userId"`
	Status  string `json:"status"` // e.g. "COMPLETED", "CANCELLED"
}
