package kafka

// Topics carried by the ticketing event stream.
const (
	TopicPurchaseEvents = "purchase-events"
	TopicPaymentEvents  = "payment-events"
)

// Purchase event types carried in the message envelope.
const (
	EventPurchaseCreated       = "purchase.created"
	EventPurchaseStatusChanged = "purchase.status_changed"
)
