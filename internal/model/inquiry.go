package model

import "time"

// InquiryClassification is the routing decision for one customer message.
type InquiryClassification struct {
	Category      string  `json:"category"`
	Confidence    float64 `json:"confidence"`
	AutoResponse  string  `json:"auto_response"`
	RequiresHuman bool    `json:"requires_human"`
}

// Notification message types.
const (
	MessageOrderConfirmed = "order_confirmed"
	MessageShipped        = "shipped"
	MessageDelivered      = "delivered"
)

// NotificationResult reports a notification dispatch. It is always well
// formed, including on failure.
type NotificationResult struct {
	Status      string    `json:"status"` // success or failed
	Timestamp   time.Time `json:"timestamp"`
	Recipient   string    `json:"recipient,omitempty"`
	MessageType string    `json:"message_type,omitempty"`
	Message     string    `json:"message,omitempty"`
	Error       string    `json:"error,omitempty"`
}
