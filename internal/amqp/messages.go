package amqp

import (
	"encoding/json"
	"time"
)

// InvoiceSubmittedType is the AMQP message type of InvoiceSubmittedMessage.
const InvoiceSubmittedType = "invoice.submitted"

// InvoiceSubmittedMessage carries only the invoice id; consumers load the
// invoice from the store.
type InvoiceSubmittedMessage struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewInvoiceSubmittedMessage(id int64) *InvoiceSubmittedMessage {
	return &InvoiceSubmittedMessage{
		ID:        id,
		Timestamp: time.Now(),
	}
}

func (m *InvoiceSubmittedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func InvoiceSubmittedMessageFromJSON(data []byte) (*InvoiceSubmittedMessage, error) {
	var msg InvoiceSubmittedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
