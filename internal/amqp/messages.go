package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Op is the kind of change a sync message announces.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// AgreementSyncMessage announces that an agreement changed. It carries only
// the identity and version; the worker reads the record from the database.
type AgreementSyncMessage struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	Op        Op        `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

func NewAgreementSyncMessage(id string, version int64, op Op) *AgreementSyncMessage {
	return &AgreementSyncMessage{
		ID:        id,
		Version:   version,
		Op:        op,
		Timestamp: time.Now(),
	}
}

func (m *AgreementSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AgreementSyncMessageFromJSON decodes and checks a message body. A missing
// op is treated as an upsert.
func AgreementSyncMessageFromJSON(data []byte) (*AgreementSyncMessage, error) {
	var msg AgreementSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("sync message without id")
	}
	switch msg.Op {
	case "":
		msg.Op = OpUpsert
	case OpUpsert, OpDelete:
	default:
		return nil, fmt.Errorf("unknown sync op %q", msg.Op)
	}
	return &msg, nil
}
