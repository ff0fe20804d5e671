package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message types, carried in the AMQP Type property.
const (
	TypeStatementSync   = "statement.sync"
	TypeStatementDelete = "statement.delete"
	TypeReminderDue     = "reminder.due"
)

// StatementSyncMessage asks the worker to mirror one statement. It only
// carries the id and version; the worker reads the rest from the database.
type StatementSyncMessage struct {
	ID        uuid.UUID `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewStatementSyncMessage(id uuid.UUID, version int64) *StatementSyncMessage {
	return &StatementSyncMessage{
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *StatementSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func StatementSyncMessageFromJSON(data []byte) (*StatementSyncMessage, error) {
	var msg StatementSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// StatementDeleteMessage is published after a statement row is gone, so it
// carries everything the mirror needs to find its copy.
type StatementDeleteMessage struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"accountId"`
	Timestamp time.Time `json:"timestamp"`
}

func NewStatementDeleteMessage(id, accountID uuid.UUID) *StatementDeleteMessage {
	return &StatementDeleteMessage{
		ID:        id,
		AccountID: accountID,
		Timestamp: time.Now(),
	}
}

func (m *StatementDeleteMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func StatementDeleteMessageFromJSON(data []byte) (*StatementDeleteMessage, error) {
	var msg StatementDeleteMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ReminderMessage announces an upcoming account date.
type ReminderMessage struct {
	AccountID   uuid.UUID `json:"accountId"`
	AccountName string    `json:"accountName"`
	Kind        string    `json:"kind"`
	Date        string    `json:"date"`
	DaysUntil   int       `json:"daysUntil"`
	Timestamp   time.Time `json:"timestamp"`
}

func (m *ReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReminderMessageFromJSON(data []byte) (*ReminderMessage, error) {
	var msg ReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
