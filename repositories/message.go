//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IMessageRepository interface {
	StoreMessage(message DiskMessage) error
	GetMessages(groupID string, limit *int) ([]DiskMessage, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

// DiskMessage is the repository-level representation of a message.
type DiskMessage struct {
	ID      uuid.UUID `json:"id"`
	GroupID string    `json:"group_id"`
	Sender  string    `json:"sender"`
	Body    string    `json:"body"`
	At      time.Time `json:"at"`
}

// StoreMessage appends a message to its group's log.
// The key is formatted as "msg:{group_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
func (m MessageRepository) StoreMessage(message DiskMessage) error {
	key := fmt.Sprintf("msg:%s:%019d:%s",
		message.GroupID,
		message.At.UnixNano(),
		message.ID,
	)
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// GetMessages retrieves the history of one group using a prefix scan.
// Thanks to the padded timestamp in the key, messages come back in append
// order. An unknown or empty group yields an empty slice, not an error.
// A nil limit returns the full history.
func (m MessageRepository) GetMessages(groupID string, limit *int) ([]DiskMessage, error) {
	var raw [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%s:", groupID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit != nil && len(raw) == *limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *limit))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				raw = append(raw, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]DiskMessage, 0, len(raw))
	for _, b := range raw {
		var message DiskMessage
		if err = json.Unmarshal(b, &message); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}
