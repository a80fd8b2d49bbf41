//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-room/domain"
	"chat-room/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	msgPrefix = "msg:"
	idxPrefix = "idx:msg:"

	seqBandwidth = 128
)

type IMessageRepository interface {
	Append(msg domain.ChatMessage) (domain.ChatMessage, error)
	ListRecent(query domain.HistoryQuery) ([]domain.ChatMessage, error)
	SoftDelete(cmd domain.DeleteMessageCommand) error
	ClearAll(requestedBy domain.Identity) (int, error)
	Close() error
}

// MessageRepository persists the room log in BadgerDB.
// The primary key is "msg:{seq_padded}:{uuid}":
//  1. The store-assigned sequence with 19-digit zero padding keeps entries
//     in append order under lexicographical iteration.
//  2. The UUID doubles as a collision disconnector and feeds the
//     "idx:msg:{uuid}" secondary index used for deletes and cursors.
type MessageRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger

	// mu serializes appends so that sequence order, timestamp order and
	// commit order never diverge under concurrent writers.
	mu     sync.Mutex
	lastAt time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte("seq:msg"), seqBandwidth)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{db: db, seq: seq, log: log}, nil
}

// Close releases the unclaimed part of the sequence.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

// diskMessage is the JSON record stored in Badger. Kept separate from the
// domain type so the disk layout can evolve independently.
type diskMessage struct {
	ID         string  `json:"id"`
	SenderID   *string `json:"sender_id"`
	SenderName string  `json:"sender_name"`
	SenderRole string  `json:"sender_role"`
	Body       string  `json:"body"`
	Kind       string  `json:"kind"`
	Lang       string  `json:"lang,omitempty"`
	AtNano     int64   `json:"at"`
	Deleted    bool    `json:"deleted,omitempty"`
}

// Append assigns id, sequence and timestamp, then persists the message
// and its index entry in a single transaction. Timestamps are clamped to
// be non-decreasing even if the wall clock steps backward.
func (m *MessageRepository) Append(msg domain.ChatMessage) (domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if now.Before(m.lastAt) {
		now = m.lastAt
	}

	seq, err := m.seq.Next()
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("next sequence: %w", err)
	}

	msg.ID = uuid.New()
	msg.CreatedAt = now
	msg.Deleted = false

	value, err := json.Marshal(fromDomain(msg))
	if err != nil {
		return domain.ChatMessage{}, err
	}

	key := primaryKey(seq, msg.ID)
	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set(indexKey(msg.ID), key)
	})
	if err != nil {
		return domain.ChatMessage{}, err
	}

	m.lastAt = now
	return msg, nil
}

// ListRecent walks the log backward and returns up to query.Limit
// non-deleted messages, newest first. With a Before cursor the walk
// starts just past that message. Results reflect store state at call
// time, not a snapshot across pages.
func (m *MessageRepository) ListRecent(query domain.HistoryQuery) ([]domain.ChatMessage, error) {
	if query.Limit <= 0 {
		return nil, nil
	}

	var records []diskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(msgPrefix)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey, skipFirst, err := m.seekKey(txn, query.Before)
		if err != nil {
			return err
		}
		it.Seek(seekKey)
		if skipFirst && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			var rec diskMessage
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &rec)
			})
			if err != nil {
				return err
			}
			if rec.Deleted {
				continue
			}
			records = append(records, rec)
			if len(records) == query.Limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toDomainMessages(records)
}

// seekKey resolves where the backward walk starts. Without a cursor the
// iterator seeks past the highest possible primary key.
func (m *MessageRepository) seekKey(txn *badger.Txn, before *uuid.UUID) ([]byte, bool, error) {
	if before == nil {
		return append([]byte(msgPrefix), 0xFF), false, nil
	}
	item, err := txn.Get(indexKey(*before))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, false, errors.ErrNotFound
		}
		return nil, false, err
	}
	key, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, err
	}
	return key, true, nil
}

// SoftDelete marks a message invisible to reads while keeping its record
// and id. Only the original sender or a moderator may delete; deleting a
// message twice reports NotFound, not a failure.
func (m *MessageRepository) SoftDelete(cmd domain.DeleteMessageCommand) error {
	return m.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey(cmd.MessageID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return errors.ErrNotFound
			}
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		primary, err := txn.Get(key)
		if err != nil {
			return err
		}
		var rec diskMessage
		if err := primary.Value(func(value []byte) error {
			return json.Unmarshal(value, &rec)
		}); err != nil {
			return err
		}

		if rec.Deleted {
			return errors.ErrNotFound
		}
		if !cmd.RequestedBy.CanModerate() && !ownedBy(rec, cmd.RequestedBy.UserID) {
			return errors.ErrForbidden
		}

		rec.Deleted = true
		value, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(key, value)
	})
}

// ClearAll irreversibly truncates the room log, returning the number of
// removed messages. Tombstones count as well since their ids disappear.
func (m *MessageRepository) ClearAll(requestedBy domain.Identity) (int, error) {
	if !requestedBy.CanModerate() {
		return 0, errors.ErrForbidden
	}

	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		prefix := []byte(msgPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := m.db.DropPrefix([]byte(msgPrefix), []byte(idxPrefix)); err != nil {
		return 0, err
	}
	m.log.Info("Room log cleared", "removed", count)
	return count, nil
}

func primaryKey(seq uint64, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", msgPrefix, seq, id))
}

func indexKey(id uuid.UUID) []byte {
	return []byte(idxPrefix + id.String())
}

func ownedBy(rec diskMessage, userID string) bool {
	return rec.SenderID != nil && *rec.SenderID == userID
}

func fromDomain(msg domain.ChatMessage) diskMessage {
	return diskMessage{
		ID:         msg.ID.String(),
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		SenderRole: string(msg.SenderRole),
		Body:       msg.Body,
		Kind:       string(msg.Kind),
		Lang:       msg.Lang,
		AtNano:     msg.CreatedAt.UnixNano(),
		Deleted:    msg.Deleted,
	}
}

func toDomainMessages(records []diskMessage) ([]domain.ChatMessage, error) {
	var firstErr error
	messages := lo.Map(records, func(rec diskMessage, _ int) domain.ChatMessage {
		msg, err := toDomain(rec)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return msg
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return messages, nil
}

func toDomain(rec diskMessage) (domain.ChatMessage, error) {
	parsedID, err := uuid.Parse(rec.ID)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	return domain.ChatMessage{
		ID:         parsedID,
		SenderID:   rec.SenderID,
		SenderName: rec.SenderName,
		SenderRole: domain.Role(rec.SenderRole),
		Body:       rec.Body,
		Kind:       domain.MessageKind(rec.Kind),
		Lang:       rec.Lang,
		CreatedAt:  time.Unix(0, rec.AtNano).UTC(),
		Deleted:    rec.Deleted,
	}, nil
}
