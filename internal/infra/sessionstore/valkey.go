package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/callnotes/internal/domain/callnotes"
)

const defaultPrefix = "callnotes"

// ValkeyStore keeps sessions as JSON strings with a key expiry.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

func (s *ValkeyStore) Save(ctx context.Context, session callnotes.Session, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	builder := s.client.B().Set().Key(s.key(session.ID)).Value(string(payload))
	var cmd valkey.Completed
	if ttl > 0 {
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("save session %s: %w", session.ID, err)
	}
	return nil
}

func (s *ValkeyStore) Get(ctx context.Context, id uuid.UUID) (callnotes.Session, bool, error) {
	payload, err := s.client.Do(ctx, s.client.B().Get().Key(s.key(id)).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return callnotes.Session{}, false, nil
		}
		return callnotes.Session{}, false, fmt.Errorf("load session %s: %w", id, err)
	}
	var session callnotes.Session
	if err := json.Unmarshal([]byte(payload), &session); err != nil {
		return callnotes.Session{}, false, fmt.Errorf("decode session %s: %w", id, err)
	}
	return session, true, nil
}

func (s *ValkeyStore) key(id uuid.UUID) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, id)
}

var _ callnotes.SessionStore = (*ValkeyStore)(nil)
