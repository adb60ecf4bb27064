package actionqueue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/Siddamnandas/Vibely-sub004/errors"
	"github.com/Siddamnandas/Vibely-sub004/natsclient"
)

// envelope is the stored form of an action. The id is not stored: the
// stream sequence number is the id, so ids are strictly increasing and
// survive worker restarts.
type envelope struct {
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// NATSStore persists the queue in a JetStream stream. Explicit per-message
// deletion is the confirm primitive.
type NATSStore struct {
	client        *natsclient.Client
	stream        jetstream.Stream
	subjectPrefix string
}

// NewNATSStore creates or opens the queue stream.
func NewNATSStore(ctx context.Context, client *natsclient.Client, streamName, subjectPrefix string) (*NATSStore, error) {
	if client == nil {
		return nil, errors.WrapInvalid(nil, "NATSStore", "NewNATSStore", "nats client cannot be nil")
	}
	if streamName == "" {
		return nil, errors.WrapInvalid(nil, "NATSStore", "NewNATSStore", "stream name cannot be empty")
	}
	if subjectPrefix == "" {
		subjectPrefix = "actions"
	}

	stream, err := client.CreateStream(ctx, jetstream.StreamConfig{
		Name:        streamName,
		Description: "Offline action queue",
		Subjects:    []string{subjectPrefix + ".>"},
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "NATSStore", "NewNATSStore", "create queue stream")
	}

	return &NATSStore{
		client:        client,
		stream:        stream,
		subjectPrefix: subjectPrefix,
	}, nil
}

// Append publishes the action to the stream; the publish ack's sequence
// number becomes the action id.
func (s *NATSStore) Append(ctx context.Context, actionType string, payload json.RawMessage) (*QueuedAction, error) {
	if actionType == "" {
		return nil, errors.WrapInvalid(nil, "NATSStore", "Append", "action type cannot be empty")
	}

	env := envelope{
		Type:       actionType,
		Payload:    payload,
		EnqueuedAt: time.Now(),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, errors.WrapFatal(err, "NATSStore", "Append", "encode action")
	}

	subject := fmt.Sprintf("%s.%s", s.subjectPrefix, actionType)
	seq, err := s.client.PublishToStream(ctx, subject, data)
	if err != nil {
		return nil, errors.WrapTransient(err, "NATSStore", "Append", "publish to queue stream")
	}

	return &QueuedAction{
		ID:         seq,
		Type:       env.Type,
		Payload:    env.Payload,
		EnqueuedAt: env.EnqueuedAt,
	}, nil
}

// Snapshot walks the stream's current sequence range and returns all
// surviving messages in sequence order. Messages appended after the range
// is read belong to the next cycle.
func (s *NATSStore) Snapshot(ctx context.Context) ([]*QueuedAction, error) {
	info, err := s.stream.Info(ctx)
	if err != nil {
		return nil, errors.WrapTransient(err, "NATSStore", "Snapshot", "read stream info")
	}

	state := info.State
	if state.Msgs == 0 {
		return nil, nil
	}

	actions := make([]*QueuedAction, 0, state.Msgs)
	for seq := state.FirstSeq; seq <= state.LastSeq; seq++ {
		msg, err := s.stream.GetMsg(ctx, seq)
		if err != nil {
			if stderrors.Is(err, jetstream.ErrMsgNotFound) {
				continue // confirmed and deleted earlier
			}
			return nil, errors.WrapTransient(err, "NATSStore", "Snapshot",
				fmt.Sprintf("read message %d", seq))
		}

		var env envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			return nil, errors.WrapFatal(err, "NATSStore", "Snapshot",
				fmt.Sprintf("decode message %d", seq))
		}

		actions = append(actions, &QueuedAction{
			ID:         msg.Sequence,
			Type:       env.Type,
			Payload:    env.Payload,
			EnqueuedAt: env.EnqueuedAt,
		})
	}
	return actions, nil
}

// Confirm deletes the message with the given sequence. An already-deleted
// message is treated as confirmed.
func (s *NATSStore) Confirm(ctx context.Context, id uint64) error {
	err := s.stream.DeleteMsg(ctx, id)
	if err != nil && !stderrors.Is(err, jetstream.ErrMsgNotFound) {
		return errors.WrapTransient(err, "NATSStore", "Confirm",
			fmt.Sprintf("delete message %d", id))
	}
	return nil
}

// Depth returns the number of pending actions in the stream.
func (s *NATSStore) Depth(ctx context.Context) (int, error) {
	info, err := s.stream.Info(ctx)
	if err != nil {
		return 0, errors.WrapTransient(err, "NATSStore", "Depth", "read stream info")
	}
	return int(info.State.Msgs), nil
}
