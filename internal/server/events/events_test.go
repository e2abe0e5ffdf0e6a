package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/mediavault/internal/logging"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaNotifier_WritesKeyedJSON(t *testing.T) {
	w := &fakeWriter{}
	n := newKafkaNotifier(w, logging.NewNop())
	finished := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := n.Notify(context.Background(), Outcome{
		TransactionID: "tx1",
		UserID:        "u1",
		Category:      models.CategoryGallery,
		Status:        "completed",
		Attempts:      1,
		RecordIDs:     []string{"r1", "r2"},
		FinishedAt:    finished,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, []byte("u1"), msg.Key)
	assert.Equal(t, finished, msg.Time)

	var got Outcome
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "tx1", got.TransactionID)
	assert.Equal(t, []string{"r1", "r2"}, got.RecordIDs)
	assert.Empty(t, got.Errors)

	require.NoError(t, n.Close())
	assert.True(t, w.closed)
}

func TestKafkaNotifier_ReturnsWriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unavailable")}
	n := newKafkaNotifier(w, logging.NewNop())

	err := n.Notify(context.Background(), Outcome{TransactionID: "tx1"})
	require.EqualError(t, err, "broker unavailable")
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Notify(context.Background(), Outcome{}))
}
