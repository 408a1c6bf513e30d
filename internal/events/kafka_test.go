package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"paperledger/internal/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherEncodesEvent(t *testing.T) {
	w := &captureWriter{}
	p := newKafkaPublisherWithWriter(w, "ledger")

	err := p.Publish(context.Background(), Event{
		Type:    OrderFilled,
		Key:     "000001",
		Payload: map[string]any{"volume": 100},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "000001", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "order.filled", string(msg.Headers[0].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "order.filled", decoded["type"])
	assert.NotEmpty(t, decoded["occurred_at"])
	assert.Equal(t, float64(100), decoded["payload"].(map[string]any)["volume"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisherWrapsWriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := newKafkaPublisherWithWriter(&captureWriter{err: boom}, "ledger")

	err := p.Publish(context.Background(), Event{Type: LedgerSettled})
	assert.ErrorIs(t, err, boom)
}

func TestNewKafkaPublisherRequiresConfig(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "ledger")
	assert.Error(t, err)
	_, err = NewKafkaPublisher([]string{" "}, "ledger")
	assert.Error(t, err)
	_, err = NewKafkaPublisher([]string{"localhost:9092"}, "")
	assert.Error(t, err)

	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "ledger")
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}

func TestKafkaPublisherWritesAsynchronously(t *testing.T) {
	p, err := NewKafkaPublisher([]string{" 127.0.0.1:9092 ", ""}, "ledger")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.True(t, w.Async)
	assert.NotNil(t, w.Completion)
}

func TestCompletionLogsDeliveryFailures(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })

	done := logCompletion("ledger")
	done([]kafka.Message{{Key: []byte("000001")}}, nil)
	assert.Empty(t, buf.String())

	done([]kafka.Message{{Key: []byte("000001")}}, errors.New("broker down"))
	assert.Contains(t, buf.String(), "broker down")
	assert.Contains(t, buf.String(), "ledger")
}
