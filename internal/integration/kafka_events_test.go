//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/insurance-maps/internal/adapter/kafka"
	"github.com/couchcryptid/insurance-maps/internal/adapter/memstore"
	"github.com/couchcryptid/insurance-maps/internal/config"
	"github.com/couchcryptid/insurance-maps/internal/domain"
	"github.com/couchcryptid/insurance-maps/internal/ingest"
	"github.com/couchcryptid/insurance-maps/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testTopic = "test-insurance-map-updates"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	ctr, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("insurance-maps-test"),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start kafka container")

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// received is one message read back from the topic.
type received struct {
	Key     string
	Headers map[string]string
	Value   []byte
}

func readMessage(ctx context.Context, t *testing.T, consumer *kafkago.Reader) received {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return received{Key: string(msg.Key), Headers: headers, Value: msg.Value}
}

// TestImportPublishesChangeEvents runs an import and a delete against a real
// broker and checks the events a downstream consumer sees.
func TestImportPublishesChangeEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cfg := &config.Config{
		KafkaBrokers: []string{broker},
		KafkaTopic:   testTopic,
	}
	metrics := observability.NewMetricsForTesting()
	publisher := kafka.NewPublisher(cfg, discardLogger(), metrics)
	t.Cleanup(func() { _ = publisher.Close() })

	im := ingest.New(memstore.New(""), publisher, discardLogger(), metrics)

	f, err := os.Open("../csvio/testdata/carpenter.csv")
	require.NoError(t, err)
	defer f.Close()

	res, err := im.Import(ctx, "carpenter", f)
	require.NoError(t, err)
	rows, err := im.Delete(ctx, "carpenter")
	require.NoError(t, err)
	assert.Equal(t, 50, rows)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	updated := readMessage(ctx, t, consumer)
	assert.Equal(t, "carpenter", updated.Key)
	assert.Equal(t, kafka.EventTradeUpdated, updated.Headers["event_type"])
	_, err = time.Parse(time.RFC3339, updated.Headers["occurred_at"])
	assert.NoError(t, err, "occurred_at should be valid RFC3339")

	var ev domain.TradeUpdated
	require.NoError(t, json.Unmarshal(updated.Value, &ev))
	assert.Equal(t, res.ImportID, ev.ImportID)
	assert.Equal(t, 50, ev.States)
	assert.Empty(t, ev.Missing)
	assert.Equal(t, []string{"5437", "5645"}, ev.ClassCodes)

	deleted := readMessage(ctx, t, consumer)
	assert.Equal(t, "carpenter", deleted.Key)
	assert.Equal(t, kafka.EventTradeDeleted, deleted.Headers["event_type"])

	var del domain.TradeDeleted
	require.NoError(t, json.Unmarshal(deleted.Value, &del))
	assert.Equal(t, domain.Trade("carpenter"), del.Trade)
	assert.Equal(t, 50, del.Rows)
}
