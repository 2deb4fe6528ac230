package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/retrieval-insight-engine/internal/core/domain"
	"github.com/kirillkom/retrieval-insight-engine/internal/infrastructure/resilience"
)

// Recorder is the best-effort query-history sink described in spec.md §6's
// `history_append`: publishing a completed insight bundle to NATS is never
// allowed to fail the request that produced it.
type Recorder struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

func NewRecorder(url, subject string, executor *resilience.Executor) (*Recorder, error) {
	conn, err := nats.Connect(
		url,
		nats.Name("retrieval-insight-engine"),
		nats.Timeout(2*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(60),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("nats reconnected: %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Recorder{conn: conn, subject: subject, executor: executor}, nil
}

func (r *Recorder) Close() {
	if r.conn != nil {
		r.conn.Close()
	}
}

type historyEvent struct {
	CallerID string              `json:"caller_id"`
	Query    string              `json:"query"`
	Bundle   domain.InsightBundle `json:"bundle"`
}

// RecordQuery implements ports.HistoryRecorder. Its caller is expected to
// log and discard any returned error rather than fail the request.
func (r *Recorder) RecordQuery(ctx context.Context, callerID, query string, bundle domain.InsightBundle) error {
	payload, err := json.Marshal(historyEvent{CallerID: callerID, Query: query, Bundle: bundle})
	if err != nil {
		return fmt.Errorf("marshal history event: %w", err)
	}

	publish := func(_ context.Context) error {
		if err := r.conn.Publish(r.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if r.executor != nil {
		return r.executor.Execute(ctx, "nats.history_append", publish, classifyNATSError)
	}
	return publish(ctx)
}

func classifyNATSError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}
