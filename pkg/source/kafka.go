package source

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"flowline/pkg/config"
	"flowline/pkg/errs"
	"flowline/pkg/frame"
	"flowline/pkg/model"
)

// KafkaSource drains a bounded batch of messages per fetch. An unbounded
// per-reader goroutine loop doesn't fit fetch(ctx)'s one-shot contract,
// so this reads up to MaxMessages (or until MaxWaitMs elapses) and
// returns what it collected as one frame, leaving consumer-group offset
// commits to the reader's own auto-commit interval.
type KafkaSource struct {
	output  string
	readers []*kafkago.Reader
	maxMsgs int
	maxWait time.Duration
	model   *model.Model
}

// NewKafkaSource builds a KafkaSource from a resolved KafkaSourceConfig.
func NewKafkaSource(cfg config.KafkaSourceConfig, conn *config.ConnectionConfig, m *model.Model) (*KafkaSource, error) {
	output, ok := cfg.Output.Value()
	if !ok {
		return nil, errs.Config("source.kafka", "output symbol unresolved")
	}
	if conn == nil || len(conn.Brokers) == 0 {
		return nil, errs.Config("source.kafka", "%q: connection brokers required", output)
	}
	startOffset := kafkago.LastOffset
	if cfg.StartOffset == "earliest" || cfg.StartOffset == "beginning" {
		startOffset = kafkago.FirstOffset
	}
	maxMsgs := cfg.MaxMessages
	if maxMsgs <= 0 {
		maxMsgs = 1000
	}
	maxWait := 500 * time.Millisecond
	if cfg.MaxWaitMs > 0 {
		maxWait = time.Duration(cfg.MaxWaitMs) * time.Millisecond
	}

	readers := make([]*kafkago.Reader, 0, len(cfg.Topics))
	for _, topic := range cfg.Topics {
		readers = append(readers, kafkago.NewReader(kafkago.ReaderConfig{
			Brokers: conn.Brokers, Topic: topic, GroupID: cfg.GroupID,
			StartOffset: startOffset, MinBytes: 1, MaxBytes: 10 << 20, MaxWait: maxWait,
		}))
	}
	return &KafkaSource{output: output, readers: readers, maxMsgs: maxMsgs, maxWait: maxWait, model: m}, nil
}

func (s *KafkaSource) Output() string { return s.output }

func (s *KafkaSource) Fetch(ctx context.Context) (frame.Frame, error) {
	deadline, cancel := context.WithTimeout(ctx, s.maxWait)
	defer cancel()

	var rows []map[string]any
	for _, reader := range s.readers {
		for len(rows) < s.maxMsgs {
			msg, err := reader.ReadMessage(deadline)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					break
				}
				return frame.Frame{}, errs.ConnectionWrap("source.kafka", err, "topic %q", reader.Config().Topic)
			}
			var data map[string]any
			if err := json.Unmarshal(msg.Value, &data); err != nil {
				data = map[string]any{"key": string(msg.Key), "value": string(msg.Value)}
			}
			if len(msg.Key) > 0 {
				data["_key"] = string(msg.Key)
			}
			rows = append(rows, data)
		}
	}
	return buildFrame(rows, s.model)
}

func (s *KafkaSource) Close() error {
	var first error
	for _, r := range s.readers {
		if err := r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
