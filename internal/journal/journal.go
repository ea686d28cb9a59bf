// Package journal records applied order edits as an append-only changelog.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Entry is one applied edit.
type Entry struct {
	ID       string `json:"id"`
	Field    string `json:"field"`
	OldValue string `json:"oldValue"`
	NewValue string `json:"newValue"`
	TS       int64  `json:"ts"`
}

// NewEntry builds an entry stamped with at in Unix milliseconds.
func NewEntry(id, field, oldValue, newValue string, at time.Time) Entry {
	return Entry{ID: id, Field: field, OldValue: oldValue, NewValue: newValue, TS: at.UnixMilli()}
}

type Writer interface {
	Append(ctx context.Context, e Entry) error
	Close() error
}

// MultiWriter fans out writes to multiple underlying writers. Every writer
// is attempted; the errors are joined.
type MultiWriter struct {
	writers []Writer
}

func NewMultiWriter(ws ...Writer) *MultiWriter {
	return &MultiWriter{writers: ws}
}

// Len returns the number of underlying writers.
func (m *MultiWriter) Len() int { return len(m.writers) }

func (m *MultiWriter) Append(ctx context.Context, e Entry) error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Append(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiWriter) Close() error {
	var errs []error
	for _, w := range m.writers {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

// FileWriter appends JSON lines to a file.
type FileWriter struct {
	mu   sync.Mutex
	path string
}

func NewFileWriter(path string) (*FileWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return &FileWriter{path: path}, nil
}

func (w *FileWriter) Append(_ context.Context, e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(&e); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

func (w *FileWriter) Close() error { return nil }

// KafkaWriter publishes entries to a Kafka topic keyed by order id, so all
// edits of one order land on the same partition.
type KafkaWriter struct {
	writer kafkaMessageWriter
}

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaWriter(brokers []string, topic string) *KafkaWriter {
	return &KafkaWriter{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}}
}

func (k *KafkaWriter) Append(ctx context.Context, e Entry) error {
	b, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.ID), Value: b})
}

func (k *KafkaWriter) Close() error { return k.writer.Close() }
