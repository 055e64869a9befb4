package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap/zapcore"
)

// QuickwitCore is a zapcore.Core that ships selected log entries to a quickwit
// instance. Entries carrying the marker field are routed to the index mapped
// for their marker value, buffered per index, and POSTed as NDJSON batches.
// Everything else is ignored. Ingest failures drop the batch; log shipping
// must never back-pressure the server.
type QuickwitCore struct {
	zapcore.LevelEnabler

	markerField string
	indexes     map[string]string
	fields      []zapcore.Field

	queue   chan document
	dropped *atomic.Int64

	shipper *shipper
}

type document struct {
	index string
	body  []byte
}

// QuickwitCoreBuilder configures a QuickwitCore before it starts shipping.
type QuickwitCoreBuilder struct {
	url         string
	markerField string
	indexes     map[string]string
	batchSize   int
	queueSize   int
	client      *http.Client
}

// NewQuickwitCoreBuilder returns a builder targeting the given quickwit base
// URL, e.g. "http://quickwit:7280".
func NewQuickwitCoreBuilder(url string) *QuickwitCoreBuilder {
	return &QuickwitCoreBuilder{
		url:         url,
		markerField: "task",
		indexes:     map[string]string{},
		batchSize:   100,
		queueSize:   1024,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// MarkerField sets the field whose value selects the target index.
func (b *QuickwitCoreBuilder) MarkerField(name string) *QuickwitCoreBuilder {
	b.markerField = name
	return b
}

// MapMarkerToIndex routes entries whose marker field equals value to index.
func (b *QuickwitCoreBuilder) MapMarkerToIndex(value, index string) *QuickwitCoreBuilder {
	b.indexes[value] = index
	return b
}

// WithBatchSize sets how many documents accumulate per index before a flush.
func (b *QuickwitCoreBuilder) WithBatchSize(n int) *QuickwitCoreBuilder {
	if n > 0 {
		b.batchSize = n
	}
	return b
}

// WithHTTPClient overrides the ingest HTTP client, mainly for tests.
func (b *QuickwitCoreBuilder) WithHTTPClient(c *http.Client) *QuickwitCoreBuilder {
	b.client = c
	return b
}

// Build starts the background shipper and returns the core. Callers must
// Close the core on shutdown to flush remaining documents.
func (b *QuickwitCoreBuilder) Build() *QuickwitCore {
	core := &QuickwitCore{
		LevelEnabler: zapcore.InfoLevel,
		markerField:  b.markerField,
		indexes:      b.indexes,
		queue:        make(chan document, b.queueSize),
		dropped:      new(atomic.Int64),
		shipper: &shipper{
			url:       b.url,
			client:    b.client,
			batchSize: b.batchSize,
			buffers:   map[string][][]byte{},
			done:      make(chan struct{}),
			breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:    "quickwit-ingest",
				Timeout: 30 * time.Second,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= 5
				},
			}),
		},
	}
	go core.shipper.run(core.queue)
	return core
}

// With implements zapcore.Core.
func (c *QuickwitCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append([]zapcore.Field{}, c.fields...), fields...)
	return &clone
}

// Check implements zapcore.Core.
func (c *QuickwitCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// Write implements zapcore.Core. Entries without a mapped marker value are
// skipped; mapped entries are encoded to a flat JSON document and queued.
// A full queue drops the entry.
func (c *QuickwitCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	marker, ok := enc.Fields[c.markerField].(string)
	if !ok {
		return nil
	}
	index, ok := c.indexes[marker]
	if !ok {
		return nil
	}

	doc := enc.Fields
	doc["level"] = ent.Level.String()
	doc["message"] = ent.Message
	if _, present := doc["timestamp"]; !present {
		doc["timestamp"] = ent.Time.Unix()
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	select {
	case c.queue <- document{index: index, body: body}:
	default:
		c.dropped.Add(1)
	}
	return nil
}

// Sync implements zapcore.Core.
func (c *QuickwitCore) Sync() error { return nil }

// Dropped reports how many documents were discarded due to a full queue.
func (c *QuickwitCore) Dropped() int64 { return c.dropped.Load() }

// Close stops the shipper after flushing whatever is buffered.
func (c *QuickwitCore) Close() {
	close(c.queue)
	<-c.shipper.done
}

type shipper struct {
	url       string
	client    *http.Client
	batchSize int
	breaker   *gobreaker.CircuitBreaker
	done      chan struct{}

	mu      sync.Mutex
	buffers map[string][][]byte
}

func (s *shipper) run(queue <-chan document) {
	defer close(s.done)
	for doc := range queue {
		s.mu.Lock()
		s.buffers[doc.index] = append(s.buffers[doc.index], doc.body)
		full := len(s.buffers[doc.index]) >= s.batchSize
		s.mu.Unlock()
		if full {
			s.flush(doc.index)
		}
	}
	// Drain on shutdown.
	s.mu.Lock()
	indexes := make([]string, 0, len(s.buffers))
	for index := range s.buffers {
		indexes = append(indexes, index)
	}
	s.mu.Unlock()
	for _, index := range indexes {
		s.flush(index)
	}
}

// flush posts the buffered documents for index as one NDJSON body. The batch
// is taken out of the buffer first; a failed POST drops it.
func (s *shipper) flush(index string) {
	s.mu.Lock()
	batch := s.buffers[index]
	delete(s.buffers, index)
	s.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	var body bytes.Buffer
	for _, doc := range batch {
		body.Write(doc)
		body.WriteByte('\n')
	}

	_, _ = s.breaker.Execute(func() (interface{}, error) {
		resp, err := s.client.Post(
			fmt.Sprintf("%s/api/v1/%s/ingest", s.url, index),
			"application/x-ndjson",
			bytes.NewReader(body.Bytes()),
		)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("quickwit ingest returned %d", resp.StatusCode)
		}
		return nil, nil
	})
}
