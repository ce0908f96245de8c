// Package kafkaconsumer applies dataset-update events to the running service.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	lru "github.com/hashicorp/golang-lru/v2"

	"schoolmap-api/internal/core/observability"
	"schoolmap-api/internal/invalidation"
)

// DatasetVersioner is the store-side handle: bumping the version makes every
// previously cached response key unreachable (TTL reaps the bodies).
type DatasetVersioner interface {
	Version() uint64
	BumpVersion() uint64
}

// MemoFlusher drops in-process memoized option sets.
type MemoFlusher interface {
	FlushMemo()
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	store  DatasetVersioner
	memo   MemoFlusher
	dedupe *versionDedupe
}

func New(cfg Config, logger *slog.Logger, store DatasetVersioner, memo MemoFlusher) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		cfg:    cfg,
		logger: logger,
		store:  store,
		memo:   memo,
		dedupe: newVersionDedupe(cfg.DedupeSize),
	}
}

// Start joins the consumer group and processes events until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	if c.store == nil {
		return errors.New("kafkaconsumer: missing store")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne}

	c.logger.Info("dataset invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("dataset invalidation consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				c.logger.Error("consumer error", "err", err)
				time.Sleep(2 * time.Second)
			}
		}
	}
}

// ProcessOne applies a single dataset-update message.
func (c *Consumer) ProcessOne(_ context.Context, msg *sarama.ConsumerMessage) error {
	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		observability.IncInvalidation("decode_error")
		return fmt.Errorf("json decode: %w", err)
	}

	if ev.Op != invalidation.OpDatasetUpdated {
		observability.IncInvalidation("ignored_op")
		c.logger.Debug("ignoring event with unknown op", "op", ev.Op)
		return nil
	}
	if c.cfg.Dataset != "" && ev.Dataset != c.cfg.Dataset {
		observability.IncInvalidation("ignored_dataset")
		c.logger.Debug("ignoring event for other dataset", "dataset", ev.Dataset)
		return nil
	}
	if !c.dedupe.shouldApply(ev.Dataset, ev.Version) {
		observability.IncInvalidation("deduped")
		c.logger.Debug("ignoring replayed event",
			"dataset", ev.Dataset, "version", ev.Version)
		return nil
	}

	v := c.store.BumpVersion()
	if c.memo != nil {
		c.memo.FlushMemo()
	}
	observability.IncInvalidation("applied")
	observability.SetDatasetVersion(v)

	c.logger.Info("dataset invalidated",
		"dataset", ev.Dataset, "event_version", ev.Version, "store_version", v)
	return nil
}

// versionDedupe remembers the highest event version seen per dataset.
type versionDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, uint64]
}

func newVersionDedupe(size int) *versionDedupe {
	if size <= 0 {
		size = 1024
	}
	c, _ := lru.New[string, uint64](size)
	return &versionDedupe{lru: c}
}

// shouldApply returns true iff v is greater than the last seen version.
func (d *versionDedupe) shouldApply(key string, v uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(key); ok && v <= last {
		return false
	}
	d.lru.Add(key, v)
	return true
}
