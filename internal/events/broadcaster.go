package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hostyard/hostyard/internal/config"
	"github.com/hostyard/hostyard/internal/types"
	"go.uber.org/zap"
)

// EventType names a host lifecycle transition
type EventType string

const (
	HostCreated       EventType = "host.created"
	HostUpdated       EventType = "host.updated"
	HostDeleted       EventType = "host.deleted"
	HostStatusChanged EventType = "host.status_changed"
	HostCleaned       EventType = "host.cleaned"
)

// Event represents a host event to be broadcast
type Event struct {
	Type      EventType         `json:"type"`
	HostID    types.HostID      `json:"host_id"`
	Timestamp int64             `json:"timestamp"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// BroadcasterInterface defines the interface for the event broadcaster
type BroadcasterInterface interface {
	// BroadcastEvent queues a host event for delivery to the configured endpoint
	BroadcastEvent(ctx context.Context, event Event) error
	// Close closes the event broadcaster
	Close() error
}

// Broadcaster delivers host events to a webhook endpoint. Enqueueing never
// blocks the caller: when the buffer is full the event is dropped with a
// warning.
type Broadcaster struct {
	config     config.EventsConfig
	logger     *zap.Logger
	eventChan  chan Event
	ctx        context.Context
	cancelFunc context.CancelFunc
	client     *http.Client
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(cfg *config.Config, logger *zap.Logger) *Broadcaster {
	ctx, cancel := context.WithCancel(context.Background())

	b := &Broadcaster{
		config:     cfg.Events,
		logger:     logger.Named("event-broadcaster"),
		eventChan:  make(chan Event, cfg.Events.BufferSize),
		ctx:        ctx,
		cancelFunc: cancel,
		client:     &http.Client{Timeout: 10 * time.Second},
	}

	if cfg.Events.Enabled {
		go b.processEvents()
	} else {
		b.logger.Info("Event broadcasting is disabled")
	}

	return b
}

// BroadcastEvent adds an event to the broadcast queue
func (b *Broadcaster) BroadcastEvent(ctx context.Context, event Event) error {
	if !b.config.Enabled {
		// If broadcasting is disabled, just log and return success
		b.logger.Debug("Event broadcasting disabled, ignoring event",
			event.HostID.ZapField(),
			zap.String("type", string(event.Type)))
		return nil
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	select {
	case b.eventChan <- event:
		b.logger.Debug("Added event to broadcast queue",
			event.HostID.ZapField(),
			zap.String("type", string(event.Type)))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context deadline exceeded while enqueueing event")
	default:
		// Channel is full
		b.logger.Warn("Event channel is full, dropping event",
			event.HostID.ZapField(),
			zap.String("type", string(event.Type)))
		return fmt.Errorf("event channel is full, event dropped")
	}
}

// processEvents handles sending events from the channel to the webhook
func (b *Broadcaster) processEvents() {
	b.logger.Info("Starting event broadcaster",
		zap.String("endpoint", b.config.Endpoint))

	for {
		select {
		case event, ok := <-b.eventChan:
			if !ok {
				b.logger.Info("Event channel closed, stopping broadcaster")
				return
			}

			if err := b.sendEventWithRetry(event); err != nil {
				b.logger.Error("Failed to send event after retries",
					event.HostID.ZapField(),
					zap.String("type", string(event.Type)),
					zap.Error(err))
			}

		case <-b.ctx.Done():
			b.logger.Info("Event broadcaster context canceled, stopping")
			return
		}
	}
}

// sendEventWithRetry sends an event to the webhook with retries
func (b *Broadcaster) sendEventWithRetry(event Event) error {
	var lastErr error

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for i := 0; i <= b.config.MaxRetries; i++ {
		if i > 0 {
			time.Sleep(b.config.RetryDelay)
			b.logger.Info("Retrying event send",
				event.HostID.ZapField(),
				zap.String("type", string(event.Type)),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", b.config.MaxRetries))
		}

		err := b.sendEvent(ctx, event)
		if err == nil {
			return nil
		}

		lastErr = err
		b.logger.Warn("Failed to send event",
			event.HostID.ZapField(),
			zap.String("type", string(event.Type)),
			zap.Int("attempt", i+1),
			zap.Error(err))
	}

	return fmt.Errorf("failed after %d attempts: %v", b.config.MaxRetries+1, lastErr)
}

// sendEvent posts a single event to the webhook endpoint
func (b *Broadcaster) sendEvent(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send event: %v", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("event endpoint returned status %d", resp.StatusCode)
	}

	b.logger.Debug("Successfully sent event",
		event.HostID.ZapField(),
		zap.String("type", string(event.Type)),
		zap.String("endpoint", b.config.Endpoint))

	return nil
}

// Close closes the event broadcaster
func (b *Broadcaster) Close() error {
	b.cancelFunc()
	close(b.eventChan)
	return nil
}
