package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"optionflow/ledger"
)

// Client delivers a request descriptor to the external Oracle Service.
type Client interface {
	Deliver(ctx context.Context, desc Descriptor) error
}

// HTTPClient posts descriptors as JSON to the Oracle Service endpoint.
type HTTPClient struct {
	url string
	hc  *http.Client
}

func NewHTTPClient(url string) *HTTPClient {
	return &HTTPClient{
		url: url,
		hc:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPClient) Deliver(ctx context.Context, desc Descriptor) error {
	body, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("oracle: marshal delivery: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("oracle: build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("oracle: deliver request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("oracle: delivery rejected with status %d", resp.StatusCode)
	}
	return nil
}

// DispatchStore is the outbox access the dispatcher needs.
type DispatchStore interface {
	NextPending(ctx context.Context, limit int) ([]Message, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// Dispatcher drains the outbox: it delivers descriptors to the Oracle Service
// and pays the request fee on successful delivery. Failed deliveries stay
// pending and are retried on the next tick.
type Dispatcher struct {
	store    DispatchStore
	client   Client
	ledger   ledger.Ledger
	interval time.Duration
	batch    int
	logger   *log.Logger
}

func NewDispatcher(store DispatchStore, client Client, lgr ledger.Ledger, interval time.Duration, logger *log.Logger) *Dispatcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{
		store:    store,
		client:   client,
		ledger:   lgr,
		interval: interval,
		batch:    32,
		logger:   logger,
	}
}

// Run drains the outbox until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.DispatchBatch(ctx); err != nil {
				d.logger.Printf("oracle dispatch: %v", err)
			}
		}
	}
}

// DispatchBatch delivers one batch of pending messages concurrently.
func (d *Dispatcher) DispatchBatch(ctx context.Context) error {
	msgs, err := d.store.NextPending(ctx, d.batch)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, msg := range msgs {
		msg := msg
		g.Go(func() error {
			d.dispatch(ctx, msg)
			return nil
		})
	}
	return g.Wait()
}

func (d *Dispatcher) dispatch(ctx context.Context, msg Message) {
	var desc Descriptor
	if err := json.Unmarshal(msg.Payload, &desc); err != nil {
		d.logger.Printf("oracle dispatch %s: malformed payload: %v", msg.ID, err)
		if err := d.store.MarkFailed(ctx, msg.ID); err != nil {
			d.logger.Printf("oracle dispatch %s: mark failed: %v", msg.ID, err)
		}
		return
	}

	if err := d.client.Deliver(ctx, desc); err != nil {
		d.logger.Printf("oracle dispatch %s: %v", msg.ID, err)
		if err := d.store.MarkFailed(ctx, msg.ID); err != nil {
			d.logger.Printf("oracle dispatch %s: mark failed: %v", msg.ID, err)
		}
		return
	}

	if fee, ok := new(big.Int).SetString(desc.Payment, 10); ok && fee.Sign() > 0 {
		if err := d.ledger.TransferPayment(ctx, desc.OracleID, fee); err != nil {
			d.logger.Printf("oracle dispatch %s: pay fee: %v", msg.ID, err)
		}
	}

	if err := d.store.MarkSent(ctx, msg.ID); err != nil {
		d.logger.Printf("oracle dispatch %s: mark sent: %v", msg.ID, err)
	}
}
