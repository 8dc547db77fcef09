// Package actors drives the dispute lifecycle from competing goroutines
// during the stress run.
package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"disputeflow/dispute"
	"disputeflow/events"
	"disputeflow/outbox"
)

// Registry remembers created dispute ids so updaters have something to race on.
type Registry struct {
	mu  sync.Mutex
	ids []string
}

func (r *Registry) Add(id string) {
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.mu.Unlock()
}

func (r *Registry) Pick() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ids) == 0 {
		return "", false
	}
	// Bias towards a few hot disputes to force row-lock contention.
	n := len(r.ids)
	if n > 4 && rand.Intn(3) > 0 {
		n = 4
	}
	return r.ids[rand.Intn(n)], true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

var reasons = []string{"UNAUTHORIZED", "DUPLICATE", "INCORRECT_AMOUNT", "MERCHANT_ERROR", "FRAUD"}

var statuses = []string{"PENDING", "UNDER_REVIEW", "RESOLVED", "REJECTED", "CANCELLED"}

// retryable reports errors a client would retry: chaos kills backends mid-flight.
func retryable(err error) bool {
	return !errors.Is(err, dispute.ErrInvalidArgument) &&
		!errors.Is(err, dispute.ErrNotFound) &&
		!errors.Is(err, dispute.ErrInvariantViolation)
}

// Creator files disputes against the seeded transactions of userID.
func Creator(ctx context.Context, svc *dispute.Service, reg *Registry, userID string, txIDs []string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		d, err := svc.CreateDispute(ctx, dispute.CreateParams{
			TransactionRef: txIDs[rand.Intn(len(txIDs))],
			UserID:         userID,
			ReasonCode:     reasons[rand.Intn(len(reasons))],
		})
		switch {
		case err == nil:
			reg.Add(d.ID)
		case ctx.Err() != nil:
			return ctx.Err()
		case !retryable(err):
			return fmt.Errorf("creator: %w", err)
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// Updater moves random disputes through random statuses. One in four
// updates carries an expected version, so conflicts are exercised too.
func Updater(ctx context.Context, svc *dispute.Service, reg *Registry, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		id, ok := reg.Pick()
		if !ok {
			time.Sleep(20 * time.Millisecond)
			continue
		}
		params := dispute.UpdateStatusParams{DisputeID: id, StatusCode: statuses[rand.Intn(len(statuses))]}
		if rand.Intn(4) == 0 {
			if d, found, err := svc.GetDisputeByID(ctx, id); err == nil && found {
				v := d.Version
				params.ExpectedVersion = &v
			}
		}
		_, err := svc.UpdateDisputeStatus(ctx, params)
		switch {
		case err == nil, errors.Is(err, dispute.ErrConflict):
		case ctx.Err() != nil:
			return ctx.Err()
		case !retryable(err):
			return fmt.Errorf("updater %s: %w", id, err)
		}
		time.Sleep(time.Duration(5+rand.Intn(25)) * time.Millisecond)
	}
}

// Reader lists the user's disputes and walks their audit trails.
func Reader(ctx context.Context, svc *dispute.Service, userID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		list, err := svc.GetDisputesByUser(ctx, userID)
		if err == nil && len(list) > 0 {
			_, _ = svc.ListDisputeEvents(ctx, list[rand.Intn(len(list))].ID)
		}
		time.Sleep(time.Duration(30+rand.Intn(50)) * time.Millisecond)
	}
}

// FlakyPublisher drops roughly one publish in failEvery.
type FlakyPublisher struct {
	Inner     events.Publisher
	FailEvery int
}

func (p FlakyPublisher) Publish(ctx context.Context, msg events.Message) error {
	if p.FailEvery > 0 && rand.Intn(p.FailEvery) == 0 {
		return errors.New("broker unavailable")
	}
	return p.Inner.Publish(ctx, msg)
}

// Dispatcher drains the outbox in passes until stopped.
func Dispatcher(ctx context.Context, d *outbox.Dispatcher, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, _ = d.DispatchOnce(ctx)
		time.Sleep(50 * time.Millisecond)
	}
}
