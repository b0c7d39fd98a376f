package memory

import (
	"context"
	"time"

	"github.com/DRSN-tech/order-backend/internal/usecase"
)

type OutboxEventRepo struct {
	store *Store
}

func NewOutboxEventRepo(store *Store) *OutboxEventRepo {
	return &OutboxEventRepo{store: store}
}

func (r *OutboxEventRepo) Create(ctx context.Context, event *usecase.OutboxEvent) (*usecase.OutboxEvent, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	r.store.outboxID++
	stored := *event
	stored.ID = r.store.outboxID
	if stored.Status == "" {
		stored.Status = usecase.Pending
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = nowUTC()
	}
	r.store.outbox = append(r.store.outbox, stored)

	out := stored
	return &out, nil
}

func (r *OutboxEventRepo) GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*usecase.OutboxEvent, error) {
	unlock := r.store.lock(ctx)
	defer unlock()

	events := make([]*usecase.OutboxEvent, 0, limit)
	for i := range r.store.outbox {
		if len(events) == limit {
			break
		}
		if r.store.outbox[i].Status != usecase.Pending {
			continue
		}
		r.store.outbox[i].Status = usecase.Processing
		ev := r.store.outbox[i]
		events = append(events, &ev)
	}
	return events, nil
}

func (r *OutboxEventRepo) MarkAsProcessed(ctx context.Context, id int64) error {
	return r.setStatus(ctx, id, usecase.Processing, usecase.Processed)
}

func (r *OutboxEventRepo) MarkAsPending(ctx context.Context, id int64) error {
	return r.setStatus(ctx, id, usecase.Processing, usecase.Pending)
}

// Events возвращает копию всех событий.
func (r *OutboxEventRepo) Events(ctx context.Context) []usecase.OutboxEvent {
	unlock := r.store.lock(ctx)
	defer unlock()

	out := make([]usecase.OutboxEvent, len(r.store.outbox))
	copy(out, r.store.outbox)
	return out
}

func (r *OutboxEventRepo) setStatus(ctx context.Context, id int64, from, to usecase.OutboxStatus) error {
	unlock := r.store.lock(ctx)
	defer unlock()

	for i := range r.store.outbox {
		ev := &r.store.outbox[i]
		if ev.ID != id || ev.Status != from {
			continue
		}
		ev.Status = to
		if to == usecase.Processed {
			now := nowUTC()
			ev.ProcessedAt = &now
		}
	}
	return nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
