package testutil

import (
	"context"
	"sync"

	"github.com/parcelbase/parcelbase/internal/audit"
	"github.com/parcelbase/parcelbase/internal/publisher"
)

// RecordingAuditQueue implements audit.Enqueuer and keeps what it was given
type RecordingAuditQueue struct {
	mu      sync.Mutex
	records []*audit.Record
	err     error
}

func NewRecordingAuditQueue() *RecordingAuditQueue {
	return &RecordingAuditQueue{}
}

func (q *RecordingAuditQueue) Enqueue(ctx context.Context, record *audit.Record) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.records = append(q.records, record)
	return nil
}

func (q *RecordingAuditQueue) Fail(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.err = err
}

func (q *RecordingAuditQueue) Records() []*audit.Record {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*audit.Record(nil), q.records...)
}

func (q *RecordingAuditQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.records = nil
	q.err = nil
}

// RecordingEventPublisher implements publisher.EventPublisher
type RecordingEventPublisher struct {
	mu     sync.Mutex
	events []*publisher.StatusChangedEvent
}

func NewRecordingEventPublisher() *RecordingEventPublisher {
	return &RecordingEventPublisher{}
}

func (p *RecordingEventPublisher) PublishStatusChanged(ctx context.Context, event *publisher.StatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *RecordingEventPublisher) Events() []*publisher.StatusChangedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*publisher.StatusChangedEvent(nil), p.events...)
}

func (p *RecordingEventPublisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
