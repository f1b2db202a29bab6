package memory

import (
	"context"
	"sort"
	"sync"

	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/delivery"
	"github.com/google/uuid"
)

// DeliveryScheduler keeps delivery tasks in memory, indexed by task and by order.
type DeliveryScheduler struct {
	mu      sync.RWMutex
	tasks   map[string]*taskRecord
	byOrder map[string]string
	newID   func() string
}

type taskRecord struct {
	mu   sync.Mutex
	task *domain.Task
}

func NewDeliveryScheduler() *DeliveryScheduler {
	return &DeliveryScheduler{
		tasks:   make(map[string]*taskRecord),
		byOrder: make(map[string]string),
		newID:   uuid.NewString,
	}
}

func (s *DeliveryScheduler) Create(ctx context.Context, orderID, address, courier string) (*domain.Task, bool, error) {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byOrder[orderID]; ok {
		rec := s.tasks[id]
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.task.Clone(), false, nil
	}

	task, err := domain.NewTask(s.newID(), orderID, address, courier)
	if err != nil {
		return nil, false, err
	}
	s.tasks[task.ID] = &taskRecord{task: task}
	s.byOrder[orderID] = task.ID
	return task.Clone(), true, nil
}

func (s *DeliveryScheduler) record(id string) (*taskRecord, error) {
	s.mu.RLock()
	rec, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (s *DeliveryScheduler) Get(ctx context.Context, id string) (*domain.Task, error) {
	_ = ctx
	rec, err := s.record(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.task.Clone(), nil
}

func (s *DeliveryScheduler) FindByOrder(ctx context.Context, orderID string) (*domain.Task, error) {
	s.mu.RLock()
	id, ok := s.byOrder[orderID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *DeliveryScheduler) UpdateStatus(ctx context.Context, id string, status domain.Status) (*domain.Task, error) {
	_ = ctx
	rec, err := s.record(id)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	working := rec.task.Clone()
	if err := working.Advance(status); err != nil {
		return nil, err
	}
	rec.task = working
	return working.Clone(), nil
}

func (s *DeliveryScheduler) List(ctx context.Context) ([]*domain.Task, error) {
	_ = ctx

	s.mu.RLock()
	recs := make([]*taskRecord, 0, len(s.tasks))
	for _, rec := range s.tasks {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	out := make([]*domain.Task, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		out = append(out, rec.task.Clone())
		rec.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
