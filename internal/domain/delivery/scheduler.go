package delivery

import "context"

// Scheduler creates and tracks delivery tasks. Create is idempotent per order:
// a second call for the same order returns the task created by the first.
type Scheduler interface {
	Create(ctx context.Context, orderID, address, courier string) (task *Task, created bool, err error)
	Get(ctx context.Context, id string) (*Task, error)
	FindByOrder(ctx context.Context, orderID string) (*Task, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*Task, error)
	List(ctx context.Context) ([]*Task, error)
}
