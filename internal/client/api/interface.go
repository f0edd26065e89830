package api

import (
	"context"

	"github.com/iudanet/tallysync/pkg/api"
)

//go:generate moq -out counterapi_mock.go . CounterAPI

// CounterAPI определяет операции сервера, используемые клиентом
type CounterAPI interface {
	ListCounters(ctx context.Context) ([]api.Counter, error)
	GetCounter(ctx context.Context, id string) (*api.Counter, error)
	CreateCounter(ctx context.Context, req api.CreateCounterRequest) (*api.Counter, error)
	UpdateCounter(ctx context.Context, id string, req api.UpdateCounterRequest) (*api.Counter, error)
	DeleteCounter(ctx context.Context, id string) error
	Increment(ctx context.Context, id string, req api.IncrementRequest) (*api.Counter, error)
	IncrementBatch(ctx context.Context, id string, req api.BatchIncrementRequest) (*api.Counter, error)
	Subscribe(ctx context.Context, handle func(api.Message) error) error
}
