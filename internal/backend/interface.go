package backend

import (
	"context"

	"presupuesto/internal/amqp"
	"presupuesto/internal/store"
)

// CleanupFunc releases whatever the backend opened.
type CleanupFunc func() error

// Result is a ready store plus the optional event publisher.
type Result struct {
	Store     store.Store
	Publisher *amqp.Client // nil when AMQP is not configured or unreachable
	Ping      func(ctx context.Context) error
	Cleanup   CleanupFunc
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

type Config struct {
	Type BackendType

	SQLiteDBPath string
	DatabaseURL  string

	// Memory backend seed directory
	DataDirectory string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
