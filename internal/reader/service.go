package reader

import (
	"context"
	"log/slog"

	"github.com/nerrad567/datalog-core/internal/infrastructure/config"
	"github.com/nerrad567/datalog-core/internal/influx"
)

// Logger is the minimal logging interface the service needs. Both
// logging.Logger and slog.Logger satisfy it.
type Logger interface {
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// noopLogger discards all messages; used when no logger is injected.
type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Debug(string, ...any) {}

// Service resolves historic-data requests against the time-series store.
//
// Thread Safety: Service is stateless apart from its store client; all
// methods are safe for concurrent use.
type Service struct {
	store      *influx.Client
	db         string
	maxHistory int
	log        Logger
}

// New creates a historic-data service over a connected store client.
//
// Parameters:
//   - store: Connected influx client
//   - cfg: Reader configuration (history cap)
//   - log: Logger; nil for silent operation
func New(store *influx.Client, cfg config.ReaderConfig, log Logger) *Service {
	if log == nil {
		log = noopLogger{}
	}
	return &Service{
		store:      store,
		db:         store.Database(),
		maxHistory: cfg.MaxHistorySize,
		log:        log,
	}
}

// HealthCheck verifies the underlying store connection.
func (s *Service) HealthCheck(ctx context.Context) error {
	return s.store.Connect(ctx)
}

var _ Logger = (*slog.Logger)(nil)
