package health

import "context"

// DBPinger checks record-store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// IndexCounter checks that the vector index answers queries.
type IndexCounter interface {
	Count(ctx context.Context) (int, error)
}
