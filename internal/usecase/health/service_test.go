package health

import (
	"context"
	"errors"
	"testing"
)

type mockPinger struct{ err error }

func (m *mockPinger) Ping(context.Context) error { return m.err }

type mockChecker struct{ err error }

func (m *mockChecker) HealthCheck(context.Context) error { return m.err }

type mockCounter struct {
	count int
	err   error
}

func (m *mockCounter) Count(context.Context) (int, error) { return m.count, m.err }

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockPinger{}, &mockChecker{}, &mockCounter{count: 10})

	report := svc.Check(context.Background())
	if report.Status != Healthy {
		t.Fatalf("status = %s, want %s", report.Status, Healthy)
	}
	for _, name := range []string{"database", "embedding", "vector_index"} {
		if report.Checks[name] != CheckOK {
			t.Errorf("check %q = %s, want %s", name, report.Checks[name], CheckOK)
		}
	}
}

func TestCheck_DegradedOnFailure(t *testing.T) {
	tests := []struct {
		name    string
		db      error
		emb     error
		idx     error
		failing string
	}{
		{"database down", errors.New("conn refused"), nil, nil, "database"},
		{"embedding down", nil, errors.New("401"), nil, "embedding"},
		{"index down", nil, nil, errors.New("no index"), "vector_index"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := New(&mockPinger{err: tc.db}, &mockChecker{err: tc.emb}, &mockCounter{err: tc.idx})

			report := svc.Check(context.Background())
			if report.Status != Degraded {
				t.Fatalf("status = %s, want %s", report.Status, Degraded)
			}
			if report.Checks[tc.failing] != CheckError {
				t.Errorf("check %q = %s, want %s", tc.failing, report.Checks[tc.failing], CheckError)
			}
		})
	}
}

func TestCheck_OptionalComponentsSkipped(t *testing.T) {
	svc := New(&mockPinger{}, nil, nil)

	report := svc.Check(context.Background())
	if report.Status != Healthy {
		t.Fatalf("status = %s, want %s", report.Status, Healthy)
	}
	if len(report.Checks) != 1 {
		t.Fatalf("expected only the database check, got %v", report.Checks)
	}
}
