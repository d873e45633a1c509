package retrieval

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/tonnylei0321/bankfind/internal/domain"
)

type mockRecords struct {
	byName map[string]domain.BankRecord
	byCode map[string]domain.BankRecord

	nameErr error
	codeErr error
	count   int

	nameCalls int
	codeCalls int
}

func (m *mockRecords) FindByExactName(_ context.Context, name string) (domain.BankRecord, error) {
	m.nameCalls++
	if m.nameErr != nil {
		return domain.BankRecord{}, m.nameErr
	}
	if rec, ok := m.byName[name]; ok {
		return rec, nil
	}
	return domain.BankRecord{}, domain.ErrNotFound
}

func (m *mockRecords) FindByCode(_ context.Context, code string) (domain.BankRecord, error) {
	m.codeCalls++
	if m.codeErr != nil {
		return domain.BankRecord{}, m.codeErr
	}
	if rec, ok := m.byCode[code]; ok {
		return rec, nil
	}
	return domain.BankRecord{}, domain.ErrNotFound
}

func (m *mockRecords) Count(context.Context) (int, error) { return m.count, nil }

type mockIndex struct {
	queryCands []domain.Candidate
	queryErr   error

	lookupCands []domain.Candidate
	lookupErr   error

	count int

	queryCalls  int
	lookupCalls int
	lastLimit   int
	lastTokens  []string
}

func (m *mockIndex) Query(_ context.Context, _ []float32, _ int) ([]domain.Candidate, error) {
	m.queryCalls++
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.queryCands, nil
}

func (m *mockIndex) LookupTokens(_ context.Context, tokens []string, limit int) ([]domain.Candidate, error) {
	m.lookupCalls++
	m.lastTokens = tokens
	m.lastLimit = limit
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	return m.lookupCands, nil
}

func (m *mockIndex) Count(context.Context) (int, error) { return m.count, nil }

type mockEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (m *mockEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec, TotalTokens: 3}, nil
}

type mockSyncer struct {
	rebuilt    bool
	rebuildErr error
	lastForce  bool

	stats    domain.SyncStats
	statsErr error
}

func (m *mockSyncer) Rebuild(_ context.Context, force bool) (bool, error) {
	m.lastForce = force
	return m.rebuilt, m.rebuildErr
}

func (m *mockSyncer) Stats(context.Context) (domain.SyncStats, error) {
	return m.stats, m.statsErr
}

type testDeps struct {
	records *mockRecords
	index   *mockIndex
	embed   *mockEmbedder
	syncer  *mockSyncer
}

func newTestService(t *testing.T, cfg domain.RetrievalConfig) (*Service, *testDeps) {
	t.Helper()
	deps := &testDeps{
		records: &mockRecords{},
		index:   &mockIndex{},
		embed:   &mockEmbedder{vec: []float32{0.1, 0.2, 0.3}},
		syncer:  &mockSyncer{},
	}
	svc, err := New(deps.records, deps.index, deps.embed, deps.syncer, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc, deps
}
