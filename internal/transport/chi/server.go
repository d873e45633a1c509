// Package chi is the thin HTTP surface over the retrieval engine. It is a
// collaborator shim, not an application: routing, decoding and error
// mapping only.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tonnylei0321/bankfind/internal/domain"
	"github.com/tonnylei0321/bankfind/internal/logger"
	"github.com/tonnylei0321/bankfind/internal/usecase/health"
	"github.com/tonnylei0321/bankfind/internal/usecase/retrieval"
)

// RetrievalService is the engine surface the HTTP layer consumes.
type RetrievalService interface {
	Retrieve(ctx context.Context, req retrieval.Request) (retrieval.Response, error)
	Stats(ctx context.Context) (domain.SyncStats, error)
	Config() domain.RetrievalConfig
	UpdateConfig(patch domain.ConfigPatch) (domain.RetrievalConfig, error)
	RebuildIndex(ctx context.Context, force bool) (bool, error)
}

// RecordIngester accepts records into the source-of-truth store.
type RecordIngester interface {
	PutAll(ctx context.Context, recs []domain.BankRecord) (int, error)
}

// HealthService reports component health.
type HealthService interface {
	Check(ctx context.Context) health.Report
}

// Server holds the handlers.
type Server struct {
	engine  RetrievalService
	records RecordIngester
	health  HealthService
	logger  *zap.Logger
}

// NewServer creates the HTTP server.
func NewServer(engine RetrievalService, records RecordIngester, healthSvc HealthService, logger *zap.Logger) *Server {
	return &Server{engine: engine, records: records, health: healthSvc, logger: logger}
}

// Register mounts all routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/retrieve", s.handleRetrieve)
		r.Get("/stats", s.handleStats)
		r.Get("/config", s.handleGetConfig)
		r.Patch("/config", s.handleUpdateConfig)
		r.Post("/index/rebuild", s.handleRebuild)
		r.Post("/records", s.handleIngest)
	})
}

type retrieveRequest struct {
	Question            string   `json:"question"`
	TopK                int      `json:"top_k,omitempty"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty"`
}

type retrieveResult struct {
	BankName        string  `json:"bank_name"`
	BankCode        string  `json:"bank_code"`
	SimilarityScore float64 `json:"similarity_score"`
	KeywordScore    float64 `json:"keyword_score"`
	FinalScore      float64 `json:"final_score"`
	RetrievalMethod string  `json:"retrieval_method"`
}

type retrieveResponse struct {
	Results      []retrieveResult `json:"results"`
	TotalFound   int              `json:"total_found"`
	SearchTimeMS float64          `json:"search_time_ms"`
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := decodeStrict(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	resp, err := s.engine.Retrieve(r.Context(), retrieval.Request{
		Question:            req.Question,
		TopK:                req.TopK,
		SimilarityThreshold: req.SimilarityThreshold,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	logger.FromContext(r.Context()).Debug("retrieve",
		zap.String("question", req.Question),
		zap.Int("total_found", resp.TotalFound),
		zap.Duration("elapsed", resp.Elapsed),
	)

	results := make([]retrieveResult, len(resp.Results))
	for i, res := range resp.Results {
		results[i] = retrieveResult{
			BankName:        res.BankName,
			BankCode:        res.BankCode,
			SimilarityScore: res.SimilarityScore,
			KeywordScore:    res.KeywordScore,
			FinalScore:      res.FinalScore,
			RetrievalMethod: string(res.Method),
		}
	}
	writeJSON(w, http.StatusOK, retrieveResponse{
		Results:      results,
		TotalFound:   resp.TotalFound,
		SearchTimeMS: float64(resp.Elapsed.Microseconds()) / 1000.0,
	})
}

type statsResponse struct {
	VectorDBCount      int  `json:"vector_db_count"`
	SourceDBCount      int  `json:"source_db_count"`
	IsSynced           bool `json:"is_synced"`
	EmbeddingDimension int  `json:"embedding_dimension"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		VectorDBCount:      st.VectorCount,
		SourceDBCount:      st.SourceCount,
		IsSynced:           st.IsSynced,
		EmbeddingDimension: st.EmbeddingDimension,
	})
}

type configPayload struct {
	SimilarityThreshold float64 `json:"similarity_threshold"`
	TopK                int     `json:"top_k"`
	VectorWeight        float64 `json:"vector_weight"`
	KeywordWeight       float64 `json:"keyword_weight"`
	EnableHybrid        bool    `json:"enable_hybrid"`
}

type configPatch struct {
	SimilarityThreshold *float64 `json:"similarity_threshold"`
	TopK                *int     `json:"top_k"`
	VectorWeight        *float64 `json:"vector_weight"`
	KeywordWeight       *float64 `json:"keyword_weight"`
	EnableHybrid        *bool    `json:"enable_hybrid"`
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toConfigPayload(s.engine.Config()))
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var patch configPatch
	if err := decodeStrict(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	cfg, err := s.engine.UpdateConfig(domain.ConfigPatch{
		SimilarityThreshold: patch.SimilarityThreshold,
		TopK:                patch.TopK,
		VectorWeight:        patch.VectorWeight,
		KeywordWeight:       patch.KeywordWeight,
		EnableHybrid:        patch.EnableHybrid,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConfigPayload(cfg))
}

type rebuildRequest struct {
	Force bool `json:"force"`
}

type rebuildResponse struct {
	Rebuilt bool `json:"rebuilt"`
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	var req rebuildRequest
	if r.ContentLength > 0 {
		if err := decodeStrict(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
	}

	rebuilt, err := s.engine.RebuildIndex(r.Context(), req.Force)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rebuildResponse{Rebuilt: rebuilt})
}

type ingestRecord struct {
	ID           int64  `json:"id"`
	BankName     string `json:"bank_name"`
	BankCode     string `json:"bank_code"`
	ClearingCode string `json:"clearing_code"`
}

type ingestResponse struct {
	Ingested int `json:"ingested"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var payload []ingestRecord
	if err := decodeStrict(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	recs := make([]domain.BankRecord, len(payload))
	for i, p := range payload {
		recs[i] = domain.BankRecord{
			ID:           p.ID,
			BankName:     p.BankName,
			BankCode:     p.BankCode,
			ClearingCode: p.ClearingCode,
		}
	}

	n, err := s.records.PutAll(r.Context(), recs)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{Ingested: n})
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	checks := make(map[string]string, len(report.Checks))
	for name, res := range report.Checks {
		checks[name] = string(res)
	}
	status := http.StatusOK
	if report.Status != health.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{Status: string(report.Status), Checks: checks})
}

// writeServiceError maps domain errors onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, "invalid_config", err.Error())
	case errors.Is(err, domain.ErrInvalidRecord):
		writeError(w, http.StatusBadRequest, "invalid_record", err.Error())
	case errors.Is(err, domain.ErrRebuildInProgress):
		writeError(w, http.StatusConflict, "rebuild_in_progress", err.Error())
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		writeError(w, http.StatusBadGateway, "embedding_provider_error", err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func decodeStrict(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func toConfigPayload(cfg domain.RetrievalConfig) configPayload {
	return configPayload{
		SimilarityThreshold: cfg.SimilarityThreshold,
		TopK:                cfg.TopK,
		VectorWeight:        cfg.VectorWeight,
		KeywordWeight:       cfg.KeywordWeight,
		EnableHybrid:        cfg.EnableHybrid,
	}
}
