// Package vectorindex stores embedded records in RediSearch, one index per
// generation. Readers always go through an index alias, so a rebuild
// becomes visible only at the moment the alias moves — never half-populated.
// Each generation also carries an inverted keyword index (token → record
// ids) used as the bounded fallback for keyword matching.
package vectorindex

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/tonnylei0321/bankfind/internal/domain"
)

const (
	// maxLookupTokens bounds how many query tokens hit the inverted index.
	maxLookupTokens = 8
	scanBatch       = 500
)

// HNSWConfig tunes the vector index construction.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo manages vector-index generations on Redis.
type Repo struct {
	client rueidis.Client
	prefix string
	hnsw   HNSWConfig
}

// New creates a vector index repository. keyPrefix namespaces every key.
func New(client rueidis.Client, keyPrefix string) *Repo {
	return &Repo{
		client: client,
		prefix: keyPrefix + "idx:",
		hnsw:   HNSWConfig{M: 32, EFConstruct: 400},
	}
}

// WithHNSW overrides HNSW construction parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// BeginGeneration allocates a generation id and creates its empty index.
func (r *Repo) BeginGeneration(ctx context.Context, dimension int) (string, error) {
	if dimension <= 0 {
		return "", fmt.Errorf("dimension must be positive, got %d", dimension)
	}

	seq, err := r.client.Do(ctx, r.client.B().Incr().Key(r.prefix+"seq").Build()).AsInt64()
	if err != nil {
		return "", fmt.Errorf("allocate generation: %w", err)
	}
	gen := "v" + strconv.FormatInt(seq, 10)

	cmd := r.client.B().Arbitrary("FT.CREATE").Args(
		r.indexName(gen),
		"ON", "HASH",
		"PREFIX", "1", r.docPrefix(gen),
		"SCHEMA",
		"vector", "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(dimension),
		"DISTANCE_METRIC", "COSINE",
		"M", strconv.Itoa(r.hnsw.M),
		"EF_CONSTRUCTION", strconv.Itoa(r.hnsw.EFConstruct),
		"bank_code", "TAG",
	).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return "", fmt.Errorf("create index %s: %w", gen, err)
	}
	return gen, nil
}

// Add writes entries and their inverted-index tokens into a generation.
func (r *Repo) Add(ctx context.Context, gen string, entries []domain.VectorEntry) error {
	cmds := make([]rueidis.Completed, 0, len(entries)*2)
	for _, e := range entries {
		id := strconv.FormatInt(e.RecordID, 10)
		cmds = append(cmds, r.client.B().Hset().Key(r.docPrefix(gen)+id).FieldValue().
			FieldValue("record_id", id).
			FieldValue("bank_name", e.BankName).
			FieldValue("bank_code", e.BankCode).
			FieldValue("tokens", strings.Join(e.Tokens, " ")).
			FieldValue("vector", vectorToBytes(e.Embedding)).
			Build())
		for _, tok := range e.Tokens {
			cmds = append(cmds, r.client.B().Sadd().Key(r.tokenKey(gen, tok)).Member(id).Build())
		}
	}

	for _, resp := range r.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("add entries to %s: %w", gen, err)
		}
	}
	return nil
}

// Promote atomically points the reader alias and the generation pointer at
// gen, returning the previously promoted generation.
func (r *Repo) Promote(ctx context.Context, gen string) (string, error) {
	prev, err := r.client.Do(ctx, r.client.B().Get().Key(r.genKey()).Build()).ToString()
	if err != nil && !rueidis.IsRedisNil(err) {
		return "", fmt.Errorf("read current generation: %w", err)
	}

	cmds := []rueidis.Completed{
		r.client.B().Multi().Build(),
		r.client.B().Arbitrary("FT.ALIASUPDATE").Args(r.aliasName(), r.indexName(gen)).Build(),
		r.client.B().Set().Key(r.genKey()).Value(gen).Build(),
		r.client.B().Exec().Build(),
	}
	for _, resp := range r.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return "", fmt.Errorf("promote %s: %w", gen, err)
		}
	}
	return prev, nil
}

// DropGeneration removes a generation: its index with documents, then its
// inverted-index keys.
func (r *Repo) DropGeneration(ctx context.Context, gen string) error {
	cmd := r.client.B().Arbitrary("FT.DROPINDEX").Args(r.indexName(gen), "DD").Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil && !isUnknownIndex(err) {
		return fmt.Errorf("drop index %s: %w", gen, err)
	}

	// Token sets are not index documents; DD does not touch them.
	var cursor uint64
	pattern := r.tokenKey(gen, "*")
	for {
		entry, err := r.client.Do(ctx, r.client.B().Scan().Cursor(cursor).
			Match(pattern).Count(scanBatch).Build()).AsScanEntry()
		if err != nil {
			return fmt.Errorf("scan token keys of %s: %w", gen, err)
		}
		if len(entry.Elements) > 0 {
			del := r.client.B().Del().Key(entry.Elements...).Build()
			if err := r.client.Do(ctx, del).Error(); err != nil {
				return fmt.Errorf("delete token keys of %s: %w", gen, err)
			}
		}
		cursor = entry.Cursor
		if cursor == 0 {
			return nil
		}
	}
}

// Query runs a KNN search against the promoted generation via the alias.
func (r *Repo) Query(ctx context.Context, vector []float32, k int) ([]domain.Candidate, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	cmd := r.client.B().Arbitrary("FT.SEARCH").Args(
		r.aliasName(),
		fmt.Sprintf("*=>[KNN %d @vector $BLOB]", k),
		"RETURN", "5", "record_id", "bank_name", "bank_code", "tokens", "__vector_score",
		"LIMIT", "0", strconv.Itoa(k),
		"PARAMS", "2", "BLOB", vectorToBytes(vector),
		"DIALECT", "2",
	).Build()

	raw, err := r.client.Do(ctx, cmd).ToArray()
	if err != nil {
		if isUnknownIndex(err) {
			return nil, fmt.Errorf("%w: no promoted generation", domain.ErrIndexUnavailable)
		}
		return nil, fmt.Errorf("knn search: %w", err)
	}
	return parseKNNResult(raw)
}

// LookupTokens resolves record candidates through the inverted keyword
// index of the promoted generation, returning at most limit of them.
func (r *Repo) LookupTokens(ctx context.Context, tokens []string, limit int) ([]domain.Candidate, error) {
	if len(tokens) == 0 || limit <= 0 {
		return nil, nil
	}
	if len(tokens) > maxLookupTokens {
		tokens = tokens[:maxLookupTokens]
	}

	gen, err := r.client.Do(ctx, r.client.B().Get().Key(r.genKey()).Build()).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, fmt.Errorf("%w: no promoted generation", domain.ErrIndexUnavailable)
		}
		return nil, fmt.Errorf("read current generation: %w", err)
	}

	memberCmds := make([]rueidis.Completed, 0, len(tokens))
	for _, tok := range tokens {
		memberCmds = append(memberCmds, r.client.B().Smembers().Key(r.tokenKey(gen, tok)).Build())
	}

	ids := make([]string, 0, limit)
	seen := make(map[string]struct{}, limit)
	for _, resp := range r.client.DoMulti(ctx, memberCmds...) {
		members, err := resp.AsStrSlice()
		if err != nil {
			return nil, fmt.Errorf("read token set: %w", err)
		}
		for _, id := range members {
			if len(ids) >= limit {
				break
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	docCmds := make([]rueidis.Completed, 0, len(ids))
	for _, id := range ids {
		docCmds = append(docCmds, r.client.B().Hgetall().Key(r.docPrefix(gen)+id).Build())
	}

	cands := make([]domain.Candidate, 0, len(ids))
	for i, resp := range r.client.DoMulti(ctx, docCmds...) {
		fields, err := resp.AsStrMap()
		if err != nil {
			return nil, fmt.Errorf("read entry %s: %w", ids[i], err)
		}
		if len(fields) == 0 {
			continue
		}
		cand, err := candidateFromFields(fields, 0)
		if err != nil {
			return nil, err
		}
		cands = append(cands, cand)
	}
	return cands, nil
}

// Count reports the promoted generation's entry count; 0 when no
// generation was ever promoted.
func (r *Repo) Count(ctx context.Context) (int, error) {
	cmd := r.client.B().Arbitrary("FT.SEARCH").Args(r.aliasName(), "*", "LIMIT", "0", "0").Build()
	raw, err := r.client.Do(ctx, cmd).ToArray()
	if err != nil {
		if isUnknownIndex(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("count entries: %w", err)
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(total), nil
}

func (r *Repo) indexName(gen string) string { return r.prefix + gen }
func (r *Repo) docPrefix(gen string) string { return r.prefix + gen + ":rec:" }
func (r *Repo) tokenKey(gen, tok string) string {
	return r.prefix + gen + ":tok:" + tok
}
func (r *Repo) aliasName() string { return r.prefix + "current" }
func (r *Repo) genKey() string    { return r.prefix + "gen" }

// parseKNNResult parses the RESP2 FT.SEARCH reply:
// [total, key1, fields1, key2, fields2, ...].
func parseKNNResult(raw []rueidis.RedisMessage) ([]domain.Candidate, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	cands := make([]domain.Candidate, 0, total)
	for i := 1; i+1 < len(raw); i += 2 {
		fieldArr, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		fields := parseFieldPairs(fieldArr)

		similarity := 0.0
		if distStr, ok := fields["__vector_score"]; ok {
			if dist, err := strconv.ParseFloat(distStr, 64); err == nil {
				similarity = max(0, 1.0-dist) // cosine distance → similarity, clamped to [0,1]
			}
		}

		cand, err := candidateFromFields(fields, similarity)
		if err != nil {
			return nil, err
		}
		cands = append(cands, cand)
	}
	return cands, nil
}

func parseFieldPairs(arr []rueidis.RedisMessage) map[string]string {
	fields := make(map[string]string, len(arr)/2)
	for i := 0; i+1 < len(arr); i += 2 {
		k, err := arr[i].ToString()
		if err != nil {
			continue
		}
		v, err := arr[i+1].ToString()
		if err != nil {
			continue
		}
		fields[k] = v
	}
	return fields
}

func candidateFromFields(fields map[string]string, similarity float64) (domain.Candidate, error) {
	id, err := strconv.ParseInt(fields["record_id"], 10, 64)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("malformed record_id %q: %w", fields["record_id"], err)
	}
	var tokens []string
	if fields["tokens"] != "" {
		tokens = strings.Fields(fields["tokens"])
	}
	return domain.Candidate{
		RecordID:   id,
		BankName:   fields["bank_name"],
		BankCode:   fields["bank_code"],
		Tokens:     tokens,
		Similarity: similarity,
	}, nil
}

// vectorToBytes serializes a vector as little-endian float32 bytes, the
// layout RediSearch expects for VECTOR fields.
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

func isUnknownIndex(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such index") ||
		strings.Contains(msg, "unknown index")
}
