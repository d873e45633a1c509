// Package records is the Redis-backed source-of-truth record store. It owns
// the ingestion boundary: records violating the 12-digit code invariant are
// rejected at Put time, never at retrieval time.
package records

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/tonnylei0321/bankfind/internal/domain"
)

const scanBatch = 500

// Repo stores bank records as hashes with exact-name and code lookup keys
// maintained alongside.
type Repo struct {
	client rueidis.Client
	prefix string
}

// New creates a record repository. keyPrefix namespaces every key.
func New(client rueidis.Client, keyPrefix string) *Repo {
	return &Repo{client: client, prefix: keyPrefix + "src:"}
}

// Ping checks store connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.client.Do(ctx, r.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Put validates and stores one record with its lookup keys.
func (r *Repo) Put(ctx context.Context, rec domain.BankRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	id := strconv.FormatInt(rec.ID, 10)
	cmds := []rueidis.Completed{
		r.client.B().Hset().Key(r.recKey(rec.ID)).FieldValue().
			FieldValue("id", id).
			FieldValue("bank_name", rec.BankName).
			FieldValue("bank_code", rec.BankCode).
			FieldValue("clearing_code", rec.ClearingCode).
			Build(),
		r.client.B().Set().Key(r.nameKey(rec.BankName)).Value(id).Build(),
		r.client.B().Set().Key(r.codeKey(rec.BankCode)).Value(id).Build(),
		r.client.B().Sadd().Key(r.idsKey()).Member(id).Build(),
	}

	for _, resp := range r.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("put record %d: %w", rec.ID, err)
		}
	}
	return nil
}

// PutAll stores a batch, stopping at the first invalid record. Returns how
// many records were written.
func (r *Repo) PutAll(ctx context.Context, recs []domain.BankRecord) (int, error) {
	for i, rec := range recs {
		if err := r.Put(ctx, rec); err != nil {
			return i, fmt.Errorf("record [%d]: %w", i, err)
		}
	}
	return len(recs), nil
}

// FindByExactName resolves a whitespace/punctuation-normalized legal name.
func (r *Repo) FindByExactName(ctx context.Context, name string) (domain.BankRecord, error) {
	return r.findVia(ctx, r.nameKey(name))
}

// FindByCode resolves a 12-digit clearing identifier.
func (r *Repo) FindByCode(ctx context.Context, code string) (domain.BankRecord, error) {
	return r.findVia(ctx, r.codeKey(code))
}

// Count reports how many records the store holds.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.client.Do(ctx, r.client.B().Scard().Key(r.idsKey()).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return int(n), nil
}

// GetAll streams every record via cursor scans over the id set. Only the
// index sync manager calls this; the query path never does.
func (r *Repo) GetAll(ctx context.Context) ([]domain.BankRecord, error) {
	var ids []string
	var cursor uint64
	for {
		entry, err := r.client.Do(ctx, r.client.B().Sscan().Key(r.idsKey()).
			Cursor(cursor).Count(scanBatch).Build()).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("scan record ids: %w", err)
		}
		ids = append(ids, entry.Elements...)
		cursor = entry.Cursor
		if cursor == 0 {
			break
		}
	}

	recs := make([]domain.BankRecord, 0, len(ids))
	for start := 0; start < len(ids); start += scanBatch {
		end := min(start+scanBatch, len(ids))

		cmds := make([]rueidis.Completed, 0, end-start)
		for _, id := range ids[start:end] {
			n, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("malformed record id %q: %w", id, err)
			}
			cmds = append(cmds, r.client.B().Hgetall().Key(r.recKey(n)).Build())
		}

		for i, resp := range r.client.DoMulti(ctx, cmds...) {
			fields, err := resp.AsStrMap()
			if err != nil {
				return nil, fmt.Errorf("read record %s: %w", ids[start+i], err)
			}
			if len(fields) == 0 {
				continue // id set member without a hash, skip
			}
			rec, err := recordFromHash(fields)
			if err != nil {
				return nil, err
			}
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

func (r *Repo) findVia(ctx context.Context, lookupKey string) (domain.BankRecord, error) {
	idStr, err := r.client.Do(ctx, r.client.B().Get().Key(lookupKey).Build()).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return domain.BankRecord{}, domain.ErrNotFound
		}
		return domain.BankRecord{}, fmt.Errorf("lookup %s: %w", lookupKey, err)
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return domain.BankRecord{}, fmt.Errorf("malformed record id %q: %w", idStr, err)
	}

	fields, err := r.client.Do(ctx, r.client.B().Hgetall().Key(r.recKey(id)).Build()).AsStrMap()
	if err != nil {
		return domain.BankRecord{}, fmt.Errorf("read record %d: %w", id, err)
	}
	if len(fields) == 0 {
		return domain.BankRecord{}, domain.ErrNotFound
	}
	return recordFromHash(fields)
}

func (r *Repo) recKey(id int64) string {
	return r.prefix + "rec:" + strconv.FormatInt(id, 10)
}

func (r *Repo) nameKey(name string) string {
	return r.prefix + "name:" + domain.NormalizeName(name)
}

func (r *Repo) codeKey(code string) string {
	return r.prefix + "code:" + code
}

func (r *Repo) idsKey() string {
	return r.prefix + "ids"
}

func recordFromHash(fields map[string]string) (domain.BankRecord, error) {
	id, err := strconv.ParseInt(fields["id"], 10, 64)
	if err != nil {
		return domain.BankRecord{}, fmt.Errorf("malformed record hash id %q: %w", fields["id"], err)
	}
	return domain.BankRecord{
		ID:           id,
		BankName:     fields["bank_name"],
		BankCode:     fields["bank_code"],
		ClearingCode: fields["clearing_code"],
	}, nil
}
