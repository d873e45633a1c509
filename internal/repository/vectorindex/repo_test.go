package vectorindex

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/tonnylei0321/bankfind/internal/domain"
)

func TestBeginGeneration(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("INCR", "t:idx:seq")).
		Return(mock.Result(mock.RedisInt64(3)))
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE" && cmd[1] == "t:idx:v3"
		})).
		Return(mock.Result(mock.RedisString("OK")))

	r := New(c, "t:")
	gen, err := r.BeginGeneration(context.Background(), 512)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen != "v3" {
		t.Fatalf("gen = %q, want v3", gen)
	}
}

func TestBeginGeneration_RejectsBadDimension(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl) // no expectations

	r := New(c, "t:")
	if _, err := r.BeginGeneration(context.Background(), 0); err == nil {
		t.Fatal("expected error for zero dimension")
	}
}

func TestAdd_WritesDocAndTokenSets(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmds ...rueidis.Completed) []rueidis.RedisResult {
			if len(cmds) != 3 {
				t.Fatalf("expected HSET + 2 SADD, got %d commands", len(cmds))
			}
			hset := cmds[0].Commands()
			if hset[0] != "HSET" || hset[1] != "t:idx:v1:rec:7" {
				t.Errorf("unexpected doc write: %v", hset[:2])
			}
			sadd := cmds[1].Commands()
			if sadd[0] != "SADD" || sadd[1] != "t:idx:v1:tok:中国工商银行" {
				t.Errorf("unexpected token write: %v", sadd)
			}
			results := make([]rueidis.RedisResult, len(cmds))
			for i := range results {
				results[i] = mock.Result(mock.RedisInt64(1))
			}
			return results
		})

	r := New(c, "t:")
	err := r.Add(context.Background(), "v1", []domain.VectorEntry{{
		RecordID:  7,
		Embedding: []float32{0.1, 0.2},
		BankName:  "中国工商银行北京支行",
		BankCode:  "102100000123",
		Tokens:    []string{"中国工商银行", "北京"},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPromote(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "t:idx:gen")).
		Return(mock.Result(mock.RedisString("v1")))
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmds ...rueidis.Completed) []rueidis.RedisResult {
			if len(cmds) != 4 {
				t.Fatalf("expected MULTI/ALIASUPDATE/SET/EXEC, got %d commands", len(cmds))
			}
			if cmds[0].Commands()[0] != "MULTI" || cmds[3].Commands()[0] != "EXEC" {
				t.Error("alias move and pointer write must run in a transaction")
			}
			alias := cmds[1].Commands()
			if alias[0] != "FT.ALIASUPDATE" || alias[1] != "t:idx:current" || alias[2] != "t:idx:v2" {
				t.Errorf("unexpected alias update: %v", alias)
			}
			return []rueidis.RedisResult{
				mock.Result(mock.RedisString("OK")),
				mock.Result(mock.RedisString("QUEUED")),
				mock.Result(mock.RedisString("QUEUED")),
				mock.Result(mock.RedisArray(mock.RedisString("OK"), mock.RedisString("OK"))),
			}
		})

	r := New(c, "t:")
	prev, err := r.Promote(context.Background(), "v2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prev != "v1" {
		t.Fatalf("prev = %q, want v1", prev)
	}
}

func TestPromote_FirstGeneration(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "t:idx:gen")).
		Return(mock.Result(mock.RedisNil()))
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisString("OK")),
			mock.Result(mock.RedisString("QUEUED")),
			mock.Result(mock.RedisString("QUEUED")),
			mock.Result(mock.RedisArray(mock.RedisString("OK"), mock.RedisString("OK"))),
		})

	r := New(c, "t:")
	prev, err := r.Promote(context.Background(), "v1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prev != "" {
		t.Fatalf("prev = %q, want empty", prev)
	}
}

func TestDropGeneration(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "t:idx:v1", "DD")).
		Return(mock.Result(mock.RedisString("OK")))
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "SCAN" })).
		Return(mock.Result(mock.RedisArray(
			mock.RedisString("0"),
			mock.RedisArray(mock.RedisString("t:idx:v1:tok:北京"), mock.RedisString("t:idx:v1:tok:支行")),
		)))
	c.EXPECT().
		Do(gomock.Any(), mock.Match("DEL", "t:idx:v1:tok:北京", "t:idx:v1:tok:支行")).
		Return(mock.Result(mock.RedisInt64(2)))

	r := New(c, "t:")
	if err := r.DropGeneration(context.Background(), "v1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDropGeneration_MissingIndexIgnored(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "t:idx:v9", "DD")).
		Return(mock.ErrorResult(errors.New("Unknown index name")))
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "SCAN" })).
		Return(mock.Result(mock.RedisArray(mock.RedisString("0"), mock.RedisArray())))

	r := New(c, "t:")
	if err := r.DropGeneration(context.Background(), "v9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func knnDoc(id, name, code, tokens, score string) []rueidis.RedisMessage {
	return []rueidis.RedisMessage{
		mock.RedisString("record_id"), mock.RedisString(id),
		mock.RedisString("bank_name"), mock.RedisString(name),
		mock.RedisString("bank_code"), mock.RedisString(code),
		mock.RedisString("tokens"), mock.RedisString(tokens),
		mock.RedisString("__vector_score"), mock.RedisString(score),
	}
}

func TestQuery(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[1] == "t:idx:current"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("t:idx:v1:rec:1"),
			mock.RedisArray(knnDoc("1", "中国工商银行北京支行", "102100000001", "中国工商银行 北京 支行", "0.25")...),
			mock.RedisString("t:idx:v1:rec:2"),
			mock.RedisArray(knnDoc("2", "中国农业银行上海分行", "103290000002", "中国农业银行 上海 分行", "1.4")...),
		)))

	r := New(c, "t:")
	cands, err := r.Query(context.Background(), []float32{0.1, 0.2}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(cands))
	}
	if cands[0].RecordID != 1 || math.Abs(cands[0].Similarity-0.75) > 1e-9 {
		t.Errorf("unexpected first candidate: %+v", cands[0])
	}
	if len(cands[0].Tokens) != 3 {
		t.Errorf("tokens not parsed: %+v", cands[0].Tokens)
	}
	// Distances above 1 clamp to similarity 0 instead of going negative.
	if cands[1].Similarity != 0 {
		t.Errorf("similarity = %g, want 0", cands[1].Similarity)
	}
}

func TestQuery_NoPromotedGeneration(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" })).
		Return(mock.ErrorResult(errors.New("No such index t:idx:current")))

	r := New(c, "t:")
	if _, err := r.Query(context.Background(), []float32{0.1}, 5); !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestQuery_RejectsBadInput(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl) // no expectations

	r := New(c, "t:")
	if _, err := r.Query(context.Background(), nil, 5); err == nil {
		t.Error("expected error for empty vector")
	}
	if _, err := r.Query(context.Background(), []float32{0.1}, 0); err == nil {
		t.Error("expected error for non-positive k")
	}
}

func TestLookupTokens(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "t:idx:gen")).
		Return(mock.Result(mock.RedisString("v2")))
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmds ...rueidis.Completed) []rueidis.RedisResult {
			if len(cmds) != 2 {
				t.Fatalf("expected 2 SMEMBERS, got %d", len(cmds))
			}
			if got := cmds[0].Commands()[1]; got != "t:idx:v2:tok:中国工商银行" {
				t.Errorf("unexpected token key: %s", got)
			}
			return []rueidis.RedisResult{
				mock.Result(mock.RedisArray(mock.RedisString("1"), mock.RedisString("2"))),
				mock.Result(mock.RedisArray(mock.RedisString("2"))),
			}
		})
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{
				"record_id": mock.RedisString("1"),
				"bank_name": mock.RedisString("中国工商银行北京支行"),
				"bank_code": mock.RedisString("102100000001"),
				"tokens":    mock.RedisString("中国工商银行 北京 支行"),
			})),
			mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{
				"record_id": mock.RedisString("2"),
				"bank_name": mock.RedisString("中国工商银行上海支行"),
				"bank_code": mock.RedisString("102290000002"),
				"tokens":    mock.RedisString("中国工商银行 上海 支行"),
			})),
		})

	r := New(c, "t:")
	cands, err := r.LookupTokens(context.Background(), []string{"中国工商银行", "北京"}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Record 2 appears in both token sets but must come back once.
	if len(cands) != 2 {
		t.Fatalf("expected 2 deduplicated candidates, got %d", len(cands))
	}
	if cands[0].Similarity != 0 {
		t.Errorf("keyword-sourced candidates carry no similarity, got %g", cands[0].Similarity)
	}
}

func TestLookupTokens_RespectsLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "t:idx:gen")).
		Return(mock.Result(mock.RedisString("v1")))
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisArray(mock.RedisString("1"), mock.RedisString("2"), mock.RedisString("3"))),
		})
	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cmds ...rueidis.Completed) []rueidis.RedisResult {
			if len(cmds) != 1 {
				t.Fatalf("limit not applied before doc reads: %d commands", len(cmds))
			}
			return []rueidis.RedisResult{
				mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{
					"record_id": mock.RedisString("1"),
					"bank_name": mock.RedisString("中国工商银行北京支行"),
					"bank_code": mock.RedisString("102100000001"),
				})),
			}
		})

	r := New(c, "t:")
	cands, err := r.LookupTokens(context.Background(), []string{"北京"}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
}

func TestLookupTokens_NoPromotedGeneration(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "t:idx:gen")).
		Return(mock.Result(mock.RedisNil()))

	r := New(c, "t:")
	if _, err := r.LookupTokens(context.Background(), []string{"北京"}, 10); !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestLookupTokens_EmptyInputs(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl) // no expectations

	r := New(c, "t:")
	if cands, err := r.LookupTokens(context.Background(), nil, 10); err != nil || cands != nil {
		t.Fatalf("expected nil/nil for no tokens, got %v/%v", cands, err)
	}
	if cands, err := r.LookupTokens(context.Background(), []string{"北京"}, 0); err != nil || cands != nil {
		t.Fatalf("expected nil/nil for zero limit, got %v/%v", cands, err)
	}
}

func TestCount(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.SEARCH", "t:idx:current", "*", "LIMIT", "0", "0")).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(150000))))

	r := New(c, "t:")
	n, err := r.Count(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 150000 {
		t.Fatalf("count = %d, want 150000", n)
	}
}

func TestCount_NoIndex(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" })).
		Return(mock.ErrorResult(errors.New("no such index")))

	r := New(c, "t:")
	n, err := r.Count(context.Background())
	if err != nil {
		t.Fatalf("missing index must count as zero, got error %v", err)
	}
	if n != 0 {
		t.Fatalf("count = %d, want 0", n)
	}
}

func TestVectorToBytes(t *testing.T) {
	got := vectorToBytes([]float32{1.5, -2.0})
	if len(got) != 8 {
		t.Fatalf("length = %d, want 8", len(got))
	}
	first := math.Float32frombits(binary.LittleEndian.Uint32([]byte(got[:4])))
	second := math.Float32frombits(binary.LittleEndian.Uint32([]byte(got[4:])))
	if first != 1.5 || second != -2.0 {
		t.Fatalf("round trip = %g,%g", first, second)
	}
}
