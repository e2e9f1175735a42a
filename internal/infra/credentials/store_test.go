package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"gamechar/internal/infra"
)

type stubExecutor struct {
	tokens map[string]string
	err    error
	exec   struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return pgconn.CommandTag{}, s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	if s.err != nil {
		return stubRow{err: s.err}
	}
	provider, _ := args[0].(string)
	token, ok := s.tokens[provider]
	if !ok {
		return stubRow{err: pgx.ErrNoRows}
	}
	return stubRow{token: token}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	token string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) == 0 {
		return errors.New("no dest")
	}
	ptr, ok := dest[0].(*string)
	if !ok {
		return errors.New("invalid dest")
	}
	*ptr = r.token
	return nil
}

func TestToken(t *testing.T) {
	store := NewStore(&stubExecutor{tokens: map[string]string{ProviderImgBB: " abc123 "}})
	key, err := store.Token(context.Background(), ProviderImgBB)
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if key != "abc123" {
		t.Fatalf("expected abc123, got %q", key)
	}
}

func TestToken_NoRows(t *testing.T) {
	store := NewStore(&stubExecutor{})
	key, err := store.Token(context.Background(), ProviderOpenAI)
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if key != "" {
		t.Fatalf("expected empty key, got %q", key)
	}
}

func TestSet(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	if err := store.Set(context.Background(), " OpenAI ", "secret", nil); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if len(exec.exec.args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(exec.exec.args))
	}
	if v, ok := exec.exec.args[0].(string); !ok || v != ProviderOpenAI {
		t.Fatalf("expected provider openai, got %T %v", exec.exec.args[0], exec.exec.args[0])
	}
	if v, ok := exec.exec.args[1].(string); !ok || v != "secret" {
		t.Fatalf("expected secret argument, got %T %v", exec.exec.args[1], exec.exec.args[1])
	}
	if raw, ok := exec.exec.args[2].([]byte); !ok || string(raw) != "{}" {
		t.Fatalf("expected empty props, got %T %v", exec.exec.args[2], exec.exec.args[2])
	}
}

func TestSetRejectsEmptyAndUnknown(t *testing.T) {
	store := NewStore(&stubExecutor{})
	if err := store.Set(context.Background(), ProviderSMTP, " ", nil); err == nil {
		t.Fatal("expected error for empty token")
	}
	if err := store.Set(context.Background(), "dropbox", "x", nil); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestFillKeepsEnvironmentValues(t *testing.T) {
	store := NewStore(&stubExecutor{tokens: map[string]string{
		ProviderImgBB:  "db-imgbb",
		ProviderOpenAI: "db-openai",
		ProviderSMTP:   "db-smtp",
	}})
	cfg := &infra.Config{OpenAIAPIKey: "env-openai"}
	if err := store.Fill(context.Background(), cfg); err != nil {
		t.Fatalf("Fill error: %v", err)
	}
	if cfg.ImgBBAPIKey != "db-imgbb" {
		t.Fatalf("ImgBBAPIKey = %q, want db-imgbb", cfg.ImgBBAPIKey)
	}
	if cfg.OpenAIAPIKey != "env-openai" {
		t.Fatalf("OpenAIAPIKey = %q, want env-openai", cfg.OpenAIAPIKey)
	}
	if cfg.SMTPPassword != "db-smtp" {
		t.Fatalf("SMTPPassword = %q, want db-smtp", cfg.SMTPPassword)
	}
	if cfg.GeminiAPIKey != "" {
		t.Fatalf("GeminiAPIKey = %q, want empty", cfg.GeminiAPIKey)
	}
}

func TestFillPropagatesErrors(t *testing.T) {
	store := NewStore(&stubExecutor{err: errors.New("boom")})
	if err := store.Fill(context.Background(), &infra.Config{}); err == nil {
		t.Fatal("expected error")
	}
}
