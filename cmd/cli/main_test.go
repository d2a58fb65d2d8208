package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func withTmpConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "payables")
}

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "usuario_desafio", "exp": exp.Unix(),
	}).SignedString([]byte("secreta"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func Test_cfgDir_And_Paths(t *testing.T) {
	base := withTmpConfig(t)
	if got := cfgDir(); got != base {
		t.Fatalf("cfgDir=%q, want %q", got, base)
	}
	if !strings.HasPrefix(tokenPath(), base) || !strings.HasSuffix(tokenPath(), "token.json") {
		t.Fatalf("tokenPath unexpected: %s", tokenPath())
	}
}

func Test_token_SaveLoad(t *testing.T) {
	_ = withTmpConfig(t)

	if _, err := loadToken(); !errors.Is(err, errLoginRequired) {
		t.Fatalf("missing file: want login required, got %v", err)
	}
	if err := saveToken("tok", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("saveToken: %v", err)
	}
	tok, err := loadToken()
	if err != nil || tok != "tok" {
		t.Fatalf("loadToken: tok=%q err=%v", tok, err)
	}
	st, err := os.Stat(tokenPath())
	if err != nil || st.Mode().Perm() != 0o600 {
		t.Fatalf("token file mode: %v %v", st, err)
	}
	if err := saveToken("tok2", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("saveToken expired: %v", err)
	}
	if _, err := loadToken(); !errors.Is(err, errLoginRequired) {
		t.Fatalf("want login required for expired token, got %v", err)
	}
}

func Test_tokenExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 9, 20, 12, 0, 0, 0, time.UTC)
	exp := now.Add(10 * time.Hour)
	if got := tokenExpiry(signed(t, exp), now); !got.Equal(exp) {
		t.Fatalf("exp=%v, want %v", got, exp)
	}
	if got := tokenExpiry("not-a-jwt", now); !got.Equal(now.Add(time.Hour)) {
		t.Fatalf("fallback=%v", got)
	}
}

func Test_printJSON_WritesPretty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printJSON(&buf, map[string]any{"a": 1})
	var m map[string]any
	if json.Unmarshal(buf.Bytes(), &m) != nil || m["a"] != float64(1) {
		t.Fatalf("printJSON produced invalid json: %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("\n  ")) {
		t.Fatalf("printJSON should indent")
	}
}

func Test_run_UsageAndVersion(t *testing.T) {
	_ = withTmpConfig(t)
	ctx := context.Background()

	if err := run(ctx, nil, io.Discard); !errors.Is(err, errUsage) {
		t.Fatalf("no args: %v", err)
	}
	if err := run(ctx, []string{"-bogus"}, io.Discard); !errors.Is(err, errUsage) {
		t.Fatalf("bad flag: %v", err)
	}
	var buf bytes.Buffer
	if err := run(ctx, []string{"version"}, &buf); err != nil || !strings.HasPrefix(buf.String(), "payables dev") {
		t.Fatalf("version: %q %v", buf.String(), err)
	}
	if err := run(ctx, []string{"list"}, io.Discard); !errors.Is(err, errLoginRequired) {
		t.Fatalf("list without login: %v", err)
	}
}

// fakeAPI records the last request and answers like the server.
type fakeAPI struct {
	token string

	mu   sync.Mutex
	last *http.Request
	body []byte
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.last, f.body = r, body
	f.mu.Unlock()

	if r.URL.Path == "/authenticate" {
		var c struct{ Username, Password string }
		_ = json.Unmarshal(body, &c)
		if c.Password != "senha_desafio" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"invalid username or password"}`))
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(f.token))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if r.Header.Get("Authorization") != "Bearer "+f.token {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"authentication required"}`))
		return
	}
	switch {
	case r.URL.Path == "/accounts/missing":
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"not found"}`))
	case strings.HasSuffix(r.URL.Path, "/status"):
		w.WriteHeader(http.StatusNoContent)
	default:
		_, _ = w.Write([]byte(`{"ok":true}`))
	}
}

func (f *fakeAPI) req() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fakeAPI) sent() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.body
}

func setup(t *testing.T) (*fakeAPI, string) {
	t.Helper()
	_ = withTmpConfig(t)
	api := &fakeAPI{token: signed(t, time.Now().Add(time.Hour))}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return api, srv.URL
}

func Test_run_LoginAndAuthorizedCalls(t *testing.T) {
	api, url := setup(t)
	ctx := context.Background()

	err := run(ctx, []string{"-addr", url, "login", "-u", "usuario_desafio", "-p", "wrong"}, io.Discard)
	var ae *apiError
	if !errors.As(err, &ae) || ae.Status != http.StatusUnauthorized || ae.Message != "invalid username or password" {
		t.Fatalf("bad password: %v", err)
	}

	var out bytes.Buffer
	if err := run(ctx, []string{"-addr", url, "login", "-u", "usuario_desafio", "-p", "senha_desafio"}, &out); err != nil {
		t.Fatalf("login: %v", err)
	}
	if tok, err := loadToken(); err != nil || tok != api.token {
		t.Fatalf("cached token=%q err=%v", tok, err)
	}

	args := []string{"-addr", url, "create", "-due", "2024-10-01", "-amount", "150.75", "-desc", "Aluguel", "-status", "PENDING"}
	if err := run(ctx, args, io.Discard); err != nil {
		t.Fatalf("create: %v", err)
	}
	if api.req().Method != http.MethodPost || api.req().URL.Path != "/accounts" {
		t.Fatalf("create hit %s %s", api.req().Method, api.req().URL.Path)
	}
	var sent map[string]any
	_ = json.Unmarshal(api.sent(), &sent)
	if sent["amount"] != "150.75" || sent["dueDate"] != "2024-10-01" {
		t.Fatalf("create body=%s", api.sent())
	}
	if _, ok := sent["paymentDate"]; ok {
		t.Fatalf("paymentDate must be omitted when -paid is empty")
	}

	if err := run(ctx, []string{"-addr", url, "status", "-id", "abc", "-set", "PAID"}, io.Discard); err != nil {
		t.Fatalf("status: %v", err)
	}
	if api.req().Method != http.MethodPatch || api.req().URL.Path != "/accounts/abc/status" {
		t.Fatalf("status hit %s %s", api.req().Method, api.req().URL.Path)
	}

	if err := run(ctx, []string{"-addr", url, "list", "-desc", "alu", "-size", "5", "-sort", "amount,desc"}, io.Discard); err != nil {
		t.Fatalf("list: %v", err)
	}
	q := api.req().URL.Query()
	if q.Get("description") != "alu" || q.Get("size") != "5" || q.Get("sort") != "amount,desc" || q.Get("page") != "0" {
		t.Fatalf("list query=%v", q)
	}

	if err := run(ctx, []string{"-addr", url, "total", "-from", "2024-01-01", "-to", "2024-12-31"}, io.Discard); err != nil {
		t.Fatalf("total: %v", err)
	}
	if api.req().URL.Path != "/accounts/total-paid" || api.req().URL.Query().Get("from") != "2024-01-01" {
		t.Fatalf("total hit %s", api.req().URL)
	}

	err = run(ctx, []string{"-addr", url, "get", "-id", "missing"}, io.Discard)
	if !errors.As(err, &ae) || ae.Status != http.StatusNotFound {
		t.Fatalf("get missing: %v", err)
	}
}

func Test_run_Import(t *testing.T) {
	api, url := setup(t)
	if err := saveToken(api.token, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("saveToken: %v", err)
	}
	ctx := context.Background()

	csvPath := filepath.Join(t.TempDir(), "contas.csv")
	_ = os.WriteFile(csvPath, []byte("due_date,amount,description,status\n2024-10-01,10,Luz,PENDING\n"), 0o600)

	if err := run(ctx, []string{"-addr", url, "import", "-file", csvPath}, io.Discard); err != nil {
		t.Fatalf("import file: %v", err)
	}
	if api.req().URL.Path != "/accounts/import" || !strings.HasPrefix(api.req().Header.Get("Content-Type"), "multipart/form-data") {
		t.Fatalf("import hit %s ct=%s", api.req().URL.Path, api.req().Header.Get("Content-Type"))
	}
	if !bytes.Contains(api.sent(), []byte("2024-10-01,10,Luz,PENDING")) {
		t.Fatalf("multipart body missing file content")
	}

	if err := run(ctx, []string{"-addr", url, "import", "-key", "inbox/contas.csv"}, io.Discard); err != nil {
		t.Fatalf("import key: %v", err)
	}
	if api.req().URL.Path != "/accounts/import/s3" || !bytes.Contains(api.sent(), []byte(`"inbox/contas.csv"`)) {
		t.Fatalf("import s3 hit %s body=%s", api.req().URL.Path, api.sent())
	}

	if err := run(ctx, []string{"-addr", url, "import"}, io.Discard); err == nil {
		t.Fatalf("import without source must fail")
	}
}

func Test_login_PromptsForPassword(t *testing.T) {
	api, url := setup(t)
	old := readPassword
	readPassword = func() (string, error) { return "senha_desafio", nil }
	t.Cleanup(func() { readPassword = old })

	if err := run(context.Background(), []string{"-addr", url, "login", "-u", "usuario_desafio"}, io.Discard); err != nil {
		t.Fatalf("login with prompt: %v", err)
	}
	if tok, _ := loadToken(); tok != api.token {
		t.Fatalf("token not cached")
	}
}
