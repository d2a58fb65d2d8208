// Command payables is a CLI client for the accounts payable HTTP API.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/term"
)

// ---- token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

var errLoginRequired = errors.New("no valid token (login required)")

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "payables")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "payables")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string, exp time.Time) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(tokenFile{AccessToken: tok, ExpiresAt: exp}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(tokenPath(), b, 0o600)
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return "", errLoginRequired
	}
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || !time.Now().Before(tf.ExpiresAt) {
		return "", errLoginRequired
	}
	return tf.AccessToken, nil
}

// tokenExpiry reads exp without verifying the signature; the server does that.
// Tokens without a readable exp are cached for fallbackTTL.
func tokenExpiry(tok string, now time.Time) time.Time {
	const fallbackTTL = time.Hour
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil || claims.ExpiresAt == nil {
		return now.Add(fallbackTTL)
	}
	return claims.ExpiresAt.Time
}

// ---- utils ----

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// readPassword prompts on a terminal and falls back to one line of stdin.
var readPassword = func() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "password: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		return string(b), err
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

const usageText = `payables CLI
Usage:
  payables [-addr URL] <cmd> [args]

Commands:
  version
  login   -u <username> [-p <password>]         (saves token; prompts when -p is omitted)
  create  -due <date> -amount <n> -desc <s> -status <s> [-paid <date>]
  update  -id <uuid> -due <date> -amount <n> -desc <s> -status <s> [-paid <date>]
  status  -id <uuid> -set <status>
  get     -id <uuid>
  list    [-due-from <date>] [-due-to <date>] [-desc <s>] [-page n] [-size n] [-sort field[,desc]]
  total   -from <date> -to <date>
  import  -file <csv> | -key <s3 object key>

Dates are YYYY-MM-DD.
`

var (
	version   = "dev"
	buildDate = "unknown"
)

var errUsage = errors.New("usage")

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	err := run(ctx, os.Args[1:], os.Stdout)
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	default:
		fail(err)
	}
}

// run parses global flags and dispatches the subcommand.
func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("payables", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	addr := fs.String("addr", envOr("PAYABLES_ADDR", "http://localhost:8080"), "server base URL")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() < 1 {
		return errUsage
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	if cmd == "version" {
		fmt.Fprintf(out, "payables %s (%s)\n", version, buildDate)
		return nil
	}

	c := newClient(*addr, out)
	if cmd == "login" {
		return c.login(ctx, rest)
	}

	tok, err := loadToken()
	if err != nil {
		return err
	}
	c.setToken(tok)

	switch cmd {
	case "create":
		return c.create(ctx, rest)
	case "update":
		return c.update(ctx, rest)
	case "status":
		return c.status(ctx, rest)
	case "get":
		return c.get(ctx, rest)
	case "list":
		return c.list(ctx, rest)
	case "total":
		return c.total(ctx, rest)
	case "import":
		return c.importCSV(ctx, rest)
	default:
		return errUsage
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fail(err error) {
	var ae *apiError
	if errors.As(err, &ae) {
		fmt.Fprintf(os.Stderr, "server error: status=%d msg=%s\n", ae.Status, ae.Message)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
