package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// apiError is the {"message": ...} body returned for 4xx/5xx responses.
type apiError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *apiError) Error() string { return fmt.Sprintf("%d: %s", e.Status, e.Message) }

type client struct {
	rc  *resty.Client
	out io.Writer
}

func newClient(baseURL string, out io.Writer) *client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(time.Minute).
		SetHeader("Accept", "application/json")
	return &client{rc: rc, out: out}
}

func (c *client) setToken(tok string) { c.rc.SetAuthToken(tok) }

func (c *client) request(ctx context.Context) *resty.Request {
	return c.rc.R().SetContext(ctx).SetError(&apiError{})
}

// check turns transport failures and non-2xx responses into errors.
func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.IsError() {
		return nil
	}
	ae, ok := resp.Error().(*apiError)
	if !ok || ae.Message == "" {
		ae = &apiError{Message: http.StatusText(resp.StatusCode())}
	}
	ae.Status = resp.StatusCode()
	return ae
}

// newFlags returns a subcommand flag set that reports errors instead of exiting.
func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (c *client) login(ctx context.Context, args []string) error {
	fs := newFlags("login")
	user := fs.String("u", "", "username")
	pass := fs.String("p", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return errors.New("need -u")
	}
	if *pass == "" {
		p, err := readPassword()
		if err != nil {
			return err
		}
		*pass = p
	}

	resp, err := c.request(ctx).
		SetBody(map[string]string{"username": *user, "password": *pass}).
		Post("/authenticate")
	if err := check(resp, err); err != nil {
		return err
	}
	tok := resp.String()
	if err := saveToken(tok, tokenExpiry(tok, time.Now())); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "ok")
	return nil
}

type accountFlags struct {
	due, paid, amount, desc, status *string
}

func bindAccountFlags(fs *flag.FlagSet) accountFlags {
	return accountFlags{
		due:    fs.String("due", "", "due date"),
		paid:   fs.String("paid", "", "payment date"),
		amount: fs.String("amount", "", "amount"),
		desc:   fs.String("desc", "", "description"),
		status: fs.String("status", "", "status"),
	}
}

// body sends amount as a string so no precision is lost client-side.
func (f accountFlags) body() (map[string]any, error) {
	if *f.due == "" || *f.amount == "" || *f.desc == "" || *f.status == "" {
		return nil, errors.New("need -due -amount -desc -status")
	}
	b := map[string]any{
		"dueDate":     *f.due,
		"amount":      *f.amount,
		"description": *f.desc,
		"status":      *f.status,
	}
	if *f.paid != "" {
		b["paymentDate"] = *f.paid
	}
	return b, nil
}

func (c *client) create(ctx context.Context, args []string) error {
	fs := newFlags("create")
	af := bindAccountFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	body, err := af.body()
	if err != nil {
		return err
	}
	var out map[string]any
	resp, err := c.request(ctx).SetBody(body).SetResult(&out).Post("/accounts")
	if err := check(resp, err); err != nil {
		return err
	}
	printJSON(c.out, out)
	return nil
}

func (c *client) update(ctx context.Context, args []string) error {
	fs := newFlags("update")
	id := fs.String("id", "", "account id")
	af := bindAccountFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("need -id")
	}
	body, err := af.body()
	if err != nil {
		return err
	}
	var out map[string]any
	resp, err := c.request(ctx).SetBody(body).SetResult(&out).
		SetPathParam("id", *id).Put("/accounts/{id}")
	if err := check(resp, err); err != nil {
		return err
	}
	printJSON(c.out, out)
	return nil
}

func (c *client) status(ctx context.Context, args []string) error {
	fs := newFlags("status")
	id := fs.String("id", "", "account id")
	set := fs.String("set", "", "new status")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" || *set == "" {
		return errors.New("need -id and -set")
	}
	resp, err := c.request(ctx).
		SetBody(map[string]string{"status": *set}).
		SetPathParam("id", *id).
		Patch("/accounts/{id}/status")
	if err := check(resp, err); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "ok")
	return nil
}

func (c *client) get(ctx context.Context, args []string) error {
	fs := newFlags("get")
	id := fs.String("id", "", "account id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("need -id")
	}
	var out map[string]any
	resp, err := c.request(ctx).SetResult(&out).SetPathParam("id", *id).Get("/accounts/{id}")
	if err := check(resp, err); err != nil {
		return err
	}
	printJSON(c.out, out)
	return nil
}

func (c *client) list(ctx context.Context, args []string) error {
	fs := newFlags("list")
	dueFrom := fs.String("due-from", "", "due date lower bound")
	dueTo := fs.String("due-to", "", "due date upper bound")
	desc := fs.String("desc", "", "description contains")
	page := fs.Int("page", 0, "zero-based page")
	size := fs.Int("size", 0, "page size, 0 for the server default")
	sort := fs.String("sort", "", "field[,asc|desc]")
	if err := fs.Parse(args); err != nil {
		return err
	}

	q := map[string]string{"page": strconv.Itoa(*page)}
	if *size > 0 {
		q["size"] = strconv.Itoa(*size)
	}
	for k, v := range map[string]string{"dueDateFrom": *dueFrom, "dueDateTo": *dueTo, "description": *desc, "sort": *sort} {
		if v != "" {
			q[k] = v
		}
	}
	var out map[string]any
	resp, err := c.request(ctx).SetQueryParams(q).SetResult(&out).Get("/accounts")
	if err := check(resp, err); err != nil {
		return err
	}
	printJSON(c.out, out)
	return nil
}

func (c *client) total(ctx context.Context, args []string) error {
	fs := newFlags("total")
	from := fs.String("from", "", "first payment date")
	to := fs.String("to", "", "last payment date")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *from == "" || *to == "" {
		return errors.New("need -from and -to")
	}
	var out map[string]any
	resp, err := c.request(ctx).
		SetQueryParams(map[string]string{"from": *from, "to": *to}).
		SetResult(&out).
		Get("/accounts/total-paid")
	if err := check(resp, err); err != nil {
		return err
	}
	printJSON(c.out, out)
	return nil
}

func (c *client) importCSV(ctx context.Context, args []string) error {
	fs := newFlags("import")
	file := fs.String("file", "", "local CSV file")
	key := fs.String("key", "", "object key in the server's bucket")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var out map[string]any
	req := c.request(ctx).SetResult(&out)
	var (
		resp *resty.Response
		err  error
	)
	switch {
	case *file != "" && *key == "":
		resp, err = req.SetFile("file", *file).Post("/accounts/import")
	case *key != "" && *file == "":
		resp, err = req.SetBody(map[string]string{"key": *key}).Post("/accounts/import/s3")
	default:
		return errors.New("need exactly one of -file or -key")
	}
	if err := check(resp, err); err != nil {
		return err
	}
	printJSON(c.out, out)
	return nil
}
