package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/and161185/payables/internal/errs"
	"github.com/and161185/payables/internal/importer"
	"github.com/and161185/payables/internal/model"
	"github.com/and161185/payables/internal/service"
)

const (
	// DefaultMaxUpload bounds multipart import bodies.
	DefaultMaxUpload = 10 << 20
	maxJSONBody      = 1 << 20
	maxStatusBody    = 4 << 10
)

// ObjectOpener fetches import files from object storage.
type ObjectOpener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Handlers holds the endpoint implementations.
type Handlers struct {
	auth      service.AuthService
	accounts  service.AccountService
	objects   ObjectOpener
	log       *zap.Logger
	maxUpload int64
}

// NewHandlers constructs the handler set. objects may be nil, in which case
// the object storage import route is not registered.
func NewHandlers(authSvc service.AuthService, accounts service.AccountService, objects ObjectOpener, log *zap.Logger) *Handlers {
	return &Handlers{auth: authSvc, accounts: accounts, objects: objects, log: log, maxUpload: DefaultMaxUpload}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type accountRequest struct {
	DueDate     *model.Date      `json:"dueDate"`
	PaymentDate *model.Date      `json:"paymentDate"`
	Amount      *decimal.Decimal `json:"amount"`
	Description string           `json:"description"`
	Status      string           `json:"status"`
}

type totalPaidResponse struct {
	From      model.Date      `json:"from"`
	To        model.Date      `json:"to"`
	TotalPaid decimal.Decimal `json:"totalPaid"`
}

// Authenticate exchanges credentials for a raw token in a text/plain body.
func (h *Handlers) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	tok, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, tok.AccessToken)
}

func (h *Handlers) CreateAccount(w http.ResponseWriter, r *http.Request) {
	a, err := h.readAccount(w, r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	created, err := h.accounts.Create(r.Context(), a)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handlers) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	a, err := h.readAccount(w, r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	updated, err := h.accounts.Update(r.Context(), id, a)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// SetStatus accepts either a raw text body or {"status": "..."}.
func (h *Handlers) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxStatusBody))
	if err != nil {
		writeError(w, h.log, fmt.Errorf("%w: read body: %w", errs.ErrValidation, err))
		return
	}
	status, err := parseStatus(body)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if err := h.accounts.SetStatus(r.Context(), id, status); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	a, err := h.accounts.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handlers) ListAccounts(w http.ResponseWriter, r *http.Request) {
	f, p, err := parseListQuery(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	page, err := h.accounts.List(r.Context(), f, p)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handlers) TotalPaid(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := requiredDate(q.Get("from"), "from")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	to, err := requiredDate(q.Get("to"), "to")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	sum, err := h.accounts.SumPaidBetween(r.Context(), from, to)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, totalPaidResponse{From: from, To: to, TotalPaid: sum})
}

// ImportUpload imports the CSV sent as the multipart field "file".
func (h *Handlers) ImportUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, h.log, fmt.Errorf("%w: multipart field \"file\": %w", errs.ErrValidation, err))
		return
	}
	defer file.Close()
	h.runImport(w, r, file)
}

// ImportObject imports a CSV stored under {"key": ...} in the configured bucket.
func (h *Handlers) ImportObject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	body, err := h.objects.Open(r.Context(), req.Key)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	defer body.Close()
	h.runImport(w, r, body)
}

func (h *Handlers) runImport(w http.ResponseWriter, r *http.Request, in io.Reader) {
	src, err := importer.NewCSVSource(in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	res, err := h.accounts.Import(r.Context(), src)
	if err != nil {
		if res.Imported == 0 && len(res.Skipped) == 0 {
			writeError(w, h.log, err)
			return
		}
		// rows before the failure stay stored; report them with the error
		status, msg := errorStatus(h.log, err)
		writeJSON(w, status, importAbortedBody{Message: msg, ImportResult: res})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) readAccount(w http.ResponseWriter, r *http.Request) (model.PayableAccount, error) {
	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return model.PayableAccount{}, err
	}
	if req.DueDate == nil {
		return model.PayableAccount{}, fmt.Errorf("%w: missing dueDate", errs.ErrValidation)
	}
	if req.Amount == nil {
		return model.PayableAccount{}, fmt.Errorf("%w: missing amount", errs.ErrValidation)
	}
	return model.PayableAccount{
		DueDate:     *req.DueDate,
		PaymentDate: req.PaymentDate,
		Amount:      *req.Amount,
		Description: req.Description,
		Status:      req.Status,
	}, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON: %v", errs.ErrValidation, err)
	}
	return nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	raw := mux.Vars(r)["id"]
	id, err := uuid.FromString(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad id %q", errs.ErrValidation, raw)
	}
	return id, nil
}

func parseStatus(body []byte) (string, error) {
	s := strings.TrimSpace(string(body))
	switch {
	case strings.HasPrefix(s, "{"):
		var req struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal([]byte(s), &req); err != nil {
			return "", fmt.Errorf("%w: malformed JSON: %v", errs.ErrValidation, err)
		}
		s = strings.TrimSpace(req.Status)
	case strings.HasPrefix(s, `"`):
		if err := json.Unmarshal([]byte(s), &s); err != nil {
			return "", fmt.Errorf("%w: malformed JSON string: %v", errs.ErrValidation, err)
		}
		s = strings.TrimSpace(s)
	}
	if s == "" {
		return "", fmt.Errorf("%w: empty status", errs.ErrValidation)
	}
	return s, nil
}

var sortFields = map[string]model.SortField{
	string(model.SortDueDate):     model.SortDueDate,
	string(model.SortPaymentDate): model.SortPaymentDate,
	string(model.SortAmount):      model.SortAmount,
	string(model.SortDescription): model.SortDescription,
	string(model.SortStatus):      model.SortStatus,
}

// parseListQuery reads page, size, sort=field[,asc|desc], dueDateFrom,
// dueDateTo and description.
func parseListQuery(r *http.Request) (model.ListFilter, model.PageRequest, error) {
	q := r.URL.Query()
	var (
		f model.ListFilter
		p model.PageRequest
	)

	var err error
	if p.Page, err = optionalInt(q.Get("page"), "page"); err != nil {
		return f, p, err
	}
	if p.Size, err = optionalInt(q.Get("size"), "size"); err != nil {
		return f, p, err
	}
	if s := q.Get("sort"); s != "" {
		field, dir, _ := strings.Cut(s, ",")
		sf, ok := sortFields[strings.TrimSpace(field)]
		if !ok {
			return f, p, fmt.Errorf("%w: cannot sort by %q", errs.ErrValidation, field)
		}
		p.Sort = sf
		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "", "asc":
		case "desc":
			p.Desc = true
		default:
			return f, p, fmt.Errorf("%w: sort direction %q", errs.ErrValidation, dir)
		}
	}
	if f.DueFrom, err = optionalDate(q.Get("dueDateFrom"), "dueDateFrom"); err != nil {
		return f, p, err
	}
	if f.DueTo, err = optionalDate(q.Get("dueDateTo"), "dueDateTo"); err != nil {
		return f, p, err
	}
	f.DescriptionContains = q.Get("description")
	return f, p, nil
}

func optionalInt(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errs.ErrValidation, name)
	}
	return n, nil
}

func optionalDate(v, name string) (*model.Date, error) {
	if v == "" {
		return nil, nil
	}
	d, err := model.ParseDate(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrValidation, name, err)
	}
	return &d, nil
}

func requiredDate(v, name string) (model.Date, error) {
	if v == "" {
		return model.Date{}, fmt.Errorf("%w: missing %s", errs.ErrValidation, name)
	}
	d, err := optionalDate(v, name)
	if err != nil {
		return model.Date{}, err
	}
	return *d, nil
}

