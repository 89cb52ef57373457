// Package rpc is a JSON-RPC client for the backend collaborator. It speaks the
// call_kw convention: every operation is a model method invoked with
// positional args and keyword args.
package rpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/valyala/fasthttp"

	"github.com/opticalpos/opticalpos/internal/platform/outcome"
)

const defaultTimeout = 10 * time.Second

// TokenSource yields a bearer token for each request.
type TokenSource interface {
	Token() (string, error)
}

// Config configures a Client.
type Config struct {
	URL      string
	Database string
	Timeout  time.Duration
	Tokens   TokenSource
}

// Client issues call_kw requests over HTTP.
type Client struct {
	url     string
	db      string
	timeout time.Duration
	tokens  TokenSource
	http    *fasthttp.Client
	seq     atomic.Int64
}

// New creates a Client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		url:     strings.TrimRight(cfg.URL, "/"),
		db:      cfg.Database,
		timeout: timeout,
		tokens:  cfg.Tokens,
		http: &fasthttp.Client{
			Name:                "optical-pos",
			MaxConnsPerHost:     64,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: time.Minute,
		},
	}
}

type request struct {
	JSONRPC string     `json:"jsonrpc"`
	Method  string     `json:"method"`
	ID      int64      `json:"id"`
	Params  callParams `json:"params"`
}

type callParams struct {
	Model  string         `json:"model"`
	Method string         `json:"method"`
	Args   []any          `json:"args"`
	Kwargs map[string]any `json:"kwargs"`
}

type response struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RemoteError    `json:"error"`
}

// RemoteError is the error object of a JSON-RPC response: the server raised
// while executing the method.
type RemoteError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

func (e *RemoteError) Error() string {
	if e.Data.Message != "" {
		return fmt.Sprintf("%s (%d): %s", e.Message, e.Code, e.Data.Message)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Code)
}

// CallKW invokes model.method and decodes the result into out (which may be
// nil). Every failure is returned as an outcome.TransportError.
func (c *Client) CallKW(ctx context.Context, model, method string, args []any, kwargs map[string]any, out any) error {
	op := model + "." + method
	if err := ctx.Err(); err != nil {
		return outcome.Transport(op, err)
	}
	if args == nil {
		args = []any{}
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	if c.db != "" {
		kwargs["context"] = map[string]any{"db": c.db}
	}

	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		Method:  "call",
		ID:      c.seq.Add(1),
		Params:  callParams{Model: model, Method: method, Args: args, Kwargs: kwargs},
	})
	if err != nil {
		return outcome.Transport(op, fmt.Errorf("encode request: %w", err))
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.url + "/web/dataset/call_kw/" + model + "/" + method)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return outcome.Transport(op, fmt.Errorf("service token: %w", err))
		}
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+tok)
	}
	req.SetBody(body)

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return outcome.Transport(op, err)
	}
	if sc := resp.StatusCode(); sc != fasthttp.StatusOK {
		return outcome.Transport(op, fmt.Errorf("unexpected status %d", sc))
	}

	var r response
	if err := json.Unmarshal(resp.Body(), &r); err != nil {
		return outcome.Transport(op, fmt.Errorf("decode response: %w", err))
	}
	if r.Error != nil {
		return outcome.Transport(op, r.Error)
	}
	if out == nil || len(r.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Result, out); err != nil {
		return outcome.Transport(op, fmt.Errorf("decode result: %w", err))
	}
	return nil
}

// Call invokes a model method with positional arguments only.
func (c *Client) Call(ctx context.Context, model, method string, args []any, out any) error {
	return c.CallKW(ctx, model, method, args, nil, out)
}

// Ping asks the server for its version. Any non-200 answer or transport
// failure is an error.
func (c *Client) Ping(ctx context.Context) error {
	body, err := json.Marshal(request{JSONRPC: "2.0", Method: "call", ID: c.seq.Add(1)})
	if err != nil {
		return err
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.url + "/web/webclient/version_info")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return err
	}
	if sc := resp.StatusCode(); sc != fasthttp.StatusOK {
		return fmt.Errorf("unexpected status %d", sc)
	}
	return nil
}

// Domain is a search filter: a list of [field, operator, value] conditions,
// implicitly AND-ed.
type Domain []any

// Eq returns a Domain with one equality condition.
func Eq(field string, value any) Domain {
	return Domain{[]any{field, "=", value}}
}

// And appends an equality condition.
func (d Domain) And(field string, value any) Domain {
	return append(d, []any{field, "=", value})
}

// SearchOptions bounds and orders a search_read.
type SearchOptions struct {
	Order string
	Limit int
}

// SearchRead reads records matching domain, projecting fields.
func (c *Client) SearchRead(ctx context.Context, model string, domain Domain, fields []string, opts SearchOptions, out any) error {
	if domain == nil {
		domain = Domain{}
	}
	kwargs := map[string]any{
		"domain": domain,
		"fields": fields,
	}
	if opts.Order != "" {
		kwargs["order"] = opts.Order
	}
	if opts.Limit > 0 {
		kwargs["limit"] = opts.Limit
	}
	return c.CallKW(ctx, model, "search_read", nil, kwargs, out)
}

// Create creates one record and returns its id. Servers answer either with
// the id or with a one-element id list.
func (c *Client) Create(ctx context.Context, model string, vals map[string]any) (int64, error) {
	var raw json.RawMessage
	if err := c.Call(ctx, model, "create", []any{vals}, &raw); err != nil {
		return 0, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var ids []int64
		if err := json.Unmarshal(raw, &ids); err != nil || len(ids) == 0 {
			return 0, outcome.Transport(model+".create", errors.New("create returned no id"))
		}
		return ids[0], nil
	}
	var id int64
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, outcome.Transport(model+".create", fmt.Errorf("decode id: %w", err))
	}
	return id, nil
}
