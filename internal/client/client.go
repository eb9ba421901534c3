// Package client is a typed client for the agreement API. Every call carries
// the session's bearer token; a 401 from the server closes the session.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"landledger/internal/core"
	applog "landledger/internal/log"
	"landledger/internal/services"
)

// ErrUnauthorized matches API errors with status 401.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx reply. Detail holds the server's "detail" value: a
// message, or the raw JSON of a validation list.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Detail)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type messageBody struct {
	Message string `json:"message"`
}

// Client calls the API under baseURL, which includes the /api prefix.
type Client struct {
	http    *resty.Client
	session *Session
	logger  *applog.Logger
}

// New returns a client bound to session.
func New(baseURL string, session *Session, logger *applog.Logger) *Client {
	if logger == nil {
		logger = applog.Discard()
	}
	c := &Client{
		session: session,
		logger:  logger.WithComponent(applog.ComponentClient),
	}
	c.http = resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json").
		SetError(&errorBody{}).
		OnBeforeRequest(c.authorize).
		OnAfterResponse(c.checkSession)
	return c
}

func (c *Client) authorize(_ *resty.Client, req *resty.Request) error {
	if token := c.session.Token(); token != "" {
		req.SetAuthToken(token)
	}
	return nil
}

func (c *Client) checkSession(_ *resty.Client, resp *resty.Response) error {
	if resp.StatusCode() == http.StatusUnauthorized {
		c.logger.Warn("Session rejected by server", applog.FieldPath, resp.Request.URL)
		c.session.expire()
	}
	return nil
}

// result turns a resty outcome into an error for non-2xx replies.
func result(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.IsError() {
		return nil
	}
	apiErr := &APIError{Status: resp.StatusCode()}
	if body, ok := resp.Error().(*errorBody); ok && len(body.Detail) > 0 {
		var msg string
		if json.Unmarshal(body.Detail, &msg) == nil {
			apiErr.Detail = msg
		} else {
			apiErr.Detail = string(body.Detail)
		}
	} else {
		apiErr.Detail = http.StatusText(resp.StatusCode())
	}
	return apiErr
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx)
}

// Register creates a user account.
func (c *Client) Register(ctx context.Context, username, password string) error {
	return result(c.request(ctx).
		SetBody(map[string]string{"username": username, "password": password}).
		Post("/auth/register"))
}

// Login exchanges credentials for a token and opens the session with it.
func (c *Client) Login(ctx context.Context, username, password string) (services.Token, error) {
	var token services.Token
	err := result(c.request(ctx).
		SetBody(map[string]string{"username": username, "password": password}).
		SetResult(&token).
		Post("/auth/login"))
	if err != nil {
		return services.Token{}, err
	}
	if err := c.session.Open(token.AccessToken); err != nil {
		return services.Token{}, fmt.Errorf("open session: %w", err)
	}
	c.logger.Info("Session opened", applog.FieldUsername, username, applog.FieldOperation, applog.OpLogin)
	return token, nil
}

// Logout closes the session. The server keeps no session state.
func (c *Client) Logout() {
	c.session.Close()
}

// authed returns a request for a call that needs a token.
func (c *Client) authed(ctx context.Context) (*resty.Request, error) {
	if !c.session.Active() {
		return nil, ErrNoSession
	}
	return c.request(ctx), nil
}

func (c *Client) ListAgreements(ctx context.Context, opts services.ListOptions) ([]core.Agreement, error) {
	req, err := c.authed(ctx)
	if err != nil {
		return nil, err
	}
	if opts.Skip > 0 {
		req.SetQueryParam("skip", strconv.Itoa(opts.Skip))
	}
	if opts.Limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(opts.Limit))
	}
	if opts.SortBy != "" {
		req.SetQueryParam("sort_by", opts.SortBy)
	}
	if opts.SortOrder != 0 {
		req.SetQueryParam("sort_order", strconv.Itoa(opts.SortOrder))
	}
	var list []core.Agreement
	if err := result(req.SetResult(&list).Get("/agreements")); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) GetAgreement(ctx context.Context, id string) (core.Agreement, error) {
	req, err := c.authed(ctx)
	if err != nil {
		return core.Agreement{}, err
	}
	var a core.Agreement
	err = result(req.SetPathParam("id", id).SetResult(&a).Get("/agreements/{id}"))
	return a, err
}

func (c *Client) CreateAgreement(ctx context.Context, f core.AgreementFields) (core.Agreement, error) {
	req, err := c.authed(ctx)
	if err != nil {
		return core.Agreement{}, err
	}
	var a core.Agreement
	err = result(req.SetBody(f).SetResult(&a).Post("/agreements"))
	return a, err
}

// UpdateAgreement replaces agreement id, creating it when unknown.
func (c *Client) UpdateAgreement(ctx context.Context, id string, f core.AgreementFields) (core.Agreement, error) {
	req, err := c.authed(ctx)
	if err != nil {
		return core.Agreement{}, err
	}
	var a core.Agreement
	err = result(req.SetPathParam("id", id).SetBody(f).SetResult(&a).Put("/agreements/{id}"))
	return a, err
}

func (c *Client) DeleteAgreement(ctx context.Context, id string) error {
	req, err := c.authed(ctx)
	if err != nil {
		return err
	}
	var msg messageBody
	return result(req.SetPathParam("id", id).SetResult(&msg).Delete("/agreements/{id}"))
}

func (c *Client) Summary(ctx context.Context) (core.Summary, error) {
	req, err := c.authed(ctx)
	if err != nil {
		return core.Summary{}, err
	}
	var s core.Summary
	err = result(req.SetResult(&s).Get("/dashboard/summary"))
	return s, err
}

// ImportWorkbook uploads an xlsx workbook and reports what the server created.
func (c *Client) ImportWorkbook(ctx context.Context, filename string, r io.Reader) (services.ImportResult, error) {
	req, err := c.authed(ctx)
	if err != nil {
		return services.ImportResult{}, err
	}
	var res services.ImportResult
	err = result(req.SetFileReader("file", filename, r).SetResult(&res).Post("/import/agreements"))
	if err == nil {
		c.logger.Info("Workbook imported",
			applog.FieldOperation, applog.OpImport,
			applog.FieldCount, res.Created,
			"failed", len(res.Failed))
	}
	return res, err
}

// ExportWorkbook downloads the grid for view as an xlsx workbook.
func (c *Client) ExportWorkbook(ctx context.Context, view core.ViewMode, search string) ([]byte, error) {
	req, err := c.authed(ctx)
	if err != nil {
		return nil, err
	}
	if view != "" {
		req.SetQueryParam("view", string(view))
	}
	if search != "" {
		req.SetQueryParam("search", search)
	}
	resp, err := req.Get("/export/agreements.xlsx")
	if err := result(resp, err); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}
