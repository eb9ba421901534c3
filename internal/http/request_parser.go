// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// JSON bodies with a size cap, list paging parameters and grid queries.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"landledger/internal/core"
	"landledger/internal/services"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks input the handlers reject with 422 before any service call.
var errBadRequest = errors.New("bad request")

// DecodeJSON reads a single JSON value from the request body.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: request body is empty", errBadRequest)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return fmt.Errorf("%w: malformed JSON, body ends early", errBadRequest)
		case errors.As(err, &syntaxErr):
			return fmt.Errorf("%w: malformed JSON at offset %d", errBadRequest, syntaxErr.Offset)
		case errors.As(err, &typeErr):
			return fmt.Errorf("%w: field %q must be %s", errBadRequest, typeErr.Field, typeErr.Type)
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: request body exceeds %d bytes", errBadRequest, maxErr.Limit)
		default:
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: request body must hold a single JSON object", errBadRequest)
	}
	return nil
}

// intParam reads an integer query parameter, returning def when absent.
func intParam(q url.Values, name string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadRequest, name)
	}
	return n, nil
}

// ParseListOptions reads skip, limit, sort_by and sort_order. Range checks
// are left to the service.
func ParseListOptions(q url.Values) (services.ListOptions, error) {
	var opts services.ListOptions
	var err error
	if opts.Skip, err = intParam(q, "skip", 0); err != nil {
		return opts, err
	}
	if opts.Limit, err = intParam(q, "limit", services.DefaultListLimit); err != nil {
		return opts, err
	}
	if opts.SortOrder, err = intParam(q, "sort_order", -1); err != nil {
		return opts, err
	}
	opts.SortBy = sanitizeInput(q.Get("sort_by"))
	return opts, nil
}

// ParseTableQuery reads search, sort_key, sort_direction and view.
func ParseTableQuery(q url.Values) (core.Query, error) {
	view, err := core.ParseViewMode(q.Get("view"))
	if err != nil {
		return core.Query{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	query := core.Query{
		Search: sanitizeInput(q.Get("search")),
		View:   view,
	}
	key := sanitizeInput(q.Get("sort_key"))
	if key == "" {
		return query, nil
	}
	if !core.IsSortable(key) {
		return core.Query{}, fmt.Errorf("%w: cannot sort by %q", errBadRequest, key)
	}
	dir, err := core.ParseSortDirection(q.Get("sort_direction"))
	if err != nil {
		return core.Query{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	query.Sort = core.SortState{Key: key, Direction: dir}
	return query, nil
}

// credentials is the body of the register, login and forgot-password calls.
type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
