package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	summaryCacheKey = "summary"
	chartsCacheKey  = "charts"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.writeAggregate(w, r, summaryCacheKey, func(ctx context.Context) (any, error) {
		return s.agreements.Summary(ctx)
	})
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	s.writeAggregate(w, r, chartsCacheKey, func(ctx context.Context) (any, error) {
		return s.agreements.Charts(ctx)
	})
}

// writeAggregate serves a dashboard aggregate, through the cache when one is
// configured. Concurrent misses for the same key share one computation.
func (s *Server) writeAggregate(w http.ResponseWriter, r *http.Request, key string, compute func(context.Context) (any, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	var body []byte
	var err error
	if s.dashboard != nil {
		body, err = s.dashboard.Load(ctx, key, compute)
	} else {
		var v any
		if v, err = compute(ctx); err == nil {
			if body, err = json.Marshal(v); err != nil {
				err = fmt.Errorf("encode %s: %w", key, err)
			}
		}
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Raw(body, "application/json").Write(w)
}
