package dashboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spf13/cast"

	"github.com/rewired-gh/covidboard/internal/logger"
	"github.com/rewired-gh/covidboard/internal/models"
	"github.com/rewired-gh/covidboard/internal/pipeline"
	"github.com/rewired-gh/covidboard/internal/present"
)

// notice is the JSON body of every error response.
type notice struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type metricOption struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

type entitiesResponse struct {
	Source   models.Variant `json:"source"`
	Entities []string       `json:"entities"`
	Default  string         `json:"default"`
}

type dashboardResponse struct {
	*pipeline.Result
	SectionTitle string                `json:"section_title"`
	ChartTitle   string                `json:"chart_title"`
	Heatmap      []present.HeatmapCell `json:"heatmap,omitempty"`
}

func (s *Server) handleIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := publicFS.ReadFile("public/index.html")
		if err != nil {
			writeNotice(w, http.StatusInternalServerError, "index page missing")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"cache":  s.pipe.Source().CacheStats(),
		})
	}
}

func (s *Server) handleEntities() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		variant, err := models.ParseVariant(r.URL.Query().Get("source"), s.pipe.Config().DefaultVariant)
		if err != nil {
			writeNotice(w, http.StatusBadRequest, err.Error())
			return
		}
		keys, def, err := s.pipe.Entities(r.Context(), variant)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entitiesResponse{Source: variant, Entities: keys, Default: def})
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics := s.pipe.Config().Metrics
		options := make([]metricOption, len(metrics))
		for i, m := range metrics {
			options[i] = metricOption{Name: m, Title: present.MetricTitle(m)}
		}
		writeJSON(w, http.StatusOK, options)
	}
}

func (s *Server) handleDashboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, ok := s.run(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, dashboardResponse{
			Result:       res,
			SectionTitle: present.SectionTitle(res.Query.Metric, res.Query.Entity),
			ChartTitle:   present.ChartTitle(res.Query.Metric, res.Query.Entity),
			Heatmap:      present.HeatmapCells(res.Correlation),
		})
	}
}

func (s *Server) handleChart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		width := dimension(q.Get("width"), DefaultChartWidth)
		height := dimension(q.Get("height"), DefaultChartHeight)

		res, ok := s.run(w, r)
		if !ok {
			return
		}

		var buf bytes.Buffer
		if err := present.RenderLineChart(&buf, res.Series, width, height); err != nil {
			if errors.Is(err, present.ErrTooFewPoints) {
				writeNotice(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			logger.Error("Chart rendering failed for %s/%s: %v", res.Query.Entity, res.Query.Metric, err)
			writeNotice(w, http.StatusInternalServerError, "chart rendering failed")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	}
}

func (s *Server) handleInvalidate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if cast.ToBool(q.Get("all")) {
			s.pipe.Source().Purge()
			logger.Info("Cache purged on request")
			writeJSON(w, http.StatusOK, map[string]string{"invalidated": "all"})
			return
		}

		variant, err := models.ParseVariant(q.Get("source"), s.pipe.Config().DefaultVariant)
		if err != nil {
			writeNotice(w, http.StatusBadRequest, err.Error())
			return
		}
		d := models.Descriptor{Variant: variant}
		if variant == models.PerEntity {
			d.Entity = q.Get("entity")
		}
		s.pipe.Source().Invalidate(d)
		logger.Info("Cache entry %s invalidated on request", d)
		writeJSON(w, http.StatusOK, map[string]string{"invalidated": d.Key()})
	}
}

// run executes the query in r and writes the error response on failure.
func (s *Server) run(w http.ResponseWriter, r *http.Request) (*pipeline.Result, bool) {
	params := r.URL.Query()
	variant, err := models.ParseVariant(params.Get("source"), s.pipe.Config().DefaultVariant)
	if err != nil {
		writeNotice(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	res, err := s.pipe.Run(r.Context(), pipeline.Query{
		Variant: variant,
		Entity:  params.Get("entity"),
		Metric:  params.Get("metric"),
	})
	if err != nil {
		writeError(w, err)
		return nil, false
	}

	if res.CacheHit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.Header().Set("X-Run-ID", res.RunID)
	return res, true
}

// dimension parses a chart size, falling back to def outside [100, 4000].
func dimension(raw string, def int) int {
	v, err := cast.ToIntE(raw)
	if err != nil || v < 100 || v > 4000 {
		return def
	}
	return v
}

// statusFor maps pipeline errors onto HTTP statuses.
func statusFor(err error) (int, string) {
	var (
		parseErr  *models.ParseError
		fetchErr  *models.FetchError
		schemaErr *models.SchemaError
		emptyErr  *models.EmptySelectionError
	)
	switch {
	case errors.As(err, &parseErr):
		return http.StatusBadGateway, "parse"
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway, "fetch"
	case errors.As(err, &schemaErr):
		return http.StatusBadGateway, "schema"
	case errors.As(err, &emptyErr):
		return http.StatusNotFound, "empty_selection"
	case errors.Is(err, models.ErrUnknownMetric):
		return http.StatusBadRequest, "unknown_metric"
	default:
		return http.StatusInternalServerError, ""
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, kind := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Warn("Request failed (%s): %v", kind, err)
	}
	writeJSON(w, status, notice{Error: err.Error(), Kind: kind})
}

func writeNotice(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, notice{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response: %v", err)
	}
}
