// Package weblog serves the browsable run history: a run index, per-run
// stage tables, QA charts, and the ledger's admin surface. It reads from the
// sqlite ledger only; it never touches a live Context.
package weblog

import (
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/sidereal-data/reduction.report/internal/httputil"
	"github.com/sidereal-data/reduction.report/internal/ledger"
	"github.com/sidereal-data/reduction.report/internal/pipeline"
)

// Server renders the weblog.
type Server struct {
	db *ledger.DB
}

// NewServer creates a weblog server over the given ledger.
func NewServer(db *ledger.DB) *Server {
	return &Server{db: db}
}

// Routes builds the weblog mux, including the ledger admin routes.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/run", s.handleRun)
	mux.HandleFunc("/charts/qa", s.handleQAChart)
	mux.HandleFunc("/plots/qa.png", s.handleQAPlot)
	mux.HandleFunc("/api/runs", s.handleAPIRuns)
	mux.HandleFunc("/api/run", s.handleAPIRun)
	s.db.AttachAdminRoutes(mux)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	sums, err := s.db.RunSummaries()
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to list runs: %v", err), http.StatusInternalServerError)
		return
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><title>Reduction runs</title></head><body>")
	b.WriteString("<h1>Reduction runs</h1>")
	b.WriteString("<table border=\"1\" cellpadding=\"4\"><tr><th>Run</th><th>Recipe</th><th>Started</th><th>Stages</th><th>Failures</th><th>Min QA</th><th>Status</th></tr>")
	for _, sum := range sums {
		status := "running"
		if sum.Completed {
			status = "complete"
		}
		started := time.Unix(0, sum.StartedUnixNanos).UTC().Format(time.RFC3339)
		fmt.Fprintf(&b, "<tr><td><a href=\"/run?id=%s\">%s</a></td><td>%s</td><td>%s</td><td>%d</td><td>%d</td><td>%.2f</td><td>%s</td></tr>",
			html.EscapeString(sum.RunID), html.EscapeString(sum.RunID),
			html.EscapeString(sum.Recipe), started, sum.Stages, sum.Failures,
			sum.MinQAScore, status)
	}
	b.WriteString("</table></body></html>")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(b.String()))
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("id")
	recs, ok := s.stagesOr404(w, runID)
	if !ok {
		return
	}

	safeID := html.EscapeString(runID)

	var b strings.Builder
	fmt.Fprintf(&b, "<!DOCTYPE html><html><head><title>Run %s</title></head><body>", safeID)
	fmt.Fprintf(&b, "<h1>Run %s</h1>", safeID)
	fmt.Fprintf(&b, "<p><a href=\"/charts/qa?run=%s\">QA chart</a> | <a href=\"/plots/qa.png?run=%s\">QA timeline</a></p>", safeID, safeID)
	b.WriteString("<table border=\"1\" cellpadding=\"4\"><tr><th>#</th><th>Stage</th><th>Vis</th><th>Status</th><th>QA</th><th>Duration</th><th>Error</th></tr>")
	for _, rec := range recs {
		dur := time.Duration(rec.EndedUnixNanos - rec.StartedUnixNanos)
		fmt.Fprintf(&b, "<tr><td>%d</td><td>%s</td><td>%s</td><td>%s</td><td>%.2f</td><td>%s</td><td>%s</td></tr>",
			rec.StageNumber, html.EscapeString(rec.Stage), html.EscapeString(rec.Vis),
			rec.Status, rec.QAScore, dur, html.EscapeString(rec.Err))
	}
	b.WriteString("</table></body></html>")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(b.String()))
}

func (s *Server) handleQAChart(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run")
	recs, ok := s.stagesOr404(w, runID)
	if !ok {
		return
	}

	chart := qaBarChart(runID, recs)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := chart.Render(w); err != nil {
		http.Error(w, fmt.Sprintf("failed to render chart: %v", err), http.StatusInternalServerError)
	}
}

func (s *Server) handleQAPlot(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run")
	recs, ok := s.stagesOr404(w, runID)
	if !ok {
		return
	}

	png, err := qaTimelinePNG(recs)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to render plot: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// handleAPIRuns serves the run index as JSON for the CLI and dashboards.
func (s *Server) handleAPIRuns(w http.ResponseWriter, r *http.Request) {
	sums, err := s.db.RunSummaries()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list runs: %v", err))
		return
	}
	httputil.WriteJSONOK(w, sums)
}

// handleAPIRun serves one run's stage records as JSON.
func (s *Server) handleAPIRun(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("id")
	if runID == "" {
		httputil.BadRequest(w, "missing run id")
		return
	}
	recs, err := s.db.StagesForRun(runID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load run: %v", err))
		return
	}
	if len(recs) == 0 {
		httputil.NotFound(w, "unknown run")
		return
	}
	httputil.WriteJSONOK(w, recs)
}

// stagesOr404 fetches a run's stage records, writing the error response when
// the run is unknown or the query fails.
func (s *Server) stagesOr404(w http.ResponseWriter, runID string) ([]pipeline.StageRecord, bool) {
	if runID == "" {
		http.Error(w, "missing run id", http.StatusBadRequest)
		return nil, false
	}
	recs, err := s.db.StagesForRun(runID)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to load run: %v", err), http.StatusInternalServerError)
		return nil, false
	}
	if len(recs) == 0 {
		http.Error(w, "unknown run", http.StatusNotFound)
		return nil, false
	}
	return recs, true
}
