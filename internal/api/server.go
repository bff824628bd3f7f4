// Package api exposes the forensics engine over HTTP. Run state (the loaded
// record store, case details, and accumulated results) lives in memory for
// the duration of the process; each ingest starts a fresh run.
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/attluri1995/ai-orchestrated-forensics/internal/analyzer"
	"github.com/attluri1995/ai-orchestrated-forensics/internal/casefile"
	"github.com/attluri1995/ai-orchestrated-forensics/internal/config"
	"github.com/attluri1995/ai-orchestrated-forensics/internal/detect"
	"github.com/attluri1995/ai-orchestrated-forensics/internal/ingest"
	"github.com/attluri1995/ai-orchestrated-forensics/internal/intel"
	"github.com/attluri1995/ai-orchestrated-forensics/internal/iocs"
	"github.com/attluri1995/ai-orchestrated-forensics/internal/observability"
	"github.com/attluri1995/ai-orchestrated-forensics/internal/records"
	"github.com/attluri1995/ai-orchestrated-forensics/internal/report"
	"github.com/attluri1995/ai-orchestrated-forensics/internal/timeline"
)

// Server owns the run state and HTTP handlers.
type Server struct {
	cfg     *config.Config
	tel     *observability.Telemetry
	logger  *zap.Logger
	intel   intel.Provider   // nil when intelligence retrieval is disabled
	backend analyzer.Backend // nil runs heuristics only
	limiter *RateLimiter

	mu          sync.Mutex
	store       *records.Store
	ingestStats ingest.Stats
	caseInfo    *casefile.Case
	intelReport *intel.Report
	anomalies   []detect.Anomaly
	matches     []iocs.Match
	analyses    []analyzer.Analysis
	threats     []analyzer.Threat
}

// New returns a server. intelProvider and backend may be nil.
func New(cfg *config.Config, tel *observability.Telemetry, intelProvider intel.Provider, backend analyzer.Backend, limiter *RateLimiter) *Server {
	return &Server{
		cfg:     cfg,
		tel:     tel,
		logger:  tel.Logger(),
		intel:   intelProvider,
		backend: backend,
		limiter: limiter,
		store:   records.NewStore(),
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.Server.WriteTimeout))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}
		r.Post("/ingest", s.handleIngest)
		r.Post("/case", s.handleCase)
		r.Post("/intel", s.handleIntel)
		r.Post("/detect", s.handleDetect)
		r.Post("/search", s.handleSearch)
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/timeline", s.handleTimeline)
		r.Get("/timeline.csv", s.handleTimelineCSV)
		r.Get("/summary", s.handleSummary)
		r.Get("/report.txt", s.handleReportText)
		r.Post("/report", s.handleSaveReport)
	})

	if s.cfg.Metrics.Enabled {
		r.Method(http.MethodGet, s.cfg.Metrics.Path, s.tel.MetricsHandler())
	}

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type ingestRequest struct {
	Directory string `json:"directory,omitempty"`
	MaxRows   int    `json:"max_rows,omitempty"`
}

// handleIngest loads CSV exports and resets the run state.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	cfg := s.cfg.Ingest
	if req.Directory != "" {
		cfg.Directory = req.Directory
	}
	if req.MaxRows > 0 {
		cfg.MaxRows = req.MaxRows
	}

	ing := ingest.NewIngester(cfg, s.logger)
	store, err := ing.Load()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	stats := ing.Stats()

	s.mu.Lock()
	s.store = store
	s.ingestStats = stats
	s.anomalies = nil
	s.matches = nil
	s.analyses = nil
	s.threats = nil
	s.mu.Unlock()

	if m := s.tel.Metrics(); m != nil {
		m.FilesIngested.Add(float64(stats.FilesLoaded))
		m.RowsIngested.Add(float64(stats.RowsLoaded))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stats":   stats,
		"sources": store.Names(),
	})
}

type caseRequest struct {
	CaseType         string `json:"case_type"`
	ThreatActorGroup string `json:"threat_actor_group"`
	IOCs             string `json:"iocs"`
	Analyst          string `json:"analyst"`
}

// handleCase registers the investigation the run is scoped to.
func (s *Server) handleCase(w http.ResponseWriter, r *http.Request) {
	var req caseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	caseType, err := casefile.ParseCaseType(req.CaseType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cs := casefile.New(caseType, req.ThreatActorGroup, casefile.ParseIOCList(req.IOCs), req.Analyst)
	if err := cs.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	s.caseInfo = cs
	s.intelReport = nil
	s.mu.Unlock()

	s.logger.Info("case registered",
		zap.String("case_id", cs.ID),
		zap.String("case_type", string(cs.Type)),
		zap.Int("known_iocs", len(cs.KnownIOCs)),
	)
	writeJSON(w, http.StatusOK, cs)
}

// handleIntel retrieves threat-actor intelligence for the registered case.
func (s *Server) handleIntel(w http.ResponseWriter, r *http.Request) {
	if s.intel == nil {
		writeError(w, http.StatusServiceUnavailable, "intelligence provider not configured")
		return
	}

	s.mu.Lock()
	cs := s.caseInfo
	s.mu.Unlock()
	if cs == nil || cs.ThreatActorGroup == "" {
		writeError(w, http.StatusBadRequest, "no case with a threat actor group registered")
		return
	}

	rep, err := s.intel.ActorIntelligence(r.Context(), cs.ThreatActorGroup)
	status := "ok"
	if err != nil {
		status = "error"
	}
	if m := s.tel.Metrics(); m != nil {
		m.IntelRequests.WithLabelValues(s.intel.Name(), status).Inc()
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.mu.Lock()
	s.intelReport = rep
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, rep)
}

// handleDetect runs the pattern rules over every loaded source.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	detector, err := detect.NewDetector(detect.DefaultRules(), s.logger)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.mu.Lock()
	store := s.store
	s.mu.Unlock()

	anomalies := detector.ScanAll(store)

	s.mu.Lock()
	s.anomalies = anomalies
	s.mu.Unlock()

	if m := s.tel.Metrics(); m != nil {
		for _, a := range anomalies {
			m.AnomaliesFound.WithLabelValues(a.RuleType, a.Severity).Inc()
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"anomalies": anomalies,
		"count":     len(anomalies),
	})
}

type searchRequest struct {
	IOCs []string `json:"iocs,omitempty"`
}

// handleSearch runs the indicator hunt across every source. The indicator
// set is the case's known IOCs, any retrieved intelligence IOCs, and any
// extras in the request, combined without duplicates.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	s.mu.Lock()
	store := s.store
	var known []string
	if s.caseInfo != nil {
		known = s.caseInfo.KnownIOCs
	}
	retrieved := s.intelReport.AllIOCs()
	s.mu.Unlock()

	indicators := iocs.Combine(known, retrieved)
	indicators = iocs.Combine(indicators, req.IOCs)
	if len(indicators) == 0 {
		writeError(w, http.StatusBadRequest, "no indicators to search for")
		return
	}

	classified := make(map[string]iocs.Kind, len(indicators))
	for _, ind := range indicators {
		classified[ind] = iocs.Classify(ind)
	}

	searcher := iocs.NewSearcher(s.logger)
	bySource, flat := searcher.SearchAll(store, indicators)

	s.mu.Lock()
	s.matches = flat
	s.mu.Unlock()

	if m := s.tel.Metrics(); m != nil {
		for _, match := range flat {
			m.IOCMatches.WithLabelValues(string(match.Kind), string(match.MatchKind)).Inc()
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"indicators": classified,
		"matches":    flat,
		"by_source":  bySource,
		"summary":    iocs.Summarize(flat),
	})
}

// handleAnalyze runs model-assisted analysis over every source.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	store := s.store
	caseCtx := analyzer.CaseContext{}
	if s.caseInfo != nil {
		caseCtx.CaseType = string(s.caseInfo.Type)
		caseCtx.ThreatActor = s.caseInfo.ThreatActorGroup
		caseCtx.IOCs = s.caseInfo.KnownIOCs
	}
	if s.intelReport != nil {
		caseCtx.IOCs = iocs.Combine(caseCtx.IOCs, s.intelReport.AllIOCs())
		caseCtx.TTPs = s.intelReport.TTPs
	}
	s.mu.Unlock()

	a := analyzer.New(s.backend, s.cfg.Analyzer, s.logger)
	started := time.Now()
	analyses := a.AnalyzeAll(r.Context(), store, caseCtx)
	threats := a.AllThreats()

	s.mu.Lock()
	s.analyses = analyses
	s.threats = threats
	s.mu.Unlock()

	if m := s.tel.Metrics(); m != nil {
		backend := "rules"
		if s.backend != nil {
			backend = s.backend.Name()
		}
		m.AnalysesRun.WithLabelValues(backend, "ok").Add(float64(len(analyses)))
		m.AnalysisDuration.WithLabelValues(backend).Observe(time.Since(started).Seconds())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"analyses": analyses,
		"threats":  threats,
	})
}

// buildTimeline normalizes the accumulated results into sorted findings.
func (s *Server) buildTimeline() []timeline.Finding {
	s.mu.Lock()
	defer s.mu.Unlock()

	analyst := ""
	if s.caseInfo != nil {
		analyst = s.caseInfo.Analyst
	}
	b := timeline.NewBuilder(analyst, s.logger)

	for _, m := range s.matches {
		ds, _ := s.store.Get(m.Source)
		b.AddMatch(timeline.MatchFinding{
			Indicator:    m.Indicator,
			Kind:         string(m.Kind),
			Column:       m.Column,
			RowIndex:     m.RowIndex,
			MatchedValue: m.MatchedValue,
		}, ds, m.Source)
	}
	for _, a := range s.anomalies {
		ds, _ := s.store.Get(a.Source)
		b.AddAnomaly(timeline.AnomalyFinding{
			RuleType:    a.RuleType,
			Column:      a.Column,
			RowIndex:    a.RowIndex,
			Description: a.Description,
		}, ds, a.Source)
	}
	for _, t := range s.threats {
		ds, _ := s.store.Get(t.Source)
		b.AddThreat(timeline.Threat{
			Source:         t.Source,
			Type:           t.Type,
			Severity:       t.Severity,
			Description:    t.Description,
			Indicators:     t.Indicators,
			Recommendation: t.Recommendation,
		}, ds, -1)
	}

	if m := s.tel.Metrics(); m != nil {
		m.TimelineFindings.WithLabelValues("ioc_match").Add(float64(len(s.matches)))
		m.TimelineFindings.WithLabelValues("anomaly").Add(float64(len(s.anomalies)))
		m.TimelineFindings.WithLabelValues("ai_threat").Add(float64(len(s.threats)))
	}

	return b.Finalize()
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	findings := s.buildTimeline()
	writeJSON(w, http.StatusOK, map[string]any{
		"columns":  timeline.Columns,
		"findings": findings,
		"count":    len(findings),
	})
}

func (s *Server) handleTimelineCSV(w http.ResponseWriter, r *http.Request) {
	findings := s.buildTimeline()
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="forensic_timeline.csv"`)
	if err := timeline.WriteCSV(w, findings); err != nil {
		s.logger.Error("writing timeline csv", zap.Error(err))
	}
}

func (s *Server) currentReport() *report.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return report.Build(s.caseInfo, s.ingestStats, s.anomalies, s.matches, s.analyses, s.threats)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := s.currentReport().WriteJSON(w); err != nil {
		s.logger.Error("writing summary", zap.Error(err))
	}
}

// handleSaveReport persists both report renderings to the configured
// directory.
func (s *Server) handleSaveReport(w http.ResponseWriter, r *http.Request) {
	jsonPath, textPath, err := s.currentReport().Save(s.cfg.Reports.Directory)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("report saved",
		zap.String("json", jsonPath),
		zap.String("text", textPath),
	)
	writeJSON(w, http.StatusOK, map[string]string{
		"json_report": jsonPath,
		"text_report": textPath,
	})
}

func (s *Server) handleReportText(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := s.currentReport().WriteText(w); err != nil {
		s.logger.Error("writing text report", zap.Error(err))
	}
}
