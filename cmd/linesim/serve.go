package main

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/zoobzio/linesim"
)

// runRegistry keeps completed runs in memory so results can be fetched
// and exported after the fact. The kernel itself holds no cross-run
// state; the registry is the gateway's.
type runRegistry struct {
	mu   sync.RWMutex
	runs map[string]*linesim.Result
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[string]*linesim.Result)}
}

func (rr *runRegistry) put(result *linesim.Result) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.runs[result.SimID] = result
}

func (rr *runRegistry) get(id string) (*linesim.Result, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	result, ok := rr.runs[id]
	return result, ok
}

type gateway struct {
	registry *runRegistry
	log      zerolog.Logger
}

// simulationRequest is the JSON body of POST /api/simulation/run.
type simulationRequest struct {
	Config  linesim.Config   `json:"config"`
	Process *linesim.Process `json:"process"`
}

func (g *gateway) handleRun(w http.ResponseWriter, r *http.Request) {
	var req simulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Process == nil {
		httpError(w, http.StatusBadRequest, "process is required")
		return
	}

	result, err := linesim.Run(r.Context(), req.Config, req.Process)
	if err != nil {
		// Validation failures still carry a result with the diagnosis.
		writeJSONResponse(w, http.StatusUnprocessableEntity, result)
		return
	}
	g.registry.put(result)
	writeJSONResponse(w, http.StatusOK, result)
}

func (g *gateway) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req simulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Process == nil {
		httpError(w, http.StatusBadRequest, "process is required")
		return
	}

	result, err := linesim.Run(r.Context(), req.Config, req.Process)
	if err != nil {
		writeJSONResponse(w, http.StatusUnprocessableEntity, result)
		return
	}
	summary, err := linesim.RunNoRest(r.Context(), req.Config, req.Process)
	if err != nil {
		httpError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	g.registry.put(result)
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"result":  result,
		"no_rest": summary,
	})
}

// processSummary is the digest returned alongside a parsed process.
type processSummary struct {
	TaskCount        int      `json:"task_count"`
	TotalStdDuration float64  `json:"total_std_duration"`
	StartSteps       []string `json:"start_steps"`
	EndSteps         []string `json:"end_steps"`
	MeasurementSteps []string `json:"measurement_steps"`
	HighLoadSteps    []string `json:"high_load_steps"`
	Tools            []string `json:"tools"`
}

func summarise(p *linesim.Process, loadThreshold int) processSummary {
	stepIDs := func(tasks []*linesim.Task) []string {
		ids := make([]string, len(tasks))
		for i, t := range tasks {
			ids[i] = t.StepID
		}
		return ids
	}
	var tools []string
	for name := range p.AllTools() {
		tools = append(tools, name)
	}
	sort.Strings(tools)
	return processSummary{
		TaskCount:        len(p.Tasks),
		TotalStdDuration: p.TotalStdDuration(),
		StartSteps:       stepIDs(p.StartTasks()),
		EndSteps:         stepIDs(p.EndTasks()),
		MeasurementSteps: stepIDs(p.MeasurementTasks()),
		HighLoadSteps:    stepIDs(p.HighLoadTasks(loadThreshold)),
		Tools:            tools,
	}
}

func (g *gateway) handleParse(w http.ResponseWriter, r *http.Request) {
	pr := linesim.ParseProcessCSV(r.Body)
	if !pr.OK() {
		writeJSONResponse(w, http.StatusUnprocessableEntity, pr)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"result":  pr,
		"summary": summarise(pr.Process, linesim.DefaultConfig().RestLoadThreshold),
	})
}

func (g *gateway) handleTemplate(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="process_template.csv"`)
	_, _ = w.Write([]byte("\ufeff"))
	_ = linesim.WriteProcessCSV(w, linesim.TemplateProcess())
}

func (g *gateway) handleResult(w http.ResponseWriter, r *http.Request) {
	result, ok := g.registry.get(mux.Vars(r)["id"])
	if !ok {
		httpError(w, http.StatusNotFound, "unknown sim id")
		return
	}
	writeJSONResponse(w, http.StatusOK, result)
}

func (g *gateway) handleEventsCSV(w http.ResponseWriter, r *http.Request) {
	result, ok := g.registry.get(mux.Vars(r)["id"])
	if !ok {
		httpError(w, http.StatusNotFound, "unknown sim id")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="events.csv"`)
	_, _ = w.Write([]byte("\ufeff"))
	_ = linesim.WriteEventCSV(w, result.Events, result.Config.WorkHoursPerDay)
}

func (g *gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (g *gateway) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(g.accessLog)
	r.HandleFunc("/api/simulation/run", g.handleRun).Methods(http.MethodPost)
	r.HandleFunc("/api/simulation/compare", g.handleCompare).Methods(http.MethodPost)
	r.HandleFunc("/api/simulation/{id}", g.handleResult).Methods(http.MethodGet)
	r.HandleFunc("/api/simulation/{id}/events.csv", g.handleEventsCSV).Methods(http.MethodGet)
	r.HandleFunc("/api/process/parse", g.handleParse).Methods(http.MethodPost)
	r.HandleFunc("/api/process/template", g.handleTemplate).Methods(http.MethodGet)
	r.HandleFunc("/healthz", g.handleHealth).Methods(http.MethodGet)
	return r
}

func (g *gateway) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		g.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSONResponse(w, status, map[string]string{"error": msg})
}

func writeJSONResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the simulation HTTP gateway",
		RunE: func(_ *cobra.Command, _ []string) error {
			g := &gateway{registry: newRunRegistry(), log: logger}
			logger.Info().Str("addr", addr).Msg("gateway listening")
			server := &http.Server{
				Addr:              addr,
				Handler:           g.router(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return server.ListenAndServe()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8000", "listen address")
	return cmd
}
