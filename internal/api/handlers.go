package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"provision-risk-lab/internal/domain"
	"provision-risk-lab/internal/ingestion"
	"provision-risk-lab/internal/reporting"
	"provision-risk-lab/internal/service"
)

// SimulationView is the JSON form of a simulation without its sample arrays.
type SimulationView struct {
	ID                  string              `json:"id"`
	Method              domain.Method       `json:"method"`
	NumSamples          int                 `json:"num_samples"`
	Alpha               float64             `json:"alpha"`
	Status              domain.Status       `json:"status"`
	Error               string              `json:"error,omitempty"`
	LendingFingerprint  string              `json:"lending_fingerprint"`
	RecoveryFingerprint string              `json:"recovery_fingerprint"`
	RealProvision       *float64            `json:"real_provision,omitempty"`
	Risk                *domain.RiskMetrics `json:"risk,omitempty"`
	Fallbacks           int                 `json:"fallbacks"`
	CreatedAt           time.Time           `json:"created_at"`
	StartedAt           *time.Time          `json:"started_at,omitempty"`
	CompletedAt         *time.Time          `json:"completed_at,omitempty"`
}

// ResultsView adds the distribution and plotting data.
type ResultsView struct {
	SimulationView
	RealCumulative      []float64   `json:"real_cumulative"`
	SimulatedProvisions []float64   `json:"simulated_provisions"`
	Trajectories        [][]float64 `json:"trajectories"`
}

func viewOf(sim *domain.Simulation) SimulationView {
	return SimulationView{
		ID:                  sim.ID,
		Method:              sim.Method,
		NumSamples:          sim.Samples,
		Alpha:               sim.Alpha,
		Status:              sim.Status,
		Error:               sim.Error,
		LendingFingerprint:  sim.LendingFingerprint,
		RecoveryFingerprint: sim.RecoveryFingerprint,
		RealProvision:       sim.RealProvision,
		Risk:                sim.Risk,
		Fallbacks:           sim.Fallbacks,
		CreatedAt:           sim.CreatedAt,
		StartedAt:           sim.StartedAt,
		CompletedAt:         sim.CompletedAt,
	}
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	lending, err := s.readLedger(r, "lending_file")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	recovery, err := s.readLedger(r, "recovery_file")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	req := service.CreateRequest{
		Lending:  lending,
		Recovery: recovery,
		Method:   r.FormValue("method"),
	}
	if v := r.FormValue("num_samples"); v != "" {
		if req.Samples, err = strconv.Atoi(v); err != nil {
			s.fail(w, r, service.ErrInvalidSamples)
			return
		}
	}
	if v := r.FormValue("alpha"); v != "" {
		if req.Alpha, err = strconv.ParseFloat(v, 64); err != nil {
			s.fail(w, r, service.ErrInvalidAlpha)
			return
		}
	}

	sim, err := s.svc.Create(r.Context(), OwnerFromContext(r.Context()), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, viewOf(sim))
}

func (s *Server) readLedger(r *http.Request, field string) (*domain.Ledger, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, fmt.Errorf("%w: %s is required", service.ErrMissingLedger, field)
		}
		return nil, fmt.Errorf("%w: %s: %v", ingestion.ErrInvalidLedger, field, err)
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	l, err := ingestion.ReadLedgerCSV(file, s.ingestion)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return l, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	sims, err := s.svc.List(r.Context(), OwnerFromContext(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	views := make([]SimulationView, len(sims))
	for i, sim := range sims {
		views[i] = viewOf(sim)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sim, err := s.svc.Get(r.Context(), OwnerFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sim))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ev, err := s.svc.Status(r.Context(), OwnerFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	sim, err := s.svc.Results(r.Context(), OwnerFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ResultsView{
		SimulationView:      viewOf(sim),
		RealCumulative:      sim.RealCumulative,
		SimulatedProvisions: sim.SimulatedProvisions,
		Trajectories:        sim.Trajectories,
	})
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	var req service.RiskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.svc.Risk(r.Context(), OwnerFromContext(r.Context()), mux.Vars(r)["id"], req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleReport renders ?format=md (default), html or csv.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sim, err := s.svc.Results(r.Context(), OwnerFromContext(r.Context()), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "csv" {
		values := append([]float64{*sim.RealProvision}, sim.SimulatedProvisions...)
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=provisions_%s.csv", sim.Method))
		_, _ = w.Write([]byte(reporting.RenderProvisionsCSV(values)))
		return
	}

	report, err := s.reports.Generate(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	md := reporting.RenderMarkdown(report)

	switch format {
	case "", "md", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(md))
	case "html":
		html, err := reporting.RenderHTML(md)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
	default:
		writeError(w, http.StatusBadRequest, "format must be md, html or csv")
	}
}
