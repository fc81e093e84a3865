// Command termcored runs the terminology workflow service: content store,
// workflow engine, molecular actions, and concept reports behind a thin JSON
// HTTP adapter with metrics and debug endpoints.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"termcore/internal/actions"
	"termcore/internal/core"
	"termcore/internal/reports"
	"termcore/internal/workflow"
	"termcore/pkg/domain"
)

const envListenAddr = "TERMCORE_LISTEN_ADDR"

func main() {
	log.SetFlags(log.LstdFlags | log.LUTC)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("termcored: %v", err)
	}
}

func run(ctx context.Context) error {
	store, err := core.OpenPersistentStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	objects, err := reports.OpenObjectStoreFromEnv(ctx)
	if err != nil {
		return err
	}
	gen := reports.NewGenerator(store, objects)
	gen.Start(ctx)
	defer gen.Stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		return err
	}

	svc := core.NewService(store,
		core.WithMetrics(metrics),
		core.WithTracer(core.NewJSONTracer(os.Stderr)),
		core.WithReportGenerator(gen),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("GET /debug/vars", expvar.Handler())
	registerHandlers(mux, svc)

	addr := os.Getenv(envListenAddr)
	if addr == "" {
		addr = ":8080"
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func registerHandlers(mux *http.ServeMux, svc *core.Service) {
	mux.HandleFunc("POST /projects", func(w http.ResponseWriter, r *http.Request) {
		var project core.Project
		if !readJSON(w, r, &project) {
			return
		}
		stored, err := svc.CreateProject(r.Context(), project)
		respond(w, stored, err, http.StatusCreated)
	})
	mux.HandleFunc("GET /projects", func(w http.ResponseWriter, r *http.Request) {
		out, err := svc.ListProjects(r.Context())
		respond(w, out, err, http.StatusOK)
	})
	mux.HandleFunc("POST /projects/{project}/configs", func(w http.ResponseWriter, r *http.Request) {
		var config core.WorkflowConfig
		if !readJSON(w, r, &config) {
			return
		}
		config.ProjectID = r.PathValue("project")
		stored, err := svc.PutWorkflowConfig(r.Context(), config)
		respond(w, stored, err, http.StatusCreated)
	})
	mux.HandleFunc("POST /projects/{project}/configs/{config}/clear", func(w http.ResponseWriter, r *http.Request) {
		err := svc.ClearBins(r.Context(), r.PathValue("project"), r.PathValue("config"))
		respond(w, nil, err, http.StatusNoContent)
	})
	mux.HandleFunc("POST /projects/{project}/configs/{config}/regenerate", func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.RegenerateBins(r.Context(), r.PathValue("project"), r.PathValue("config"))
		respond(w, result, err, http.StatusOK)
	})
	mux.HandleFunc("GET /projects/{project}/bins", func(w http.ResponseWriter, r *http.Request) {
		binType := domain.WorkflowBinType(r.URL.Query().Get("type"))
		out, err := svc.GetWorkflowBins(r.Context(), r.PathValue("project"), binType)
		respond(w, out, err, http.StatusOK)
	})
	mux.HandleFunc("GET /projects/{project}/bins/{bin}/records", func(w http.ResponseWriter, r *http.Request) {
		out, err := svc.BinRecords(r.Context(), r.PathValue("project"), r.PathValue("bin"))
		respond(w, out, err, http.StatusOK)
	})
	mux.HandleFunc("POST /projects/{project}/epochs", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name   string `json:"name"`
			Active bool   `json:"active"`
		}
		if !readJSON(w, r, &body) {
			return
		}
		epoch, err := svc.CreateEpoch(r.Context(), r.PathValue("project"), body.Name, body.Active)
		respond(w, epoch, err, http.StatusCreated)
	})
	mux.HandleFunc("POST /projects/{project}/worklists", func(w http.ResponseWriter, r *http.Request) {
		var req workflow.CreateWorklistRequest
		if !readJSON(w, r, &req) {
			return
		}
		req.ProjectID = r.PathValue("project")
		wl, err := svc.CreateWorklist(r.Context(), req)
		respond(w, wl, err, http.StatusCreated)
	})
	mux.HandleFunc("GET /projects/{project}/worklists", func(w http.ResponseWriter, r *http.Request) {
		out, err := svc.FindWorklists(r.Context(), r.PathValue("project"), pfsFromQuery(r))
		respond(w, out, err, http.StatusOK)
	})
	mux.HandleFunc("GET /projects/{project}/worklists/{worklist}", func(w http.ResponseWriter, r *http.Request) {
		out, err := svc.GetWorklist(r.Context(), r.PathValue("worklist"))
		respond(w, out, err, http.StatusOK)
	})
	mux.HandleFunc("GET /projects/{project}/work/assigned", func(w http.ResponseWriter, r *http.Request) {
		out, err := svc.FindAssignedWork(r.Context(), r.PathValue("project"), r.URL.Query().Get("user"), pfsFromQuery(r))
		respond(w, out, err, http.StatusOK)
	})
	mux.HandleFunc("GET /projects/{project}/work/available", func(w http.ResponseWriter, r *http.Request) {
		out, err := svc.FindAvailableWork(r.Context(), r.PathValue("project"), pfsFromQuery(r))
		respond(w, out, err, http.StatusOK)
	})
	mux.HandleFunc("POST /projects/{project}/checklists", func(w http.ResponseWriter, r *http.Request) {
		var req workflow.CreateChecklistRequest
		if !readJSON(w, r, &req) {
			return
		}
		req.ProjectID = r.PathValue("project")
		cl, err := svc.CreateChecklist(r.Context(), req)
		respond(w, cl, err, http.StatusCreated)
	})
	mux.HandleFunc("GET /projects/{project}/checklists", func(w http.ResponseWriter, r *http.Request) {
		out, err := svc.FindChecklists(r.Context(), r.PathValue("project"), pfsFromQuery(r))
		respond(w, out, err, http.StatusOK)
	})
	mux.HandleFunc("POST /projects/{project}/worklists/{worklist}/actions", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Action    domain.WorkflowAction `json:"action"`
			Requester string                `json:"requester"`
			Role      domain.UserRole       `json:"role"`
		}
		if !readJSON(w, r, &body) {
			return
		}
		wl, err := svc.PerformWorkflowAction(r.Context(), workflow.ActionRequest{
			ProjectID:  r.PathValue("project"),
			WorklistID: r.PathValue("worklist"),
			Action:     body.Action,
			Requester:  body.Requester,
			Role:       body.Role,
		})
		respond(w, wl, err, http.StatusOK)
	})
	mux.HandleFunc("POST /projects/{project}/worklists/{worklist}/report", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			RequestedBy string `json:"requested_by"`
		}
		if !readJSON(w, r, &body) {
			return
		}
		job, err := svc.GenerateConceptReport(r.Context(), r.PathValue("project"), r.PathValue("worklist"), body.RequestedBy)
		respond(w, job, err, http.StatusAccepted)
	})
	mux.HandleFunc("GET /reports/{file}", func(w http.ResponseWriter, r *http.Request) {
		data, err := svc.GetConceptReport(r.Context(), r.PathValue("file"))
		if err != nil {
			respond(w, nil, err, http.StatusOK)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write(data)
	})
	mux.HandleFunc("POST /projects/{project}/actions/undo/{action}", func(w http.ResponseWriter, r *http.Request) {
		req := actions.Request{ProjectID: r.PathValue("project"), By: r.URL.Query().Get("by")}
		err := svc.UndoAction(r.Context(), req, r.PathValue("action"))
		respond(w, nil, err, http.StatusNoContent)
	})
	mux.HandleFunc("POST /projects/{project}/actions/redo/{action}", func(w http.ResponseWriter, r *http.Request) {
		req := actions.Request{ProjectID: r.PathValue("project"), By: r.URL.Query().Get("by")}
		err := svc.RedoAction(r.Context(), req, r.PathValue("action"))
		respond(w, nil, err, http.StatusNoContent)
	})
	mux.HandleFunc("GET /projects/{project}/log", func(w http.ResponseWriter, r *http.Request) {
		out, err := svc.LogEntries(r.Context(), r.PathValue("project"))
		respond(w, out, err, http.StatusOK)
	})
}

func pfsFromQuery(r *http.Request) workflow.PageFilterSort {
	q := r.URL.Query()
	pfs := workflow.PageFilterSort{
		SortField:  q.Get("sort"),
		Filter:     q.Get("filter"),
		Descending: q.Get("order") == "desc",
	}
	if v, err := parseInt(q.Get("start")); err == nil {
		pfs.StartIndex = v
	}
	if v, err := parseInt(q.Get("max")); err == nil {
		pfs.MaxResults = v
	}
	return pfs
}

func parseInt(s string) (int, error) {
	var v int
	if s == "" {
		return 0, errors.New("empty")
	}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return 0, err
	}
	return v, nil
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func respond(w http.ResponseWriter, body any, err error, status int) {
	if err != nil {
		switch {
		case domain.IsNotFound(err):
			http.Error(w, err.Error(), http.StatusNotFound)
		case domain.IsValidation(err):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		case isRuleViolation(err):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, domain.ErrCancelled):
			http.Error(w, err.Error(), http.StatusRequestTimeout)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	if body == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func isRuleViolation(err error) bool {
	var rv domain.RuleViolationError
	return errors.As(err, &rv)
}
