package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civica-research/arenactl/internal/coverage"
	"github.com/civica-research/arenactl/internal/dedup"
	"github.com/civica-research/arenactl/internal/ledger"
	"github.com/civica-research/arenactl/internal/model"
	"github.com/civica-research/arenactl/internal/monitoring"
	"github.com/civica-research/arenactl/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: adminRouter(st),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func adminRouter(st store.Store) http.Handler {
	led := ledger.New(st)
	ctrl := coverage.New(st, time.Duration(cfg.Coverage.MaxAttemptAgeDays)*24*time.Hour)
	eng := dedup.New(st, nil)
	coll := monitoring.NewCollector(st)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/v1/balance/{userID}", func(w http.ResponseWriter, req *http.Request) {
		bal, err := led.GetBalance(req.Context(), chi.URLParam(req, "userID"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, bal)
	})

	r.Post("/v1/coverage/check", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Platform string   `json:"platform"`
			From     string   `json:"from"`
			To       string   `json:"to"`
			Terms    []string `json:"terms"`
			ActorIDs []string `json:"actor_ids"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, eris.New("invalid request body"))
			return
		}
		from, to, err := parseDateRange(body.From, body.To)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		gaps, err := ctrl.CheckExistingCoverage(req.Context(), body.Platform, from, to, body.Terms, body.ActorIDs)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"gaps": gaps, "fully_covered": len(gaps) == 0})
	})

	r.Post("/v1/dedup/run", func(w http.ResponseWriter, req *http.Request) {
		summary, err := eng.RunDedupPass(req.Context(), req.URL.Query().Get("run"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	})

	r.Get("/v1/status", func(w http.ResponseWriter, req *http.Request) {
		snap, err := coll.Collect(req.Context(), 24)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	r.Get("/v1/records/{id}", func(w http.ResponseWriter, req *http.Request) {
		rec, err := st.GetRecord(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if rec == nil {
			writeError(w, http.StatusNotFound, eris.New("record not found"))
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, err error) {
	var insufficient *model.InsufficientCreditError
	if eris.As(err, &insufficient) {
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
