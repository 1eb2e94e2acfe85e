package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hazardmaps/floodrisk-cli/internal/catalog"
	"github.com/hazardmaps/floodrisk-cli/internal/db"
	"github.com/hazardmaps/floodrisk-cli/internal/risk"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog and risk queries over HTTP",
	Long: `Read-only JSON API over the same queries the CLI runs: the table catalog,
the dam listing, plants at risk per dam, and the full risk report.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := openPool(ctx, "serve")
		if err != nil {
			return err
		}
		defer pool.Close()

		opts := risk.Options{
			DamsTable:   cfg.Risk.DamsTable,
			PlantsTable: cfg.Risk.PlantsTable,
			DamLimit:    cfg.Risk.DamLimit,
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      newRouter(pool, opts, cfg.Server.CORSOrigins),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the read-only API. Every endpoint is a GET over queries
// the CLI commands also run; nothing here mutates the database.
func newRouter(pool db.Pool, opts risk.Options, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tables", func(w http.ResponseWriter, req *http.Request) {
			tables, err := catalog.ListTables(req.Context(), pool)
			if err != nil {
				writeQueryError(w, "list tables", err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
		})

		r.Get("/tables/{name}", func(w http.ResponseWriter, req *http.Request) {
			name, err := url.PathUnescape(chi.URLParam(req, "name"))
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid table name")
				return
			}
			if err := db.ValidateIdent(name); err != nil {
				writeError(w, http.StatusBadRequest, "invalid table name")
				return
			}
			desc, err := catalog.Describe(req.Context(), pool, name)
			if err != nil {
				writeQueryError(w, "describe table", err)
				return
			}
			writeJSON(w, http.StatusOK, desc)
		})

		r.Get("/dams", func(w http.ResponseWriter, req *http.Request) {
			damOpts := opts
			if raw := req.URL.Query().Get("limit"); raw != "" {
				limit, err := strconv.Atoi(raw)
				if err != nil {
					writeError(w, http.StatusBadRequest, "limit must be an integer")
					return
				}
				damOpts.DamLimit = limit
			}
			dams, err := risk.Dams(req.Context(), pool, damOpts)
			if err != nil {
				writeQueryError(w, "list dams", err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"dams": dams})
		})

		r.Get("/dams/{name}/plants", func(w http.ResponseWriter, req *http.Request) {
			name, err := url.PathUnescape(chi.URLParam(req, "name"))
			if err != nil || name == "" {
				writeError(w, http.StatusBadRequest, "invalid dam name")
				return
			}
			plants, err := risk.PlantsAtRisk(req.Context(), pool, opts, name)
			if err != nil {
				writeQueryError(w, "plants at risk", err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"dam": name, "plants": plants, "count": len(plants)})
		})

		r.Get("/risk/report", func(w http.ResponseWriter, req *http.Request) {
			report, err := risk.BuildReport(req.Context(), pool, opts, req.URL.Query().Get("dam"))
			if err != nil {
				writeQueryError(w, "risk report", err)
				return
			}
			writeJSON(w, http.StatusOK, report)
		})
	})

	return r
}

// writeJSON renders v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("api: encode response", zap.Error(err))
	}
}

// writeError renders a JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeQueryError logs the underlying failure and renders a generic 500.
// Query errors carry table and SQL fragments that do not belong on the wire.
func writeQueryError(w http.ResponseWriter, op string, err error) {
	zap.L().Error("api: "+op, zap.Error(err))
	writeError(w, http.StatusInternalServerError, op+" failed")
}
