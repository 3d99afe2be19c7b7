package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/whassan99/Notion-AI-CRM-Agents/internal/pipeline"
	"github.com/whassan99/Notion-AI-CRM-Agents/internal/state"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start an HTTP server that triggers pipeline runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		s := &runServer{
			ctx: ctx,
			run: func(ctx context.Context, opts runOptions) (*pipeline.Result, error) {
				env, err := initPipeline(ctx, opts)
				if err != nil {
					return nil, err
				}
				defer env.Close()
				return env.Pipeline.Run(ctx, opts.pipelineOptions())
			},
			history: func(ctx context.Context, limit int) ([]state.Run, error) {
				st, err := state.Open(ctx, cfg.State)
				if err != nil {
					return nil, err
				}
				defer st.Close() //nolint:errcheck
				return st.ListRuns(ctx, limit)
			},
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           s.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		return s.serve(ctx, srv)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// runServer triggers pipeline runs over HTTP, one at a time.
type runServer struct {
	// ctx bounds background runs; it is cancelled on shutdown.
	ctx     context.Context
	run     func(ctx context.Context, opts runOptions) (*pipeline.Result, error)
	history func(ctx context.Context, limit int) ([]state.Run, error)

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

func (s *runServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/runs", s.handleTrigger)
	r.Get("/runs", s.handleHistory)
	return r
}

func (s *runServer) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var opts runOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if opts.Limit < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be >= 0"})
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a run is already in progress"})
		return
	}
	s.running = true
	done := make(chan struct{})
	s.done = done
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			close(done)
		}()

		res, err := s.run(s.ctx, opts)
		if err != nil {
			zap.L().Error("triggered run failed", zap.Error(err))
			return
		}
		zap.L().Info("triggered run complete",
			zap.String("run_id", res.RunID),
			zap.String("summary", res.Summary()),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted", "options": opts})
}

func (s *runServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	runs, err := s.history(r.Context(), limit)
	if err != nil {
		zap.L().Error("list runs failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not read run history"})
		return
	}
	if runs == nil {
		runs = []state.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// serve runs srv until ctx is cancelled, then shuts it down and waits for
// the in-flight run so its history is recorded before the process exits.
func (s *runServer) serve(ctx context.Context, srv *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zap.L().Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.wait()
		return err
	})
	return g.Wait()
}

// wait blocks until the in-flight run, if any, finishes.
func (s *runServer) wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
