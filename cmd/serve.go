package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jooke-shop/sourcing-cli/internal/inquiry"
	"github.com/jooke-shop/sourcing-cli/internal/metrics"
	"github.com/jooke-shop/sourcing-cli/internal/model"
	"github.com/jooke-shop/sourcing-cli/internal/monitoring"
	"github.com/jooke-shop/sourcing-cli/internal/notify"
)

var servePort int

// analyzer is the part of the pipeline the webhook drives.
type analyzer interface {
	Run(ctx context.Context, url string) (model.PipelineResult, error)
	RunProduct(ctx context.Context, p model.Product) model.PipelineResult
}

// serverDeps are the handlers' collaborators. Analyzer may be nil when the
// analysis providers are not configured.
type serverDeps struct {
	Classifier *inquiry.Classifier
	Dispatcher *notify.Dispatcher
	Metrics    *metrics.Metrics
	Analyzer   analyzer
	// Background is the context asynchronous analyses run under.
	Background context.Context
	inflight   sync.WaitGroup
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook and metrics server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		classifier, err := inquiry.FromFile(cfg.Inquiry.CategoriesFile)
		if err != nil {
			return err
		}

		m := metrics.New(nil)
		deps := &serverDeps{
			Classifier: classifier,
			Dispatcher: newDispatcher(),
			Metrics:    m,
			Background: ctx,
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		window := time.Duration(cfg.Monitoring.LookbackWindowHours) * time.Hour
		m.Registry().MustRegister(metrics.NewHistoryCollector(st, window))

		if err := cfg.Validate("analyze"); err != nil {
			zap.L().Warn("serve: analysis webhook disabled", zap.Error(err))
		} else {
			env, err := initPipeline(ctx, m)
			if err != nil {
				return err
			}
			defer env.Close()
			deps.Analyzer = env.Pipeline
		}

		checker := monitoring.NewChecker(monitoring.NewCollector(st), monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
		go checker.Run(ctx)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newMux(deps),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		deps.inflight.Wait()
		return nil
	},
}

// newMux wires the HTTP routes.
func newMux(d *serverDeps) *http.ServeMux {
	if d.Background == nil {
		d.Background = context.Background()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"analysis": d.Analyzer != nil,
		})
	})

	mux.Handle("GET /metrics", d.Metrics.Handler())

	mux.HandleFunc("POST /inquiry", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Message string `json:"message"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		res := d.Classifier.Classify(req.Message)
		d.Metrics.ObserveInquiry(res)
		respondJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("POST /notify", func(w http.ResponseWriter, r *http.Request) {
		var req notify.Request
		if !decodeBody(w, r, &req) {
			return
		}
		res := d.Dispatcher.Send(r.Context(), req)
		d.Metrics.ObserveNotification(res)

		status := http.StatusOK
		if res.Status != "success" {
			status = http.StatusUnprocessableEntity
		}
		respondJSON(w, status, res)
	})

	mux.HandleFunc("POST /webhook/analyze", func(w http.ResponseWriter, r *http.Request) {
		if d.Analyzer == nil {
			respondError(w, http.StatusServiceUnavailable, "analysis is not configured")
			return
		}
		var req struct {
			URL     string         `json:"url"`
			Product *model.Product `json:"product"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Product == nil && req.URL == "" {
			respondError(w, http.StatusBadRequest, "url or product is required")
			return
		}
		if req.Product != nil {
			if err := req.Product.Validate(); err != nil {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
		}

		target := req.URL
		if req.Product != nil {
			target = req.Product.Name
		}

		d.inflight.Add(1)
		go func() {
			defer d.inflight.Done()
			log := zap.L().With(zap.String("target", target))

			var res model.PipelineResult
			if req.Product != nil {
				res = d.Analyzer.RunProduct(d.Background, *req.Product)
			} else {
				var err error
				res, err = d.Analyzer.Run(d.Background, req.URL)
				if err != nil {
					log.Error("webhook analysis failed", zap.Error(err))
					return
				}
			}
			log.Info("webhook analysis complete",
				zap.String("verdict", string(res.Verdict.Status)),
				zap.Float64("final_score", res.Verdict.FinalScore),
			)
		}()

		respondJSON(w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"target": target,
		})
	})

	return mux
}

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

// decodeBody reads a JSON body of at most maxBodyBytes into v. On failure it
// writes the error response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
