// Package runtime wires configuration, telemetry, the recognition
// pipeline, and the HTTP surface into one daemon lifecycle.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/earshot-labs/earshot/internal/audio"
	"github.com/earshot-labs/earshot/internal/bus"
	"github.com/earshot-labs/earshot/internal/config"
	"github.com/earshot-labs/earshot/internal/history"
	"github.com/earshot-labs/earshot/internal/natsserver"
	"github.com/earshot-labs/earshot/internal/pipeline"
	"github.com/earshot-labs/earshot/internal/protocol"
	"github.com/earshot-labs/earshot/internal/recognizer"
	"github.com/earshot-labs/earshot/internal/rewrite"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	hist        *history.Store
	controller  *pipeline.Controller
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start runs the daemon until ctx is cancelled. Initialization failures
// (model load, bus, device) return an error; a cancelled ctx is the
// normal stop path and returns nil after the pipeline has been joined.
func (r *Runtime) Start(ctx context.Context) error {
	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	sessionID := uuid.NewString()

	archive, err := history.Open(ctx, r.cfg.History, r.logger)
	if err != nil {
		return fmt.Errorf("open utterance archive: %w", err)
	}
	defer archive.Close()
	if err := archive.BeginSession(ctx, sessionID); err != nil {
		r.logger.Warn("failed to record session", slog.String("error", err.Error()))
	}

	var embedded *natsserver.EmbeddedServer
	var busClient *bus.Client
	var publisher pipeline.Publisher
	if r.cfg.Bus.Enabled {
		embedded, err = natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("start embedded bus: %w", err)
		}
		busClient, err = bus.Connect(r.cfg.Bus, r.logger)
		if err != nil {
			embedded.Shutdown()
			return fmt.Errorf("connect bus: %w", err)
		}
		publisher = busClient
	}
	defer func() {
		busClient.Close()
		embedded.Shutdown()
	}()

	engine, err := recognizer.New(r.cfg.Recognizer, r.cfg.Audio.SampleRate, r.logger)
	if err != nil {
		return fmt.Errorf("initialize recognizer: %w", err)
	}
	defer engine.Close()

	queue := pipeline.NewChunkQueue(r.cfg.Queue.Capacity, pipeline.Policy(r.cfg.Queue.Policy))
	capture, err := audio.NewCapture(r.cfg.Audio, r.logger, func(pcm []byte) {
		queue.Push(pcm)
	})
	if err != nil {
		return err
	}
	defer capture.Close()

	r.hist = history.NewStore()
	r.controller = pipeline.NewController(pipeline.Options{
		Logger:    r.logger,
		Engine:    engine,
		Queue:     queue,
		Rewriter:  rewrite.New(r.cfg.Rewrite.Symbols),
		History:   r.hist,
		Stream:    capture,
		Publisher: publisher,
		Archive:   archive,
		SessionID: sessionID,
	})
	if err := r.controller.Start(ctx); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	mux.HandleFunc("/history", r.handleHistory)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("session_id", sessionID))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)

	r.controller.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

// UtteranceCount reports the number of finalized utterances. Intended for
// the post-shutdown summary, after Start has returned.
func (r *Runtime) UtteranceCount() int64 {
	if r.controller == nil {
		return 0
	}
	return r.controller.UtteranceCount()
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

// handleHistory serves a snapshot of the live session's utterances. The
// snapshot copy keeps concurrent reads safe while the loop is listening.
func (r *Runtime) handleHistory(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	utts := r.hist.Snapshot()
	if utts == nil {
		utts = []protocol.Utterance{}
	}
	_ = json.NewEncoder(w).Encode(utts)
}
