package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"voicecmd/internal/asr"
	"voicecmd/internal/audit"
	"voicecmd/internal/auth"
	"voicecmd/internal/catalog"
	"voicecmd/internal/config"
	"voicecmd/internal/domain"
	"voicecmd/internal/mapper"
	"voicecmd/internal/mqtt"
	"voicecmd/internal/nlu"
	"voicecmd/internal/pipeline"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.LoadServerConfig()
	if err != nil {
		logger.Error("load config failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snap, err := catalog.Load(cfg.IntentsPath, cfg.CommandsPath)
	if err != nil {
		logger.Error("load catalogs failed", "error", err)
		os.Exit(1)
	}
	catalogs := catalog.NewStore(snap)
	logger.Info("catalogs loaded", "intents", snap.NumIntents(), "commands", snap.NumCommands())

	var sink audit.Sink = audit.NewSlogSink(logger)
	if cfg.AuditDBDSN != "" {
		store, err := audit.New(ctx, cfg.AuditDBDSN, logger)
		if err != nil {
			logger.Error("connect audit db failed", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			logger.Error("migrate audit db failed", "error", err)
			os.Exit(1)
		}
		go store.Run(ctx)
		sink = store
	}

	// No explicit whitelist means every configured command is authorized.
	authorized := cfg.AuthorizedIntents
	if len(authorized) == 0 {
		authorized = snap.CommandNames()
	}
	policy := auth.NewPolicy(authorized, cfg.ConfidenceThreshold)
	gate := auth.NewGate(policy, sink, logger)

	scorer, err := nlu.NewScorer(nlu.ScorerConfig{
		Mode:    cfg.ScorerMode,
		BaseURL: cfg.ScorerBaseURL,
		Timeout: cfg.ScorerTimeout,
	})
	if err != nil {
		logger.Error("init scorer failed", "error", err)
		os.Exit(1)
	}
	classifier := nlu.NewClassifier(scorer, cfg.FallbackFloor, logger)

	transcriber, err := asr.NewTranscriber(asr.Config{
		Mode:     cfg.ASRMode,
		BaseURL:  cfg.ASRBaseURL,
		Timeout:  cfg.ASRTimeout,
		MockText: cfg.ASRMockText,
	})
	if err != nil {
		logger.Error("init transcriber failed", "error", err)
		os.Exit(1)
	}

	coordinator := pipeline.NewCoordinator(
		catalogs,
		classifier,
		nlu.NewExtractor(),
		gate,
		mapper.NewAssembler(logger),
		transcriber,
		logger,
	)

	var hub *mqtt.Hub
	if cfg.MQTTBrokerURL != "" {
		hub = mqtt.NewHub(mqtt.HubConfig{
			BrokerURL:   cfg.MQTTBrokerURL,
			ClientID:    cfg.MQTTClientID,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			TopicPrefix: cfg.MQTTTopicPrefix,
		}, policy, logger)
		if err := hub.Start(ctx); err != nil {
			logger.Error("start mqtt hub failed", "error", err)
			os.Exit(1)
		}
		logger.Info("mqtt hub started", "broker", cfg.MQTTBrokerURL)
	}

	srv := &server{
		cfg:         cfg,
		catalogs:    catalogs,
		coordinator: coordinator,
		policy:      policy,
		hub:         hub,
		logger:      logger,
	}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Get("/v1/status", srv.handleStatus)
	r.Post("/v1/commands", srv.handleProcess)
	r.Get("/v1/policy", srv.handlePolicyGet)
	r.Post("/v1/policy/intents", srv.handlePolicyAddIntent)
	r.Delete("/v1/policy/intents/{intent}", srv.handlePolicyRemoveIntent)
	r.Put("/v1/policy/threshold", srv.handlePolicyThreshold)
	r.Post("/v1/catalog/reload", srv.handleReload)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("voicecmd server started", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
}

type server struct {
	cfg         config.ServerConfig
	catalogs    *catalog.Store
	coordinator *pipeline.Coordinator
	policy      *auth.Policy
	hub         *mqtt.Hub
	logger      *slog.Logger
}

type processRequest struct {
	Text          string  `json:"text,omitempty"`
	AudioBase64   string  `json:"audio_base64,omitempty"`
	Language      string  `json:"language,omitempty"`
	MinConfidence float64 `json:"min_confidence,omitempty"`
}

func (s *server) handleProcess(w http.ResponseWriter, req *http.Request) {
	var body processRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	if body.Text == "" && body.AudioBase64 == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "text or audio_base64 is required"})
		return
	}

	opts := pipeline.Options{MinConfidence: body.MinConfidence, Language: body.Language}

	var record domain.CommandRecord
	var err error
	if body.Text != "" {
		record, err = s.coordinator.ProcessText(req.Context(), body.Text, opts)
	} else {
		var audio []byte
		audio, err = base64.StdEncoding.DecodeString(body.AudioBase64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "audio_base64 is not valid base64"})
			return
		}
		record, err = s.coordinator.ProcessAudio(req.Context(), audio, opts)
	}
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	if s.hub != nil {
		if err := s.hub.PublishCommand(record); err != nil {
			s.logger.Warn("publish command failed", "request_id", record.RequestID, "error", err)
		}
		if err := s.hub.PublishStatus(record.RequestID, string(record.Status), ""); err != nil {
			s.logger.Warn("publish status failed", "request_id", record.RequestID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, record)
}

func (s *server) writePipelineError(w http.ResponseWriter, err error) {
	var perr *pipeline.Error
	if !errors.As(err, &perr) {
		s.logger.Error("process failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "error", "error": err.Error()})
		return
	}

	code := http.StatusInternalServerError
	switch perr.Kind {
	case pipeline.KindInvalidInput:
		code = http.StatusBadRequest
	case pipeline.KindUpstreamUnavailable:
		code = http.StatusBadGateway
	}
	writeJSON(w, code, map[string]any{
		"status": "error",
		"error":  perr.Err.Error(),
		"stage":  perr.Stage,
	})
}

func (s *server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.catalogs.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"intents_loaded":     snap.NumIntents(),
		"commands_loaded":    snap.NumCommands(),
		"authorized_intents": s.policy.Intents(),
		"threshold":          s.policy.Threshold(),
		"scorer_mode":        s.cfg.ScorerMode,
		"asr_mode":           s.cfg.ASRMode,
	})
}

func (s *server) handlePolicyGet(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"intents":   s.policy.Intents(),
		"threshold": s.policy.Threshold(),
	})
}

func (s *server) handlePolicyAddIntent(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Intent string `json:"intent"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Intent == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "intent is required"})
		return
	}
	s.policy.AddIntent(body.Intent)
	writeJSON(w, http.StatusOK, map[string]any{"intents": s.policy.Intents()})
}

func (s *server) handlePolicyRemoveIntent(w http.ResponseWriter, req *http.Request) {
	intent := chi.URLParam(req, "intent")
	if intent == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "intent is required"})
		return
	}
	s.policy.RemoveIntent(intent)
	writeJSON(w, http.StatusOK, map[string]any{"intents": s.policy.Intents()})
}

func (s *server) handlePolicyThreshold(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Threshold float64 `json:"threshold"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	if err := s.policy.SetThreshold(body.Threshold); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"threshold": s.policy.Threshold()})
}

func (s *server) handleReload(w http.ResponseWriter, _ *http.Request) {
	if err := s.catalogs.Reload(s.cfg.IntentsPath, s.cfg.CommandsPath); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	snap := s.catalogs.Snapshot()
	s.logger.Info("catalogs reloaded", "intents", snap.NumIntents(), "commands", snap.NumCommands())
	writeJSON(w, http.StatusOK, map[string]any{
		"intents_loaded":  snap.NumIntents(),
		"commands_loaded": snap.NumCommands(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
