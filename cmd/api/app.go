package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"screening-agent/internal/audit"
	"screening-agent/internal/calls"
	"screening-agent/internal/candidates"
	"screening-agent/internal/config"
	"screening-agent/internal/conversation"
	"screening-agent/internal/events"
	"screening-agent/internal/handoff"
	"screening-agent/internal/httpapi"
	"screening-agent/internal/interview"
	"screening-agent/internal/llm"
	"screening-agent/internal/persona"
	"screening-agent/internal/reconcile"
	"screening-agent/internal/reply"
	"screening-agent/internal/reporting"
	"screening-agent/internal/storage"
	"screening-agent/internal/telephony"
	"screening-agent/internal/tts"
	"screening-agent/pkg/utils"
)

// app holds the wired services and everything that needs closing.
type app struct {
	registry *interview.Registry
	cache    *tts.Cache
	webhooks *httpapi.Webhooks
	sessions httpapi.Sessions
	log      *slog.Logger
	closers  []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
}

// pruneLoop trims the speech cache until ctx is done.
func (a *app) pruneLoop(ctx context.Context, every time.Duration) {
	if a.cache == nil {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := a.cache.Prune(ctx); err != nil {
				a.log.Warn("tts prune failed", "err", err)
			}
		}
	}
}

// build wires the object graph. Postgres, Redis, AMQP, MinIO and the external
// providers are each optional; absent ones fall back to in-memory or scripted
// behavior.
func build(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{log: log}

	var (
		persister  interview.Persister
		candRepo   candidates.Repository = candidates.NewMemoryRepo()
		callRepo   calls.Repository      = calls.NewMemoryRepo()
		activityDB audit.Repository      = audit.NewMemoryRepo()
	)
	if cfg.DBEnabled() {
		db, err := storage.Open(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, db)
		pg := storage.New(db)
		applied, err := pg.Migrate(ctx)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("postgres ready", "migrations_applied", len(applied))
		persister, candRepo, callRepo, activityDB = pg, pg, pg, pg
	} else {
		log.Warn("DB not configured; sessions and candidates are kept in memory only")
	}

	var (
		store interview.Store = interview.NewMemoryStore()
		gate  *telephony.DialGate
	)
	if cfg.RedisEnabled() {
		rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, rdb)
		store = interview.NewRedisStore(rdb, cfg.Redis.Prefix)
		gate = telephony.NewDialGate(rdb, cfg.Redis.Prefix, cfg.Calls.MaxConcurrent)
	}

	var (
		gen   llm.Generator
		probe llm.Prober
	)
	if g, err := llm.NewGemini(ctx, cfg.LLM.GeminiKey, cfg.LLM.Model, cfg.Calls.ExternalTimeout); err != nil {
		log.Warn("language service disabled", "kind", "provider_unavailable", "err", err)
	} else if g != nil {
		gen, probe = g, g
		log.Info("language service configured", "model", g.Model())
	}
	mode, err := reply.ParseMode(cfg.LLM.ReplyMode)
	if err != nil {
		a.Close()
		return nil, err
	}

	personas := persona.Defaults(cfg.App.Company, cfg.App.AssistantName, cfg.App.DefaultAgent)
	if cfg.App.ScriptsFile != "" {
		loaded, err := persona.Load(cfg.App.ScriptsFile, personas)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("call scripts: %w", err)
		}
		personas = loaded
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.Events.AMQPURL != "" {
		p, err := events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("amqp: %w", err)
		}
		a.closers = append(a.closers, p)
		publisher = p
	}

	var dialer telephony.Dialer
	if len(cfg.TelephonyMissing()) == 0 {
		tw, err := telephony.NewTwilioClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("twilio: %w", err)
		}
		dialer = tw
	}

	audio, err := tts.OpenStore(ctx, cfg.Speech)
	if err != nil {
		a.Close()
		return nil, err
	}
	speaker := &tts.Speaker{
		BaseURL:       cfg.App.PublicBaseURL,
		DefaultVoice:  cfg.Speech.VoiceID,
		FallbackVoice: cfg.Twilio.FallbackVoice,
		Log:           log,
	}
	if el := tts.NewElevenLabs(cfg.Speech.ElevenLabsKey, cfg.Calls.ExternalTimeout); el.Configured() {
		a.cache = tts.NewCache(el, audio, tts.CacheOptions{
			MaxFiles: cfg.Speech.CacheMaxFiles,
			MaxAge:   cfg.Speech.CacheMaxAge,
		}, log)
		speaker.Cache = a.cache
	}

	planner := &interview.Planner{Gen: gen, Log: log}
	opts := []interview.RegistryOption{
		interview.WithLogger(log),
		interview.WithIdentities(candidates.NewService(candRepo)),
		interview.WithDefaultProfile(personas.Default()),
		interview.WithCallbackWindow(cfg.Calls.CallbackWindow),
	}
	if persister != nil {
		opts = append(opts, interview.WithPersister(persister))
	}
	a.registry = interview.NewRegistry(ctx, store, planner, opts...)

	activity := audit.NewService(activityDB)
	rec := &reconcile.Reconciler{
		Registry:   a.registry,
		Planner:    planner,
		Calls:      callRepo,
		Candidates: candRepo,
		Activity:   activity,
		Events:     publisher,
		Personas:   personas,
		Gate:       gate,
		Dialer:     dialer,
		From:       cfg.Twilio.PhoneNumber,
		Log:        log,
	}
	machine := &conversation.Machine{
		Router: reply.NewRouter(mode, gen, probe, log),
		Policy: &handoff.Policy{Gen: gen, Log: log},
		Bridge: &handoff.Bridge{
			Dialer:   dialer,
			Operator: cfg.Twilio.OperatorNumber,
			From:     cfg.Twilio.PhoneNumber,
			BaseURL:  cfg.App.PublicBaseURL,
		},
		Planner:  planner,
		Personas: personas,
		Log:      log,
	}

	a.webhooks = &httpapi.Webhooks{
		Registry:   a.registry,
		Machine:    machine,
		Reconciler: rec,
		Speaker:    speaker,
		Audio:      audio,
		BaseURL:    cfg.App.PublicBaseURL,
	}
	a.sessions = httpapi.Sessions{
		Registry: a.registry,
		Calls: &calls.Service{
			Registry:   a.registry,
			Dialer:     dialer,
			Gate:       gate,
			Candidates: candRepo,
			Activity:   activity,
			Finalizer:  rec,
			Log:        log,
			Missing:    cfg.TelephonyMissing(),
			From:       cfg.Twilio.PhoneNumber,
			BaseURL:    cfg.App.PublicBaseURL,
			StaleTTL:   cfg.Calls.StaleTTL,
		},
		Reporting:   reporting.NewService(a.registry, candRepo, cfg.Calls.StaleTTL),
		ActivityLog: activity,
	}
	return a, nil
}
