package main

import (
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.localvoice.app/localvoice/audio"
	"go.localvoice.app/localvoice/config"
	"go.localvoice.app/localvoice/focus"
	"go.localvoice.app/localvoice/history"
	"go.localvoice.app/localvoice/hotkey"
	"go.localvoice.app/localvoice/inject"
	"go.localvoice.app/localvoice/langdetect"
	"go.localvoice.app/localvoice/session"
	"go.localvoice.app/localvoice/transcribe"
	"go.localvoice.app/localvoice/vocabulary"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// App wires the dictation pipeline together and owns every
// process-scoped resource: the global hotkey hook, the audio device and
// the history store.
type App struct {
	cfg *config.Config

	watcher  *hotkey.Watcher
	tracker  focus.Tracker
	source   *audio.Source
	engine   *transcribe.Whisper
	worker   *transcribe.Worker
	injector *inject.Injector
	detector *langdetect.Detector
	history  *history.Store
	ctrl     *session.Controller
	cfgWatch *config.Watcher
}

func NewApp(cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg}

	tracker, err := focus.NewTracker()
	if err != nil {
		return nil, err
	}
	a.tracker = tracker

	source, err := audio.NewSource(audio.DefaultFormat())
	if err != nil {
		return nil, err
	}
	a.source = source

	engine, err := transcribe.NewWhisper(transcribe.WhisperConfig{
		ModelSize: transcribe.ModelSize(cfg.ModelSize),
		Device:    transcribe.Device(cfg.Device),
	})
	if err != nil {
		return nil, err
	}
	a.engine = engine
	if !engine.Ready() {
		slog.Warn("whisper engine not ready, install whisper-cpp and download a model")
	}
	a.worker = transcribe.NewWorker(engine)

	injector, err := inject.New(tracker)
	if err != nil {
		return nil, err
	}
	a.injector = injector

	a.detector = langdetect.New()
	a.setupHistory()

	mode, err := hotkey.ParseMode(cfg.HotkeyMode)
	if err != nil {
		return nil, err
	}
	binding, err := hotkey.ParseBinding(cfg.Hotkey, mode)
	if err != nil {
		return nil, err
	}
	a.watcher = hotkey.NewWatcher(binding)

	opts, vocab, err := a.sessionOptions(cfg)
	if err != nil {
		return nil, err
	}
	engine.SetPrompt(vocab.Prompt())
	a.ctrl = session.New(session.Deps{
		Events:   a.watcher.Events(),
		Tracker:  tracker,
		Source:   source,
		Worker:   a.worker,
		Injector: injector,
	}, opts)

	return a, nil
}

func (a *App) setupHistory() {
	if !a.cfg.EnableHistory {
		return
	}
	dataDir, err := config.DataDir()
	if err != nil {
		slog.Error("get data dir for history", "error", err)
		return
	}
	store, err := history.Open(filepath.Join(dataDir, "history"), a.cfg.HistoryMaxEntries)
	if err != nil {
		slog.Error("open history store", "error", err)
		return
	}
	a.history = store
	slog.Info("history store opened", "max_entries", a.cfg.HistoryMaxEntries)
}

// sessionOptions translates the configuration into the controller's
// option snapshot, binding vocabulary rewriting and history recording.
// The vocabulary is returned as well so its hint prompt can be handed to
// the engine.
func (a *App) sessionOptions(cfg *config.Config) (session.Options, *vocabulary.Vocabulary, error) {
	strategy, err := inject.ParseStrategy(cfg.InjectionMethod)
	if err != nil {
		return session.Options{}, nil, err
	}
	vocab, err := vocabulary.New(cfg.VocabularyWords, cfg.VocabularySubstitutions)
	if err != nil {
		return session.Options{}, nil, err
	}

	language := cfg.Language
	if language == "auto" {
		language = ""
	}

	return session.Options{
		Language:     language,
		MinRecording: cfg.MinRecording(),
		MaxRecording: cfg.MaxRecording(),
		Inject: inject.Options{
			Strategy:          strategy,
			TypingDelay:       cfg.TypingDelay(),
			AddTrailingSpace:  cfg.AddTrailingSpace,
			PreserveClipboard: cfg.PreserveClipboard,
			CopyOnly:          cfg.CopyOnly,
		},
		PostProcess: vocab.Apply,
		OnText:      a.recordText,
	}, vocab, nil
}

// recordText stores one delivered transcript in the history log.
func (a *App) recordText(text, app string, audioLen time.Duration) {
	if a.history == nil {
		return
	}
	_, err := a.history.Add(history.Entry{
		Text:     text,
		Language: a.detector.Detect(text),
		App:      app,
		Duration: audioLen,
	})
	if err != nil {
		slog.Warn("record history entry", "error", err)
	}
}

// Start brings the pipeline up: hotkey hook, state machine, transition
// logging and config hot reload.
func (a *App) Start() error {
	if err := a.watcher.Start(); err != nil {
		return err
	}

	sub := a.ctrl.Subscribe()
	go func() {
		for tr := range sub {
			if tr.Err != nil {
				slog.Warn("state transition", "session", tr.SessionID,
					"from", tr.From, "to", tr.To, "error", tr.Err)
			} else {
				slog.Info("state transition", "session", tr.SessionID,
					"from", tr.From, "to", tr.To)
			}
		}
	}()
	go a.ctrl.Run()

	a.setupConfigReload()
	return nil
}

// setupConfigReload watches the config file and queues each valid edit
// onto the controller, which applies it between sessions.
func (a *App) setupConfigReload() {
	path, err := config.Path()
	if err != nil {
		slog.Error("get config path for reload", "error", err)
		return
	}
	w, err := config.Watch(path)
	if err != nil {
		slog.Error("watch config", "error", err)
		return
	}
	a.cfgWatch = w

	go func() {
		for cfg := range w.Changes() {
			a.applyConfig(cfg)
		}
	}()
}

func (a *App) applyConfig(cfg *config.Config) {
	opts, vocab, err := a.sessionOptions(cfg)
	if err != nil {
		slog.Warn("config update rejected", "error", err)
		return
	}
	mode, err := hotkey.ParseMode(cfg.HotkeyMode)
	if err != nil {
		slog.Warn("config update rejected", "error", err)
		return
	}
	binding, err := hotkey.ParseBinding(cfg.Hotkey, mode)
	if err != nil {
		slog.Warn("config update rejected", "error", err)
		return
	}

	// The closure runs on the control goroutine while no session is
	// active, so rebinding and engine reconfiguration cannot race a
	// live session.
	a.ctrl.Reload(func(o *session.Options) {
		*o = opts
		a.watcher.Rebind(binding)
		if err := a.engine.Reconfigure(transcribe.ModelSize(cfg.ModelSize), transcribe.Device(cfg.Device)); err != nil {
			slog.Warn("engine reconfigure failed", "error", err)
		}
		a.engine.SetPrompt(vocab.Prompt())
		a.cfg = cfg
	})
}

// Shutdown tears the pipeline down in dependency order.
func (a *App) Shutdown() {
	if a.cfgWatch != nil {
		if err := a.cfgWatch.Close(); err != nil {
			slog.Error("close config watcher", "error", err)
		}
	}
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.ctrl != nil {
		a.ctrl.Stop()
	}
	if a.worker != nil {
		a.worker.Close()
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			slog.Error("close history store", "error", err)
		}
	}
}

func main() {
	slog.Info("starting localvoice", "version", version, "commit", commit, "date", date)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	app, err := NewApp(cfg)
	if err != nil {
		slog.Error("init", "error", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		slog.Error("start", "error", err)
		os.Exit(1)
	}
	slog.Info("ready", "hotkey", cfg.Hotkey, "mode", cfg.HotkeyMode,
		"model", cfg.ModelSize, "method", cfg.InjectionMethod)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	slog.Info("shutting down")
	app.Shutdown()
}
