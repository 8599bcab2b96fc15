package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ZaguanLabs/corelyn/internal/chat"
	"github.com/ZaguanLabs/corelyn/internal/command"
	"github.com/ZaguanLabs/corelyn/internal/config"
	"github.com/ZaguanLabs/corelyn/internal/provider"
	"github.com/ZaguanLabs/corelyn/internal/storage"
	"github.com/ZaguanLabs/corelyn/internal/stream"
	"github.com/ZaguanLabs/corelyn/internal/trigger"
)

// app holds the components shared by every subcommand.
type app struct {
	cfg        *config.Config
	store      *storage.Store
	engine     *trigger.Engine
	controller *chat.Controller
	host       *chat.TerminalHost
	rules      *trigger.FileSource
	logger     *zap.Logger
}

// newApp opens storage, starts the rule watcher and builds a controller that
// renders frames with render.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, render stream.RenderFunc, opts ...stream.Option) (*app, error) {
	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	a := &app{cfg: cfg, store: store, logger: logger}
	if err := a.wire(ctx, render, opts...); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, render stream.RenderFunc, opts ...stream.Option) error {
	cfg := a.cfg

	client, err := provider.New(provider.Options{
		Name:        cfg.Provider.Name,
		BaseURL:     cfg.API.URL,
		APIKey:      cfg.API.Key,
		Model:       cfg.Model.Name,
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Provider.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	chain := trigger.Chain{configRules(cfg.Triggers.Rules)}
	if cfg.Triggers.File != "" {
		rules, err := trigger.NewFileSource(cfg.Triggers.File, a.logger)
		if err != nil {
			return fmt.Errorf("failed to load trigger rules: %w", err)
		}
		rules.OnReload(func(r []trigger.Rule) {
			a.logger.Info("Trigger rules reloaded", zap.Int("count", len(r)))
		})
		if err := rules.Start(ctx); err != nil {
			a.logger.Warn("Trigger rules will not reload", zap.Error(err))
		}
		a.rules = rules
		chain = append(chain, rules)
	}

	a.engine, err = trigger.NewEngine(chain, trigger.Options{
		Timeout:         cfg.Triggers.Timeout,
		CallStackSize:   cfg.Triggers.CallStackSize,
		RegistryMaxSize: cfg.Triggers.RegistryMaxSize,
		RegexCacheSize:  cfg.Triggers.RegexCacheSize,
	}, a.logger)
	if err != nil {
		return err
	}

	streamOpts := append([]stream.Option{
		stream.WithChunk(cfg.UI.StreamChunk),
		stream.WithDelay(cfg.UI.StreamDelay),
	}, opts...)

	a.controller, err = chat.New(chat.Config{
		Provider:     client,
		Store:        a.store,
		Parser:       command.NewParser(command.NewDispatcher(a.logger)),
		Engine:       a.engine,
		Renderer:     stream.New(render, streamOpts...),
		SystemPrompt: cfg.Provider.SystemPrompt,
		Logger:       a.logger,
	})
	if err != nil {
		return err
	}

	a.host = chat.NewTerminalHost(cfg.Tools.DownloadDir, cfg.Tools.OpenCommand, a.logger)
	return nil
}

// Close stops the rule watcher and closes storage.
func (a *app) Close() {
	if a.rules != nil {
		a.rules.Stop()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("Failed to close storage", zap.Error(err))
		}
	}
}

func configRules(in []config.TriggerRule) trigger.StaticSource {
	out := make(trigger.StaticSource, 0, len(in))
	for _, r := range in {
		out = append(out, trigger.Rule{
			Match:  r.Match,
			Kind:   trigger.Kind(strings.ToLower(strings.TrimSpace(r.Type))),
			Action: r.Action,
		})
	}
	return out
}
