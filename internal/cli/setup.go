package cli

import (
	"fmt"

	"ventas/config"
	"ventas/internal/adapter/catalog"
	"ventas/internal/adapter/embedding"
	"ventas/internal/adapter/index"
	"ventas/internal/adapter/store"
	"ventas/internal/conversation"
	"ventas/internal/port"
	"ventas/internal/usecase"
)

// app bundles the wired pipeline for the commands.
type app struct {
	cfg      *config.Config
	embedder port.Embedder
	model    port.ChatModel
	handle   *index.Handle
	store    *store.Bolt
	windows  *conversation.Windows
	chat     *usecase.Chat
	analyzer *usecase.InterestAnalyzer
	refresh  *usecase.Refresh
}

// newApp wires adapters and use cases from config. When loadIndex is set, a
// persisted index is restored if one exists; otherwise commands start from an
// empty index (refresh builds it).
func newApp(cfg *config.Config, loadIndex bool) (*app, error) {
	if err := cfg.EnsureDataDirs(); err != nil {
		return nil, fmt.Errorf("failed to create data directories: %w", err)
	}

	embedder, model, err := buildOracle(cfg)
	if err != nil {
		return nil, err
	}

	var idx *index.Flat
	if loadIndex && index.Exists(cfg.Index.Path) {
		idx, err = index.Restore(cfg.Index.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to restore index: %w", err)
		}
		if idx.Dimension() != embedder.Dimension() {
			return nil, fmt.Errorf("restored index dimension %d does not match embedder dimension %d",
				idx.Dimension(), embedder.Dimension())
		}
	} else {
		idx = index.NewFlat(embedder.Dimension())
	}
	handle := index.NewHandle(idx)

	st, err := store.NewBolt(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}

	windows := conversation.New(cfg.Chat.WindowSize)
	chat := usecase.NewChat(windows, embedder, model, handle, st, usecase.ChatOptions{
		TopK:        cfg.Index.TopK,
		Temperature: cfg.Embedding.ChatTemperature,
		HistoryCap:  cfg.Chat.HistoryCap,
	})
	analyzer := usecase.NewInterestAnalyzer(chat, model, st, usecase.AnalyzerOptions{
		Temperature: cfg.Interest.ExtractTemperature,
		CandidateK:  cfg.Interest.CandidateK,
		HistoryCap:  cfg.Chat.HistoryCap,
	})

	cat := catalog.NewFileCatalog(cfg.Catalog.Dir, cfg.Catalog.Includes, cfg.Catalog.Excludes)
	refresh := usecase.NewRefresh(cat, embedder, handle, cfg.Index.Path, cfg.Embedding.BatchSize)

	return &app{
		cfg:      cfg,
		embedder: embedder,
		model:    model,
		handle:   handle,
		store:    st,
		windows:  windows,
		chat:     chat,
		analyzer: analyzer,
		refresh:  refresh,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func buildOracle(cfg *config.Config) (port.Embedder, port.ChatModel, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		oracle, err := embedding.NewOpenAI(embedding.Options{
			APIKeyEnv: cfg.Embedding.APIKeyEnv,
			BaseURL:   cfg.Embedding.BaseURL,
			Model:     cfg.Embedding.Model,
			ChatModel: cfg.Embedding.ChatModel,
			Dimension: cfg.Embedding.Dimension,
			BatchSize: cfg.Embedding.BatchSize,
			MaxTokens: cfg.Embedding.MaxTokens,
		})
		if err != nil {
			return nil, nil, err
		}
		return oracle, oracle, nil
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), &embedding.StubChat{}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
}
