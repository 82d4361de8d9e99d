// Package conversation assembles the conversation core: stores, tiered
// memory runtime, episodic archive, fact store and the session manager.
package conversation

import (
	"fmt"
	"path/filepath"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/service"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/service/runtime"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/service/runtime/prompt"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/store/sqlite"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/episodic"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/facts"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/llm"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/search"
	genericoptions "github.com/wyrdlab/reverie/internal/pkg/options"
	"github.com/wyrdlab/reverie/pkg/logger"
)

// Config configures the conversation module.
type Config struct {
	DataOptions    *genericoptions.DataOptions
	MemoryOptions  *genericoptions.MemoryOptions
	SessionOptions *genericoptions.SessionOptions
	SearchOptions  *genericoptions.SearchOptions
}

// CompletedConfig is a Config with defaults applied.
type CompletedConfig struct {
	*Config
}

// Complete fills defaults.
func (c *Config) Complete() *CompletedConfig {
	if c.DataOptions == nil {
		c.DataOptions = genericoptions.NewDataOptions()
	}
	if c.MemoryOptions == nil {
		c.MemoryOptions = genericoptions.NewMemoryOptions()
	}
	if c.SessionOptions == nil {
		c.SessionOptions = genericoptions.NewSessionOptions()
	}
	if c.SearchOptions == nil {
		c.SearchOptions = genericoptions.NewSearchOptions()
	}
	return &CompletedConfig{c}
}

// Module owns the conversation core.
type Module struct {
	Manager *service.Manager

	db        *sqlite.DB
	archive   *episodic.Store
	workspace *prompt.WorkspaceLoader
}

// New wires the module from its completed config and the LLM module.
func (c *CompletedConfig) New(llmModule *llm.Module) (*Module, error) {
	db, err := sqlite.Open(c.DataOptions.ResolveSQLitePath())
	if err != nil {
		return nil, fmt.Errorf("open relational store: %w", err)
	}

	messageStore := sqlite.NewMessageStore(db)
	sessionStore := sqlite.NewSessionStore(db)
	userStore := sqlite.NewUserStore(db)

	estimator := runtime.NewTokenEstimator(c.MemoryOptions.CharsPerToken)
	tiers := runtime.NewTierManager(messageStore)
	contextBuilder := runtime.NewContextBuilder(estimator, messageStore, c.MemoryOptions.ContextTokenBudget)

	archive := episodic.NewStore(c.DataOptions.BaseDir, episodic.NewLLMSummarizer(llmModule.Client))
	pruner := runtime.NewMemoryPruner(estimator, messageStore, tiers, archive, runtime.PrunerConfig{
		TokenCeiling: c.MemoryOptions.SessionTokenCeiling,
		Headroom:     c.MemoryOptions.PruneHeadroom,
		MinRetained:  c.MemoryOptions.MinRetainedMessages,
	})

	pipeline := prompt.NewDefaultPipeline()
	workspace, err := prompt.NewWorkspaceLoader(filepath.Join(c.DataOptions.BaseDir, "prompts"))
	if err != nil {
		logger.Warn("[Conversation] prompt workspace unavailable: %v", err)
	} else {
		pipeline.SetWorkspaceLoader(workspace)
	}

	var searchGW search.Gateway
	if c.SearchOptions.Enabled {
		searchGW = search.NewBraveSearch(c.SearchOptions)
	}

	manager := service.NewManager(service.Dependencies{
		Sessions:       sessionStore,
		Messages:       messageStore,
		Users:          userStore,
		Tiers:          tiers,
		ContextBuilder: contextBuilder,
		Pruner:         pruner,
		Archive:        archive,
		Facts:          facts.NewStore(userStore),
		Chat:           llmModule.Client,
		Search:         searchGW,
		Snapshots:      service.NewSnapshotter(c.DataOptions.BaseDir),
		Pipeline:       pipeline,
	}, service.ManagerConfig{
		MaxConcurrentPerUser: c.SessionOptions.MaxConcurrentPerUser,
		AcquireTimeout:       c.SessionOptions.AcquireTimeout,
		IdleTimeout:          c.SessionOptions.IdleTimeout,
		MaxActive:            c.SessionOptions.MaxActive,
		Orchestrator: service.OrchestratorConfig{
			RetrievalLimit:   c.MemoryOptions.RetrievalLimit,
			SearchMaxResults: c.SearchOptions.MaxResults,
			TurnTimeout:      c.SessionOptions.TurnTimeout,
		},
	})

	logger.Info("[Conversation] module initialized (db=%s, data=%s)",
		c.DataOptions.ResolveSQLitePath(), c.DataOptions.BaseDir)

	return &Module{
		Manager:   manager,
		db:        db,
		archive:   archive,
		workspace: workspace,
	}, nil
}

// Close releases the module's resources.
func (m *Module) Close() {
	if m.Manager != nil {
		m.Manager.Close()
	}
	if m.workspace != nil {
		m.workspace.Close()
	}
	if m.archive != nil {
		m.archive.Close()
	}
	if m.db != nil {
		if err := m.db.Close(); err != nil {
			logger.Warn("[Conversation] close relational store: %v", err)
		}
	}
}
