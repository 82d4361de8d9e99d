package lorekeeper

import (
	"context"
	"fmt"
	"log"

	"github.com/wyrdlab/reverie/internal/lorekeeper/config"
	"github.com/wyrdlab/reverie/internal/lorekeeper/handler/middleware"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/llm"
	genericapiserver "github.com/wyrdlab/reverie/internal/pkg/server"
	"github.com/wyrdlab/reverie/pkg/http/shutdown"
	"github.com/wyrdlab/reverie/pkg/http/shutdown/posixsignal"
	"github.com/wyrdlab/reverie/pkg/logger"
)

type apiServer struct {
	gs               *shutdown.GracefulShutdown
	genericAPIServer *genericapiserver.GenericAPIServer

	cfg                *config.Config
	llmModule          *llm.Module
	conversationModule *conversation.Module
}

type preparedAPIServer struct {
	*apiServer
}

func createAPIServer(cfg *config.Config) (*apiServer, error) {
	gs := shutdown.New()
	gs.AddShutdownManager(posixsignal.NewPosixSignalManager())

	genericConfig := genericapiserver.NewConfig()
	if err := cfg.ApplyTo(genericConfig); err != nil {
		return nil, err
	}
	genericServer, err := genericConfig.Complete().New()
	if err != nil {
		return nil, err
	}

	// LLM module first; the conversation module's summarizer and fact
	// extraction ride on its client.
	llmCfg := &llm.Config{ModelOptions: cfg.ModelOptions}
	llmModule, err := llmCfg.Complete().New(context.Background())
	if err != nil {
		return nil, fmt.Errorf("initialize LLM module: %w", err)
	}
	logger.Info("[Lorekeeper] LLM module initialized")

	conversationCfg := &conversation.Config{
		DataOptions:    cfg.DataOptions,
		MemoryOptions:  cfg.MemoryOptions,
		SessionOptions: cfg.SessionOptions,
		SearchOptions:  cfg.SearchOptions,
	}
	conversationModule, err := conversationCfg.Complete().New(llmModule)
	if err != nil {
		return nil, fmt.Errorf("initialize conversation module: %w", err)
	}
	logger.Info("[Lorekeeper] conversation module initialized")

	return &apiServer{
		gs:                 gs,
		genericAPIServer:   genericServer,
		cfg:                cfg,
		llmModule:          llmModule,
		conversationModule: conversationModule,
	}, nil
}

func (s *apiServer) PrepareRun() preparedAPIServer {
	tokens, err := s.cfg.AuthOptions.LoadTokens()
	if err != nil {
		logger.Warn("[Lorekeeper] token table unavailable, only local bypass will work: %v", err)
		tokens = nil
	}

	initRouter(s.genericAPIServer.Engine, &routerDeps{
		manager: s.conversationModule.Manager,
		authConfig: &middleware.AuthConfig{
			Enabled:    s.cfg.AuthOptions.Enabled,
			AllowLocal: s.cfg.AuthOptions.AllowLocal,
			Tokens:     tokens,
		},
	})

	s.gs.AddShutdownCallback(shutdown.Func(func(string) error {
		if s.conversationModule != nil {
			s.conversationModule.Close()
		}
		s.genericAPIServer.Close()
		return nil
	}))
	return preparedAPIServer{s}
}

func (s preparedAPIServer) Run() error {
	if err := s.gs.Start(); err != nil {
		log.Fatalf("start shutdown manager failed: %s", err.Error())
	}
	return s.genericAPIServer.Run()
}
