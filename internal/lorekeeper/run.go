// Package lorekeeper is the API server of the reverie assistant: the HTTP
// boundary plus the wiring of the conversation, LLM and search modules.
package lorekeeper

import (
	"github.com/wyrdlab/reverie/internal/lorekeeper/config"
)

// Run starts the configured API server and blocks until shutdown.
func Run(cfg *config.Config) error {
	server, err := createAPIServer(cfg)
	if err != nil {
		return err
	}
	return server.PrepareRun().Run()
}
