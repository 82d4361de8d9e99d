package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/entity"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/service/runtime"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/episodic"
	"github.com/wyrdlab/reverie/pkg/logger"
)

// handleDirectives executes the parsed directives and reports whether the
// turn needs a model re-run with the enriched context.
//
// Rules:
//   - Tier upgrades are coalesced to the maximum requested tier per id.
//   - An episodic search with zero hits retries with a relaxed filter when
//     the reply also carried the deeper-search directive: session scope is
//     dropped, the threshold halves and the limit rises to 10.
//   - Web search emits active/complete/error status events; a failed search
//     never fails the turn — the model re-runs with a failure note instead.
//   - An episode fetch recalls the chunk's messages into contextual memory
//     at full tier and injects the raw turns into the next prompt.
func (o *Orchestrator) handleDirectives(
	ctx context.Context,
	directives []runtime.Directive,
	enrich *turnEnrichment,
	emit func(*entity.Event) bool,
) bool {
	needsRerun := false

	deeper := false
	for _, d := range directives {
		if d.Kind == runtime.DirectiveSearchDeeper {
			deeper = true
		}
	}

	// Coalesce tier upgrades to the max per message id, preserving first
	// occurrence order.
	tierMax := map[string]int{}
	var tierOrder []string
	for _, d := range directives {
		if d.Kind != runtime.DirectiveTierUpgrade {
			continue
		}
		if _, seen := tierMax[d.MessageID]; !seen {
			tierOrder = append(tierOrder, d.MessageID)
		}
		if d.Tier > tierMax[d.MessageID] {
			tierMax[d.MessageID] = d.Tier
		}
	}
	for _, id := range tierOrder {
		if err := o.tiers.Promote(ctx, id, tierMax[id]); err != nil {
			logger.Warn("[DirectiveHandler] tier upgrade of %s failed: %v", id, err)
			continue
		}
		needsRerun = true
	}

	for _, d := range directives {
		switch d.Kind {
		case runtime.DirectiveEpisodicSearch:
			if o.runEpisodicSearch(ctx, d.Query, deeper, enrich, emit) {
				needsRerun = true
			}
		case runtime.DirectiveWebSearch:
			o.runWebSearch(ctx, d.Query, enrich, emit)
			needsRerun = true
		case runtime.DirectiveFetchEpisode:
			if o.fetchEpisode(ctx, d.ChunkID, enrich) {
				needsRerun = true
			}
		}
	}
	return needsRerun
}

func (o *Orchestrator) runEpisodicSearch(
	ctx context.Context,
	query string,
	deeper bool,
	enrich *turnEnrichment,
	emit func(*entity.Event) bool,
) bool {
	eventID := "es-" + uuid.New().String()[:8]
	emit(&entity.Event{
		Kind: entity.EventSystem, Action: entity.ActionEpisodicSearch, Phase: entity.PhaseActive,
		Query: query, ID: eventID, SessionID: o.sessionID, Timestamp: time.Now(),
	})

	results, err := o.archive.Retrieve(ctx, o.userID, query, episodic.RetrieveOptions{
		SessionID: o.sessionID,
		Limit:     o.cfg.RetrievalLimit,
	})
	if err == nil && len(results) == 0 && deeper {
		logger.Info("[DirectiveHandler] deepening episodic search for %q", query)
		results, err = o.archive.Retrieve(ctx, o.userID, query, episodic.RetrieveOptions{
			Limit:          10,
			ThresholdScale: 0.5,
		})
	}
	if err != nil {
		logger.Warn("[DirectiveHandler] episodic search failed: %v", err)
		emit(&entity.Event{
			Kind: entity.EventSystem, Action: entity.ActionEpisodicSearch, Phase: entity.PhaseError,
			Query: query, Content: "archive search failed", ID: eventID,
			SessionID: o.sessionID, Timestamp: time.Now(),
		})
		return false
	}

	emit(&entity.Event{
		Kind: entity.EventSystem, Action: entity.ActionEpisodicSearch, Phase: entity.PhaseComplete,
		Query: query, Content: fmt.Sprintf("%d past conversations matched", len(results)),
		ID: eventID, SessionID: o.sessionID, Timestamp: time.Now(),
	})

	if len(results) == 0 {
		return false
	}
	enrich.episodic = append(enrich.episodic, results...)
	return true
}

func (o *Orchestrator) runWebSearch(
	ctx context.Context,
	query string,
	enrich *turnEnrichment,
	emit func(*entity.Event) bool,
) {
	eventID := "ws-" + uuid.New().String()[:8]
	emit(&entity.Event{
		Kind: entity.EventSystem, Action: entity.ActionWebSearch, Phase: entity.PhaseActive,
		Query: query, ID: eventID, SessionID: o.sessionID, Timestamp: time.Now(),
	})

	var (
		formatted string
		err       error
	)
	if o.searchGW == nil {
		err = fmt.Errorf("no search gateway configured")
	} else {
		formatted, err = o.searchGW.Search(ctx, query, o.cfg.SearchMaxResults)
	}
	if err != nil {
		logger.Warn("[DirectiveHandler] web search for %q failed: %v", query, err)
		emit(&entity.Event{
			Kind: entity.EventSystem, Action: entity.ActionWebSearch, Phase: entity.PhaseError,
			Query: query, Content: err.Error(), ID: eventID,
			SessionID: o.sessionID, Timestamp: time.Now(),
		})
		// The turn still synthesizes a best-effort answer that acknowledges
		// the failed search.
		enrich.webResults = fmt.Sprintf(
			"The web search for %q failed. Answer from what you already know and tell the user the search did not go through.", query)
		return
	}

	emit(&entity.Event{
		Kind: entity.EventSystem, Action: entity.ActionWebSearch, Phase: entity.PhaseComplete,
		Query: query, Content: formatted, ID: eventID,
		SessionID: o.sessionID, Timestamp: time.Now(),
	})
	enrich.webResults = formatted
}

func (o *Orchestrator) fetchEpisode(ctx context.Context, chunkID string, enrich *turnEnrichment) bool {
	chunk, err := o.archive.FetchRaw(ctx, o.userID, chunkID)
	if err != nil {
		logger.Warn("[DirectiveHandler] fetch episode %s failed: %v", chunkID, err)
		return false
	}

	// Recall the archived messages: contextual again, full tier, importance
	// bumped. Missing ids (e.g. after a partial delete) are skipped.
	for _, id := range chunk.MessageIDs {
		if err := o.tiers.Recall(ctx, id); err != nil {
			logger.Warn("[DirectiveHandler] recall %s: %v", id, err)
		}
	}

	var b strings.Builder
	for _, turn := range chunk.RawTurns {
		if turn.UserInput != "" {
			fmt.Fprintf(&b, "User: %s\n", turn.UserInput)
		}
		if turn.AssistantOutput != "" {
			fmt.Fprintf(&b, "Assistant: %s\n", turn.AssistantOutput)
		}
	}
	enrich.recalled = append(enrich.recalled, strings.TrimRight(b.String(), "\n"))
	return true
}
