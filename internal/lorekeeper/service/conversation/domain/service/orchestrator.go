package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/entity"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/repo"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/service/runtime"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/conversation/domain/service/runtime/prompt"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/episodic"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/facts"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/llm"
	"github.com/wyrdlab/reverie/internal/lorekeeper/service/search"
	"github.com/wyrdlab/reverie/pkg/logger"
	"github.com/wyrdlab/reverie/pkg/utils/safego"
)

// MaxReruns bounds how many times one turn may re-run the model after
// directive handling enriched the context.
const MaxReruns = 2

// ChatClient abstracts the LLM gateway; *llm.Client implements it and tests
// inject fakes.
type ChatClient interface {
	Generate(ctx context.Context, msgs []*schema.Message) (*schema.Message, error)
	Complete(ctx context.Context, msgs []*schema.Message) (*llm.Reply, error)
}

// OrchestratorConfig tunes per-turn behavior.
type OrchestratorConfig struct {
	// RetrievalLimit caps episodic summaries gathered per search.
	RetrievalLimit int

	// SearchMaxResults caps web search entries.
	SearchMaxResults int

	// TurnTimeout is the overall latency budget for one turn.
	TurnTimeout time.Duration

	// EventBuffer sizes the event channel.
	EventBuffer int
}

func (c *OrchestratorConfig) applyDefaults() {
	if c.RetrievalLimit <= 0 {
		c.RetrievalLimit = 5
	}
	if c.SearchMaxResults <= 0 {
		c.SearchMaxResults = 5
	}
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = 60 * time.Second
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 20
	}
}

// Orchestrator drives the per-turn pipeline for one (user, session):
// request → prompt → model → directives → optional re-run → response.
// Turns within one session are serialized by the turn mutex, acquired when
// processing begins and held until the terminal event.
type Orchestrator struct {
	userID    string
	username  string
	sessionID string

	sessions       repo.SessionRepository
	tiers          *runtime.TierManager
	contextBuilder *runtime.ContextBuilder
	pruner         *runtime.MemoryPruner
	codec          *runtime.DirectiveCodec
	pipeline       *prompt.Pipeline
	archive        *episodic.Store
	factStore      *facts.Store
	chat           ChatClient
	searchGW       search.Gateway
	snapshots      *Snapshotter

	cfg OrchestratorConfig

	// userSlots is the per-user concurrency semaphore, shared across the
	// user's orchestrators by the session manager. May be nil in tests.
	userSlots   chan struct{}
	slotTimeout time.Duration

	turnMu         sync.Mutex
	currentSummary string
}

// turnEnrichment accumulates directive output between re-runs.
type turnEnrichment struct {
	webResults string
	episodic   []episodic.Result
	recalled   []string
}

// ProcessTurn runs one turn asynchronously and returns the event stream.
// The stream carries zero or more system events and exactly one terminal
// final/error event — except when the consumer abandons the turn, in which
// case the stream just closes.
func (o *Orchestrator) ProcessTurn(ctx context.Context, input string) <-chan *entity.Event {
	events := make(chan *entity.Event, o.cfg.EventBuffer)
	safego.Go(ctx, func() {
		defer close(events)
		o.runTurn(ctx, input, events)
	})
	return events
}

func (o *Orchestrator) runTurn(ctx context.Context, input string, events chan<- *entity.Event) {
	emit := func(ev *entity.Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	// Receive: validate input before any work.
	input = strings.TrimSpace(input)
	if input == "" {
		emit(entity.NewErrorEvent(o.sessionID, "message must not be empty"))
		return
	}

	// Backpressure: one slot per turn across all of the user's sessions,
	// fail-fast when the queue does not drain in time.
	if o.userSlots != nil {
		select {
		case o.userSlots <- struct{}{}:
			defer func() { <-o.userSlots }()
		case <-time.After(o.slotTimeout):
			emit(entity.NewErrorEvent(o.sessionID, "too many concurrent requests, try again shortly"))
			return
		case <-ctx.Done():
			return
		}
	}

	// Serialize turns within the session.
	o.turnMu.Lock()
	defer o.turnMu.Unlock()

	turnCtx, cancel := context.WithTimeout(ctx, o.cfg.TurnTimeout)
	defer cancel()

	final, err := o.executeTurn(turnCtx, input, emit)
	if err != nil {
		if ctx.Err() != nil {
			// Consumer abandoned the turn; nobody is listening.
			logger.Info("[Orchestrator] turn abandoned for session %s", o.sessionID)
			return
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(turnCtx.Err(), context.DeadlineExceeded) {
			emit(entity.NewErrorEvent(o.sessionID, "the request timed out"))
			return
		}
		logger.Warn("[Orchestrator] turn failed for session %s: %v", o.sessionID, err)
		emit(entity.NewErrorEvent(o.sessionID, "something went wrong handling your message"))
		return
	}
	emit(entity.NewFinalEvent(o.sessionID, final))
}

func (o *Orchestrator) executeTurn(ctx context.Context, input string, emit func(*entity.Event) bool) (string, error) {
	// Extract: deterministic facts first, then the forget short-circuit.
	if det := facts.ExtractDeterministic(input); len(det) > 0 {
		if err := o.factStore.Add(ctx, o.userID, det...); err != nil {
			logger.Warn("[Orchestrator] fact add failed: %v", err)
		}
	}
	if pattern, ok := facts.DetectForgetCommand(input); ok {
		return o.handleForget(ctx, input, pattern)
	}

	// Assemble → CallModel → Parse → Handle, re-running while directives
	// enrich the context.
	enrich := &turnEnrichment{}
	var clean string
	for rerun := 0; ; rerun++ {
		systemPrompt, err := o.assemblePrompt(ctx, input, enrich)
		if err != nil {
			return "", err
		}

		reply, err := o.chat.Complete(ctx, []*schema.Message{
			{Role: schema.System, Content: systemPrompt},
			{Role: schema.User, Content: input},
		})
		if err != nil {
			return "", fmt.Errorf("model call: %w", err)
		}

		var directives []runtime.Directive
		clean, directives = o.codec.Parse(reply.Content)

		if len(directives) > 0 && rerun < MaxReruns && o.handleDirectives(ctx, directives, enrich, emit) {
			logger.Debug("[Orchestrator] re-running model for session %s (rerun %d)", o.sessionID, rerun+1)
			continue
		}

		if strings.TrimSpace(clean) == "" {
			clean = "I wasn't able to put together an answer this time."
		}
		if err := o.finalizeTurn(ctx, input, clean, reply); err != nil {
			return "", err
		}
		break
	}
	return clean, nil
}

// handleForget processes an explicit forget command without calling the
// model.
func (o *Orchestrator) handleForget(ctx context.Context, input, pattern string) (string, error) {
	removed, err := o.factStore.Forget(ctx, o.userID, pattern)
	if err != nil {
		return "", fmt.Errorf("forget: %w", err)
	}
	ack := "I don't have anything matching that in my memory."
	if removed {
		ack = "Okay, I've forgotten that."
	}
	if err := o.persistTurn(ctx, input, ack, nil); err != nil {
		logger.Warn("[Orchestrator] persist forget turn: %v", err)
	}
	return ack, nil
}

// assemblePrompt builds the system prompt for the current (possibly
// enriched) turn state.
func (o *Orchestrator) assemblePrompt(ctx context.Context, input string, enrich *turnEnrichment) (string, error) {
	built, err := o.contextBuilder.Build(ctx, o.sessionID, input, enrich.recalled)
	if err != nil {
		return "", fmt.Errorf("build context: %w", err)
	}

	// Baseline relevance retrieval across the user's archive, topped up by
	// any directive-driven search results.
	summaries := make([]string, 0, o.cfg.RetrievalLimit)
	for _, r := range enrich.episodic {
		summaries = append(summaries, r.Summary)
	}
	if len(summaries) < o.cfg.RetrievalLimit {
		baseline, err := o.archive.Retrieve(ctx, o.userID, input, episodic.RetrieveOptions{
			Limit: o.cfg.RetrievalLimit - len(summaries),
		})
		if err != nil {
			logger.Warn("[Orchestrator] baseline episodic retrieval failed: %v", err)
		}
		for _, r := range baseline {
			summaries = append(summaries, r.Summary)
		}
	}

	userFacts, err := o.factStore.Load(ctx, o.userID)
	if err != nil {
		logger.Warn("[Orchestrator] load facts failed: %v", err)
	}

	pc := &prompt.PromptContext{
		SessionID:         o.sessionID,
		Now:               time.Now(),
		ContextBlock:      built.Text,
		Summary:           o.currentSummary,
		EpisodicSummaries: summaries,
		WebResults:        enrich.webResults,
		FactsBlock:        facts.Format(userFacts),
	}
	return o.pipeline.Assemble(ctx, pc), nil
}

// finalizeTurn persists the turn and runs the post-turn maintenance:
// summary refresh, LLM fact extraction, pruning. Maintenance failures are
// logged, never fatal.
func (o *Orchestrator) finalizeTurn(ctx context.Context, input, reply string, llmReply *llm.Reply) error {
	if err := o.persistTurn(ctx, input, reply, llmReply); err != nil {
		return fmt.Errorf("persist turn: %w", err)
	}

	o.refreshSummary(ctx, input, reply)

	if extracted := facts.ExtractWithLLM(ctx, o.chat, input, reply); len(extracted) > 0 {
		if err := o.factStore.Add(ctx, o.userID, extracted...); err != nil {
			logger.Warn("[Orchestrator] store extracted facts: %v", err)
		}
	}

	if _, err := o.pruner.CheckAndPrune(ctx, o.userID, o.sessionID); err != nil {
		logger.Warn("[Orchestrator] prune failed (will retry next turn): %v", err)
	}
	return nil
}

// persistTurn stores the user and assistant messages and mirrors the turn
// to disk. Assistant tiers from structured model output are used verbatim;
// otherwise the tier manager derives them.
func (o *Orchestrator) persistTurn(ctx context.Context, input, reply string, llmReply *llm.Reply) error {
	userMsg, err := o.tiers.StoreTurnMessage(ctx, o.sessionID, o.userID, entity.RoleUser, input, "", "")
	if err != nil {
		return fmt.Errorf("store user message: %w", err)
	}

	var medium, short string
	if llmReply != nil {
		medium, short = llmReply.Tier2, llmReply.Tier1
	}
	if _, err := o.tiers.StoreTurnMessage(ctx, o.sessionID, o.userID, entity.RoleAssistant, reply, medium, short); err != nil {
		return fmt.Errorf("store assistant message: %w", err)
	}

	now := time.Now()
	if err := o.sessions.Touch(ctx, o.sessionID, now); err != nil {
		logger.Warn("[Orchestrator] touch session: %v", err)
	}
	o.maybeSetTitle(ctx, input)

	if err := o.snapshots.AppendTurn(o.userID, o.sessionID, entity.Turn{
		TurnID:          userMsg.ID,
		Timestamp:       now,
		UserInput:       input,
		AssistantOutput: reply,
	}); err != nil {
		logger.Warn("[Orchestrator] transcript mirror: %v", err)
	}
	return nil
}

// maybeSetTitle derives a title from the first user message.
func (o *Orchestrator) maybeSetTitle(ctx context.Context, input string) {
	session, err := o.sessions.Get(ctx, o.sessionID)
	if err != nil || session.Title != "" {
		return
	}
	words := strings.Fields(input)
	if len(words) > 8 {
		words = words[:8]
	}
	title := strings.Join(words, " ")
	if runes := []rune(title); len(runes) > 60 {
		title = string(runes[:60])
	}
	if err := o.sessions.UpdateTitle(ctx, o.sessionID, title); err != nil {
		logger.Warn("[Orchestrator] set title: %v", err)
	}
}

// refreshSummary updates the rolling session summary: one model sentence
// with a deterministic truncation fallback.
func (o *Orchestrator) refreshSummary(ctx context.Context, input, reply string) {
	summary := fallbackSummary(input, reply)

	resp, err := o.chat.Generate(ctx, []*schema.Message{
		{Role: schema.System, Content: "You compress conversations. Output one short sentence, nothing else."},
		{Role: schema.User, Content: fmt.Sprintf(
			"Previous summary: %s\n\nLatest exchange:\nUser: %s\nAssistant: %s\n\nUpdated one-sentence summary of the conversation so far:",
			o.currentSummary, input, reply)},
	})
	if err == nil {
		if text := strings.TrimSpace(resp.Content); text != "" {
			summary = text
		}
	} else {
		logger.Debug("[Orchestrator] summary refresh fell back: %v", err)
	}

	o.currentSummary = summary
	if err := o.snapshots.SaveContext(o.userID, o.sessionID, summary); err != nil {
		logger.Warn("[Orchestrator] context mirror: %v", err)
	}
}

func fallbackSummary(input, reply string) string {
	exchange := "User asked: " + input + " Assistant: " + reply
	if runes := []rune(exchange); len(runes) > 200 {
		exchange = string(runes[:197]) + "..."
	}
	return exchange
}
