package prompt

import (
	"context"
	"sort"
	"strings"

	"github.com/wyrdlab/reverie/pkg/logger"
)

// Pipeline assembles the system prompt from registered sections.
type Pipeline struct {
	sections        []Section
	sorted          bool
	workspaceLoader *WorkspaceLoader
}

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// NewDefaultPipeline creates a pipeline with the standard section set.
func NewDefaultPipeline() *Pipeline {
	p := NewPipeline()
	p.RegisterSection(&InstructionsSection{})
	p.RegisterSection(&ContextualMemorySection{})
	p.RegisterSection(&SessionSummarySection{})
	p.RegisterSection(&EpisodicRecallSection{})
	p.RegisterSection(&WebSearchSection{})
	p.RegisterSection(&RememberThisSection{})
	p.RegisterSection(&TierAuthoritySection{})
	return p
}

// RegisterSection adds a Section. Sections are sorted by priority before
// first assembly.
func (p *Pipeline) RegisterSection(s Section) {
	p.sections = append(p.sections, s)
	p.sorted = false
}

// SetWorkspaceLoader attaches a WorkspaceLoader whose dynamic sections are
// merged at assemble time.
func (p *Pipeline) SetWorkspaceLoader(wl *WorkspaceLoader) {
	p.workspaceLoader = wl
}

func (p *Pipeline) ensureSorted() {
	if p.sorted {
		return
	}
	sort.SliceStable(p.sections, func(i, j int) bool {
		return p.sections[i].Priority() < p.sections[j].Priority()
	})
	p.sorted = true
}

// Assemble renders all sections in priority order into one system prompt.
// Individual section failures are logged and skipped.
func (p *Pipeline) Assemble(ctx context.Context, pc *PromptContext) string {
	p.ensureSorted()

	allSections := p.sections
	if p.workspaceLoader != nil {
		if ws := p.workspaceLoader.Sections(); len(ws) > 0 {
			// A workspace section replaces a registered section of the same
			// name (e.g. instructions.md replaces the default instructions).
			overridden := make(map[string]bool, len(ws))
			for _, s := range ws {
				overridden[s.Name()] = true
			}
			allSections = make([]Section, 0, len(p.sections)+len(ws))
			for _, s := range p.sections {
				if !overridden[s.Name()] {
					allSections = append(allSections, s)
				}
			}
			allSections = append(allSections, ws...)
			sort.SliceStable(allSections, func(i, j int) bool {
				return allSections[i].Priority() < allSections[j].Priority()
			})
		}
	}

	var blocks []string
	for _, section := range allSections {
		text, err := section.Render(ctx, pc)
		if err != nil {
			logger.Warn("[PromptPipeline] section %s failed, skipping: %v", section.Name(), err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		blocks = append(blocks, strings.TrimRight(text, "\n"))
	}

	return strings.Join(blocks, "\n\n")
}
