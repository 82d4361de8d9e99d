package runtime

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DirectiveKind identifies one of the bracketed commands the model may embed
// in a reply to request memory operations or tool use.
type DirectiveKind string

const (
	DirectiveTierUpgrade    DirectiveKind = "request_tier"
	DirectiveEpisodicSearch DirectiveKind = "search_episodic"
	DirectiveWebSearch      DirectiveKind = "search"
	DirectiveFetchEpisode   DirectiveKind = "fetch_episode"
	DirectiveSearchDeeper   DirectiveKind = "search_deeper_episodic"
)

// Directive is one parsed command. Only the fields relevant to its kind are
// populated.
type Directive struct {
	Kind      DirectiveKind
	Tier      int
	MessageID string
	Query     string
	ChunkID   string
}

// The accepted directive grammar. The first tier pattern is canonical; the
// unterminated and space-separated forms tolerate the sloppier variants
// models actually produce.
var (
	tierRe      = regexp.MustCompile(`\[REQUEST_TIER:(\d+):([^\]]+)\]`)
	tierOpenRe  = regexp.MustCompile(`\[REQUEST_TIER:(\d+):([^\s\]]+)`)
	tierSpaceRe = regexp.MustCompile(`\[REQUEST_TIER (\d+) ([^\]]+)\]`)
	episodicRe  = regexp.MustCompile(`\[SEARCH_EPISODIC:([^\]]+)\]`)
	webRe       = regexp.MustCompile(`\[SEARCH:\s*(.+?)\s*\]`)
	fetchRe     = regexp.MustCompile(`\[FETCH_EPISODE:\s*([\w\-]+)\s*\]`)
	deeperRe    = regexp.MustCompile(`\[SEARCH_DEEPER_EPISODIC\]`)
)

type directivePattern struct {
	re    *regexp.Regexp
	build func(groups []string) (Directive, bool)
}

var directivePatterns = []directivePattern{
	{tierRe, buildTierDirective},
	{tierSpaceRe, buildTierDirective},
	{tierOpenRe, buildTierDirective},
	{episodicRe, func(g []string) (Directive, bool) {
		query := strings.TrimSpace(g[1])
		if len(query) <= 2 {
			return Directive{}, false
		}
		return Directive{Kind: DirectiveEpisodicSearch, Query: query}, true
	}},
	{fetchRe, func(g []string) (Directive, bool) {
		return Directive{Kind: DirectiveFetchEpisode, ChunkID: g[1]}, true
	}},
	{deeperRe, func(g []string) (Directive, bool) {
		return Directive{Kind: DirectiveSearchDeeper}, true
	}},
	{webRe, func(g []string) (Directive, bool) {
		query := strings.TrimSpace(g[1])
		if query == "" {
			return Directive{}, false
		}
		return Directive{Kind: DirectiveWebSearch, Query: query}, true
	}},
}

func buildTierDirective(groups []string) (Directive, bool) {
	tier, err := strconv.Atoi(groups[1])
	if err != nil || tier < 1 || tier > 3 {
		return Directive{}, false
	}
	id := strings.Trim(strings.TrimSpace(groups[2]), "\"'`")
	if id == "" {
		return Directive{}, false
	}
	return Directive{Kind: DirectiveTierUpgrade, Tier: tier, MessageID: id}, true
}

// DirectiveCodec parses and strips model-emitted directives.
type DirectiveCodec struct{}

// NewDirectiveCodec creates a codec.
func NewDirectiveCodec() *DirectiveCodec {
	return &DirectiveCodec{}
}

// Parse extracts every directive from text in discovery order and returns the
// residual text with all directive tokens removed. Duplicate episodic queries
// are dropped.
//
// Inside fenced code blocks a directive is only honored when it is the sole
// content of its line; anything else in a fence is left untouched.
func (c *DirectiveCodec) Parse(text string) (string, []Directive) {
	if text == "" {
		return "", nil
	}

	var (
		directives    []Directive
		seenEpisodic  = map[string]bool{}
		residualLines []string
		inFence       bool
	)

	lines := strings.Split(text, "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			residualLines = append(residualLines, line)
			continue
		}

		matches := findLineMatches(line)
		if len(matches) == 0 {
			residualLines = append(residualLines, line)
			continue
		}

		if inFence {
			// Honor only a directive that is the whole line.
			if len(matches) == 1 && strings.TrimSpace(line[matches[0].start:matches[0].end]) == trimmed {
				directives = appendDirective(directives, seenEpisodic, matches[0].dir)
				continue
			}
			residualLines = append(residualLines, line)
			continue
		}

		for _, m := range matches {
			directives = appendDirective(directives, seenEpisodic, m.dir)
		}
		if rest := removeSpans(line, matches); strings.TrimSpace(rest) != "" {
			residualLines = append(residualLines, rest)
		}
	}

	residual := strings.TrimSpace(strings.Join(residualLines, "\n"))
	return residual, directives
}

// Strip removes every directive token from text, discarding the parsed
// directives.
func (c *DirectiveCodec) Strip(text string) string {
	clean, _ := c.Parse(text)
	return clean
}

type lineMatch struct {
	start, end int
	priority   int
	dir        Directive
}

// findLineMatches collects non-overlapping directive matches on one line,
// ordered by position. On overlap the earlier pattern in directivePatterns
// wins, so the canonical forms beat the tolerant ones.
func findLineMatches(line string) []lineMatch {
	var candidates []lineMatch
	for prio, p := range directivePatterns {
		for _, idx := range p.re.FindAllStringSubmatchIndex(line, -1) {
			groups := make([]string, 0, len(idx)/2)
			for g := 0; g < len(idx); g += 2 {
				if idx[g] < 0 {
					groups = append(groups, "")
					continue
				}
				groups = append(groups, line[idx[g]:idx[g+1]])
			}
			dir, ok := p.build(groups)
			if !ok {
				continue
			}
			candidates = append(candidates, lineMatch{start: idx[0], end: idx[1], priority: prio, dir: dir})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].start != candidates[j].start {
			return candidates[i].start < candidates[j].start
		}
		return candidates[i].priority < candidates[j].priority
	})

	var accepted []lineMatch
	lastEnd := -1
	for _, m := range candidates {
		if m.start < lastEnd {
			continue
		}
		accepted = append(accepted, m)
		lastEnd = m.end
	}
	return accepted
}

func appendDirective(dirs []Directive, seenEpisodic map[string]bool, d Directive) []Directive {
	if d.Kind == DirectiveEpisodicSearch {
		key := strings.ToLower(d.Query)
		if seenEpisodic[key] {
			return dirs
		}
		seenEpisodic[key] = true
	}
	return append(dirs, d)
}

func removeSpans(line string, matches []lineMatch) string {
	var b strings.Builder
	prev := 0
	for _, m := range matches {
		b.WriteString(line[prev:m.start])
		prev = m.end
	}
	b.WriteString(line[prev:])
	return b.String()
}
