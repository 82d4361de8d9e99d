package facts

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/wyrdlab/reverie/pkg/logger"
	"github.com/wyrdlab/reverie/pkg/utils/json"
)

// ChatCompleter is the narrow slice of the LLM gateway extraction needs.
type ChatCompleter interface {
	Generate(ctx context.Context, msgs []*schema.Message) (*schema.Message, error)
}

// Deterministic first-person patterns. Each maps a capture to a
// third-person fact template.
var deterministicPatterns = []struct {
	re       *regexp.Regexp
	template string
}{
	{regexp.MustCompile(`(?i)\bmy name is ([A-Z][\w\-]*(?:\s+[A-Z][\w\-]*)?)`), "User's name is %s"},
	{regexp.MustCompile(`(?i)\bi(?:'m| am) called ([A-Z][\w\-]*)`), "User's name is %s"},
	{regexp.MustCompile(`(?i)\bi live in ([A-Z][\w\-]*(?:\s+[A-Z][\w\-]*)?)`), "User lives in %s"},
	{regexp.MustCompile(`(?i)\bi(?:'m| am) from ([A-Z][\w\-]*(?:\s+[A-Z][\w\-]*)?)`), "User is from %s"},
	{regexp.MustCompile(`(?i)\bi work as an? ([\w\- ]{2,40}?)(?:[.,!?]|$)`), "User works as a %s"},
	{regexp.MustCompile(`(?i)\bi work at ([\w\-& ]{2,40}?)(?:[.,!?]|$)`), "User works at %s"},
	{regexp.MustCompile(`(?i)\bi(?:'m| am) working on (?:a project called )?([\w\-'" ]{2,60}?)(?:[.,!?]|$)`), "User is working on %s"},
	{regexp.MustCompile(`(?i)\bi (?:like|love|enjoy) ([\w\- ]{2,40}?)(?:[.,!?]|$)`), "User enjoys %s"},
	{regexp.MustCompile(`(?i)\bi use ([\w\-+#./ ]{2,40}?) for ([\w\- ]{2,40}?)(?:[.,!?]|$)`), "User uses %s for %s"},
	{regexp.MustCompile(`(?i)\bmy deadline is ([\w\- ,]{2,40}?)(?:[.!?]|$)`), "User's deadline is %s"},
}

// Roleplay request patterns. A match produces the pinned persona fact.
var roleplayPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bact as ([A-Za-z][\w\-' ]{1,60}?)(?:[.,!?]|$)`),
	regexp.MustCompile(`(?i)\bpretend (?:to be|you(?:'re| are)) ([A-Za-z][\w\-' ]{1,60}?)(?:[.,!?]|$)`),
	regexp.MustCompile(`(?i)\broleplay as ([A-Za-z][\w\-' ]{1,60}?)(?:[.,!?]|$)`),
	regexp.MustCompile(`(?i)\b(?:emulate|impersonate) ([A-Za-z][\w\-' ]{1,60}?)(?:[.,!?]|$)`),
}

// Forget command patterns; the capture is the thing to forget.
var forgetPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^forget (?:that )?(.+)$`),
	regexp.MustCompile(`(?i)^don't remember (?:that )?(.+)$`),
	regexp.MustCompile(`(?i)^remove (.+?) from (?:your|the) memory$`),
}

// ExtractDeterministic runs the regex extractors over one user message and
// returns normalized third-person facts, persona facts included.
func ExtractDeterministic(userInput string) []string {
	if strings.TrimSpace(userInput) == "" {
		return nil
	}

	var out []string
	if persona := detectRoleplay(userInput); persona != "" {
		out = append(out, persona)
	}

	for _, p := range deterministicPatterns {
		for _, match := range p.re.FindAllStringSubmatch(userInput, -1) {
			args := make([]interface{}, 0, len(match)-1)
			for _, g := range match[1:] {
				args = append(args, strings.TrimSpace(g))
			}
			fact := fmt.Sprintf(p.template, args...)
			if SanitizeFact(fact) != "" {
				out = append(out, fact)
			}
		}
	}
	return out
}

func detectRoleplay(userInput string) string {
	for _, re := range roleplayPatterns {
		if match := re.FindStringSubmatch(userInput); match != nil {
			persona := strings.TrimSpace(match[1])
			if persona == "" {
				continue
			}
			return fmt.Sprintf("%s You must consistently roleplay as %s throughout the entire conversation until explicitly told to stop.",
				PersonaPrefix, persona)
		}
	}
	return ""
}

// DetectForgetCommand checks whether the message is an explicit forget
// command and returns the normalized pattern to match against stored facts.
func DetectForgetCommand(userInput string) (string, bool) {
	input := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(userInput), ".?!"))
	for _, re := range forgetPatterns {
		match := re.FindStringSubmatch(input)
		if match == nil {
			continue
		}
		target := strings.TrimSpace(match[1])
		// Normalize first person to the stored third-person form and drop
		// linking verbs so "I live in Kyoto" matches "User lives in Kyoto".
		target = regexp.MustCompile(`(?i)^(?:my|i'm|i am|i)\s+`).ReplaceAllString(target, "")
		target = regexp.MustCompile(`(?i)\s+(?:is|are|was|were)\s+`).ReplaceAllString(target, " ")
		target = strings.ToLower(strings.TrimSpace(target))
		if target == "" {
			continue
		}
		// Keep the most distinctive trailing words; "live in kyoto" should
		// match "lives in kyoto", so drop a leading bare verb too.
		target = strings.TrimPrefix(target, "live in ")
		target = strings.TrimPrefix(target, "lives in ")
		return target, true
	}
	return "", false
}

const llmExtractionPrompt = `Analyze the following User message and Assistant response. Identify any facts, preferences, or key information about the user that should be remembered for future interactions. Consider names, locations, preferences, project details, personal facts, dates, and anything a personal assistant should remember.

Output ONLY a JSON list of strings. If no relevant information is found, output an empty list [].

Example: ["User's dog is named Max.", "User prefers short summaries."]`

// ExtractWithLLM asks the model for additional facts about the turn. The
// reply must be a JSON array of strings; a fenced code block around it is
// unwrapped. Failures return an empty slice — extraction is best-effort.
func ExtractWithLLM(ctx context.Context, model ChatCompleter, userInput, assistantReply string) []string {
	if model == nil {
		return nil
	}

	prompt := fmt.Sprintf("%s\n\nUser Message:\n%s\n\nAssistant Response:\n%s\n\nPotential facts/preferences:\n",
		llmExtractionPrompt, userInput, assistantReply)

	resp, err := model.Generate(ctx, []*schema.Message{
		{Role: schema.User, Content: prompt},
	})
	if err != nil {
		logger.Warn("[FactStore] LLM fact extraction failed: %v", err)
		return nil
	}

	text := strings.TrimSpace(resp.Content)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var extracted []string
	if err := json.Unmarshal([]byte(text), &extracted); err != nil {
		logger.Warn("[FactStore] LLM fact extraction returned non-JSON output, discarding")
		return nil
	}
	return extracted
}
