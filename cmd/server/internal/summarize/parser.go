package summarize

import (
	"regexp"
	"strings"

	"github.com/yahyachammami/meetscribe/cmd/server/internal/pipeline"
)

// section identifiers used while scanning the completion text.
const (
	secNone      = ""
	secOverview  = "overview"
	secTopics    = "topics"
	secDecisions = "decisions"
	secActions   = "action_items"
	secFollowUps = "follow_ups"
)

var (
	bulletPrefix = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)
	// Dash/dot bullets are always content; bold or numbered lines may still
	// be headings ("1. **Decisions Made**").
	contentBullet = regexp.MustCompile(`^\s*(?:[-•]|\*\s)`)
	// "Assigned to Alice", "assigned to: Bob, Deadline: Friday"
	assignedTo = regexp.MustCompile(`(?i)[-–—>→]*\s*assigned to:?\s*([^,;.]+)`)
)

// ParseResponse extracts a structured AnalysisResult from a completion
// response. Parsing is deliberately lenient: the model is allowed to wrap the
// sections in prose, vary heading markup, and mix bullet styles. The only
// hard requirement is that an overall summary is recoverable; otherwise the
// response is rejected as MalformedResponse with the raw payload retained.
func ParseResponse(response string) (*pipeline.AnalysisResult, error) {
	result := &pipeline.AnalysisResult{
		Topics:      []string{},
		Decisions:   []string{},
		ActionItems: []pipeline.ActionItem{},
		FollowUps:   []string{},
	}

	current := secNone
	var overview []string

	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if sec, ok := classifyHeading(trimmed); ok {
			current = sec
			// Headings like "Decisions Made: none" carry inline content.
			if _, rest, found := strings.Cut(trimmed, ":"); found {
				if item := cleanItem(rest); item != "" && !strings.EqualFold(item, "none") {
					appendItem(result, &overview, current, item)
				}
			}
			continue
		}

		if current == secNone {
			continue // preamble prose before the first recognizable section
		}
		// List sections only accept bulleted or numbered lines; loose prose
		// around them (sign-offs, commentary) is dropped. The overview keeps
		// plain paragraphs.
		if current != secOverview && !bulletPrefix.MatchString(trimmed) {
			continue
		}
		item := cleanItem(trimmed)
		if item == "" {
			continue
		}
		appendItem(result, &overview, current, item)
	}

	result.Summary = strings.Join(overview, " ")
	if strings.TrimSpace(result.Summary) == "" {
		return nil, &pipeline.StageError{
			Kind:    pipeline.KindMalformedResponse,
			Stage:   "summarize",
			Message: "completion response contained no recognizable summary section",
			Raw:     response,
		}
	}
	return result, nil
}

// classifyHeading reports whether the line introduces a known section.
// A heading is any reasonably short line mentioning a section keyword; this
// tolerates "## Decisions Made", "**3. Decisions:**", "Decisions" and
// similar variants without demanding exact markup.
func classifyHeading(line string) (string, bool) {
	if contentBullet.MatchString(line) {
		return secNone, false
	}
	stripped := strings.Trim(line, "#*_ \t")
	stripped = bulletPrefix.ReplaceAllString(stripped, "")
	if len(stripped) > 60 {
		return secNone, false
	}
	lower := strings.ToLower(stripped)

	switch {
	case strings.Contains(lower, "follow"):
		return secFollowUps, true
	case strings.Contains(lower, "action"):
		return secActions, true
	case strings.Contains(lower, "decision"):
		return secDecisions, true
	case strings.Contains(lower, "topic"):
		return secTopics, true
	case strings.Contains(lower, "summary") || strings.Contains(lower, "overview") || strings.Contains(lower, "main points"):
		return secOverview, true
	default:
		return secNone, false
	}
}

// cleanItem strips bullet markers and emphasis from a content line.
func cleanItem(line string) string {
	item := bulletPrefix.ReplaceAllString(strings.TrimSpace(line), "")
	item = strings.Trim(item, "*_ \t")
	return strings.TrimSpace(item)
}

func appendItem(result *pipeline.AnalysisResult, overview *[]string, section, item string) {
	switch section {
	case secOverview:
		*overview = append(*overview, item)
	case secTopics:
		result.Topics = append(result.Topics, item)
	case secDecisions:
		result.Decisions = append(result.Decisions, item)
	case secActions:
		result.ActionItems = append(result.ActionItems, parseActionItem(item))
	case secFollowUps:
		result.FollowUps = append(result.FollowUps, item)
	}
}

// parseActionItem splits an "Assigned to" clause out of an action line when
// present. "Prepare the deck - Assigned to Alice, Deadline: Friday" yields
// owner "Alice" with the owner clause removed from the text.
func parseActionItem(item string) pipeline.ActionItem {
	m := assignedTo.FindStringSubmatchIndex(item)
	if m == nil {
		return pipeline.ActionItem{Text: item}
	}

	owner := strings.TrimSpace(item[m[2]:m[3]])
	text := strings.TrimSpace(strings.Trim(item[:m[0]], " -–—>→"))
	if text == "" {
		text = item
	}
	return pipeline.ActionItem{Owner: owner, Text: text}
}
