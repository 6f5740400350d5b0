// Package summarize turns a speaker-labeled transcript into a structured
// meeting summary by calling an OpenAI-compatible chat completions endpoint
// and leniently parsing the free-form response into sections.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/yahyachammami/meetscribe/cmd/server/internal/pipeline"
)

// Summarizer derives a structured AnalysisResult from a transcript.
//
// Implementations must respect context cancellation and classify failures:
// 429 responses are UpstreamRateLimited (transient), other upstream failures
// are UpstreamError (fatal), and an unparseable completion is
// MalformedResponse with the raw payload retained on the error.
type Summarizer interface {
	Summarize(ctx context.Context, transcript, language string) (*pipeline.AnalysisResult, error)

	// Name identifies the implementation in logs and metrics.
	Name() string
}

// TranscriptText renders an utterance sequence as the speaker-labeled text
// the completion prompt expects, one utterance per line.
func TranscriptText(utts []pipeline.Utterance) string {
	var b strings.Builder
	for _, u := range utts {
		fmt.Fprintf(&b, "%s: %s\n", u.Speaker, u.Text)
	}
	return b.String()
}

const systemPrompt = `You are a professional meeting summarizer.
Analyze the meeting transcript and provide a clear, structured summary including:
1. Main points and overview
2. Key topics discussed
3. All decisions made
4. Action items with assigned responsibilities
5. Follow-up items and deadlines`

// BuildPrompt produces the fixed instruction template for one transcript.
// The section headings here are what the parser keys on, so prompt and
// parser evolve together.
func BuildPrompt(transcript, language string) string {
	if language == "" {
		language = "an unspecified language"
	}
	return fmt.Sprintf(`You are an assistant specialized in creating professional meeting summaries.
The following is a transcript of a meeting conducted in %s.

Transcript:
%s

Your task:
Carefully read the transcript and generate a structured meeting summary.
Ensure clarity, conciseness, and completeness.

Please include the following sections in your response:

1. **Overall Summary**
   - Provide a concise paragraph summarizing the purpose of the meeting and its main outcomes.

2. **Key Topics Discussed**
   - List the main topics covered during the meeting (use bullet points).

3. **Decisions Made**
   - Clearly list all decisions reached during the meeting (bullet points).

4. **Action Items**
   - Provide a list of specific tasks, who is responsible, and any relevant deadlines.
   Example: *[Task] - Assigned to [Person], Deadline: [Date]*

5. **Follow-ups / Next Steps**
   - Mention any pending discussions, open questions, or future agenda items.

Formatting Guidelines:
- Use clear headings and bullet points.
- Keep summaries concise but detailed enough for someone who did not attend the meeting.
- Do not add information not present in the transcript.`, language, transcript)
}
