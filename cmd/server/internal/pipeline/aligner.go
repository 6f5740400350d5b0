package pipeline

import (
	"sort"
	"strings"
)

// DefaultMergeGapMs is the default silence threshold below which adjacent
// same-speaker utterances are merged into one.
const DefaultMergeGapMs int64 = 300

// AlignTranscript merges transcriber segments with diarizer turns into an
// ordered sequence of speaker-labeled utterances.
//
// Each segment is assigned the label of the turn with maximum temporal
// overlap; ties break toward the turn with the earliest start. A segment that
// overlaps no turn at all (diarizer under-segmentation) takes the label of
// the nearest turn by temporal distance. Adjacent segments with the same
// label separated by less than mergeGapMs are concatenated into a single
// utterance. mergeGapMs <= 0 falls back to DefaultMergeGapMs.
//
// An empty segment sequence yields an empty transcript. An empty turn
// sequence labels everything with DefaultSpeakerLabel; callers that want a
// full-duration fallback turn should pass SyntheticTurns instead.
func AlignTranscript(segments []TranscriptSegment, turns []SpeakerTurn, mergeGapMs int64) []Utterance {
	if mergeGapMs <= 0 {
		mergeGapMs = DefaultMergeGapMs
	}
	if len(segments) == 0 {
		return []Utterance{}
	}

	// Both inputs are produced independently; restore ordering rather than
	// trusting it.
	segs := make([]TranscriptSegment, 0, len(segments))
	for _, s := range segments {
		if strings.TrimSpace(s.Text) == "" {
			continue // silence or transcriber artifact, nothing to attribute
		}
		if s.EndMs < s.StartMs {
			s.EndMs = s.StartMs
		}
		segs = append(segs, s)
	}
	if len(segs) == 0 {
		return []Utterance{}
	}
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].StartMs < segs[j].StartMs })

	labeled := make([]Utterance, 0, len(segs))
	for _, s := range segs {
		labeled = append(labeled, Utterance{
			Speaker: assignSpeaker(s, turns),
			StartMs: s.StartMs,
			EndMs:   s.EndMs,
			Text:    strings.TrimSpace(s.Text),
		})
	}

	return mergeAdjacent(labeled, mergeGapMs)
}

// assignSpeaker picks the label for one segment. Maximum overlap wins; with
// zero overlap everywhere the nearest turn wins; both tie-break on the
// earlier turn start.
func assignSpeaker(seg TranscriptSegment, turns []SpeakerTurn) string {
	if len(turns) == 0 {
		return DefaultSpeakerLabel
	}

	bestLabel := ""
	bestOverlap := int64(-1)
	bestStart := int64(0)
	for _, t := range turns {
		ov := overlapMs(seg, t)
		if ov > bestOverlap || (ov == bestOverlap && t.StartMs < bestStart) {
			bestOverlap = ov
			bestStart = t.StartMs
			bestLabel = t.Speaker
		}
	}
	if bestOverlap > 0 {
		return bestLabel
	}

	// No covering turn: gap-fill from the nearest turn. A zero-length segment
	// inside a turn has zero overlap but zero distance, so it still lands on
	// the containing turn here.
	bestLabel = ""
	bestDist := int64(-1)
	bestStart = 0
	for _, t := range turns {
		d := distanceMs(seg, t)
		if bestDist < 0 || d < bestDist || (d == bestDist && t.StartMs < bestStart) {
			bestDist = d
			bestStart = t.StartMs
			bestLabel = t.Speaker
		}
	}
	return bestLabel
}

func overlapMs(seg TranscriptSegment, t SpeakerTurn) int64 {
	ov := min64(seg.EndMs, t.EndMs) - max64(seg.StartMs, t.StartMs)
	if ov < 0 {
		return 0
	}
	return ov
}

// distanceMs is the temporal gap between a segment and a turn, zero when the
// intervals touch or intersect.
func distanceMs(seg TranscriptSegment, t SpeakerTurn) int64 {
	if t.StartMs > seg.EndMs {
		return t.StartMs - seg.EndMs
	}
	if seg.StartMs > t.EndMs {
		return seg.StartMs - t.EndMs
	}
	return 0
}

// mergeAdjacent concatenates consecutive same-speaker utterances separated by
// less than mergeGapMs so a single spoken turn is not fragmented into many
// short rows.
func mergeAdjacent(utts []Utterance, mergeGapMs int64) []Utterance {
	if len(utts) == 0 {
		return utts
	}

	merged := make([]Utterance, 0, len(utts))
	cur := utts[0]
	for _, u := range utts[1:] {
		gap := u.StartMs - cur.EndMs
		if u.Speaker == cur.Speaker && gap < mergeGapMs {
			cur.Text = cur.Text + " " + u.Text
			if u.EndMs > cur.EndMs {
				cur.EndMs = u.EndMs
			}
			continue
		}
		merged = append(merged, cur)
		cur = u
	}
	merged = append(merged, cur)
	return merged
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
