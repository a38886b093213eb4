package pipeline

import (
	"strings"

	"github.com/soundbite-labs/soundbite-core/internal/speech"
)

// Word is one aligned word after the diarization merge.
type Word struct {
	Text    string
	Start   float64
	End     float64
	Speaker string
}

// Phrase is a contiguous run of words sharing one speaker tag within a
// segment. Start is the first word's start, End the last word's end.
type Phrase struct {
	Speaker string
	Text    string
	Start   float64
	End     float64
}

// assignSpeakers merges diarization turns into the aligned word stream:
// each word takes the tag of the turn its midpoint falls in. Words outside
// every turn fall back to the turn with the largest temporal overlap; words
// with no overlap at all keep an empty tag.
func assignSpeakers(segments []speech.Segment, turns []speech.Turn) []Word {
	var words []Word
	for _, seg := range segments {
		for _, w := range seg.Words {
			words = append(words, Word{
				Text:    strings.TrimSpace(w.Text),
				Start:   w.Start,
				End:     w.End,
				Speaker: tagFor(w, turns),
			})
		}
	}
	return words
}

func tagFor(w speech.Word, turns []speech.Turn) string {
	mid := (w.Start + w.End) / 2
	for _, t := range turns {
		if mid >= t.Start && mid < t.End {
			return t.Speaker
		}
	}

	var bestTag string
	var bestOverlap float64
	for _, t := range turns {
		overlap := min(w.End, t.End) - max(w.Start, t.Start)
		if overlap > bestOverlap {
			bestOverlap = overlap
			bestTag = t.Speaker
		}
	}
	return bestTag
}

// groupPhrases folds consecutive same-tag words into phrases. A tag change
// starts a new phrase; the end timestamp is overwritten as each word is
// appended, so it always reflects the last word of the run.
func groupPhrases(words []Word) []Phrase {
	var phrases []Phrase
	for _, w := range words {
		if n := len(phrases); n > 0 && phrases[n-1].Speaker == w.Speaker {
			p := &phrases[n-1]
			if w.Text != "" {
				if p.Text != "" {
					p.Text += " "
				}
				p.Text += w.Text
			}
			p.End = w.End
			continue
		}
		phrases = append(phrases, Phrase{
			Speaker: w.Speaker,
			Text:    w.Text,
			Start:   w.Start,
			End:     w.End,
		})
	}
	return phrases
}
