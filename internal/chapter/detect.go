// Package chapter infers chapter transitions from chat turns.
//
// Detection is heuristic: regexes look for an assistant announcing a
// section or a user asking to move to one, then match the captured
// phrase against the session outline. The result is a discrete
// Transition event the caller applies to the session state machine.
// Nothing here mutates the session or touches rendering.
package chapter

import (
	"regexp"
	"strings"

	"github.com/tutorkit/tutorkit/internal/model"
)

// Source records which side of the conversation triggered a transition.
type Source string

const (
	// SourceUser means the user explicitly asked for a section.
	SourceUser Source = "user"

	// SourceAssistant means the assistant announced it is covering a section.
	SourceAssistant Source = "assistant"
)

// Transition is a detected chapter change.
type Transition struct {
	ChapterID string
	Title     string
	Source    Source
}

// Assistant phrasing: "let's move on to X", "now we'll cover X",
// "turning to X", "this brings us to X". The capture runs to the end of
// the sentence and is matched against outline titles afterwards.
var assistantPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:let'?s (?:move on to|continue with|start with|look at)|moving on to|now (?:we'?ll|let'?s) (?:cover|discuss|explore|look at)|turning to|this brings us to)\s+(?:the\s+)?(?:chapter|section)?\s*(?:on\s+)?["“]?([^."”\n]+)`),
	regexp.MustCompile(`(?i)(?:^|\n)#{1,3}\s*(?:chapter|section)?\s*\d*[.:]?\s*(.+)`),
}

// User phrasing: "go to X", "take me to X", "skip to X", "let's do X next".
var userPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:go (?:to|back to)|jump to|skip (?:to|ahead to)|take me to|switch to|move to|open|teach me)\s+(?:the\s+)?(?:chapter|section)?\s*(?:on\s+|about\s+)?["“]?([^."”?\n]+)`),
	regexp.MustCompile(`(?i)(?:can we|i'?d like to|i want to)\s+(?:do|cover|learn|study)\s+(?:the\s+)?(?:chapter|section)?\s*(?:on\s+|about\s+)?["“]?([^."”?\n]+)`),
}

// Detector matches chat turns against a session outline.
type Detector struct {
	outline []model.Chapter
}

// NewDetector builds a Detector for the given outline.
func NewDetector(outline []model.Chapter) *Detector {
	return &Detector{outline: outline}
}

// Detect examines one chat turn and reports a chapter transition, if any.
// When both the user's request and the assistant's reply point at a
// chapter in the same turn, the user's wins: an explicit request
// outranks whatever the assistant happened to mention.
func (d *Detector) Detect(userText, assistantText string) (Transition, bool) {
	if t, ok := d.match(userText, userPatterns, SourceUser); ok {
		return t, true
	}
	if t, ok := d.match(assistantText, assistantPatterns, SourceAssistant); ok {
		return t, true
	}
	return Transition{}, false
}

func (d *Detector) match(text string, patterns []*regexp.Regexp, src Source) (Transition, bool) {
	if text == "" {
		return Transition{}, false
	}
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		phrase := strings.TrimSpace(m[1])
		if phrase == "" {
			continue
		}
		if ch := d.resolve(phrase); ch != nil {
			return Transition{ChapterID: ch.ID, Title: ch.Title, Source: src}, true
		}
	}
	return Transition{}, false
}

// resolve maps a free-text phrase to an outline chapter. Exact title match
// first, then prefix/containment either way. Longest title wins ties so
// "Pointers and Methods" beats "Pointers".
func (d *Detector) resolve(phrase string) *model.Chapter {
	needle := normalize(phrase)
	if needle == "" {
		return nil
	}

	var exact, partial *model.Chapter
	partialLen := 0
	walk(d.outline, func(ch *model.Chapter) {
		title := normalize(ch.Title)
		if title == "" {
			return
		}
		if title == needle && exact == nil {
			exact = ch
			return
		}
		if strings.Contains(needle, title) || strings.Contains(title, needle) {
			if len(title) > partialLen {
				partial, partialLen = ch, len(title)
			}
		}
	})
	if exact != nil {
		return exact
	}
	return partial
}

func walk(chapters []model.Chapter, fn func(*model.Chapter)) {
	for i := range chapters {
		fn(&chapters[i])
		walk(chapters[i].Sections, fn)
	}
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, `"'.,!?:;`)
	return strings.Join(strings.Fields(s), " ")
}
