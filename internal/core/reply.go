package core

import "strings"

// EndMarker is the sentinel the inference backend appends when it considers
// the consultation finished. Its parsing lives entirely in ShapeReply so the
// sentinel format can change without touching orchestration logic.
const EndMarker = "<END_CONVO>"

// maxReplySentences bounds a doctor reply. Truncation happens before marker
// detection, so a marker the backend emits beyond the window is not detected.
// That is a documented limitation of the contract, not a bug: widening the
// window here would trade reply brevity for a signal the backend should have
// placed earlier.
const maxReplySentences = 4

// ShapeReply post-processes raw generated text: it keeps at most the first
// four sentences joined by single spaces, then detects and strips the
// end-of-consultation marker on the text that is actually returned. The
// second result reports whether the marker was found.
func ShapeReply(raw string) (string, bool) {
	sentences := splitSentences(strings.TrimSpace(raw))
	if len(sentences) > maxReplySentences {
		sentences = sentences[:maxReplySentences]
	}
	text := strings.Join(sentences, " ")

	complete := strings.Contains(text, EndMarker)
	if complete {
		// re-collapse whitespace: a stripped mid-text marker would otherwise
		// leave a doubled interior space
		text = strings.Join(strings.Fields(strings.ReplaceAll(text, EndMarker, "")), " ")
	}
	return text, complete
}

// splitSentences splits on sentence-terminal punctuation (. ! ?) followed by
// whitespace. The terminal punctuation stays with its sentence. Empty input
// yields no sentences.
func splitSentences(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	runes := []rune(s)
	for i := 0; i < len(runes)-1; i++ {
		if !isTerminal(runes[i]) || !isSpace(runes[i+1]) {
			continue
		}
		out = append(out, strings.TrimSpace(string(runes[start:i+1])))
		// skip the whitespace run to the start of the next sentence
		j := i + 1
		for j < len(runes) && isSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(runes) {
		if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
			out = append(out, tail)
		}
	}
	return out
}

func isTerminal(r rune) bool { return r == '.' || r == '!' || r == '?' }

func isSpace(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }
