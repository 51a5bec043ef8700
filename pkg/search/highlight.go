package search

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// HighlightedWords parses a highlighted segment as returned by ts_headline
// and returns the index of every hit among the segment's whitespace-separated
// words. phraseLen is the number of words in the query: a run of consecutive
// marked words holds one hit every phraseLen words, at the first word of
// each, so a repeated term or phrase counts every time it is spoken.
// Punctuation-only words neither count nor break a run.
func HighlightedWords(fragment string, phraseLen int) ([]int, error) {
	if phraseLen < 1 {
		phraseLen = 1
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("failed to parse highlight: %w", err)
	}

	var s wordScanner
	s.walk(doc.Find("body"), false)

	var hits []int
	run := 0
	for i, w := range s.words {
		if !w.alnum {
			continue
		}
		if !w.marked {
			run = 0
			continue
		}
		if run%phraseLen == 0 {
			hits = append(hits, i)
		}
		run++
	}
	return hits, nil
}

// PhraseLen counts the words of a query the way the text search tokenizer
// splits them, on anything that is not a letter or digit.
func PhraseLen(term string) int {
	return len(strings.FieldsFunc(term, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}))
}

type scannedWord struct {
	marked bool
	alnum  bool
}

// wordScanner splits text into words across node boundaries and remembers
// which words carry any marked character.
type wordScanner struct {
	words  []scannedWord
	inWord bool
}

func (w *wordScanner) walk(sel *goquery.Selection, marked bool) {
	sel.Contents().Each(func(_ int, node *goquery.Selection) {
		switch goquery.NodeName(node) {
		case "#text":
			w.feed(node.Text(), marked)
		case "mark":
			w.walk(node, true)
		default:
			w.walk(node, marked)
		}
	})
}

func (w *wordScanner) feed(text string, marked bool) {
	for _, r := range text {
		if unicode.IsSpace(r) {
			w.inWord = false
			continue
		}
		if !w.inWord {
			w.words = append(w.words, scannedWord{})
			w.inWord = true
		}
		cur := &w.words[len(w.words)-1]
		if marked {
			cur.marked = true
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.alnum = true
		}
	}
}

// wordTimes maps word indices to start times. Indices past the end are
// clamped to the last word; a segment without words falls back to its start.
func wordTimes(indices []int, starts []float64, segmentStart float64) []float64 {
	times := make([]float64, 0, len(indices))
	for _, i := range indices {
		if len(starts) == 0 {
			times = append(times, segmentStart)
			continue
		}
		if i >= len(starts) {
			i = len(starts) - 1
		}
		times = append(times, starts[i])
	}
	return times
}
