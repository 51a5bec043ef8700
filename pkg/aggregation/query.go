package aggregation

import (
	"fmt"
	"regexp"
	"strings"

	"podcast-search/pkg/binning"
)

// Mode selects how a query is searched and aggregated.
type Mode int

const (
	// ModeTerm is exact or phrase search yielding discrete hit timestamps,
	// aggregated by counting.
	ModeTerm Mode = iota
	// ModeSemantic is embedding-similarity search yielding scored spans,
	// aggregated by overlap-weighted averaging.
	ModeSemantic
)

func (m Mode) String() string {
	switch m {
	case ModeTerm:
		return "term"
	case ModeSemantic:
		return "semantic"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses the wire name of a mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "term", "":
		return ModeTerm, nil
	case "semantic":
		return ModeSemantic, nil
	default:
		return 0, fmt.Errorf("unknown query mode %q", s)
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	switch m {
	case ModeTerm, ModeSemantic:
		return []byte(m.String()), nil
	default:
		return nil, fmt.Errorf("unknown query mode %d", int(m))
	}
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// TermQuery is one entry of the active term set.
type TermQuery struct {
	Term    string `json:"term"`
	ColorID int    `json:"color_id"`
	Mode    Mode   `json:"mode"`
}

var edgePunctuation = regexp.MustCompile(`(^[^\p{L}\p{M}\p{N}_])|([^\p{L}\p{M}\p{N}_]$)`)

// NormalizeTerm strips one leading and one trailing character that is not a
// letter, digit or underscore in any script, and lowercases the rest:
// `"Hello,` becomes `hello`, `Café` stays `café`.
func NormalizeTerm(term string) string {
	return strings.ToLower(edgePunctuation.ReplaceAllString(strings.TrimSpace(term), ""))
}

// Normalize prepares queries for searching. Term-mode queries are normalized
// with NormalizeTerm, semantic prompts are only trimmed. Empty queries are
// dropped and duplicates of the same mode and text keep their first entry.
func Normalize(queries []TermQuery) []TermQuery {
	type key struct {
		mode Mode
		term string
	}
	seen := make(map[key]bool, len(queries))
	out := make([]TermQuery, 0, len(queries))

	for _, q := range queries {
		switch q.Mode {
		case ModeTerm:
			q.Term = NormalizeTerm(q.Term)
		default:
			q.Term = strings.TrimSpace(q.Term)
		}
		if q.Term == "" {
			continue
		}
		k := key{q.Mode, q.Term}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, q)
	}
	return out
}

// Positions is the raw result of searching one query in one episode. It is
// either Hits or Spans.
type Positions interface {
	positions()
}

// Hits are the timestamps of lexical matches.
type Hits []float64

// Spans are scored stretches of the episode from similarity search.
type Spans []binning.Span

func (Hits) positions()  {}
func (Spans) positions() {}
