// Package keyword provides BM25 full-text search over chunk documents.
package keyword

import "strings"

const (
	fieldHeadlines = "headlines"
	fieldContent   = "content"
)

// Document is the indexed form of a chunk. Headlines holds the markdown
// heading lines of the chunk so matches there can be weighted higher.
type Document struct {
	Headlines string `json:"headlines"`
	Content   string `json:"content"`
}

// NewDocument builds the indexed document for chunk content.
func NewDocument(content string, markdown bool) Document {
	doc := Document{Content: content}
	if !markdown {
		return doc
	}
	var heads []string
	inFence := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if !inFence && strings.HasPrefix(trimmed, "#") {
			heads = append(heads, strings.TrimSpace(strings.TrimLeft(trimmed, "#")))
		}
	}
	doc.Headlines = strings.Join(heads, "\n")
	return doc
}

// Options tunes scoring. Zero values select the defaults.
type Options struct {
	// HeadlineBoost multiplies the score contribution from heading matches.
	HeadlineBoost float64
	// PhraseBoost multiplies the score when the query appears as a phrase.
	PhraseBoost float64
	// Fuzzy enables typo tolerant matching within Fuzziness edits.
	Fuzzy     bool
	Fuzziness int
}

func (o Options) withDefaults() Options {
	if o.HeadlineBoost <= 0 {
		o.HeadlineBoost = 5
	}
	if o.PhraseBoost <= 0 {
		o.PhraseBoost = 1.5
	}
	if o.Fuzziness <= 0 {
		o.Fuzziness = 1
	}
	return o
}

// Result is a single keyword search hit.
type Result struct {
	ID    string
	Score float64
}
