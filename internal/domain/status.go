package domain

import (
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// UnknownStatus is reported for rows without a status value.
const UnknownStatus = "unknown"

// Pipeline is the ordered list of fulfillment stages an order moves through.
// Labels are case-folded and trimmed; ranks are 1-indexed.
type Pipeline struct {
	labels          []string
	ranks           map[string]int
	unranked        map[string]int
	defaultProgress int
}

// NewPipeline builds the label to rank index once. Duplicate labels keep
// their first position. unranked assigns a fixed progress to specific
// labels outside the pipeline; any other label gets defaultProgress.
func NewPipeline(labels []string, unranked map[string]int, defaultProgress int) *Pipeline {
	p := &Pipeline{
		labels:          make([]string, 0, len(labels)),
		ranks:           make(map[string]int, len(labels)),
		unranked:        make(map[string]int, len(unranked)),
		defaultProgress: clampPercent(defaultProgress),
	}

	for _, raw := range labels {
		label := NormalizeStatus(raw)
		if label == "" {
			continue
		}
		if _, dup := p.ranks[label]; dup {
			continue
		}
		p.labels = append(p.labels, label)
		p.ranks[label] = len(p.labels)
	}

	for raw, value := range unranked {
		label := NormalizeStatus(raw)
		if _, ranked := p.ranks[label]; ranked || label == "" {
			continue
		}
		p.unranked[label] = clampPercent(value)
	}

	return p
}

// NormalizeStatus applies the same folding the dataset applies to the status column.
func NormalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

// Len returns the number of stages.
func (p *Pipeline) Len() int {
	return len(p.labels)
}

// Labels returns a copy of the stage labels in order.
func (p *Pipeline) Labels() []string {
	return append([]string(nil), p.labels...)
}

// Flow returns the labels title-cased for display, e.g. "Ready To Deliver".
func (p *Pipeline) Flow() []string {
	caser := cases.Title(language.English)
	out := make([]string, len(p.labels))
	for i, label := range p.labels {
		out[i] = caser.String(label)
	}
	return out
}

// Rank returns the 1-indexed stage of status, or 0 and false when the
// status is not part of the pipeline.
func (p *Pipeline) Rank(status string) (int, bool) {
	rank, ok := p.ranks[NormalizeStatus(status)]
	return rank, ok
}

// Contains reports whether status is a pipeline stage.
func (p *Pipeline) Contains(status string) bool {
	_, ok := p.Rank(status)
	return ok
}

// Progress maps status onto a completion percentage.
func (p *Pipeline) Progress(status string) int {
	if rank, ok := p.Rank(status); ok {
		return int(math.Round(100 * float64(rank) / float64(len(p.labels))))
	}
	if value, ok := p.unranked[NormalizeStatus(status)]; ok {
		return value
	}
	return p.defaultProgress
}

func clampPercent(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
