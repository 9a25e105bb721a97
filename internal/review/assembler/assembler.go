// Package assembler merges the findings of every track into the final list.
// It makes no external calls and its output depends only on the input set,
// never on arrival order.
package assembler

import (
	"fmt"
	"sort"

	"ai-review-be/internal/entity"
)

type Options struct {
	// StrictSentenceOverlap additionally requires equal sentence ids when both
	// overlapping anchors carry one.
	StrictSentenceOverlap bool
	// ParagraphIndex maps paragraph ids to their document position. Without
	// it paragraphs are ordered by id.
	ParagraphIndex map[string]int
}

// ParagraphIndex builds the document position table for Options.
func ParagraphIndex(doc *entity.Document) map[string]int {
	idx := make(map[string]int, len(doc.Paragraphs()))
	for i, p := range doc.Paragraphs() {
		idx[p.ID] = i
	}
	return idx
}

// Assemble resolves overlap conflicts by track rank and returns the survivors
// in presentation order. It panics on a finding without anchors.
func Assemble(findings []entity.Finding, opts Options) []entity.Finding {
	for _, f := range findings {
		if len(f.Anchors) == 0 {
			panic(fmt.Sprintf("assembler: finding %s from %s has no anchors", f.ID, f.Agent))
		}
	}

	candidates := append([]entity.Finding(nil), findings...)
	sort.SliceStable(candidates, func(i, j int) bool {
		return priorityLess(candidates[i], candidates[j])
	})

	kept := make([]entity.Finding, 0, len(candidates))
	for _, c := range candidates {
		conflict := false
		for _, k := range kept {
			if overlaps(c, k, opts) {
				conflict = true
				break
			}
		}
		if !conflict {
			kept = append(kept, c)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		oi, oj := kept[i].Agent.PresentationOrder(), kept[j].Agent.PresentationOrder()
		if oi != oj {
			return oi < oj
		}
		return documentLess(kept[i], kept[j], opts.ParagraphIndex)
	})
	return kept
}

// documentLess orders findings of one track by where they point in the
// document, so the output does not depend on which stage finished first.
func documentLess(a, b entity.Finding, index map[string]int) bool {
	pa, pb := a.PrimaryAnchor(), b.PrimaryAnchor()
	if pa.ParagraphID != pb.ParagraphID {
		ia, oka := index[pa.ParagraphID]
		ib, okb := index[pb.ParagraphID]
		if oka && okb {
			return ia < ib
		}
		return pa.ParagraphID < pb.ParagraphID
	}
	if pa.Start != pb.Start {
		return pa.Start < pb.Start
	}
	return a.ID < b.ID
}

func priorityLess(a, b entity.Finding) bool {
	if ra, rb := a.Agent.Rank(), b.Agent.Rank(); ra != rb {
		return ra < rb
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.ID < b.ID
}

func overlaps(a, b entity.Finding, opts Options) bool {
	for _, x := range a.Anchors {
		for _, y := range b.Anchors {
			if !x.Overlaps(y) {
				continue
			}
			if opts.StrictSentenceOverlap && x.SentenceID != "" && y.SentenceID != "" && x.SentenceID != y.SentenceID {
				continue
			}
			return true
		}
	}
	return false
}

// Summarize counts the findings per track, severity and category.
func Summarize(findings []entity.Finding) entity.ReviewSummary {
	s := entity.ReviewSummary{
		TotalFindings: len(findings),
		ByTrack:       make(map[entity.Track]int),
		BySeverity:    make(map[entity.Severity]int),
		ByCategory:    make(map[entity.Category]int),
	}
	for _, f := range findings {
		s.ByTrack[f.Track()]++
		s.BySeverity[f.Severity]++
		s.ByCategory[f.Category]++
	}
	return s
}
