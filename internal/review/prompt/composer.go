// Package prompt builds the (instructions, payload) pair sent for every agent.
// Building is deterministic: the same inputs always produce the same text.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"ai-review-be/internal/constant"
	"ai-review-be/internal/entity"
	"ai-review-be/internal/review/chunker"
	"ai-review-be/pkg/utils"
)

const (
	findingQuotePreview       = 100
	findingDescriptionPreview = 200
)

// Composer carries the per-job user directives (steering memo and focus hints).
type Composer struct {
	steering string
	focus    []string
}

func NewComposer(cfg entity.ReviewConfig) *Composer {
	return &Composer{
		steering: strings.TrimSpace(cfg.Steering),
		focus:    cfg.FocusHints,
	}
}

func (c *Composer) directives() string {
	var sb strings.Builder
	if c.steering != "" {
		fmt.Fprintf(&sb, constant.SteeringTemplate, c.steering)
	}
	if len(c.focus) > 0 {
		fmt.Fprintf(&sb, constant.FocusTemplate, strings.Join(c.focus, ", "))
	}
	return sb.String()
}

func briefingContext(b *entity.BriefingOutput) string {
	if b == nil {
		return constant.NoBriefingContext
	}
	return b.FormatForPrompt()
}

func documentText(doc *entity.Document) string {
	if doc.Title() == "" {
		return doc.FullText()
	}
	return "# " + doc.Title() + "\n\n" + doc.FullText()
}

func (c *Composer) Briefing(doc *entity.Document) (string, string) {
	return constant.BriefingSystemPrompt,
		fmt.Sprintf(constant.BriefingUserPrompt, documentText(doc), c.directives())
}

func (c *Composer) Clarity(chunk chunker.Chunk, briefing *entity.BriefingOutput) (string, string) {
	return constant.ClaritySystemPrompt,
		fmt.Sprintf(constant.ClarityUserPrompt,
			briefingContext(briefing), chunk.Index+1, chunk.Total, chunk.Text(), c.directives())
}

func (c *Composer) RigorFind(chunk chunker.Chunk, briefing *entity.BriefingOutput) (string, string) {
	section := "Untitled"
	if chunk.Section != nil && chunk.Section.Title != "" {
		section = chunk.Section.Title
	}
	return constant.RigorFindSystemPrompt,
		fmt.Sprintf(constant.RigorFindUserPrompt,
			briefingContext(briefing), section, chunk.Index+1, chunk.Total, chunk.Text(), c.directives())
}

// RigorRewrite lists the issues with their batch index so edits can be matched back.
func (c *Composer) RigorRewrite(findings []entity.Finding, doc *entity.Document) (string, string) {
	var sb strings.Builder
	for i, f := range findings {
		a := f.PrimaryAnchor()
		fmt.Fprintf(&sb, "[%d] [%s] %s\n", i, strings.ToUpper(string(f.Severity)), f.Title)
		fmt.Fprintf(&sb, "  Paragraph: %s\n", a.ParagraphID)
		fmt.Fprintf(&sb, "  Text: %q\n", a.QuotedText)
		fmt.Fprintf(&sb, "  Issue: %s\n\n", f.Description)
	}
	return constant.RigorRewriteSystemPrompt,
		fmt.Sprintf(constant.RigorRewriteUserPrompt, strings.TrimSpace(sb.String()), doc.TextWithIDs())
}

func (c *Composer) EvidenceTargets(doc *entity.Document) (string, string) {
	return constant.EvidenceTargetSystemPrompt,
		fmt.Sprintf(constant.EvidenceTargetUserPrompt, documentText(doc))
}

func (c *Composer) EvidenceQueries(targets entity.EvidenceTargets) (string, string) {
	return constant.EvidenceQuerySystemPrompt,
		fmt.Sprintf(constant.EvidenceQueryUserPrompt, mustJSON(targets))
}

func (c *Composer) EvidenceSynthesis(targets entity.EvidenceTargets, results []entity.SearchResult, doc *entity.Document) (string, string) {
	usable := make([]entity.SearchResult, 0, len(results))
	for _, r := range results {
		if !r.Failed {
			usable = append(usable, r)
		}
	}
	return constant.EvidenceSynthesisSystemPrompt,
		fmt.Sprintf(constant.EvidenceSynthesisUserPrompt, mustJSON(targets), mustJSON(usable), doc.TextWithIDs())
}

func (c *Composer) Adversary(doc *entity.Document, briefing *entity.BriefingOutput, rigor []entity.Finding, evidence entity.EvidenceBundle) (string, string) {
	return constant.AdversarySystemPrompt,
		fmt.Sprintf(constant.AdversaryUserPrompt,
			briefingContext(briefing), FormatFindings(rigor), evidence.FormatForPrompt(), doc.TextWithIDs(), c.directives())
}

// Reconcile renders each cluster of matching panel critiques under its index.
func (c *Composer) Reconcile(clusters [][]entity.Finding) (string, string) {
	var sb strings.Builder
	for i, members := range clusters {
		fmt.Fprintf(&sb, "<cluster index=\"%d\" votes=\"%d\">\n", i, len(members))
		for _, f := range members {
			fmt.Fprintf(&sb, "- (%s) %s: %s\n", f.Backend, f.Title, f.Description)
		}
		sb.WriteString("</cluster>\n")
	}
	return constant.ReconcileSystemPrompt,
		fmt.Sprintf(constant.ReconcileUserPrompt, strings.TrimSpace(sb.String()))
}

// FormatFindings is the compact listing of earlier findings shown to later agents.
func FormatFindings(findings []entity.Finding) string {
	if len(findings) == 0 {
		return constant.NoFindings
	}
	var sb strings.Builder
	for _, f := range findings {
		a := f.PrimaryAnchor()
		fmt.Fprintf(&sb, "[%s] %s\n", strings.ToUpper(string(f.Severity)), f.Title)
		fmt.Fprintf(&sb, "  ID: %s\n", f.ID)
		fmt.Fprintf(&sb, "  Paragraph: %s\n", a.ParagraphID)
		fmt.Fprintf(&sb, "  Text: %q\n", utils.Truncate(a.QuotedText, findingQuotePreview))
		fmt.Fprintf(&sb, "  Issue: %s\n\n", utils.Truncate(f.Description, findingDescriptionPreview))
	}
	return strings.TrimSpace(sb.String())
}

func mustJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
