package adversary

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"ai-review-be/internal/config"
	"ai-review-be/internal/entity"
	"ai-review-be/internal/gateway"
	"ai-review-be/internal/review/stage"
	"ai-review-be/pkg/utils"

	"golang.org/x/sync/errgroup"
)

// Cluster is a group of overlapping panel candidates.
type Cluster struct {
	Members        []entity.Finding
	Representative entity.Finding
	Votes          int
}

type reconcileOutput struct {
	Clusters []struct {
		Index       *int   `json:"cluster_index"`
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"clusters" validate:"required"`
}

// Panel sends the same critique request to every backend in parallel and
// reconciles the answers. Backends that fail are left out of the vote; Panel
// only fails when none answered.
func Panel(ctx context.Context, deps stage.Deps, in Input, backends []config.PanelBackend) ([]entity.Finding, error) {
	if len(backends) == 0 {
		return nil, fmt.Errorf("adversary panel: no backends configured")
	}

	perBackend := make([][]entity.Finding, len(backends))
	var (
		mu   sync.Mutex
		errs []error
	)

	var g errgroup.Group
	for i, b := range backends {
		g.Go(func() error {
			raws, err := critique(ctx, deps, in, entity.AgentAdversaryPanel, b.Model)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("backend %s: %w", b.Name, err))
				mu.Unlock()
				deps.Logger.Warn("Adversary", "Panel backend failed, excluded from voting", map[string]interface{}{
					"backend": b.Name, "model": b.Model, "error": err.Error(),
				})
				return nil
			}
			found := stage.Collect(in.Doc, entity.AgentAdversaryPanel, raws, nil, deps.Logger, categories...)
			for j := range found {
				found[j].Backend = b.Name
			}
			perBackend[i] = found
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) == len(backends) {
		return nil, fmt.Errorf("adversary panel: every backend failed: %w", errors.Join(errs...))
	}

	var candidates []entity.Finding
	for _, found := range perBackend {
		candidates = append(candidates, found...)
	}

	clusters := Reconcile(candidates)
	if deps.Settings.PanelReconcileWithModel {
		rewordClusters(ctx, deps, clusters)
	}

	out := make([]entity.Finding, len(clusters))
	for i, c := range clusters {
		out[i] = c.Finding()
	}
	deps.Logger.Info("Adversary", "Panel reconciled", map[string]interface{}{
		"backends": len(backends) - len(errs), "candidates": len(candidates), "findings": len(out),
	})
	return out, nil
}

// Reconcile groups overlapping candidates. Candidates are first put in a
// canonical order so the clusters, their representatives and their order do
// not depend on the order the backends answered in. Each cluster is seeded by
// its canonically first member and a candidate joins only a cluster whose seed
// it overlaps, so chains of partial overlaps do not merge.
func Reconcile(candidates []entity.Finding) []Cluster {
	sorted := append([]entity.Finding(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return canonicalLess(sorted[i], sorted[j])
	})

	var clusters []Cluster
	for _, f := range sorted {
		joined := false
		for i := range clusters {
			if clusters[i].Members[0].Overlaps(f) {
				clusters[i].Members = append(clusters[i].Members, f)
				joined = true
				break
			}
		}
		if !joined {
			clusters = append(clusters, Cluster{Members: []entity.Finding{f}})
		}
	}

	for i := range clusters {
		c := &clusters[i]
		backends := make(map[string]bool)
		for _, m := range c.Members {
			backends[m.Backend] = true
		}
		c.Votes = len(backends)
		c.Representative = representative(c.Members)
	}
	return clusters
}

// Finding is the representative carrying the cluster's votes and the union of
// its members' citations.
func (c Cluster) Finding() entity.Finding {
	f := c.Representative
	f.Agent = entity.AgentAdversaryPanel
	votes := min(max(c.Votes, 1), config.MaxPanelSize)
	f.Votes = &votes

	seen := make(map[string]bool)
	var citations []string
	for _, m := range c.Members {
		for _, cite := range m.Citations {
			if !seen[cite] {
				seen[cite] = true
				citations = append(citations, cite)
			}
		}
	}
	sort.Strings(citations)
	f.Citations = citations
	return f
}

// representative picks the highest severity, then the highest confidence,
// then the canonically smallest member.
func representative(members []entity.Finding) entity.Finding {
	best := members[0]
	for _, m := range members[1:] {
		switch {
		case m.Severity.Weight() != best.Severity.Weight():
			if m.Severity.Weight() > best.Severity.Weight() {
				best = m
			}
		case m.Confidence != best.Confidence:
			if m.Confidence > best.Confidence {
				best = m
			}
		case canonicalLess(m, best):
			best = m
		}
	}
	return best
}

func canonicalLess(a, b entity.Finding) bool {
	pa, pb := a.PrimaryAnchor(), b.PrimaryAnchor()
	if pa.ParagraphID != pb.ParagraphID {
		return pa.ParagraphID < pb.ParagraphID
	}
	if pa.Start != pb.Start {
		return pa.Start < pb.Start
	}
	if pa.End != pb.End {
		return pa.End < pb.End
	}
	if pa.QuotedText != pb.QuotedText {
		return pa.QuotedText < pb.QuotedText
	}
	if a.Backend != b.Backend {
		return a.Backend < b.Backend
	}
	if a.Title != b.Title {
		return a.Title < b.Title
	}
	if a.Description != b.Description {
		return a.Description < b.Description
	}
	return a.ID < b.ID
}

// rewordClusters asks the model for merged wording of multi-vote clusters. Any
// failure keeps the representative's wording; votes never change.
func rewordClusters(ctx context.Context, deps stage.Deps, clusters []Cluster) {
	var multi []int
	var groups [][]entity.Finding
	for i, c := range clusters {
		if len(c.Members) > 1 {
			multi = append(multi, i)
			groups = append(groups, c.Members)
		}
	}
	if len(groups) == 0 {
		return
	}

	instructions, payload := deps.Composer.Reconcile(groups)
	var out reconcileOutput
	if err := deps.Invoke(ctx, gateway.Request{
		Agent:        entity.AgentAdversaryReconcile,
		Instructions: instructions,
		Payload:      payload,
	}, &out); err != nil {
		deps.Logger.Warn("Adversary", "Reconcile wording failed, keeping representative wording", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	for _, c := range out.Clusters {
		if c.Index == nil || *c.Index < 0 || *c.Index >= len(multi) {
			continue
		}
		title := strings.TrimSpace(c.Title)
		if title == "" {
			continue
		}
		rep := &clusters[multi[*c.Index]].Representative
		rep.Title = utils.Truncate(title, entity.MaxTitleLength)
		if d := strings.TrimSpace(c.Description); d != "" {
			rep.Description = d
		}
	}
}
