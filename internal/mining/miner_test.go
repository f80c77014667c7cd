package mining

import (
	"fmt"
	"strings"
	"testing"
)

func TestMinerClustersMaskedVariants(t *testing.T) {
	t.Parallel()
	m := NewMiner(DefaultConfig())

	templates := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		tpl := m.Add(fmt.Sprintf("User %d logged in from 10.0.%d.%d", 1000+i, i%250, i%200))
		templates[tpl] = struct{}{}
	}
	for i := 0; i < 50; i++ {
		tpl := m.Add(fmt.Sprintf("Connection timeout to host-%d:5432 after 30000ms", i))
		templates[tpl] = struct{}{}
	}

	if len(templates) > 5 {
		t.Errorf("got %d templates, want <= 5: %v", len(templates), templates)
	}
	if m.ClusterCount() > 5 {
		t.Errorf("got %d clusters, want <= 5", m.ClusterCount())
	}
}

func TestMinerWildcardGeneralization(t *testing.T) {
	t.Parallel()
	m := NewMiner(DefaultConfig())

	m.Add("cache node alpha rebalanced")
	tpl := m.Add("cache node bravo rebalanced")

	if !strings.Contains(tpl, Wildcard) {
		t.Errorf("template %q should contain %s for the varying position", tpl, Wildcard)
	}
	if m.ClusterCount() != 1 {
		t.Errorf("got %d clusters, want 1", m.ClusterCount())
	}
}

func TestMinerDissimilarMessagesSplit(t *testing.T) {
	t.Parallel()
	m := NewMiner(DefaultConfig())

	m.Add("disk usage above threshold on volume data")
	m.Add("certificate expires soon for endpoint internal")

	if m.ClusterCount() != 2 {
		t.Errorf("got %d clusters, want 2", m.ClusterCount())
	}
}

func TestMinerEmptyMessage(t *testing.T) {
	t.Parallel()
	m := NewMiner(DefaultConfig())

	tpl := m.Add("")
	if tpl == "" {
		t.Fatal("empty message must still yield a template")
	}
	if tpl != m.Add("   \t  ") {
		t.Error("whitespace-only message should join the degenerate cluster")
	}
	if m.ClusterCount() != 1 {
		t.Errorf("got %d clusters, want 1", m.ClusterCount())
	}
}

func TestMinerDeterministicForFixedOrder(t *testing.T) {
	t.Parallel()
	messages := []string{
		"job 12 finished in 300ms",
		"job 13 finished in 420ms",
		"queue depth 9 exceeds limit 5",
		"job 14 finished in 510ms",
		"queue depth 11 exceeds limit 5",
	}

	run := func() []string {
		m := NewMiner(DefaultConfig())
		out := make([]string, 0, len(messages))
		for _, msg := range messages {
			out = append(out, m.Add(msg))
		}
		return out
	}

	first := run()
	second := run()
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("run mismatch at %d: %q vs %q", i, first[i], second[i])
		}
	}
}

func TestMinerMaxClustersEviction(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.MaxClusters = 10
	m := NewMiner(cfg)

	// Distinct shapes that cannot merge: varying token counts.
	for i := 0; i < 25; i++ {
		m.Add("shape " + strings.Repeat("tok ", i) + "end")
	}

	if m.ClusterCount() > cfg.MaxClusters {
		t.Errorf("cluster count %d exceeds cap %d", m.ClusterCount(), cfg.MaxClusters)
	}
}

func TestMinerEvictsLeastRecentlyUpdated(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.MaxClusters = 2
	m := NewMiner(cfg)

	m.Add("alpha one only")             // cluster A
	m.Add("totally different shape of message here") // cluster B
	m.Add("alpha one only")             // refresh A; B is now stalest

	m.Add("third unique form") // forces eviction of B

	for _, tpl := range m.Templates() {
		if strings.HasPrefix(tpl, "totally") {
			t.Errorf("stalest cluster survived eviction: %v", m.Templates())
		}
	}
	if m.ClusterCount() != 2 {
		t.Errorf("got %d clusters, want 2", m.ClusterCount())
	}
}

func TestMinerSimilarityThreshold(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.SimilarityThreshold = 0.9
	m := NewMiner(cfg)

	m.Add("request served from region east zone a")
	m.Add("request served for region west zone b")

	// At 0.9 these 7-token messages (3 differing positions) must split.
	if m.ClusterCount() != 2 {
		t.Errorf("got %d clusters, want 2 at high threshold", m.ClusterCount())
	}
}
