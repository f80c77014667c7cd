// Package mining clusters free-text log messages into templates.
//
// The miner is a bounded prefix tree in the style of the Drain
// algorithm: messages are masked, tokenized, routed by token count and
// leading tokens, then matched against leaf clusters by positional
// similarity. Token positions that vary across a cluster's members
// generalize to the <*> wildcard.
//
// A miner is cheap to construct and meant to live for exactly one
// analysis call. Cluster assignment is deterministic for a fixed
// insertion order but not invariant to reordering; callers that need
// order-independent identity should key on the returned template text.
package mining

import (
	"strings"
)

const (
	// Wildcard is the generalized-token placeholder in templates.
	Wildcard = "<*>"

	// emptyToken stands in for empty or whitespace-only messages.
	emptyToken = "<EMPTY>"
)

// Config holds the miner's tuning knobs.
type Config struct {
	// TreeDepth bounds tree descent: the count level plus TreeDepth-2
	// token levels before the leaf. Minimum effective value is 2.
	TreeDepth int

	// SimilarityThreshold (0-1) is the minimum positional similarity
	// for a message to join an existing cluster.
	SimilarityThreshold float64

	// MaxChildren bounds the branches of one internal node; overflow
	// routes through the wildcard branch.
	MaxChildren int

	// MaxClusters bounds total clusters; overflow evicts the
	// least-recently-updated cluster.
	MaxClusters int
}

// DefaultConfig returns the standard miner configuration.
func DefaultConfig() Config {
	return Config{
		TreeDepth:           4,
		SimilarityThreshold: 0.4,
		MaxChildren:         100,
		MaxClusters:         1000,
	}
}

func (c Config) withDefaults() Config {
	if c.TreeDepth < 2 {
		c.TreeDepth = DefaultConfig().TreeDepth
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		c.SimilarityThreshold = DefaultConfig().SimilarityThreshold
	}
	if c.MaxChildren <= 0 {
		c.MaxChildren = DefaultConfig().MaxChildren
	}
	if c.MaxClusters <= 0 {
		c.MaxClusters = DefaultConfig().MaxClusters
	}
	return c
}

type cluster struct {
	tokens     []string
	size       int
	lastUpdate uint64
	leaf       *node
}

func (c *cluster) template() string {
	return strings.Join(c.tokens, " ")
}

type node struct {
	children map[string]*node
	clusters []*cluster
}

func newNode() *node {
	return &node{children: make(map[string]*node)}
}

// Miner is an incremental template miner. Not safe for concurrent use;
// instantiate one per analysis call.
type Miner struct {
	cfg      Config
	masker   *Masker
	byLength map[int]*node
	clusters []*cluster
	seq      uint64
}

// NewMiner creates a Miner with the given configuration and the
// default mask rules.
func NewMiner(cfg Config) *Miner {
	return NewMinerWithMasker(cfg, NewMasker())
}

// NewMinerWithMasker creates a Miner using a caller-supplied masker.
func NewMinerWithMasker(cfg Config, masker *Masker) *Miner {
	return &Miner{
		cfg:      cfg.withDefaults(),
		masker:   masker,
		byLength: make(map[int]*node),
	}
}

// Add clusters one message and returns its cluster's template.
// It always succeeds: unmatched messages start a new cluster, and
// empty messages map to a degenerate single-token template.
func (m *Miner) Add(message string) string {
	masked := m.masker.Mask(message)
	tokens := strings.Fields(masked)
	if len(tokens) == 0 {
		tokens = []string{emptyToken}
	}

	leaf := m.descend(tokens)
	m.seq++

	best, bestSim := m.bestCluster(leaf, tokens)
	if best != nil && bestSim >= m.cfg.SimilarityThreshold {
		m.merge(best, tokens)
		return best.template()
	}

	c := &cluster{
		tokens:     append([]string(nil), tokens...),
		size:       1,
		lastUpdate: m.seq,
		leaf:       leaf,
	}
	leaf.clusters = append(leaf.clusters, c)
	m.clusters = append(m.clusters, c)
	m.evictOverflow()
	return c.template()
}

// ClusterCount returns the number of live clusters.
func (m *Miner) ClusterCount() int {
	return len(m.clusters)
}

// Templates returns the current template of every live cluster, in
// creation order.
func (m *Miner) Templates() []string {
	out := make([]string, 0, len(m.clusters))
	for _, c := range m.clusters {
		out = append(out, c.template())
	}
	return out
}

// descend walks count level then token levels, creating nodes on the
// way, and returns the leaf the token sequence belongs to.
func (m *Miner) descend(tokens []string) *node {
	cur, ok := m.byLength[len(tokens)]
	if !ok {
		cur = newNode()
		m.byLength[len(tokens)] = cur
	}

	levels := m.cfg.TreeDepth - 2
	if levels > len(tokens) {
		levels = len(tokens)
	}

	for i := 0; i < levels; i++ {
		key := tokens[i]
		// Tokens still carrying digits vary too much to branch on.
		if hasDigit(key) {
			key = Wildcard
		}
		child, ok := cur.children[key]
		if !ok {
			if key != Wildcard && len(cur.children) >= m.cfg.MaxChildren {
				key = Wildcard
				child, ok = cur.children[key]
			}
			if !ok {
				child = newNode()
				cur.children[key] = child
			}
		}
		cur = child
	}
	return cur
}

// bestCluster returns the most similar cluster at the leaf, comparing
// only clusters of equal token count. First-seen wins ties so results
// stay deterministic for a fixed insertion order.
func (m *Miner) bestCluster(leaf *node, tokens []string) (*cluster, float64) {
	var best *cluster
	bestSim := -1.0
	for _, c := range leaf.clusters {
		if len(c.tokens) != len(tokens) {
			continue
		}
		sim := similarity(c.tokens, tokens)
		if sim > bestSim {
			best = c
			bestSim = sim
		}
	}
	return best, bestSim
}

// similarity is the fraction of positions where the template token
// equals the message token; wildcards count as matches.
func similarity(template, tokens []string) float64 {
	if len(template) == 0 {
		return 0
	}
	matched := 0
	for i, tok := range template {
		if tok == tokens[i] || tok == Wildcard {
			matched++
		}
	}
	return float64(matched) / float64(len(template))
}

// merge folds a token sequence into a cluster, generalizing positions
// that differ to the wildcard.
func (m *Miner) merge(c *cluster, tokens []string) {
	for i, tok := range c.tokens {
		if tok != tokens[i] && tok != Wildcard {
			c.tokens[i] = Wildcard
		}
	}
	c.size++
	c.lastUpdate = m.seq
}

// evictOverflow drops the least-recently-updated cluster once the
// total exceeds MaxClusters.
func (m *Miner) evictOverflow() {
	if len(m.clusters) <= m.cfg.MaxClusters {
		return
	}

	oldest := 0
	for i, c := range m.clusters {
		if c.lastUpdate < m.clusters[oldest].lastUpdate {
			oldest = i
		}
	}

	victim := m.clusters[oldest]
	m.clusters = append(m.clusters[:oldest], m.clusters[oldest+1:]...)

	leafClusters := victim.leaf.clusters
	for i, c := range leafClusters {
		if c == victim {
			victim.leaf.clusters = append(leafClusters[:i], leafClusters[i+1:]...)
			break
		}
	}
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
