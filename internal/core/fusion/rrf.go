// Package fusion merges the keyword and vector result lists into one
// ordering with reciprocal rank fusion. Pure functions, no I/O.
package fusion

import (
	"sort"

	"github.com/kirillkom/docindex/internal/core/domain"
)

const DefaultK = 60

type candidate struct {
	hit     domain.RankedHit
	score   float64
	kwRank  int
	vecRank int
}

// ReciprocalRank scores every distinct key as the sum of 1/(k+rank) over
// each list it appears in, rank 1-based. Larger k flattens the influence
// of top ranks. Ties break deterministically: lower keyword rank first,
// then lower vector rank, then key order.
func ReciprocalRank(keyword, vector []domain.RankedHit, k int) []domain.RankedHit {
	if k <= 0 {
		k = DefaultK
	}

	acc := make(map[string]*candidate, len(keyword)+len(vector))
	absent := len(keyword) + len(vector) + 1

	get := func(hit domain.RankedHit) *candidate {
		key := hit.Key()
		c, ok := acc[key]
		if !ok {
			c = &candidate{hit: hit, kwRank: absent, vecRank: absent}
			acc[key] = c
		}
		if c.hit.Text == "" && hit.Text != "" {
			c.hit.Text = hit.Text
		}
		return c
	}

	for i, hit := range keyword {
		c := get(hit)
		c.kwRank = i + 1
		c.score += 1.0 / float64(k+i+1)
	}
	for i, hit := range vector {
		c := get(hit)
		c.vecRank = i + 1
		c.score += 1.0 / float64(k+i+1)
	}

	out := make([]*candidate, 0, len(acc))
	for _, c := range acc {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		if out[i].kwRank != out[j].kwRank {
			return out[i].kwRank < out[j].kwRank
		}
		if out[i].vecRank != out[j].vecRank {
			return out[i].vecRank < out[j].vecRank
		}
		return out[i].hit.Key() < out[j].hit.Key()
	})

	fused := make([]domain.RankedHit, len(out))
	for i, c := range out {
		hit := c.hit
		hit.Score = c.score
		fused[i] = hit
	}
	return fused
}

// Trim bounds the fused list to a caller-supplied top-K.
func Trim(hits []domain.RankedHit, topK int) []domain.RankedHit {
	if topK <= 0 || len(hits) <= topK {
		return hits
	}
	return hits[:topK]
}
