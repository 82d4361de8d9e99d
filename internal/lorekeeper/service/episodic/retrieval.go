package episodic

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/boltdb/bolt"

	"github.com/wyrdlab/reverie/pkg/utils/json"
)

// RetrieveOptions scopes a summary search.
type RetrieveOptions struct {
	// SessionID restricts the search to one session. An unknown or empty
	// session searches all of the user's sessions.
	SessionID string

	// Limit caps the result count. <= 0 means 5.
	Limit int

	// ThresholdScale multiplies the score threshold; the deeper-search
	// relaxation passes 0.5. <= 0 means 1.
	ThresholdScale float64
}

// Result is one scored summary hit.
type Result struct {
	Score     float64   `json:"score"`
	ChunkID   string    `json:"chunk_id"`
	SessionID string    `json:"session_id"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"timestamp"`
}

var wordRe = regexp.MustCompile(`\w+`)

// Retrieve scores every indexed summary against the query and returns the
// top hits by score, ties broken by recency. Zero matches yield an empty
// slice, never an error.
//
// Score is the fraction of query words present in the summary. The base
// threshold is 0.2 for one-or-two-word queries and 0.1 otherwise. Chunks
// whose summarization failed are scored against their raw content instead.
func (s *Store) Retrieve(_ context.Context, userID, query string, opts RetrieveOptions) ([]Result, error) {
	queryWords := tokenize(query)
	if len(queryWords) == 0 {
		return []Result{}, nil
	}

	threshold := 0.1
	if len(queryWords) <= 2 {
		threshold = 0.2
	}
	if opts.ThresholdScale > 0 {
		threshold *= opts.ThresholdScale
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 5
	}

	db, err := s.index(userID)
	if err != nil {
		return nil, err
	}

	// Session scoping: fall back to all sessions when the requested one has
	// no archived chunks.
	sessionFilter := opts.SessionID
	if sessionFilter != "" {
		known, err := s.sessionHasChunks(db, sessionFilter)
		if err != nil {
			return nil, err
		}
		if !known {
			sessionFilter = ""
		}
	}

	var results []Result
	err = db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSummaries).ForEach(func(_, v []byte) error {
			var entry indexEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("decode index entry: %w", err)
			}
			if sessionFilter != "" && entry.SessionID != sessionFilter {
				return nil
			}

			haystack := entry.Summary
			if haystack == PlaceholderSummary {
				haystack = entry.RawPreview
			}
			score := overlapScore(queryWords, haystack)
			if score > threshold {
				results = append(results, Result{
					Score:     score,
					ChunkID:   entry.ChunkID,
					SessionID: entry.SessionID,
					Summary:   entry.Summary,
					CreatedAt: entry.CreatedAt,
				})
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve from index of %q: %w", userID, err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	if results == nil {
		results = []Result{}
	}
	return results, nil
}

func (s *Store) sessionHasChunks(db *bolt.DB, sessionID string) (bool, error) {
	var found bool
	err := db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSummaries).Cursor()
		prefix := []byte(sessionID + "/")
		k, _ := c.Seek(prefix)
		found = k != nil && strings.HasPrefix(string(k), string(prefix))
		return nil
	})
	return found, err
}

// tokenize lowercases and splits on word boundaries, de-duplicating.
func tokenize(text string) []string {
	words := wordRe.FindAllString(strings.ToLower(text), -1)
	seen := map[string]bool{}
	var out []string
	for _, w := range words {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

// overlapScore is |query ∩ document| / |query| over word sets.
func overlapScore(queryWords []string, document string) float64 {
	if len(queryWords) == 0 {
		return 0
	}
	docWords := map[string]bool{}
	for _, w := range wordRe.FindAllString(strings.ToLower(document), -1) {
		docWords[w] = true
	}
	common := 0
	for _, w := range queryWords {
		if docWords[w] {
			common++
		}
	}
	return float64(common) / float64(len(queryWords))
}
