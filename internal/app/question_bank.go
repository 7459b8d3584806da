package app

import (
	"math/rand"

	"quiz-practice-service/internal/domain"
)

// SelectFrom turns filtered candidates into a pool: it drops excluded and
// duplicate uids, shuffles when randomize is set and keeps at most count
// questions. Without randomize the candidate order is preserved.
func SelectFrom(candidates []domain.QuestionSpec, count int, randomize bool, excludeUIDs []string) []domain.QuestionSpec {
	if count <= 0 {
		return nil
	}
	excluded := make(map[string]struct{}, len(excludeUIDs))
	for _, uid := range excludeUIDs {
		excluded[uid] = struct{}{}
	}

	picked := make([]domain.QuestionSpec, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, q := range candidates {
		if _, skip := excluded[q.UID]; skip {
			continue
		}
		if _, dup := seen[q.UID]; dup {
			continue
		}
		seen[q.UID] = struct{}{}
		picked = append(picked, q.Clone())
	}

	if randomize {
		rand.Shuffle(len(picked), func(i, j int) {
			picked[i], picked[j] = picked[j], picked[i]
		})
	}
	if len(picked) > count {
		picked = picked[:count]
	}
	return picked
}
