package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"relun-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecision(t *testing.T) {
	tests := map[string]models.Decision{
		"like":       models.DecisionLike,
		"LIKE":       models.DecisionLike,
		"pass":       models.DecisionPass,
		"dislike":    models.DecisionPass,
		"super_like": models.DecisionSuperLike,
		"superlike":  models.DecisionSuperLike,
		"super-like": models.DecisionSuperLike,
	}
	for in, want := range tests {
		got, ok := ParseDecision(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseDecision("maybe")
	assert.False(t, ok)
}

func TestMutualLikeCreatesCanonicalMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "a1", nil)
	env.seedUser(t, "b2", nil)

	first, err := env.swipes.RecordSwipe(ctx, "b2", "a1", models.DecisionLike)
	require.NoError(t, err)
	assert.False(t, first.IsMatch)
	assert.Nil(t, first.Match)

	second, err := env.swipes.RecordSwipe(ctx, "a1", "b2", models.DecisionSuperLike)
	require.NoError(t, err)
	require.True(t, second.IsMatch)
	assert.Equal(t, "a1", second.Match.User1ID)
	assert.Equal(t, "b2", second.Match.User2ID)

	for _, id := range []string{"a1", "b2"} {
		matches, err := env.store.Matches().ListByUser(ctx, id)
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	}
}

func TestPassNeverMatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "a1", nil)
	env.seedUser(t, "b2", nil)

	_, err := env.swipes.RecordSwipe(ctx, "a1", "b2", models.DecisionLike)
	require.NoError(t, err)
	res, err := env.swipes.RecordSwipe(ctx, "b2", "a1", models.DecisionPass)
	require.NoError(t, err)
	assert.False(t, res.IsMatch)

	matches, err := env.store.Matches().ListByUser(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSwipeIsRecordedOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "a1", nil)
	env.seedUser(t, "b2", nil)

	_, err := env.swipes.RecordSwipe(ctx, "a1", "b2", "dislike")
	require.NoError(t, err)

	_, err = env.swipes.RecordSwipe(ctx, "a1", "b2", models.DecisionLike)
	assert.ErrorIs(t, err, ErrAlreadySwiped)
	assert.ErrorIs(t, err, ErrConflict)

	liked, err := env.store.Swipes().HasPositive(ctx, "a1", "b2")
	require.NoError(t, err)
	assert.False(t, liked, "the ledger is never overwritten")

	swipes, _, err := env.swipes.ListSwipes(ctx, "a1", "", 1, 10)
	require.NoError(t, err)
	require.Len(t, swipes, 1)
	assert.Equal(t, models.DecisionPass, swipes[0].Decision)
}

func TestRecordSwipeValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "a1", nil)
	inactive := env.seedUser(t, "c3", nil)
	inactive.IsActive = false
	require.NoError(t, env.store.Users().Update(ctx, inactive))

	_, err := env.swipes.RecordSwipe(ctx, "a1", "a1", models.DecisionLike)
	assert.ErrorIs(t, err, ErrSelfSwipe)

	_, err = env.swipes.RecordSwipe(ctx, "a1", "b2", "meh")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.swipes.RecordSwipe(ctx, "a1", "nobody", models.DecisionLike)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.swipes.RecordSwipe(ctx, "a1", "c3", models.DecisionLike)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentMutualLikesMatchOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const pairs = 10
	for i := 0; i < pairs; i++ {
		env.seedUser(t, fmt.Sprintf("x%02d", i), nil)
		env.seedUser(t, fmt.Sprintf("y%02d", i), nil)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		matched = map[string]int{}
	)
	for i := 0; i < pairs; i++ {
		x, y := fmt.Sprintf("x%02d", i), fmt.Sprintf("y%02d", i)
		for _, dir := range [][2]string{{x, y}, {y, x}} {
			wg.Add(1)
			go func(actor, target string) {
				defer wg.Done()
				res, err := env.swipes.RecordSwipe(ctx, actor, target, models.DecisionLike)
				if !assert.NoError(t, err) {
					return
				}
				if res.IsMatch {
					mu.Lock()
					matched[x]++
					mu.Unlock()
				}
			}(dir[0], dir[1])
		}
	}
	wg.Wait()

	for i := 0; i < pairs; i++ {
		x := fmt.Sprintf("x%02d", i)
		assert.Equal(t, 1, matched[x], "exactly one request observes the match for %s", x)
		matches, err := env.store.Matches().ListByUser(ctx, x)
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	}
}

func TestListSwipes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "a1", nil)
	for _, id := range []string{"b1", "b2", "b3"} {
		env.seedUser(t, id, nil)
	}

	_, err := env.swipes.RecordSwipe(ctx, "a1", "b1", models.DecisionLike)
	require.NoError(t, err)
	_, err = env.swipes.RecordSwipe(ctx, "a1", "b2", models.DecisionPass)
	require.NoError(t, err)
	_, err = env.swipes.RecordSwipe(ctx, "a1", "b3", models.DecisionLike)
	require.NoError(t, err)

	likes, page, err := env.swipes.ListSwipes(ctx, "a1", "like", 1, 10)
	require.NoError(t, err)
	assert.Len(t, likes, 2)
	assert.Equal(t, 2, page.Total)

	all, page, err := env.swipes.ListSwipes(ctx, "a1", "bogus", 1, 2)
	require.NoError(t, err)
	assert.Len(t, all, 2, "an unknown filter is ignored")
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Pages)

	rest, _, err := env.swipes.ListSwipes(ctx, "a1", "", 2, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}
