package services

import (
	"context"
	"testing"

	"relun-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalPair(t *testing.T) {
	a, b := CanonicalPair("b2", "a1")
	assert.Equal(t, "a1", a)
	assert.Equal(t, "b2", b)

	a, b = CanonicalPair("a1", "b2")
	assert.Equal(t, "a1", a)
	assert.Equal(t, "b2", b)
}

func TestPairLockKeyIgnoresOrder(t *testing.T) {
	assert.Equal(t, "pair:a1:b2", pairLockKey("b2", "a1"))
	assert.Equal(t, pairLockKey("a1", "b2"), pairLockKey("b2", "a1"))
}

func TestMatchAnnouncedOnlineAndPushedOffline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "a1", nil)
	env.seedUser(t, "b2", nil)
	require.NoError(t, env.auth.UpdatePushToken(ctx, "a1", "device-a1"))
	require.NoError(t, env.auth.UpdatePushToken(ctx, "b2", "device-b2"))

	ca := env.connect(t, "a1")
	match := env.matchUsers(t, "a1", "b2")

	event := nextEvent(t, ca)
	assert.Equal(t, EventMatchCreated, event.Type)
	assert.Equal(t, match.ID, event.MatchID)

	assert.Empty(t, env.pusher.sentTo("device-a1"), "online users get the socket event only")
	pushes := env.pusher.sentTo("device-b2")
	require.Len(t, pushes, 1)
	assert.Equal(t, match.ID, pushes[0].Data["matchId"])
}

func TestListAndGetMatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "a1", nil)
	env.seedUser(t, "b2", nil)
	env.seedUser(t, "c3", nil)
	_, err := env.profiles.UploadPhotos(ctx, "b2", []PhotoUpload{jpeg("1"), jpeg("2")})
	require.NoError(t, err)

	match := env.matchUsers(t, "a1", "b2")
	_, err = env.chat.Send(ctx, match.ID, "b2", "hello", "", ChannelREST)
	require.NoError(t, err)

	list, page, err := env.matches.List(ctx, "a1", 1, 20)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, "b2", list[0].OtherUser.ID)
	require.NotNil(t, list[0].Photo)
	assert.Equal(t, 0, list[0].Photo.Position)
	assert.Nil(t, list[0].Photos)
	require.NotNil(t, list[0].LastMessage)
	assert.Equal(t, "hello", list[0].LastMessage.Content)

	detail, err := env.matches.Get(ctx, match.ID, "a1")
	require.NoError(t, err)
	assert.Len(t, detail.Photos, 2)

	_, err = env.matches.Get(ctx, match.ID, "c3")
	assert.ErrorIs(t, err, ErrNotFound, "non-participants cannot see the match")
}

func TestUnmatchCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "a1", nil)
	env.seedUser(t, "b2", nil)
	env.seedUser(t, "c3", nil)
	match := env.matchUsers(t, "a1", "b2")

	for _, text := range []string{"one", "two", "three"} {
		_, err := env.chat.Send(ctx, match.ID, "a1", text, models.MessageText, ChannelREST)
		require.NoError(t, err)
	}
	unread, err := env.chat.UnreadCount(ctx, "b2")
	require.NoError(t, err)
	require.Equal(t, 3, unread)

	cb := env.connect(t, "b2")
	joined, err := env.chat.Join(ctx, cb, match.ID)
	require.NoError(t, err)
	require.True(t, joined)

	err = env.matches.Unmatch(ctx, match.ID, "c3")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, env.matches.Unmatch(ctx, match.ID, "a1"))

	event := nextEvent(t, cb)
	assert.Equal(t, EventMatchRemoved, event.Type)
	assert.Equal(t, match.ID, event.MatchID)
	assert.False(t, env.hub.InRoom(cb, MatchRoom(match.ID)))

	for _, id := range []string{"a1", "b2"} {
		_, err := env.matches.Get(ctx, match.ID, id)
		assert.ErrorIs(t, err, ErrNotFound)
	}
	_, total, err := env.store.Messages().ListByMatch(ctx, match.ID, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)

	unread, err = env.chat.UnreadCount(ctx, "b2")
	require.NoError(t, err)
	assert.Zero(t, unread)

	_, err = env.swipes.RecordSwipe(ctx, "a1", "b2", models.DecisionLike)
	assert.ErrorIs(t, err, ErrAlreadySwiped, "the pair cannot swipe again")
}

func TestBlockEndsMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "a1", nil)
	env.seedUser(t, "b2", nil)
	match := env.matchUsers(t, "a1", "b2")

	require.NoError(t, env.matches.Block(ctx, match.ID, "b2"))

	list, _, err := env.matches.List(ctx, "a1", 1, 20)
	require.NoError(t, err)
	assert.Empty(t, list)

	err = env.matches.Block(ctx, match.ID, "b2")
	assert.ErrorIs(t, err, ErrNotFound)
}
