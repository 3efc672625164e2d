package cache

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelpersAreNoOpsWithoutRedis(t *testing.T) {
	Rdb = nil
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, PublishGameAction(ctx, GameActionRecord{GameID: id, ActionType: "place_tile"}))
	require.NoError(t, SaveRoomSnapshot(ctx, id, map[string]int{"turn": 1}))
	require.NoError(t, DeleteRoomSnapshot(ctx, id))

	recs, err := GameActions(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, recs)

	var dst map[string]int
	assert.ErrorIs(t, LoadRoomSnapshot(ctx, id, &dst), ErrSnapshotNotFound)
	assert.NoError(t, Close())
}

func TestConnectRedisRejectsBadURL(t *testing.T) {
	err := ConnectRedis(context.Background(), "not-a-url://")
	require.Error(t, err)
	assert.Nil(t, Rdb)
}

func TestKeys(t *testing.T) {
	id := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	assert.Equal(t, "game:00000000-0000-0000-0000-000000000001:actions", actionsKey(id))
	assert.Equal(t, "room:00000000-0000-0000-0000-000000000001:snapshot", snapshotKey(id))
}
