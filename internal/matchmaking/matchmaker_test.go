package matchmaking

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gkqls2420/projectGM-server/internal/agent"
	"github.com/gkqls2420/projectGM-server/internal/archive"
	"github.com/gkqls2420/projectGM-server/internal/catalog"
	"github.com/gkqls2420/projectGM-server/internal/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testMatchmaker(t *testing.T) (*Matchmaker, *agent.DeckSource) {
	t.Helper()
	logger := zap.NewNop()
	cat, err := catalog.LoadFile(filepath.Join("..", "..", "data", "cards.json"), logger)
	require.NoError(t, err)
	rooms := room.NewManager(logger, cat, archive.Discard{}, 15*time.Minute, time.Minute)
	decks := agent.NewDeckSource(cat, "", logger)
	return New(logger, rooms, decks), decks
}

func playerEntry(t *testing.T, decks *agent.DeckSource, playerID string) *Entry {
	t.Helper()
	deck, err := decks.Resolve("starter_sora")
	require.NoError(t, err)
	return &Entry{
		PlayerID: playerID,
		Username: playerID,
		Conn:     noopConn{},
		Deck:     deck,
	}
}

type noopConn struct{}

func (noopConn) SendJSON(any) error { return nil }

func TestVersusAIStartsImmediately(t *testing.T) {
	m, decks := testMatchmaker(t)
	r, err := m.Join("casual", GameTypeVersusAI, playerEntry(t, decks, "p1"))
	require.NoError(t, err)
	require.NotNil(t, r, "versus_ai joins never wait")
	assert.True(t, r.HasPlayer("p1"))
	assert.Equal(t, GameTypeVersusAI, r.GameType)
}

func TestVersusPlayerWaitsForSecondJoin(t *testing.T) {
	m, decks := testMatchmaker(t)

	r, err := m.Join("ranked", GameTypeVersusPlayer, playerEntry(t, decks, "p1"))
	require.NoError(t, err)
	assert.Nil(t, r, "first player waits")

	r, err = m.Join("ranked", GameTypeVersusPlayer, playerEntry(t, decks, "p2"))
	require.NoError(t, err)
	require.NotNil(t, r, "second player completes the pair")
	assert.True(t, r.HasPlayer("p1"))
	assert.True(t, r.HasPlayer("p2"))
	assert.Equal(t, "ranked", r.QueueName)
}

func TestQueuesAreIsolatedByName(t *testing.T) {
	m, decks := testMatchmaker(t)

	r, err := m.Join("ranked", GameTypeVersusPlayer, playerEntry(t, decks, "p1"))
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = m.Join("casual", GameTypeVersusPlayer, playerEntry(t, decks, "p2"))
	require.NoError(t, err)
	assert.Nil(t, r, "different queue names never pair")
}

func TestRejoinReplacesQueueEntry(t *testing.T) {
	m, decks := testMatchmaker(t)

	_, err := m.Join("ranked", GameTypeVersusPlayer, playerEntry(t, decks, "p1"))
	require.NoError(t, err)
	_, err = m.Join("ranked", GameTypeVersusPlayer, playerEntry(t, decks, "p1"))
	require.NoError(t, err)

	info := m.QueueInfo()
	require.Len(t, info, 1)
	assert.Equal(t, 1, info[0]["players_waiting"], "re-join does not double-queue")
}

func TestLeaveRemovesWaitingPlayer(t *testing.T) {
	m, decks := testMatchmaker(t)

	_, err := m.Join("ranked", GameTypeVersusPlayer, playerEntry(t, decks, "p1"))
	require.NoError(t, err)
	m.Leave("p1")

	r, err := m.Join("ranked", GameTypeVersusPlayer, playerEntry(t, decks, "p2"))
	require.NoError(t, err)
	assert.Nil(t, r, "departed player cannot be paired")

	// Leaving a player that never queued is a no-op.
	m.Leave("ghost")
}

func TestSeatedPlayerCannotQueueAgain(t *testing.T) {
	m, decks := testMatchmaker(t)

	r, err := m.Join("casual", GameTypeVersusAI, playerEntry(t, decks, "p1"))
	require.NoError(t, err)
	require.NotNil(t, r)

	_, err = m.Join("casual", GameTypeVersusAI, playerEntry(t, decks, "p1"))
	require.Error(t, err, "a seated player is rejected until their match ends")
}

func TestInvalidQueueNameRejected(t *testing.T) {
	m, decks := testMatchmaker(t)

	for _, name := range []string{"", "no spaces", "name!", strings.Repeat("q", 65)} {
		_, err := m.Join(name, GameTypeVersusPlayer, playerEntry(t, decks, "p1"))
		require.Error(t, err, "queue name %q must be rejected", name)
	}
	assert.Empty(t, m.QueueInfo(), "rejected joins never create a queue")
}

func TestCustomGameQueueNeverPairsWithPublic(t *testing.T) {
	m, decks := testMatchmaker(t)

	host := playerEntry(t, decks, "p1")
	host.CustomGame = true
	r, err := m.Join("lobby-1", GameTypeVersusPlayer, host)
	require.NoError(t, err)
	assert.Nil(t, r, "the custom host waits")

	r, err = m.Join("lobby-1", GameTypeVersusPlayer, playerEntry(t, decks, "p2"))
	require.NoError(t, err)
	assert.Nil(t, r, "a public entry does not see the custom lobby")

	guest := playerEntry(t, decks, "p3")
	guest.CustomGame = true
	r, err = m.Join("lobby-1", GameTypeVersusPlayer, guest)
	require.NoError(t, err)
	require.NotNil(t, r, "a second custom entry completes the lobby")
	assert.True(t, r.HasPlayer("p1"))
	assert.True(t, r.HasPlayer("p3"))
}

func TestUnknownGameTypeRejected(t *testing.T) {
	m, decks := testMatchmaker(t)
	_, err := m.Join("casual", "tag_team", playerEntry(t, decks, "p1"))
	require.Error(t, err)
}

func TestQueueInfoReportsWaitingCounts(t *testing.T) {
	m, decks := testMatchmaker(t)
	assert.Empty(t, m.QueueInfo())

	_, err := m.Join("ranked", GameTypeVersusPlayer, playerEntry(t, decks, "p1"))
	require.NoError(t, err)

	info := m.QueueInfo()
	require.Len(t, info, 1)
	assert.Equal(t, "ranked", info[0]["queue_name"])
	assert.Equal(t, GameTypeVersusPlayer, info[0]["game_type"])
	assert.Equal(t, 1, info[0]["players_waiting"])
}
