package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestResolverGameMode(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	r := NewResolver(e, zap.NewNop())
	assert.Nil(t, r.ResolveActiveInstance())

	gi := e.CreateGameInstance("GameInstance")
	assert.Equal(t, gi, r.ResolveActiveInstance())

	e.DestroyGameInstance(gi)
	assert.Nil(t, r.ResolveActiveInstance())
}

func TestResolverEditorPriority(t *testing.T) {
	e, _ := newTestEngine(t, Options{Editor: true})
	r := NewResolver(e, zap.NewNop())

	// The editor world itself never counts.
	e.CreateWorld(WorldOptions{Name: "EditorWorld", Type: WorldEditor})
	assert.Nil(t, r.ResolveActiveInstance())

	clientGI := e.CreateGameInstance("ClientGI")
	e.CreateWorld(WorldOptions{Name: "Client", Type: WorldGamePreview, NetMode: NetClient, PIEInstance: 2, GameInstance: clientGI})
	assert.Equal(t, clientGI, r.ResolveActiveInstance())

	gameGI := e.CreateGameInstance("GameGI")
	e.CreateWorld(WorldOptions{Name: "Game", Type: WorldGame, NetMode: NetListenServer, GameInstance: gameGI})
	assert.Equal(t, gameGI, r.ResolveActiveInstance(), "game worlds beat standalone/client fallback")

	pieGI := e.CreateGameInstance("PIEGI")
	pie := e.CreateWorld(WorldOptions{Name: "PIE", Type: WorldPIE, NetMode: NetListenServer, PIEInstance: 1, GameInstance: pieGI})
	assert.Equal(t, pieGI, r.ResolveActiveInstance(), "PIE beats everything")

	e.DestroyWorld(pie)
	assert.Equal(t, gameGI, r.ResolveActiveInstance())
}

func TestResolverEditorIgnoresFirstClient(t *testing.T) {
	e, _ := newTestEngine(t, Options{Editor: true})
	r := NewResolver(e, zap.NewNop())

	gi := e.CreateGameInstance("ClientGI")
	e.CreateWorld(WorldOptions{Name: "Client1", Type: WorldGamePreview, NetMode: NetClient, PIEInstance: 1, GameInstance: gi})
	assert.Nil(t, r.ResolveActiveInstance())
}

func TestResolverReportsInitialLoad(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	e, _ := newTestEngine(t, Options{Editor: true})
	e.SetInitialLoad(true)
	r := NewResolver(e, zap.New(core))

	assert.Nil(t, r.ResolveActiveInstance())
	assert.Equal(t, 1, logs.Len())
}
