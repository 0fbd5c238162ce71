package gameserver_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/actioncore/internal/gameserver"
)

// testGRPCServer starts an in-process gRPC server over bufconn and returns a
// connected client.
func testGRPCServer(t *testing.T, w *world, reload gameserver.ReloadFunc) (*gameserver.AbilityClient, *gameserver.AbilityService) {
	t.Helper()
	svc := gameserver.NewAbilityService(w.handler, w.exec, w.sessions, w.archetypes, w.store, reload, zaptest.NewLogger(t))

	lis := bufconn.Listen(1 << 20)
	grpcServer := grpc.NewServer()
	gameserver.RegisterAbilityServer(grpcServer, svc)
	go func() { _ = grpcServer.Serve(lis) }()
	t.Cleanup(grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return gameserver.NewAbilityClient(conn), svc
}

func TestRegisterAbilityServer_ServiceInfo(t *testing.T) {
	w := newWorld(t)
	grpcServer := grpc.NewServer()
	gameserver.RegisterAbilityServer(grpcServer,
		gameserver.NewAbilityService(w.handler, w.exec, w.sessions, w.archetypes, w.store, nil, zaptest.NewLogger(t)))

	info, ok := grpcServer.GetServiceInfo()[gameserver.AbilityServiceName]
	require.True(t, ok)
	var names []string
	for _, m := range info.Methods {
		names = append(names, m.Name)
	}
	assert.ElementsMatch(t, []string{"Perform", "ListActions", "ReloadCatalog", "Command", "Connect"}, names)
	assert.Nil(t, info.Metadata, "messages are structpb.Struct; no .proto file describes the service")
}

func msg(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}

func TestGRPC_PerformReturnsFailuresInPayload(t *testing.T) {
	w := newWorld(t)
	w.join("p1")
	goblin := w.goblin("goblin")
	client, _ := testGRPCServer(t, w, nil)
	ctx := context.Background()

	resp, err := client.Perform(ctx, msg(t, map[string]any{"actor_id": "p1", "action_id": "strike", "target": "goblin"}))
	require.NoError(t, err)
	m := resp.AsMap()
	assert.Equal(t, true, m["performed"])
	assert.Equal(t, []any{"goblin"}, m["targets"])
	assert.Equal(t, 1.0, m["generation"])
	assert.Less(t, health(t, goblin), 100.0)
	notes := m["notifications"].([]any)
	require.NotEmpty(t, notes)
	assert.Equal(t, "action_performed", notes[0].(map[string]any)["kind"])

	resp, err = client.Perform(ctx, msg(t, map[string]any{"actor_id": "p1", "action_id": "strike", "target": "goblin"}))
	require.NoError(t, err)
	m = resp.AsMap()
	assert.Equal(t, false, m["performed"])
	assert.Equal(t, "on_cooldown", m["failure"].(map[string]any)["kind"])
}

func TestGRPC_PerformRequiresFields(t *testing.T) {
	client, _ := testGRPCServer(t, newWorld(t), nil)
	_, err := client.Perform(context.Background(), msg(t, map[string]any{"actor_id": "p1"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPC_ListActions(t *testing.T) {
	w := newWorld(t)
	w.join("p1")
	client, _ := testGRPCServer(t, w, nil)
	ctx := context.Background()

	resp, err := client.ListActions(ctx, msg(t, map[string]any{"actor_id": "p1"}))
	require.NoError(t, err)
	actions := resp.AsMap()["actions"].([]any)
	require.Len(t, actions, 2)
	first := actions[0].(map[string]any)
	assert.Equal(t, "mend", first["action_id"])
	assert.Equal(t, 0.0, first["slot"])
	assert.Equal(t, true, first["ready"])

	_, err = client.ListActions(ctx, msg(t, map[string]any{"actor_id": "ghost"}))
	st := status.Convert(err)
	assert.Equal(t, codes.PermissionDenied, st.Code())
	var info *errdetails.ErrorInfo
	for _, d := range st.Details() {
		if ei, ok := d.(*errdetails.ErrorInfo); ok {
			info = ei
		}
	}
	require.NotNil(t, info)
	assert.Equal(t, "not_participating", info.Reason)
}

func writeContent(t *testing.T, actionsYAML string) string {
	t.Helper()
	dir := t.TempDir()
	for _, sub := range []string{"archetypes", "actions"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0o755))
	}
	arch := `id: fighter
name: Fighter
resources:
  - id: health
    name: Health
    max: 100
  - id: stamina
    name: Stamina
    max: 30
unlocks:
  - action: strike
    level: 1
slots_by_level:
  - level: 1
    slots: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "archetypes", "fighter.yaml"), []byte(arch), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "actions", "actions.yaml"), []byte(actionsYAML), 0o644))
	return dir
}

func TestGRPC_ReloadCatalog(t *testing.T) {
	w := newWorld(t)
	good := writeContent(t, `- id: strike
  name: Strike
  effect: melee_strike
  targeting: single-hostile
  requires_target: true
  cooldown: 2s
`)
	client, _ := testGRPCServer(t, w, gameserver.ContentReloader(w.catalog, good))

	resp, err := client.ReloadCatalog(context.Background(), &structpb.Struct{})
	require.NoError(t, err)
	assert.Equal(t, 2.0, resp.AsMap()["generation"])
	assert.Equal(t, 1.0, resp.AsMap()["actions"])
}

func TestGRPC_ReloadCatalogKeepsGenerationOnUnknownEffect(t *testing.T) {
	w := newWorld(t)
	bad := writeContent(t, `- id: strike
  name: Strike
  effect: summon_meteor
  targeting: single-hostile
`)
	client, _ := testGRPCServer(t, w, gameserver.ContentReloader(w.catalog, bad))

	_, err := client.ReloadCatalog(context.Background(), &structpb.Struct{})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "summon_meteor")
	assert.Equal(t, uint64(1), w.catalog.Snapshot().Generation())
	assert.Equal(t, 2, w.catalog.Snapshot().Len())
}

func TestGRPC_ReloadCatalogUnconfigured(t *testing.T) {
	client, _ := testGRPCServer(t, newWorld(t), nil)
	_, err := client.ReloadCatalog(context.Background(), &structpb.Struct{})
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

func recvKind(t *testing.T, stream *gameserver.EventStream, kind string) map[string]any {
	t.Helper()
	for {
		evt, err := stream.Recv()
		require.NoError(t, err)
		m := evt.AsMap()
		if m["kind"] == kind {
			return m
		}
	}
}

func TestGRPC_ConnectCommandAndQuit(t *testing.T) {
	w := newWorld(t)
	goblin := w.goblin("goblin")
	client, _ := testGRPCServer(t, w, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.Connect(ctx, msg(t, map[string]any{
		"username": "alice", "entity_id": "p1", "archetype": "fighter", "location": "arena", "team": "heroes",
	}))
	require.NoError(t, err)
	connected := recvKind(t, stream, "connected")
	assert.Equal(t, "p1", connected["entity_id"])
	assert.Equal(t, "fighter", connected["archetype"])

	resp, err := client.Command(ctx, msg(t, map[string]any{"entity_id": "p1", "line": "perform strike on goblin"}))
	require.NoError(t, err)
	assert.Contains(t, resp.AsMap()["reply"], "Strike")
	assert.Less(t, health(t, goblin), 100.0)

	performed := recvKind(t, stream, "action_performed")
	assert.Equal(t, "strike", performed["action_id"])

	resp, err = client.Command(ctx, msg(t, map[string]any{"entity_id": "p1", "line": "quit"}))
	require.NoError(t, err)
	assert.Equal(t, true, resp.AsMap()["quit"])

	for {
		if _, err := stream.Recv(); err != nil {
			break
		}
	}
	require.Eventually(t, func() bool {
		_, ok := w.store.get("p1")
		return ok
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, w.sessions.PlayerCount())
	snap, _ := w.store.get("p1")
	assert.Equal(t, "fighter", snap.ArchetypeID)
	assert.Equal(t, 20.0, snap.Pools["stamina"])
}

func TestGRPC_ConnectRestoresSavedSheet(t *testing.T) {
	w := newWorld(t)
	require.NoError(t, w.store.Save(context.Background(), "p1", snapWithStamina(5)))
	client, svc := testGRPCServer(t, w, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.Connect(ctx, msg(t, map[string]any{"username": "alice", "entity_id": "p1", "location": "arena"}))
	require.NoError(t, err)
	recvKind(t, stream, "connected")

	resp, err := client.Command(ctx, msg(t, map[string]any{"entity_id": "p1", "line": "loadout"}))
	require.NoError(t, err)
	assert.Equal(t, "1. strike\n2. (empty)", resp.AsMap()["reply"])

	n, err := svc.SaveAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGRPC_ConnectValidation(t *testing.T) {
	w := newWorld(t)
	client, _ := testGRPCServer(t, w, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tests := []struct {
		req  map[string]any
		code codes.Code
	}{
		{map[string]any{"username": "alice"}, codes.InvalidArgument},
		{map[string]any{"username": "alice", "location": "arena", "archetype": "bard"}, codes.InvalidArgument},
	}
	for _, tt := range tests {
		stream, err := client.Connect(ctx, msg(t, tt.req))
		require.NoError(t, err)
		_, err = stream.Recv()
		assert.Equal(t, tt.code, status.Code(err), "%v", tt.req)
	}
}

func TestGRPC_CommandRequiresConnection(t *testing.T) {
	client, _ := testGRPCServer(t, newWorld(t), nil)
	_, err := client.Command(context.Background(), msg(t, map[string]any{"entity_id": "p9", "line": "help"}))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

type identities map[string]string

func (m identities) ResolveEntity(_ context.Context, username string) (string, error) {
	return m[username], nil
}

func TestGRPC_ConnectResolvesEntityFromUsername(t *testing.T) {
	w := newWorld(t)
	require.NoError(t, w.store.Save(context.Background(), "alice-id", snapWithStamina(5)))
	client, svc := testGRPCServer(t, w, nil)
	svc.WithIdentities(identities{"alice": "alice-id"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.Connect(ctx, msg(t, map[string]any{"username": "alice", "location": "arena"}))
	require.NoError(t, err)
	connected := recvKind(t, stream, "connected")
	assert.Equal(t, "alice-id", connected["entity_id"])
	_, ok := w.sessions.Get("alice-id")
	assert.True(t, ok)
}
