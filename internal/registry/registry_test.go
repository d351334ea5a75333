package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sari-dev/sari/internal/types"
)

func TestRegistry_ReadMissingFileReturnsEmptyV2Record(t *testing.T) {
	reg := New(t.TempDir())
	rec, err := reg.Read()
	require.NoError(t, err)
	assert.Equal(t, 2, rec.SchemaVersion)
	assert.NotNil(t, rec.Daemons)
	assert.NotNil(t, rec.Workspaces)
}

func TestRegistry_UpdateRoundTripsThroughDisk(t *testing.T) {
	reg := New(t.TempDir())
	boot := NewBootID()

	require.NoError(t, reg.Heartbeat(boot, types.RegistryDaemon{
		Host: "127.0.0.1", Port: 4100, PID: os.Getpid(), Version: "1.2.3",
	}))

	rec, err := reg.Read()
	require.NoError(t, err)
	d, ok := rec.Daemons[boot]
	require.True(t, ok)
	assert.Equal(t, 4100, d.Port)
	assert.WithinDuration(t, time.Now(), d.LastSeenTS, 5*time.Second)
}

func TestRegistry_PrunesDeadPIDOnRead(t *testing.T) {
	reg := New(t.TempDir())
	require.NoError(t, reg.Heartbeat("boot-dead", types.RegistryDaemon{
		Host: "127.0.0.1", Port: 4100, PID: 0, // pid<=0 is never alive
	}))

	rec, err := reg.Read()
	require.NoError(t, err)
	_, ok := rec.Daemons["boot-dead"]
	assert.False(t, ok)
}

func TestRegistry_BindWorkspaceThenResolve(t *testing.T) {
	reg := New(t.TempDir())
	boot := NewBootID()
	require.NoError(t, reg.Heartbeat(boot, types.RegistryDaemon{
		Host: "127.0.0.1", Port: 4200, PID: os.Getpid(),
	}))
	require.NoError(t, reg.BindWorkspace("/home/me/proj", types.RegistryWorkspace{BootID: boot}))

	d, ok, err := reg.ResolveWorkspace("/home/me/proj")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4200, d.Port)
}

func TestRegistry_ResolveWorkspaceUnboundAfterDaemonPruned(t *testing.T) {
	reg := New(t.TempDir())
	require.NoError(t, reg.Heartbeat("boot-dead", types.RegistryDaemon{PID: 0}))
	require.NoError(t, reg.BindWorkspace("/home/me/proj", types.RegistryWorkspace{BootID: "boot-dead"}))

	_, ok, err := reg.ResolveWorkspace("/home/me/proj")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistry_MigratesV1RecordOnRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, fileName)
	v1 := map[string]interface{}{
		"version": 1,
		"daemons": map[string]interface{}{
			"boot-old": map[string]interface{}{
				"host": "127.0.0.1", "port": 4000, "pid": os.Getpid(),
			},
		},
		"workspaces": map[string]interface{}{},
	}
	data, err := json.Marshal(v1)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))

	reg := New(dir)
	rec, err := reg.Read()
	require.NoError(t, err)
	assert.Equal(t, 2, rec.SchemaVersion)
	assert.Equal(t, types.DeployIdle, rec.Deployment.State)
	_, ok := rec.Daemons["boot-old"]
	assert.True(t, ok)
}

func TestDeploy_FullLifecycleHappyPath(t *testing.T) {
	reg := New(t.TempDir())

	gen, err := reg.BeginDeploy("boot-candidate")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)

	require.NoError(t, reg.MarkReady(gen))
	require.NoError(t, reg.SwitchActive(gen))

	rec, err := reg.Read()
	require.NoError(t, err)
	assert.Equal(t, types.DeploySwitched, rec.Deployment.State)
	assert.Equal(t, "boot-candidate", rec.Deployment.ActiveBootID)

	require.NoError(t, reg.FinishSwitch(gen))
	rec, err = reg.Read()
	require.NoError(t, err)
	assert.Equal(t, types.DeployIdle, rec.Deployment.State)
}

func TestDeploy_StaleGenerationTransitionIsNoOp(t *testing.T) {
	reg := New(t.TempDir())
	gen, err := reg.BeginDeploy("boot-candidate")
	require.NoError(t, err)

	// A second BeginDeploy while already starting does not bump the
	// generation or change the candidate.
	gen2, err := reg.BeginDeploy("boot-other")
	require.NoError(t, err)
	assert.Equal(t, gen, gen2)

	// MarkReady with a stale (wrong) generation is a no-op.
	require.NoError(t, reg.MarkReady(gen+99))
	rec, err := reg.Read()
	require.NoError(t, err)
	assert.Equal(t, types.DeployStarting, rec.Deployment.State)
}

func TestDeploy_ThreeHealthFailuresTriggerRollback(t *testing.T) {
	reg := New(t.TempDir())
	gen, err := reg.BeginDeploy("boot-candidate")
	require.NoError(t, err)
	require.NoError(t, reg.MarkReady(gen))
	require.NoError(t, reg.SwitchActive(gen))

	var rolledBack bool
	for i := 0; i < 3; i++ {
		rolledBack, err = reg.RecordHealthFailure(gen, 3)
		require.NoError(t, err)
	}
	assert.True(t, rolledBack)

	rec, err := reg.Read()
	require.NoError(t, err)
	assert.Equal(t, types.DeployRollingBack, rec.Deployment.State)
	assert.Equal(t, "", rec.Deployment.ActiveBootID) // old_boot_id was empty pre-switch

	require.NoError(t, reg.CompleteRollback(gen))
	rec, err = reg.Read()
	require.NoError(t, err)
	assert.Equal(t, types.DeployIdle, rec.Deployment.State)
}

func TestResolver_ExplicitOverrideWins(t *testing.T) {
	reg := New(t.TempDir())
	r := NewResolver(reg, true, Endpoint{Host: "127.0.0.1", Port: 9999})
	explicit := &Endpoint{Host: "10.0.0.1", Port: 1234}

	ep, src, err := r.Resolve("/ws", explicit)
	require.NoError(t, err)
	assert.Equal(t, SourceExplicit, src)
	assert.Equal(t, 1234, ep.Port)
}

func TestResolver_RegistryLookupBeforeDefault(t *testing.T) {
	reg := New(t.TempDir())
	boot := NewBootID()
	require.NoError(t, reg.Heartbeat(boot, types.RegistryDaemon{Host: "127.0.0.1", Port: 4321, PID: os.Getpid()}))
	require.NoError(t, reg.BindWorkspace("/ws", types.RegistryWorkspace{BootID: boot}))

	r := NewResolver(reg, true, Endpoint{Host: "127.0.0.1", Port: 9999})
	ep, src, err := r.Resolve("/ws", nil)
	require.NoError(t, err)
	assert.Equal(t, SourceRegistry, src)
	assert.Equal(t, 4321, ep.Port)
}

func TestResolver_FallsBackToBuiltinDefault(t *testing.T) {
	reg := New(t.TempDir())
	r := NewResolver(reg, true, Endpoint{Host: "127.0.0.1", Port: 9999})

	ep, src, err := r.Resolve("/unbound-ws", nil)
	require.NoError(t, err)
	assert.Equal(t, SourceDefault, src)
	assert.Equal(t, 9999, ep.Port)
}

func TestFileLock_SecondAcquireFailsWhileHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")
	l1 := newFileLock(path)
	ok, err := l1.tryAcquire()
	require.NoError(t, err)
	require.True(t, ok)
	defer l1.release()

	l2 := newFileLock(path)
	ok2, err := l2.tryAcquire()
	require.NoError(t, err)
	assert.False(t, ok2)
}

func TestProcessAlive_SelfIsAliveZeroIsNot(t *testing.T) {
	assert.True(t, processAlive(os.Getpid()))
	assert.False(t, processAlive(0))
}
