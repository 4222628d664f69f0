package concore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vas-solutus/arcad/internal/collab"
	"github.com/vas-solutus/arcad/internal/logfan"
	"github.com/vas-solutus/arcad/internal/store"
	"github.com/vas-solutus/arcad/internal/types"
)

type fakeImages struct{}

func (fakeImages) Resolve(ctx context.Context, ref string) (collab.ImageHandle, error) {
	return collab.ImageHandle{ID: "img-" + ref, RootfsPath: "/tmp/rootfs-" + ref}, nil
}

func newTestCore(t *testing.T) (*Core, *fakeLauncher) {
	t.Helper()
	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "arcad.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logs, err := logfan.New(filepath.Join(dir, "logs"))
	require.NoError(t, err)

	launcher := &fakeLauncher{}
	core := New(dir, Deps{
		Store:  st,
		Logs:   logs,
		Launch: launcher,
		Images: fakeImages{},
	})
	core.dialGuest = fakeGuestDialer()
	t.Cleanup(core.Close)
	return core, launcher
}

func TestCreateNonDeferredStartsImmediately(t *testing.T) {
	core, launcher := newTestCore(t)
	ctx := context.Background()

	rec, err := core.Create(ctx, CreateRequest{Name: "web1", Image: "nginx:latest"})
	require.NoError(t, err)
	assert.Equal(t, "web1", rec.Name)

	c, err := core.Resolve(rec.ID)
	require.NoError(t, err)
	assert.True(t, c.Running())
	assert.Equal(t, types.StateRunning, c.State())
	require.Len(t, launcher.launched, 1)
	assert.Contains(t, launcher.launched[0].RootfsPath, rec.ID)
}

func TestCreateDeferredDoesNotStart(t *testing.T) {
	core, launcher := newTestCore(t)
	ctx := context.Background()

	rec, err := core.Create(ctx, CreateRequest{Name: "interactive1", Image: "alpine", Deferred: true})
	require.NoError(t, err)
	assert.Equal(t, types.StateCreated, rec.State)
	assert.Empty(t, launcher.launched)

	require.NoError(t, core.Start(ctx, rec.ID))
	c, err := core.Resolve(rec.ID)
	require.NoError(t, err)
	assert.True(t, c.Running())
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	core, _ := newTestCore(t)
	ctx := context.Background()

	_, err := core.Create(ctx, CreateRequest{Name: "dup", Image: "alpine", Deferred: true})
	require.NoError(t, err)

	_, err = core.Create(ctx, CreateRequest{Name: "dup", Image: "alpine", Deferred: true})
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestStopThenStart(t *testing.T) {
	core, _ := newTestCore(t)
	ctx := context.Background()

	rec, err := core.Create(ctx, CreateRequest{Name: "stoppable", Image: "alpine"})
	require.NoError(t, err)

	require.NoError(t, core.Stop(ctx, rec.ID, 2*time.Second))
	c, err := core.Resolve(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StateExited, c.State())
	assert.True(t, c.toRecord().StoppedByUser)

	require.NoError(t, core.Start(ctx, rec.ID))
	assert.Equal(t, types.StateRunning, c.State())
	assert.False(t, c.toRecord().StoppedByUser)
}

func TestPauseUnpause(t *testing.T) {
	core, _ := newTestCore(t)
	ctx := context.Background()

	rec, err := core.Create(ctx, CreateRequest{Name: "pausable", Image: "alpine"})
	require.NoError(t, err)

	require.NoError(t, core.Pause(ctx, rec.ID))
	c, err := core.Resolve(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatePaused, c.State())

	require.NoError(t, core.Unpause(ctx, rec.ID))
	assert.Equal(t, types.StateRunning, c.State())
}

func TestWaitReturnsExitCodeAfterKill(t *testing.T) {
	core, _ := newTestCore(t)
	ctx := context.Background()

	rec, err := core.Create(ctx, CreateRequest{Name: "killable", Image: "alpine"})
	require.NoError(t, err)

	require.NoError(t, core.Kill(ctx, rec.ID))

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	code, err := core.Wait(waitCtx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestRestartPolicyAlwaysRelaunchesAfterExit(t *testing.T) {
	core, launcher := newTestCore(t)
	ctx := context.Background()

	rec, err := core.Create(ctx, CreateRequest{
		Name:  "bouncer",
		Image: "alpine",
		HostConfig: types.HostConfig{
			RestartPolicy: types.RestartPolicy{Name: types.RestartAlways},
		},
	})
	require.NoError(t, err)

	vm := launcher.lastVM()
	vm.setState(collab.VMStateStopped) // guest process exited on its own

	require.Eventually(t, func() bool {
		c, err := core.Resolve(rec.ID)
		if err != nil {
			return false
		}
		return len(launcher.launched) == 2 && c.Running()
	}, 3*time.Second, 10*time.Millisecond)
}

func TestRestartPolicyNoDoesNotRelaunch(t *testing.T) {
	core, launcher := newTestCore(t)
	ctx := context.Background()

	rec, err := core.Create(ctx, CreateRequest{Name: "onceonly", Image: "alpine"})
	require.NoError(t, err)

	vm := launcher.lastVM()
	vm.setState(collab.VMStateStopped)

	require.Eventually(t, func() bool {
		c, err := core.Resolve(rec.ID)
		return err == nil && c.State() == types.StateExited
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, launcher.launched, 1)
}

func TestRemoveRefusesRunningWithoutForce(t *testing.T) {
	core, _ := newTestCore(t)
	ctx := context.Background()

	rec, err := core.Create(ctx, CreateRequest{Name: "guarded", Image: "alpine"})
	require.NoError(t, err)

	err = core.Remove(ctx, rec.ID, false)
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))

	require.NoError(t, core.Remove(ctx, rec.ID, true))
	_, err = core.Resolve(rec.ID)
	assert.Error(t, err)
}

func TestRename(t *testing.T) {
	core, _ := newTestCore(t)
	ctx := context.Background()

	rec, err := core.Create(ctx, CreateRequest{Name: "oldname", Image: "alpine", Deferred: true})
	require.NoError(t, err)

	require.NoError(t, core.Rename(ctx, rec.ID, "newname"))
	c, err := core.Resolve("newname")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, c.ID)
}

func TestResolveByHexPrefix(t *testing.T) {
	core, _ := newTestCore(t)
	ctx := context.Background()

	rec, err := core.Create(ctx, CreateRequest{Name: "prefixed", Image: "alpine", Deferred: true})
	require.NoError(t, err)

	c, err := core.Resolve(rec.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, rec.ID, c.ID)

	_, err = core.Resolve(rec.ID[:2])
	assert.Error(t, err)
}

func TestListHidesInternalUnlessAll(t *testing.T) {
	core, _ := newTestCore(t)
	ctx := context.Background()

	_, err := core.Create(ctx, CreateRequest{Name: "visible", Image: "alpine", Deferred: true})
	require.NoError(t, err)
	_, err = core.Create(ctx, CreateRequest{
		Name:     "hidden",
		Image:    "alpine",
		Deferred: true,
		Labels:   map[string]string{internalLabel: "true"},
	})
	require.NoError(t, err)

	assert.Len(t, core.ListSummaries(false), 1)
	assert.Len(t, core.ListSummaries(true), 2)
}

func TestLoadRecoversRunningRowsAsExited(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "arcad.db"))
	require.NoError(t, err)
	defer st.Close()

	crashed := &types.Container{
		ID:         types.NewID(),
		Name:       "crashed",
		State:      types.StateRunning,
		CreatedAt:  time.Now(),
		HostConfig: types.HostConfig{RestartPolicy: types.RestartPolicy{Name: types.RestartAlways}},
	}
	require.NoError(t, st.SetContainer(crashed))

	logs, err := logfan.New(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	launcher := &fakeLauncher{}
	core := New(dir, Deps{Store: st, Logs: logs, Launch: launcher, Images: fakeImages{}})
	core.dialGuest = fakeGuestDialer()
	defer core.Close()

	require.NoError(t, core.Load())

	c, err := core.GetByID(crashed.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StateExited, c.State())
	assert.Equal(t, 137, c.toRecord().ExitCode)

	core.ApplyRestartPolicies()
	require.Eventually(t, func() bool {
		return c.Running()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestApplyRestartPoliciesHonorsPersistedStoppedByUser(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "arcad.db"))
	require.NoError(t, err)
	defer st.Close()

	stopped := &types.Container{
		ID:            types.NewID(),
		Name:          "user-stopped",
		State:         types.StateExited,
		ExitCode:      0,
		CreatedAt:     time.Now(),
		StoppedByUser: true,
		HostConfig:    types.HostConfig{RestartPolicy: types.RestartPolicy{Name: types.RestartUnlessStopped}},
	}
	require.NoError(t, st.SetContainer(stopped))

	logs, err := logfan.New(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	launcher := &fakeLauncher{}
	core := New(dir, Deps{Store: st, Logs: logs, Launch: launcher, Images: fakeImages{}})
	core.dialGuest = fakeGuestDialer()
	defer core.Close()

	require.NoError(t, core.Load())

	c, err := core.GetByID(stopped.ID)
	require.NoError(t, err)

	// A restart-policy pass across a daemon restart must not resurrect a
	// container the user deliberately stopped before the restart, even
	// though unless-stopped would otherwise restart it unconditionally.
	core.ApplyRestartPolicies()
	time.Sleep(50 * time.Millisecond)
	assert.False(t, c.Running())
}
