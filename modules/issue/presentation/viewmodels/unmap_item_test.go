package viewmodels

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jacksonlee411/grc-console/modules/core/domain/entities/instance"
	"github.com/jacksonlee411/grc-console/modules/issue/presentation/locales"
	"github.com/jacksonlee411/grc-console/pkg/queryapi"
)

func itemResponse(snapshotTotal, snapshots, auditTotal int) queryapi.Response {
	return queryapi.Response{
		{instance.TypeSnapshot: {Values: snapshotValues(snapshots), Total: snapshotTotal}},
		{instance.TypeAudit: {Values: snapshotValues(auditTotal), Total: auditTotal}},
	}
}

func staticQuery(resp queryapi.Response) queryapi.Client {
	return queryapi.ClientFunc(func(ctx context.Context, req queryapi.Request) (queryapi.Response, error) {
		return resp, nil
	})
}

func TestUnmapItem_LoadRelatedObjects(t *testing.T) {
	f := newFixture()
	var vm *UnmapItem
	var busy bool
	var got queryapi.Request
	query := queryapi.ClientFunc(func(ctx context.Context, req queryapi.Request) (queryapi.Response, error) {
		busy = vm.IsLoading()
		got = req
		return itemResponse(10, 2, 1), nil
	})
	vm = NewUnmapItem(f.deps(query, nil), f.issue, f.target)

	require.NoError(t, vm.LoadRelatedObjects(context.Background()))
	require.True(t, busy)
	require.False(t, vm.IsLoading())
	require.Equal(t, 11, vm.Total())
	require.Len(t, vm.RelatedSnapshots(), 2)
	require.Equal(t, 10, vm.Paging().Total())

	require.Len(t, got.Data, 2)
	require.Equal(t, instance.TypeSnapshot, got.Data[0].Type)
	require.Equal(t, instance.TypeAudit, got.Data[1].Type)
}

func TestUnmapItem_LoadFailure(t *testing.T) {
	f := newFixture()
	query := queryapi.ClientFunc(func(ctx context.Context, req queryapi.Request) (queryapi.Response, error) {
		return nil, errors.New("boom")
	})
	vm := NewUnmapItem(f.deps(query, nil), f.issue, f.target)

	require.ErrorIs(t, vm.LoadRelatedObjects(context.Background()), ErrLoadRelated)
	require.False(t, vm.IsLoading())
	require.Equal(t, []string{"There was a problem with retrieving related objects."}, f.flashes.Errors())
}

func TestUnmapItem_ProcessRelatedSnapshots(t *testing.T) {
	t.Run("shows the modal when there are related objects", func(t *testing.T) {
		f := newFixture()
		unmapped := false
		vm := NewUnmapItem(f.deps(staticQuery(itemResponse(1, 1, 1)), unmapperFunc(func(context.Context, *instance.Instance, *instance.Instance) error {
			unmapped = true
			return nil
		})), f.issue, f.target)

		require.NoError(t, vm.ProcessRelatedSnapshots(context.Background()))
		require.False(t, unmapped)
		require.True(t, vm.ModalState().Open)
		require.Equal(t, "Unmapping (2 objects)", vm.ModalTitle())
	})

	t.Run("unmaps right away when nothing is related", func(t *testing.T) {
		f := newFixture()
		unmapped := false
		vm := NewUnmapItem(f.deps(staticQuery(itemResponse(0, 0, 0)), unmapperFunc(func(context.Context, *instance.Instance, *instance.Instance) error {
			unmapped = true
			return nil
		})), f.issue, f.target)

		require.NoError(t, vm.ProcessRelatedSnapshots(context.Background()))
		require.True(t, unmapped)
		require.False(t, vm.ModalState().Open)
		require.Equal(t, 0, f.closed)
	})
}

func TestUnmapItem_ShowModal(t *testing.T) {
	f := newFixture()

	single := NewUnmapItem(f.deps(staticQuery(itemResponse(1, 1, 0)), nil), f.issue, f.target)
	require.NoError(t, single.LoadRelatedObjects(context.Background()))
	single.ShowModal()
	require.Equal(t, "Unmapping (1 object)", single.ModalTitle())
	require.True(t, single.ShowRelatedSnapshots())

	plural := NewUnmapItem(f.deps(staticQuery(itemResponse(4, 4, 1)), nil), f.issue, f.target)
	require.NoError(t, plural.LoadRelatedObjects(context.Background()))
	plural.ShowModal()
	require.Equal(t, "Unmapping (5 objects)", plural.ModalTitle())
}

func TestUnmapItem_LocalizedTitle(t *testing.T) {
	f := newFixture()
	deps := f.deps(staticQuery(itemResponse(10, 2, 1)), nil)
	deps.Localizer = locales.Localizer("zh")
	vm := NewUnmapItem(deps, f.issue, f.target)

	require.NoError(t, vm.LoadRelatedObjects(context.Background()))
	vm.ShowModal()
	require.Equal(t, "正在取消映射（11 个对象）", vm.ModalTitle())
}

func TestUnmapItem_Click(t *testing.T) {
	t.Run("assessment targets go through the related snapshots", func(t *testing.T) {
		f := newFixture()
		calls := 0
		query := queryapi.ClientFunc(func(ctx context.Context, req queryapi.Request) (queryapi.Response, error) {
			calls++
			return itemResponse(2, 2, 0), nil
		})
		var unmapEvents int
		f.events.Subscribe(func(e *UnmapIssue) { unmapEvents++ })
		vm := NewUnmapItem(f.deps(query, nil), f.issue, f.target)

		require.NoError(t, vm.Click(context.Background()))
		require.Equal(t, 1, calls)
		require.Equal(t, 0, unmapEvents)
		require.True(t, vm.ModalState().Open)
	})

	t.Run("other targets dispatch unmapIssue", func(t *testing.T) {
		f := newFixture()
		f.target.Type = "Control"
		calls := 0
		query := queryapi.ClientFunc(func(ctx context.Context, req queryapi.Request) (queryapi.Response, error) {
			calls++
			return itemResponse(0, 0, 0), nil
		})
		var got *UnmapIssue
		f.events.Subscribe(func(e *UnmapIssue) { got = e })
		vm := NewUnmapItem(f.deps(query, nil), f.issue, f.target)

		require.NoError(t, vm.Click(context.Background()))
		require.Equal(t, 0, calls)
		require.NotNil(t, got)
		require.Same(t, f.issue, got.Issue)
	})

	t.Run("issues allowed to unmap from audit dispatch unmapIssue", func(t *testing.T) {
		f := newFixture()
		f.issue.AllowUnmapFromAudit = true
		var events int
		f.events.Subscribe(func(e *UnmapIssue) { events++ })
		vm := NewUnmapItem(f.deps(nil, nil), f.issue, f.target)

		require.NoError(t, vm.Click(context.Background()))
		require.Equal(t, 1, events)
	})
}

func TestUnmapItem_UnmapFailure(t *testing.T) {
	f := newFixture()
	vm := NewUnmapItem(f.deps(nil, unmapperFunc(func(context.Context, *instance.Instance, *instance.Instance) error {
		return errors.New("refresh failed")
	})), f.issue, f.target)

	require.ErrorIs(t, vm.Unmap(context.Background()), ErrUnmapRelated)
	require.False(t, vm.IsLoading())
	require.Equal(t, []string{"There was a problem with unmapping."}, f.flashes.Errors())
}

func TestUnmapItem_PagingChangesReload(t *testing.T) {
	f := newFixture()
	calls := 0
	query := queryapi.ClientFunc(func(ctx context.Context, req queryapi.Request) (queryapi.Response, error) {
		calls++
		return itemResponse(20, 5, 1), nil
	})
	vm := NewUnmapItem(f.deps(query, nil), f.issue, f.target)

	require.NoError(t, vm.SetCurrentPage(context.Background(), 2))
	require.NoError(t, vm.SetPageSize(context.Background(), 15))
	require.Equal(t, 2, calls)
}

// A click whose load is overtaken by a page change must not unmap: its own
// response never arrived, while the newer one reports related objects.
func TestUnmapItem_ProcessRelatedSnapshots_SupersededLoadNeverUnmaps(t *testing.T) {
	f := newFixture()
	firstStarted := make(chan struct{})
	var calls atomic.Int32
	query := queryapi.ClientFunc(func(ctx context.Context, req queryapi.Request) (queryapi.Response, error) {
		if calls.Add(1) == 1 {
			close(firstStarted)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return itemResponse(5, 2, 1), nil
	})
	var unmapped atomic.Bool
	vm := NewUnmapItem(f.deps(query, unmapperFunc(func(context.Context, *instance.Instance, *instance.Instance) error {
		unmapped.Store(true)
		return nil
	})), f.issue, f.target)

	done := make(chan error, 1)
	go func() { done <- vm.ProcessRelatedSnapshots(context.Background()) }()
	<-firstStarted

	require.NoError(t, vm.SetCurrentPage(context.Background(), 2))
	require.ErrorIs(t, <-done, ErrSuperseded)

	require.False(t, unmapped.Load())
	require.Equal(t, 6, vm.Total())
	require.False(t, vm.IsLoading())
	require.Empty(t, f.flashes.Errors())
}

func TestUnmapItem_ProcessRelatedSnapshots_SupersededLoadUsesOwnTotal(t *testing.T) {
	f := newFixture()
	firstStarted := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	query := queryapi.ClientFunc(func(ctx context.Context, req queryapi.Request) (queryapi.Response, error) {
		if calls.Add(1) == 1 {
			close(firstStarted)
			<-release
			return itemResponse(2, 2, 1), nil
		}
		return itemResponse(0, 0, 0), nil
	})
	var unmapped atomic.Bool
	vm := NewUnmapItem(f.deps(query, unmapperFunc(func(context.Context, *instance.Instance, *instance.Instance) error {
		unmapped.Store(true)
		return nil
	})), f.issue, f.target)

	done := make(chan error, 1)
	go func() { done <- vm.ProcessRelatedSnapshots(context.Background()) }()
	<-firstStarted

	require.NoError(t, vm.SetCurrentPage(context.Background(), 2))
	close(release)
	require.NoError(t, <-done)

	require.False(t, unmapped.Load())
	require.True(t, vm.ModalState().Open)
	require.Equal(t, "Unmapping (3 objects)", vm.ModalTitle())
}
