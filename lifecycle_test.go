package lifetrack

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type conn struct {
	Handle
	addr   string
	events []string
}

func (c *conn) record(event string) Cleanup {
	return func() error {
		c.events = append(c.events, event)
		return nil
	}
}

func TestHandle_CloseRunsCleanupsInReverse(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	conns := MustTrack[conn](r)

	c, err := conns.New(func(c *conn, h *Handle) error {
		c.addr = "db:5432"
		require.NoError(t, h.OnClose(c.record("socket")))
		require.NoError(t, h.OnClose(c.record("pool")))
		return nil
	})
	require.NoError(t, err)

	status, err := c.CloseStatus()
	require.NoError(t, err)
	require.Equal(t, Closed, status)
	require.Equal(t, []string{"pool", "socket"}, c.events)
}

func TestHandle_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	conns := MustTrack[conn](r)

	var runs atomic.Int32
	c, err := conns.New(func(c *conn, h *Handle) error {
		return h.OnClose(func() error {
			runs.Add(1)
			return nil
		})
	})
	require.NoError(t, err)

	require.NoError(t, c.Close())
	first, ok := c.DeletedAt()
	require.True(t, ok)
	statsAfterFirst := conns.Stats()

	for range 3 {
		status, err := c.CloseStatus()
		require.NoError(t, err)
		require.Equal(t, RedundantClose, status)
	}

	again, ok := c.DeletedAt()
	require.True(t, ok)
	require.Equal(t, first, again, "deletion time is stamped once")
	require.Equal(t, statsAfterFirst, conns.Stats())
	require.Equal(t, int32(1), runs.Load())
	require.False(t, c.IsActive())
}

func TestHandle_ConcurrentClose(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	conns := MustTrack[conn](r)

	var runs atomic.Int32
	c, err := conns.New(func(c *conn, h *Handle) error {
		return h.OnClose(func() error {
			runs.Add(1)
			return nil
		})
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var closed atomic.Int32
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, err := c.CloseStatus()
			if err != nil {
				t.Error(err)
			}
			if c.IsActive() {
				t.Errorf("close returned %s while the record is still active", status)
			}
			if status == Closed {
				closed.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), runs.Load())
	require.Equal(t, int32(1), closed.Load())
	require.Equal(t, uint64(1), conns.Stats().TotalDeleted)
}

func TestHandle_RedundantCloseWaitsForSlowCleanup(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	conns := MustTrack[conn](r)

	for range 50 {
		c, err := conns.New(func(c *conn, h *Handle) error {
			return h.OnClose(func() error {
				time.Sleep(200 * time.Microsecond)
				return nil
			})
		})
		require.NoError(t, err)

		var wg sync.WaitGroup
		statuses := make([]CloseStatus, 2)
		active := make([]bool, 2)
		for i := range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				statuses[i], _ = c.CloseStatus()
				active[i] = c.IsActive()
			}()
		}
		wg.Wait()

		require.ElementsMatch(t, []CloseStatus{Closed, RedundantClose}, statuses)
		require.Equal(t, []bool{false, false}, active)
		_, deleted := c.DeletedAt()
		require.True(t, deleted)
	}

	stats := conns.Stats()
	require.Equal(t, uint64(50), stats.TotalDeleted)
	require.Equal(t, uint64(0), stats.ActiveInstances)
}

func TestHandle_CleanupErrorStillRetires(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	conns := MustTrack[conn](r)

	boom := errors.New("boom")
	var later bool
	c := &conn{addr: "x"}
	_, err := conns.Register(
		c,
		WithCleanup(func() error {
			later = true
			return nil
		}),
		WithCleanup(func() error { return boom }),
	)
	require.NoError(t, err)

	status, err := c.CloseStatus()
	require.Equal(t, Closed, status)
	require.True(t, IsCleanupFailed(err))
	require.ErrorIs(t, err, boom)
	require.True(t, later, "remaining cleanups still run")
	require.False(t, c.IsActive())
	require.Equal(t, uint64(1), conns.Stats().TotalDeleted)
}

func TestHandle_OnCloseAfterClose(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	conns := MustTrack[conn](r)

	c, err := conns.New(nil)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	err = c.OnClose(func() error { return nil })
	require.True(t, IsInstanceClosed(err))
}

func TestHandle_IDAvailableDuringInit(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	conns := MustTrack[conn](r)

	var seen uint64
	var active bool
	c, err := conns.New(func(c *conn, h *Handle) error {
		seen = h.ID()
		active = c.IsActive()
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, c.ID(), seen)
	require.NotZero(t, seen)
	require.True(t, active)
}

func TestHandle_InitFailureClosesInstance(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	conns := MustTrack[conn](r)

	var cleaned bool
	_, err := conns.New(func(c *conn, h *Handle) error {
		_ = h.OnClose(func() error {
			cleaned = true
			return nil
		})
		return errors.New("dial failed")
	})
	require.True(t, IsInitFailed(err))
	require.True(t, cleaned)

	stats := conns.Stats()
	require.Equal(t, uint64(1), stats.TotalCreated)
	require.Equal(t, uint64(1), stats.TotalDeleted)
	require.Equal(t, uint64(0), stats.ActiveInstances)
}

func TestHandle_RegistryRetireThenClose(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	conns := MustTrack[conn](r)

	var cleaned bool
	c, err := conns.New(func(c *conn, h *Handle) error {
		return h.OnClose(func() error {
			cleaned = true
			return nil
		})
	})
	require.NoError(t, err)

	status, err := r.Retire(conns.Name(), c.ID())
	require.NoError(t, err)
	require.Equal(t, Closed, status)
	require.False(t, cleaned, "registry retirement does not run cleanups")

	status, err = c.CloseStatus()
	require.NoError(t, err)
	require.Equal(t, RedundantClose, status)
	require.True(t, cleaned)
	require.Equal(t, uint64(1), conns.Stats().TotalDeleted)
}

func TestHandle_Metadata(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var tick atomic.Int64
	clock := func() time.Time {
		return start.Add(time.Duration(tick.Add(1)) * time.Minute)
	}

	r := newTestRegistry(WithClock(clock))
	conns := MustTrack[conn](r, WithClassName("Conn"))

	c, err := conns.New(nil)
	require.NoError(t, err)
	require.Equal(t, start.Add(time.Minute), c.CreatedAt())
	require.Equal(t, "Conn#1", c.String())
	require.Equal(t, InstanceRef{Class: "Conn", ID: 1}, c.Ref())

	require.NoError(t, c.Close())

	meta := c.Metadata()
	require.Equal(t, "Conn", meta.Class)
	require.Equal(t, uint64(1), meta.ID)
	require.False(t, meta.Active)
	require.NotNil(t, meta.DeletedAt)
	require.Equal(t, start.Add(2*time.Minute), *meta.DeletedAt)

	looked, err := r.Lookup("Conn", 1)
	require.NoError(t, err)
	require.Equal(t, meta, looked)
}

func TestUse_ClosesOnReturn(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	conns := MustTrack[conn](r)

	c, err := conns.New(nil)
	require.NoError(t, err)

	err = Use(c, func(c *conn) error {
		require.True(t, c.IsActive())
		return nil
	})
	require.NoError(t, err)
	require.False(t, c.IsActive())
	require.Empty(t, slicesOf(conns))
}

func TestUse_ClosesOnError(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	conns := MustTrack[conn](r)
	c, _ := conns.New(nil)

	failure := errors.New("query failed")
	err := Use(c, func(*conn) error { return failure })
	require.ErrorIs(t, err, failure)
	require.False(t, c.IsActive())
}

func TestUse_ClosesOnPanic(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	conns := MustTrack[conn](r)
	c, _ := conns.New(nil)

	require.PanicsWithValue(t, "boom", func() {
		_ = Use(c, func(*conn) error { panic("boom") })
	})
	require.False(t, c.IsActive())
	require.Equal(t, uint64(1), conns.Stats().TotalDeleted)
}

func TestUse_ManualCloseInsideScope(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	conns := MustTrack[conn](r)
	c, _ := conns.New(nil)

	err := With(c, func() error {
		return c.Close()
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), conns.Stats().TotalDeleted)
}

func TestUse_RejectsClosedResource(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	conns := MustTrack[conn](r)
	c, _ := conns.New(nil)
	require.NoError(t, c.Close())

	called := false
	err := Use(c, func(*conn) error {
		called = true
		return nil
	})
	require.True(t, IsInstanceClosed(err))
	require.False(t, called)
}

func TestUse_JoinsCloseError(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	conns := MustTrack[conn](r)

	closeErr := errors.New("flush failed")
	c, err := conns.New(func(c *conn, h *Handle) error {
		return h.OnClose(func() error { return closeErr })
	})
	require.NoError(t, err)

	bodyErr := errors.New("body failed")
	err = With(c, func() error { return bodyErr })
	require.ErrorIs(t, err, bodyErr)
	require.ErrorIs(t, err, closeErr)
}

type brokenConn struct {
	Handle
}

// Close forgets to call Handle.Close.
func (b *brokenConn) Close() error {
	return nil
}

//go:noinline
func dropBroken(t *testing.T, c *Class[brokenConn]) {
	b, err := c.New(nil)
	require.NoError(t, err)
	require.NoError(t, b.Close())
}

func TestBrokenCloseChainSurfacesAsOrphan(t *testing.T) {
	r := newTestRegistry()
	c := MustTrack[brokenConn](r)

	dropBroken(t, c)
	require.Equal(t, uint64(1), c.Stats().ActiveInstances, "record stays active")

	collectUntil(t, func() bool { return len(c.Orphans()) == 1 })
}

func slicesOf[T any](c *Class[T]) []*T {
	var out []*T
	for v := range c.ActiveInstances() {
		out = append(out, v)
	}
	runtime.KeepAlive(c)
	return out
}
