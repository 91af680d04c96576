package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madiyar29925/UavHealthTracker12/internal/fleet"
	"github.com/madiyar29925/UavHealthTracker12/internal/metrics"
)

func TestRegistryRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("initial data carries fleet, stats and ten alerts", func(t *testing.T) {
		store := seededStore(t)
		uav, err := store.GetUAV(ctx, 1)
		require.NoError(t, err)
		for i := 0; i < 12; i++ {
			_, err := store.CreateAlert(ctx, fleet.NewAlert{
				UAVID: uav.ID, Severity: fleet.SeverityInfo,
				Message: fmt.Sprintf("extra %d", i), Timestamp: uav.LastUpdated,
			})
			require.NoError(t, err)
		}

		reg := NewRegistry(store, RegistryOptions{})
		conn := newFakeConn("c1")
		reg.Register(ctx, conn)

		envs := conn.Envelopes(t)
		require.Len(t, envs, 1)
		assert.Equal(t, TypeInitialData, envs[0].Type)

		var data InitialData
		require.NoError(t, json.Unmarshal(envs[0].Payload, &data))
		assert.Len(t, data.UAVs, 6)
		assert.Len(t, data.Alerts, 10)
		assert.Equal(t, 4, data.Stats.ActiveUAVs)
		assert.Equal(t, 2, data.Stats.OfflineUAVs)
		assert.Equal(t, 1, reg.Len())
	})

	t.Run("snapshot failure still registers", func(t *testing.T) {
		reg := NewRegistry(failingSource{}, RegistryOptions{})
		conn := newFakeConn("c1")
		reg.Register(ctx, conn)

		assert.Empty(t, conn.Frames())
		assert.Equal(t, 1, reg.Len())

		reg.Broadcast(Envelope{Type: TypeNewAlert, Payload: json.RawMessage(`{}`)})
		assert.Equal(t, []MessageType{TypeNewAlert}, conn.Types(t))
	})

	t.Run("failed snapshot send still registers", func(t *testing.T) {
		reg := NewRegistry(seededStore(t), RegistryOptions{})
		conn := newFakeConn("c1")
		conn.sendErr = ErrSendQueueFull
		reg.Register(ctx, conn)
		assert.Equal(t, 1, reg.Len())
	})

	t.Run("on open hook runs after join", func(t *testing.T) {
		var reg *Registry
		var seen int
		reg = NewRegistry(seededStore(t), RegistryOptions{
			OnOpen: func(c Conn) { seen = reg.Len() },
		})
		reg.Register(ctx, newFakeConn("c1"))
		assert.Equal(t, 1, seen)
	})

	t.Run("registering twice keeps one membership", func(t *testing.T) {
		opened := 0
		reg := NewRegistry(seededStore(t), RegistryOptions{OnOpen: func(Conn) { opened++ }})
		conn := newFakeConn("c1")
		reg.Register(ctx, conn)
		reg.Register(ctx, conn)
		assert.Equal(t, 1, reg.Len())
		assert.Equal(t, 1, opened)
	})

	t.Run("initial data precedes every broadcast under concurrency", func(t *testing.T) {
		reg := NewRegistry(seededStore(t), RegistryOptions{})
		stop := make(chan struct{})
		var wg sync.WaitGroup

		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					reg.Broadcast(Envelope{Type: TypeNewAlert, Payload: json.RawMessage(`{"id":1}`)})
				}
			}
		}()

		conns := make([]*fakeConn, 50)
		for i := range conns {
			conns[i] = newFakeConn(fmt.Sprintf("c%d", i))
			wg.Add(1)
			go func(c *fakeConn) {
				defer wg.Done()
				reg.Register(ctx, c)
			}(conns[i])
		}

		require.Eventually(t, func() bool { return reg.Len() == len(conns) }, 2*time.Second, time.Millisecond)
		close(stop)
		wg.Wait()

		for _, c := range conns {
			types := c.Types(t)
			require.NotEmpty(t, types, c.id)
			assert.Equal(t, TypeInitialData, types[0], c.id)
			for _, typ := range types[1:] {
				assert.Equal(t, TypeNewAlert, typ, c.id)
			}
		}
	})
}

func TestRegistryUnregister(t *testing.T) {
	ctx := context.Background()

	t.Run("idempotent with one close hook", func(t *testing.T) {
		closed := 0
		reg := NewRegistry(seededStore(t), RegistryOptions{OnClose: func(Conn) { closed++ }})
		a, b := newFakeConn("a"), newFakeConn("b")
		reg.Register(ctx, a)
		reg.Register(ctx, b)

		reg.Unregister(a)
		reg.Unregister(a)
		reg.Unregister(newFakeConn("never-registered"))

		assert.Equal(t, 1, closed)
		require.Equal(t, 1, reg.Len())
		assert.Same(t, b, reg.Conns()[0].(*fakeConn))
	})

	t.Run("concurrent unregister of the same connection", func(t *testing.T) {
		var mu sync.Mutex
		closed := 0
		reg := NewRegistry(seededStore(t), RegistryOptions{OnClose: func(Conn) {
			mu.Lock()
			closed++
			mu.Unlock()
		}})
		c := newFakeConn("a")
		reg.Register(ctx, c)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				reg.Unregister(c)
			}()
		}
		wg.Wait()

		assert.Equal(t, 0, reg.Len())
		assert.Equal(t, 1, closed)
	})

	t.Run("close all", func(t *testing.T) {
		reg := NewRegistry(seededStore(t), RegistryOptions{})
		a, b := newFakeConn("a"), newFakeConn("b")
		reg.Register(ctx, a)
		reg.Register(ctx, b)

		reg.CloseAll()
		assert.False(t, a.IsOpen())
		assert.False(t, b.IsOpen())
	})
}

func TestRegistryBroadcast(t *testing.T) {
	ctx := context.Background()
	env := Envelope{Type: TypeUAVUpdate, Payload: json.RawMessage(`{"id":3}`)}

	t.Run("every open connection gets the frame despite failures", func(t *testing.T) {
		reg := NewRegistry(seededStore(t), RegistryOptions{})

		good1 := newFakeConn("good1")
		erroring := newFakeConn("erroring")
		panicking := newFakeConn("panicking")
		good2 := newFakeConn("good2")
		for _, c := range []*fakeConn{good1, erroring, panicking, good2} {
			reg.Register(ctx, c)
		}
		erroring.sendErr = errors.New("broken pipe")
		panicking.panics = true

		before := testutil.ToFloat64(metrics.SendFailures.WithLabelValues("panic"))
		n := reg.Broadcast(env)

		assert.Equal(t, 2, n)
		for _, c := range []*fakeConn{good1, good2} {
			frames := c.Frames()
			require.Len(t, frames, 2, c.id)
			assert.JSONEq(t, `{"type":"uav_update","payload":{"id":3}}`, string(frames[1]))
		}
		assert.Equal(t, before+1, testutil.ToFloat64(metrics.SendFailures.WithLabelValues("panic")))
		assert.Equal(t, 4, reg.Len(), "failing connections stay registered")
	})

	t.Run("closed connections are skipped but kept", func(t *testing.T) {
		reg := NewRegistry(seededStore(t), RegistryOptions{})
		open, closed := newFakeConn("open"), newFakeConn("closed")
		reg.Register(ctx, open)
		reg.Register(ctx, closed)
		closed.Close()

		assert.Equal(t, 1, reg.Broadcast(env))
		assert.Len(t, closed.Frames(), 1, "only initial data")
		assert.Equal(t, 2, reg.Len())
	})

	t.Run("delivery follows registration order", func(t *testing.T) {
		var mu sync.Mutex
		var order []string
		reg := NewRegistry(seededStore(t), RegistryOptions{})
		conns := make([]*orderConn, 5)
		for i := range conns {
			conns[i] = &orderConn{fakeConn: newFakeConn(fmt.Sprintf("c%d", i)), order: &order, mu: &mu}
			reg.Register(ctx, conns[i])
		}
		order = nil

		reg.Broadcast(env)
		assert.Equal(t, []string{"c0", "c1", "c2", "c3", "c4"}, order)
	})

	t.Run("empty registry", func(t *testing.T) {
		reg := NewRegistry(seededStore(t), RegistryOptions{})
		assert.Equal(t, 0, reg.Broadcast(env))
	})
}

// orderConn records the order in which connections are sent to
type orderConn struct {
	*fakeConn
	order *[]string
	mu    *sync.Mutex
}

func (c *orderConn) Send(frame []byte) error {
	c.mu.Lock()
	*c.order = append(*c.order, c.id)
	c.mu.Unlock()
	return c.fakeConn.Send(frame)
}

// gatedSource blocks the first ListUAVs after arm until release is closed
type gatedSource struct {
	Source
	gated   chan struct{}
	release chan struct{}
	armed   bool
	mu      sync.Mutex
}

func (g *gatedSource) arm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.armed = true
}

func (g *gatedSource) ListUAVs(ctx context.Context) ([]fleet.UAV, error) {
	g.mu.Lock()
	armed := g.armed
	g.armed = false
	g.mu.Unlock()
	if armed {
		close(g.gated)
		<-g.release
	}
	return g.Source.ListUAVs(ctx)
}

func TestRegistrySlowSnapshot(t *testing.T) {
	ctx := context.Background()
	env := Envelope{Type: TypeNewAlert, Payload: json.RawMessage(`{"id":4}`)}

	setup := func(t *testing.T) (*Registry, *gatedSource, *fakeConn) {
		src := &gatedSource{Source: seededStore(t), gated: make(chan struct{}), release: make(chan struct{})}
		reg := NewRegistry(src, RegistryOptions{})
		member := newFakeConn("member")
		reg.Register(ctx, member)
		src.arm()
		return reg, src, member
	}

	t.Run("broadcasts are not held up by a joining connection", func(t *testing.T) {
		reg, src, member := setup(t)
		joiner := newFakeConn("joiner")
		joined := make(chan struct{})
		go func() {
			reg.Register(ctx, joiner)
			close(joined)
		}()
		<-src.gated

		done := make(chan int, 1)
		go func() { done <- reg.Broadcast(env) }()
		select {
		case n := <-done:
			assert.Equal(t, 1, n)
		case <-time.After(time.Second):
			t.Fatal("broadcast waited on the snapshot")
		}
		assert.Equal(t, []MessageType{TypeInitialData, TypeNewAlert}, member.Types(t))
		assert.Equal(t, 1, reg.Len())

		close(src.release)
		<-joined
		assert.Equal(t, []MessageType{TypeInitialData, TypeNewAlert}, joiner.Types(t))
		assert.Equal(t, 2, reg.Len())
	})

	t.Run("unregister while joining keeps the connection out", func(t *testing.T) {
		opened := 0
		reg, src, _ := setup(t)
		reg.onOpen = func(Conn) { opened++ }
		joiner := newFakeConn("joiner")
		joined := make(chan struct{})
		go func() {
			reg.Register(ctx, joiner)
			close(joined)
		}()
		<-src.gated

		reg.Unregister(joiner)
		close(src.release)
		<-joined

		assert.Equal(t, 1, reg.Len())
		assert.Equal(t, 0, opened)
		reg.Broadcast(env)
		assert.Equal(t, []MessageType{TypeInitialData}, joiner.Types(t))
	})
}
