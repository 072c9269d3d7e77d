package device

import (
	"context"
	"fmt"
	"sync"

	cnserrors "github.com/born-ml/metakit/internal/errors"
	"golang.org/x/sync/errgroup"
)

// Collective is the process-group primitive device selection needs.
type Collective interface {
	Rank() int
	WorldSize() int
	Initialized() bool
	// Broadcast copies root's buf into buf on every other rank. Every rank
	// must call it with a buffer of the same length.
	Broadcast(ctx context.Context, buf []int32, root int) error
}

// LocalGroup is an in-process Collective for goroutine ranks.
//
// Every Broadcast is a barrier: no rank returns until all ranks have
// entered the same round and root's data has been published.
type LocalGroup struct {
	size int

	mu     sync.Mutex
	rounds map[int]*round
}

type round struct {
	published chan struct{}
	all       chan struct{}
	data      []int32
	arrived   int
	released  int
}

// NewLocalGroup creates a group of worldSize ranks.
func NewLocalGroup(worldSize int) *LocalGroup {
	return &LocalGroup{size: worldSize, rounds: make(map[int]*round)}
}

// Member returns rank's handle on the group.
func (g *LocalGroup) Member(rank int) *LocalMember {
	if rank < 0 || rank >= g.size {
		panic(fmt.Sprintf("local group: rank %d out of range [0, %d)", rank, g.size))
	}
	return &LocalMember{group: g, rank: rank}
}

func (g *LocalGroup) enter(seq int) *round {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rounds[seq]
	if !ok {
		r = &round{published: make(chan struct{}), all: make(chan struct{})}
		g.rounds[seq] = r
	}
	r.arrived++
	if r.arrived == g.size {
		close(r.all)
	}
	return r
}

func (g *LocalGroup) leave(seq int, r *round) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r.released++
	if r.released == g.size {
		delete(g.rounds, seq)
	}
}

// LocalMember is one rank of a LocalGroup. A member is used by a single
// goroutine.
type LocalMember struct {
	group *LocalGroup
	rank  int
	seq   int
}

// Rank returns the member's rank.
func (m *LocalMember) Rank() int {
	return m.rank
}

// WorldSize returns the group size.
func (m *LocalMember) WorldSize() int {
	return m.group.size
}

// Initialized is always true.
func (m *LocalMember) Initialized() bool {
	return true
}

// Broadcast implements Collective. It returns ctx's error if the round does
// not complete before ctx is done.
func (m *LocalMember) Broadcast(ctx context.Context, buf []int32, root int) error {
	if root < 0 || root >= m.group.size {
		return cnserrors.New(cnserrors.ErrCodeInvalidRequest,
			fmt.Sprintf("broadcast root %d out of range [0, %d)", root, m.group.size))
	}

	seq := m.seq
	m.seq++
	r := m.group.enter(seq)
	defer m.group.leave(seq, r)

	if m.rank == root {
		r.data = append([]int32(nil), buf...)
		close(r.published)
	} else {
		select {
		case <-r.published:
		case <-ctx.Done():
			return ctx.Err()
		}
		if len(r.data) != len(buf) {
			return cnserrors.New(cnserrors.ErrCodeInvalidRequest,
				fmt.Sprintf("broadcast length mismatch: root sent %d, rank %d expects %d",
					len(r.data), m.rank, len(buf)))
		}
		copy(buf, r.data)
	}

	select {
	case <-r.all:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// RunLocal runs fn once per rank of a new LocalGroup, each on its own
// goroutine, and returns the first error. The context passed to fn is
// canceled when any rank fails.
func RunLocal(ctx context.Context, worldSize int, fn func(ctx context.Context, member Collective) error) error {
	if worldSize < 1 {
		return cnserrors.New(cnserrors.ErrCodeInvalidRequest,
			fmt.Sprintf("world size must be positive, got %d", worldSize))
	}

	group := NewLocalGroup(worldSize)
	g, gctx := errgroup.WithContext(ctx)
	for rank := range worldSize {
		member := group.Member(rank)
		g.Go(func() error {
			return fn(gctx, member)
		})
	}
	return g.Wait()
}
