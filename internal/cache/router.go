// Package cache implements the feed cache: Redis sorted sets keyed by feed
// owner, with post ids as members and post timestamps (ms) as scores.
//
// A ShardRouter hides the backend topology behind three operations:
// RangeDesc, InsertIfAbsent and ExecBatch. The topology is chosen once at
// construction:
//
//   - single:  one node serves reads and writes
//   - replica: writes go to the primary, reads go to the replica
//   - cluster: N independent shards; a key lives on shard fnv32a(key) % N
//
// Inserts are always ZADD NX, so re-applying an entry never changes its
// score or duplicates it. ExecBatch groups inserts by the writer node their
// key routes to and runs exactly one pipeline per node touched.
package cache

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-feed-backend/internal/domain"
)

// Topology modes accepted by New.
const (
	ModeSingle  = "single"
	ModeReplica = "replica"
	ModeCluster = "cluster"
)

// dependency is the name used in DependencyErrors raised by this package.
const dependency = "redis"

// Options selects and sizes the topology.
type Options struct {
	Mode        string
	Addr        string   // single node, or primary in replica mode
	ReplicaAddr string   // replica mode only
	ShardAddrs  []string // cluster mode only
	Password    string
	PoolSize    int
	DialTimeout time.Duration
}

// Insert is one conditional insert of Member with Score into Key.
type Insert struct {
	Key    string
	Member string
	Score  float64
}

// Entry is one member of a sorted-set range read.
type Entry struct {
	Member string
	Score  float64
}

// ShardRouter routes feed-cache operations to the right Redis node.
// The key-to-node mapping is fixed after construction, so lookups are safe
// for concurrent use without locking.
type ShardRouter struct {
	mode    string
	writers []*redis.Client
	readers []*redis.Client
	hooks   map[*redis.Client]*statsHook
	batches []atomic.Uint64 // ExecBatch pipelines per writer
}

// New connects the topology described by opts. It does not ping; use Ping.
func New(opts Options) (*ShardRouter, error) {
	r := &ShardRouter{mode: opts.Mode, hooks: make(map[*redis.Client]*statsHook)}
	mk := func(addr, role string) *redis.Client {
		c := redis.NewClient(&redis.Options{
			Addr:        addr,
			Password:    opts.Password,
			PoolSize:    opts.PoolSize,
			DialTimeout: opts.DialTimeout,
		})
		h := newStatsHook(role, addr)
		c.AddHook(h)
		r.hooks[c] = h
		return c
	}

	switch opts.Mode {
	case ModeSingle, "":
		r.mode = ModeSingle
		if opts.Addr == "" {
			return nil, errors.New("cache: single mode requires an address")
		}
		r.writers = []*redis.Client{mk(opts.Addr, "primary")}
		r.readers = r.writers
	case ModeReplica:
		if opts.Addr == "" || opts.ReplicaAddr == "" {
			return nil, errors.New("cache: replica mode requires primary and replica addresses")
		}
		r.writers = []*redis.Client{mk(opts.Addr, "primary")}
		r.readers = []*redis.Client{mk(opts.ReplicaAddr, "replica")}
	case ModeCluster:
		if len(opts.ShardAddrs) == 0 {
			return nil, errors.New("cache: cluster mode requires at least one shard address")
		}
		for i, addr := range opts.ShardAddrs {
			r.writers = append(r.writers, mk(addr, "shard-"+strconv.Itoa(i)))
		}
		r.readers = r.writers
	default:
		return nil, fmt.Errorf("cache: unknown mode %q", opts.Mode)
	}

	r.batches = make([]atomic.Uint64, len(r.writers))
	return r, nil
}

// Mode returns the topology mode.
func (r *ShardRouter) Mode() string { return r.mode }

// Shards returns the number of writer nodes.
func (r *ShardRouter) Shards() int { return len(r.writers) }

// ShardFor returns the writer index key routes to.
func (r *ShardRouter) ShardFor(key string) int {
	if len(r.writers) == 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(r.writers)))
}

func (r *ShardRouter) reader(key string) *redis.Client {
	if len(r.readers) == 1 {
		return r.readers[0]
	}
	return r.readers[r.ShardFor(key)]
}

// RangeDesc returns members of key ranked start..stop (inclusive, highest
// score first), like ZREVRANGE. A missing key yields an empty slice.
func (r *ShardRouter) RangeDesc(ctx context.Context, key string, start, stop int64) ([]Entry, error) {
	zs, err := r.reader(key).ZRevRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, domain.Backend(dependency, "ZREVRANGE", err)
	}
	out := make([]Entry, 0, len(zs))
	for _, z := range zs {
		m, ok := z.Member.(string)
		if !ok {
			m = fmt.Sprint(z.Member)
		}
		out = append(out, Entry{Member: m, Score: z.Score})
	}
	return out, nil
}

// InsertIfAbsent adds member with score to key unless it is already present.
func (r *ShardRouter) InsertIfAbsent(ctx context.Context, key, member string, score float64) error {
	err := r.writers[r.ShardFor(key)].ZAddNX(ctx, key, redis.Z{Score: score, Member: member}).Err()
	return domain.Backend(dependency, "ZADD NX", err)
}

// ExecBatch applies inserts with one pipeline per writer node touched. All
// pipelines run concurrently and every one runs to completion; the first
// failure is returned. Pipelines that succeeded are not rolled back.
func (r *ShardRouter) ExecBatch(ctx context.Context, inserts []Insert) error {
	if len(inserts) == 0 {
		return nil
	}
	groups := make(map[int][]Insert, len(r.writers))
	for _, in := range inserts {
		i := r.ShardFor(in.Key)
		groups[i] = append(groups[i], in)
	}

	var g errgroup.Group
	for shard, batch := range groups {
		shard, client, batch := shard, r.writers[shard], batch
		op := "pipeline ZADD NX shard " + strconv.Itoa(shard)
		g.Go(func() error {
			pipe := client.Pipeline()
			for _, in := range batch {
				pipe.ZAddNX(ctx, in.Key, redis.Z{Score: in.Score, Member: in.Member})
			}
			_, err := pipe.Exec(ctx)
			r.batches[shard].Add(1)
			return domain.Backend(dependency, op, err)
		})
	}
	return g.Wait()
}

// Ping checks every node of the topology.
func (r *ShardRouter) Ping(ctx context.Context) error {
	for _, c := range r.clients() {
		if err := c.Ping(ctx).Err(); err != nil {
			return domain.Backend(dependency, "PING "+c.Options().Addr, err)
		}
	}
	return nil
}

// clients lists every distinct node client once.
func (r *ShardRouter) clients() []*redis.Client {
	seen := make(map[*redis.Client]bool, len(r.writers)+len(r.readers))
	var out []*redis.Client
	for _, set := range [][]*redis.Client{r.writers, r.readers} {
		for _, c := range set {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

// Stats reports per-node counters, writers first.
func (r *ShardRouter) Stats() []NodeStats {
	out := make([]NodeStats, 0, len(r.hooks))
	for i, c := range r.writers {
		h := r.hooks[c]
		out = append(out, NodeStats{Role: h.role, Addr: h.addr, Batches: r.batches[i].Load(), Commands: h.commands.Load()})
	}
	if r.mode == ModeReplica {
		h := r.hooks[r.readers[0]]
		out = append(out, NodeStats{Role: h.role, Addr: h.addr, Commands: h.commands.Load()})
	}
	return out
}

// PipelineExecs sums ExecBatch pipeline executions across all writers.
func (r *ShardRouter) PipelineExecs() uint64 {
	var n uint64
	for i := range r.batches {
		n += r.batches[i].Load()
	}
	return n
}

// Close closes every client.
func (r *ShardRouter) Close() error {
	var errs []error
	for _, c := range r.clients() {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
