package cache

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/tbourn/go-feed-backend/internal/domain"
)

func newSingle(t *testing.T) (*ShardRouter, *miniredis.Miniredis) {
	t.Helper()
	m := miniredis.RunT(t)
	r, err := New(Options{Mode: ModeSingle, Addr: m.Addr()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r, m
}

func newCluster(t *testing.T, n int) (*ShardRouter, []*miniredis.Miniredis) {
	t.Helper()
	nodes := make([]*miniredis.Miniredis, n)
	addrs := make([]string, n)
	for i := range nodes {
		nodes[i] = miniredis.RunT(t)
		addrs[i] = nodes[i].Addr()
	}
	r, err := New(Options{Mode: ModeCluster, ShardAddrs: addrs})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r, nodes
}

func TestNew_RejectsIncompleteOptions(t *testing.T) {
	cases := []Options{
		{Mode: ModeSingle},
		{Mode: ModeReplica, Addr: "localhost:6379"},
		{Mode: ModeCluster},
		{Mode: "sentinel", Addr: "localhost:6379"},
	}
	for _, opts := range cases {
		if _, err := New(opts); err == nil {
			t.Errorf("New(%+v) succeeded; want error", opts)
		}
	}
}

func TestNew_EmptyModeIsSingle(t *testing.T) {
	m := miniredis.RunT(t)
	r, err := New(Options{Addr: m.Addr()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer r.Close()
	if r.Mode() != ModeSingle || r.Shards() != 1 {
		t.Fatalf("mode=%q shards=%d", r.Mode(), r.Shards())
	}
}

func TestInsertIfAbsent_KeepsFirstScore(t *testing.T) {
	r, m := newSingle(t)
	ctx := context.Background()

	if err := r.InsertIfAbsent(ctx, "u:1", "100", 1000); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := r.InsertIfAbsent(ctx, "u:1", "100", 5000); err != nil {
		t.Fatalf("re-insert: %v", err)
	}

	members, _ := m.ZMembers("u:1")
	if len(members) != 1 {
		t.Fatalf("members = %v", members)
	}
	if score, _ := m.ZScore("u:1", "100"); score != 1000 {
		t.Fatalf("score = %v; ZADD NX must not overwrite", score)
	}
}

func TestRangeDesc_OrdersByScoreInclusiveStop(t *testing.T) {
	r, m := newSingle(t)
	for i, ts := range []float64{10, 30, 20, 40} {
		_, _ = m.ZAdd("u:2", ts, strconv.Itoa(i+1))
	}

	got, err := r.RangeDesc(context.Background(), "u:2", 0, 2)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	want := []Entry{{"4", 40}, {"2", 30}, {"3", 20}}
	if len(got) != len(want) {
		t.Fatalf("got %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry %d = %v; want %v", i, got[i], want[i])
		}
	}
}

func TestRangeDesc_MissingKeyIsEmpty(t *testing.T) {
	r, _ := newSingle(t)
	got, err := r.RangeDesc(context.Background(), "nobody", 0, 9)
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestReplica_ReadsFromReplicaWritesToPrimary(t *testing.T) {
	primary := miniredis.RunT(t)
	replica := miniredis.RunT(t)
	r, err := New(Options{Mode: ModeReplica, Addr: primary.Addr(), ReplicaAddr: replica.Addr()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer r.Close()
	ctx := context.Background()

	if err := r.InsertIfAbsent(ctx, "u:3", "7", 70); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !primary.Exists("u:3") || replica.Exists("u:3") {
		t.Fatalf("write must land on the primary only")
	}

	_, _ = replica.ZAdd("u:3", 80, "8")
	got, err := r.RangeDesc(ctx, "u:3", 0, 9)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(got) != 1 || got[0].Member != "8" {
		t.Fatalf("read must come from the replica, got %v", got)
	}

	stats := r.Stats()
	if len(stats) != 2 || stats[0].Role != "primary" || stats[1].Role != "replica" {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestExecBatch_SingleNodeOnePipeline(t *testing.T) {
	r, m := newSingle(t)
	var ins []Insert
	for i := 0; i < 500; i++ {
		ins = append(ins, Insert{Key: "home:" + strconv.Itoa(i), Member: "42", Score: 1})
	}
	if err := r.ExecBatch(context.Background(), ins); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if got := r.PipelineExecs(); got != 1 {
		t.Fatalf("pipelines = %d; want 1", got)
	}
	if !m.Exists("home:499") {
		t.Fatalf("insert missing")
	}
}

func TestExecBatch_EmptyIsNoOp(t *testing.T) {
	r, _ := newSingle(t)
	if err := r.ExecBatch(context.Background(), nil); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if r.PipelineExecs() != 0 {
		t.Fatalf("empty batch must not pipeline")
	}
}

func TestExecBatch_ClusterOnePipelinePerShard(t *testing.T) {
	const shards, recipients = 8, 10000
	r, nodes := newCluster(t, shards)

	ins := make([]Insert, 0, recipients)
	for i := 0; i < recipients; i++ {
		ins = append(ins, Insert{Key: strconv.Itoa(i), Member: "900", Score: 12345})
	}
	if err := r.ExecBatch(context.Background(), ins); err != nil {
		t.Fatalf("exec: %v", err)
	}

	if got := r.PipelineExecs(); got != shards {
		t.Fatalf("pipelines = %d; want %d", got, shards)
	}
	for _, s := range r.Stats() {
		if s.Batches != 1 {
			t.Fatalf("node %s ran %d batches; want 1", s.Role, s.Batches)
		}
	}
	for _, i := range []int{0, 1, 4999, 9999} {
		key := strconv.Itoa(i)
		if !nodes[r.ShardFor(key)].Exists(key) {
			t.Fatalf("key %s not on its routed shard", key)
		}
	}
}

func TestExecBatch_ShardFailureKeepsOtherShards(t *testing.T) {
	r, nodes := newCluster(t, 4)
	down := 2
	nodes[down].Close()

	var ins []Insert
	for i := 0; i < 200; i++ {
		ins = append(ins, Insert{Key: "k" + strconv.Itoa(i), Member: "1", Score: 1})
	}
	err := r.ExecBatch(context.Background(), ins)
	if !errors.Is(err, domain.ErrBackendFailure) {
		t.Fatalf("expected backend failure, got %v", err)
	}

	for _, in := range ins {
		s := r.ShardFor(in.Key)
		if s == down {
			continue
		}
		if !nodes[s].Exists(in.Key) {
			t.Fatalf("key %s on healthy shard %d was not written", in.Key, s)
		}
	}
}

func TestShardFor_StableAndInRange(t *testing.T) {
	r, _ := newCluster(t, 5)
	for i := 0; i < 100; i++ {
		k := "user:" + strconv.Itoa(i)
		s := r.ShardFor(k)
		if s < 0 || s >= 5 || s != r.ShardFor(k) {
			t.Fatalf("ShardFor(%q) = %d", k, s)
		}
	}
}

func TestPing(t *testing.T) {
	r, m := newSingle(t)
	if err := r.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	m.Close()
	if err := r.Ping(context.Background()); !errors.Is(err, domain.ErrBackendFailure) {
		t.Fatalf("expected backend failure, got %v", err)
	}
}
