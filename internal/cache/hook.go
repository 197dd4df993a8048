package cache

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

var (
	cachePipelines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_cache_pipeline_execs_total",
			Help: "Pipelined batches executed against each cache node.",
		},
		[]string{"role", "addr"},
	)
	cacheCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_cache_commands_total",
			Help: "Cache commands by node, command name and outcome.",
		},
		[]string{"role", "addr", "cmd", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(cachePipelines, cacheCommands)
}

// NodeStats is a snapshot of one node's counters. Batches counts ExecBatch
// pipelines; Commands counts everything the client sent, including the
// connection handshake.
type NodeStats struct {
	Role     string
	Addr     string
	Batches  uint64
	Commands uint64
}

// statsHook counts commands and pipelines per node in Prometheus and keeps
// a local command total for ShardRouter.Stats.
type statsHook struct {
	role, addr string
	commands   atomic.Uint64
}

func newStatsHook(role, addr string) *statsHook {
	return &statsHook{role: role, addr: addr}
}

func (h *statsHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *statsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		h.commands.Add(1)
		cacheCommands.WithLabelValues(h.role, h.addr, cmd.Name(), outcome(err)).Inc()
		return err
	}
}

func (h *statsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		h.commands.Add(uint64(len(cmds)))
		cachePipelines.WithLabelValues(h.role, h.addr).Inc()
		return err
	}
}

func outcome(err error) string {
	switch {
	case err == nil, err == redis.Nil:
		return "ok"
	default:
		return "error"
	}
}
