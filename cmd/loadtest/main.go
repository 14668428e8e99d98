package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	goruntime "runtime"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/codewandler/pactor/core/actor"
	"github.com/codewandler/pactor/core/runtime"
	"github.com/codewandler/pactor/internal/backend"
	"github.com/codewandler/pactor/ports/kv"
)

// === Config ===

// NOTE: run nats: docker run -v "/tmp/nats/jetstream:/tmp/nats/jetstream" --net=host nats:latest -js

type config struct {
	backend.Config
	N         int        `env:"N" envDefault:"10000"`
	Hops      int        `env:"HOPS" envDefault:"3"`
	Actors    int        `env:"ACTORS" envDefault:"8"`
	BatchSize int        `env:"B" envDefault:"1000"`
	CacheSize int        `env:"CACHE_SIZE" envDefault:"1024"`
	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"warn"`
}

// === Domain ===

// Hop travels Left more hops around the ring.
type Hop struct {
	Left int `json:"left"`
}

// Node counts the hops it has seen and forwards them to Next.
type Node struct {
	Next actor.ID[*Node]
}

func (n *Node) Init(cx *actor.Context) error {
	actor.Put(cx.Storage, counterKey(cx.Self()), 0)
	return nil
}

func (n *Node) OnHop(cx *actor.Context, h Hop) error {
	v, err := actor.BorrowMut[int](cx.Storage, counterKey(cx.Self()))
	if err != nil {
		return err
	}
	*v++
	if h.Left > 0 {
		return actor.Send(cx, n.Next, Hop{Left: h.Left - 1})
	}
	return nil
}

func counterKey(id actor.AnyID) string { return fmt.Sprintf("node/%d/hops", id.Instance) }

func main() {
	var cfg config
	checkErr(env.Parse(&cfg))

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	fmt.Printf("Backend: %s\n", cfg.Backend)
	fmt.Printf(" Actors: %d\n", cfg.Actors)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx, cancel = context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	be, err := backend.Open(ctx, cfg.Config, log)
	checkErr(err)
	defer be.Close()

	rt := runtime.New(runtime.Options{
		Store:     be.Store,
		Logger:    log,
		CacheSize: cfg.CacheSize,
	})
	defer rt.Close()

	actor.RegisterActor[*Node](rt)
	actor.RegisterHandler(rt, (*Node).OnHop)

	nodes := make([]*Node, cfg.Actors)
	ids := make([]actor.ID[*Node], cfg.Actors)
	for i := range nodes {
		nodes[i] = &Node{}
		ids[i] = runtime.AddActor(rt, nodes[i], be.Log)
	}
	for i, n := range nodes {
		n.Next = ids[(i+1)%len(ids)]
	}

	// === START ===

	log.Info("==================================")
	log.Info("Starting ...")

	startAt := time.Now()
	lastTime := startAt

	for i := 0; i < cfg.N; i++ {
		msg, err := actor.EncodeMessage(Hop{Left: cfg.Hops})
		checkErr(err)
		_, err = be.Log.Append(ctx, actor.AnyID{}, ids[i%len(ids)].Any(), msg)
		checkErr(err)

		if i == 0 {
			continue
		}
		if i%100 == 0 {
			print(".")
		}
		if i%cfg.BatchSize == 0 {
			mu := getMemUsage()

			n := time.Now()
			took := n.Sub(lastTime)
			fmt.Printf(" | %5d appends | %6d ms |  %6d appends/s | (%d / %d) MiB mem (sys) |\n", cfg.BatchSize, took.Milliseconds(), int(float64(cfg.BatchSize)/took.Seconds()), mu.Alloc/1024/1024, mu.Sys/1024/1024)
			lastTime = n
		}
	}
	println("")

	appendedAt := time.Now()
	checkErr(rt.Run(ctx))

	// === stats ===
	println("==========================================")

	doneAt := time.Now()
	goruntime.GC()

	var total int
	for _, id := range ids {
		v, err := kv.Get[int](ctx, be.Store, counterKey(id.Any()))
		checkErr(err)
		total += v
	}
	dispatches := cfg.N * (cfg.Hops + 1)

	fmt.Printf("total runtime: %.3f seconds\n", doneAt.Sub(startAt).Seconds())
	fmt.Printf("  dispatch time: %.3f seconds\n", doneAt.Sub(appendedAt).Seconds())
	fmt.Printf("   hops counted: %d (expected %d)\n", total, dispatches)
	fmt.Printf("avg. dispatches/s: %d\n", int(float64(dispatches)/doneAt.Sub(appendedAt).Seconds()))

	checkErr(rt.Compact(ctx))
}

// === stats helpers ===

type MemUsage struct {
	Alloc      uint64 // bytes allocated and not yet freed (heap)
	TotalAlloc uint64 // cumulative bytes allocated
	Sys        uint64 // total bytes obtained from OS
	NumGC      uint32 // gc cycles
}

func getMemUsage() MemUsage {
	var m goruntime.MemStats
	goruntime.ReadMemStats(&m)
	return MemUsage{
		Alloc:      m.Alloc,
		TotalAlloc: m.TotalAlloc,
		Sys:        m.Sys,
		NumGC:      m.NumGC,
	}
}

// === Helpers ===

func checkErr(err error) {
	if err != nil {
		panic(err)
	}
}
