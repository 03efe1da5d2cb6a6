// Command agentcore is the orchestrator's composition root: it loads
// configuration, wires every package's constructor together by reference
// (spec §9 REDESIGN FLAG against module-level singletons), and serves the
// Message Router over HTTP until an interrupt signal requests a graceful
// shutdown. Grounded on the teacher's cmd/maestro/main.go shape (flag
// parsing, a NewOrchestrator-style composition function, SIGINT/SIGTERM
// handling, a timed graceful Shutdown).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agentcore/pkg/a2a"
	"agentcore/pkg/config"
	"agentcore/pkg/handoff"
	"agentcore/pkg/httpapi"
	"agentcore/pkg/llmio"
	fakellm "agentcore/pkg/llmio/fake"
	"agentcore/pkg/logx"
	"agentcore/pkg/notify"
	"agentcore/pkg/orchstate"
	"agentcore/pkg/persistence"
	"agentcore/pkg/registry"
	"agentcore/pkg/resilience"
	"agentcore/pkg/router"
	"agentcore/pkg/session"
	"agentcore/pkg/telemetry"
	faketools "agentcore/pkg/toolprovider/fake"
	"agentcore/pkg/workflow"
)

func main() {
	var configPath string
	var addr string
	var metricsAddr string
	flag.StringVar(&configPath, "config", "", "Path to YAML configuration file (optional; defaults apply)")
	flag.StringVar(&addr, "addr", ":8080", "Address to serve the webapp/chat API on")
	flag.StringVar(&metricsAddr, "metrics-addr", ":9090", "Address to serve Prometheus metrics on")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("agentcore: failed to load config: %v", err)
	}

	log := logx.NewLogger("agentcore")

	srv, shutdown, err := bootstrap(cfg, log)
	if err != nil {
		log.Error("agentcore: bootstrap failed: %v", err)
		os.Exit(1)
	}
	defer shutdown()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil { //nolint:gosec // internal metrics endpoint, no request bodies
			log.Error("agentcore: metrics server stopped: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("agentcore: received signal %v, shutting down", sig)
		cancel()
	}()

	log.Info("agentcore: serving webapp API on %s", addr)
	if err := srv.Serve(ctx, addr, 10*time.Second); err != nil {
		log.Error("agentcore: http server stopped: %v", err)
		os.Exit(1)
	}
	log.Info("agentcore: shutdown complete")
}

// bootstrap wires the composition root: every constructor is called once
// here and the resulting dependency is passed by reference to whatever
// needs it next, so nothing in this module relies on a package-level
// global (spec §9 REDESIGN FLAG). It returns the httpapi.Server plus a
// close function that releases the database handle.
func bootstrap(cfg *config.Config, log *logx.Logger) (*httpapi.Server, func(), error) {
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("agentcore: open database %s: %w", cfg.DBPath, err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			log.Error("agentcore: closing database: %v", err)
		}
	}

	states := orchstate.New(db)
	handoffs := handoff.New(db)
	reg := registry.New(cfg.ContextLimit, cfg.WarnFraction, cfg.CritFraction, cfg.AgentCaching)

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	tracer := telemetry.NewTracer(metrics)
	bus := a2a.New(tracer)

	transport := notify.NewChatTransport()
	notifier := notify.New(transport, cfg.MaxMsgChars, cfg.ChunkDelay, log)

	// The concrete LLM client and build/deploy/VCS transports are explicitly
	// out of scope for this module (spec §1: both are treated as an opaque
	// request/response seam). The fake implementations below are the
	// reference wiring a real deployment replaces with its own LLMCaller and
	// toolprovider.Provider; every other component in this composition root
	// is production wiring.
	var llm llmio.LLMCaller = fakellm.New(llmio.CompletionResponse{Content: "{}"})
	tools := faketools.New()

	engine := workflow.New(states, handoffs, reg, bus, notifier, tools, llm, tracer, log, cfg)

	classifyCache := resilience.NewClassifierCache(cfg.ClassifyCacheSize, cfg.ClassifyTTL)
	classifier := router.NewClassifier(llm, classifyCache)
	webappIntent := router.NewWebappIntentClassifier(llm, classifyCache)
	conversation := router.NewLLMConversationReplier(llm)

	sessions := session.New(cfg.TTLSession, cfg.NHistory, cfg.TTLSession)

	rt := router.New(sessions, states, classifier, webappIntent, engine, notifier, conversation, log)

	return httpapi.NewServer(rt, log), closeDB, nil
}
