package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/speedrun-hq/speedrun-go/pkg/circuitbreaker"
	"github.com/speedrun-hq/speedrun-go/pkg/config"
	"github.com/speedrun-hq/speedrun-go/pkg/gateway"
	"github.com/speedrun-hq/speedrun-go/pkg/health"
	"github.com/speedrun-hq/speedrun-go/pkg/logger"
	"github.com/speedrun-hq/speedrun-go/pkg/node"
	"github.com/speedrun-hq/speedrun-go/pkg/store"
)

var topologyFile string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the protocol node",
	Long: `Run hosts every chain declared in the topology inside one process:
the intent contracts on the spoke chains, the router on the hub, and the
gateway moving messages between them. State lives in memory unless
REDIS_ADDR is set; messages move in-process unless AMQP_URL is set.`,
	RunE: runNode,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&topologyFile, "topology", "", "Topology file (overrides TOPOLOGY_FILE)")
}

func runNode(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	log := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	if topologyFile == "" {
		topologyFile = cfg.TopologyFile
	}
	topo, err := config.LoadTopology(topologyFile)
	if err != nil {
		return err
	}

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	params := node.SimulationParams{
		Topology:    topo,
		Mode:        gateway.DeliverQueued,
		MaxAttempts: cfg.GatewayMaxAttempts,
		Breaker: gateway.BreakerConfig{
			Enabled:      cfg.CircuitBreaker.Enabled,
			Threshold:    cfg.CircuitBreaker.Threshold,
			Window:       cfg.CircuitBreaker.WindowDuration,
			ResetTimeout: cfg.CircuitBreaker.ResetTimeout,
		},
		SwapFeeBps: cfg.SwapFeeBps,
		Logger:     log,
	}

	if cfg.RedisAddr != "" {
		log.Info("Using redis intent stores at %s", cfg.RedisAddr)
		params.StoreFactory = func(chainID uint64) (store.Store, error) {
			return store.NewRedisStore(ctx, store.RedisConfig{Address: cfg.RedisAddr}, chainID)
		}
	}

	var amqpGW *gateway.AMQPGateway
	if cfg.AMQPURL != "" {
		log.Info("Using AMQP transport")
		amqpGW, err = gateway.NewAMQPGateway(gateway.AMQPConfig{URL: cfg.AMQPURL}, log)
		if err != nil {
			return err
		}
		defer amqpGW.Close()
		params.Transport = amqpGW
	}

	sim, err := node.NewSimulation(params)
	if err != nil {
		return err
	}
	sim.Gateway().Start(ctx, cfg.GatewayWorkers)

	// With a broker transport, outbound messages bypass the local gateway,
	// so each hosted chain consumes its own queue
	if amqpGW != nil {
		go consumeChain(ctx, amqpGW, topo.HubChain, sim.Router(), log)
		for chainID, n := range sim.Nodes() {
			go consumeChain(ctx, amqpGW, chainID, n, log)
		}
	}

	healthNodes := make(map[uint64]health.Node, len(sim.Nodes()))
	breakers := make(map[uint64]*circuitbreaker.CircuitBreaker, len(sim.Nodes()))
	for chainID, n := range sim.Nodes() {
		healthNodes[chainID] = n
		breakers[chainID] = sim.Gateway().Breaker(chainID)
	}
	breakers[topo.HubChain] = sim.Gateway().Breaker(topo.HubChain)
	healthServer := health.NewServer(cfg.MetricsPort, healthNodes, breakers, cfg.MetricsAPIKey, log)
	go healthServer.Start()

	// Set up signal handling for graceful shutdown
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	<-signalCh
	log.Notice("Received termination signal, shutting down gracefully...")
	cancel()
	sim.Gateway().Wait()
	return nil
}

func consumeChain(ctx context.Context, gw *gateway.AMQPGateway, chainID uint64, handler gateway.Handler, log logger.Logger) {
	if err := gw.Consume(ctx, chainID, handler); err != nil && ctx.Err() == nil {
		log.ErrorWithChain(chainID, "AMQP consumer stopped: %v", err)
	}
}
