// Command node is the CLI entry point for one consensus participant: it
// registers with the hub, runs one consensus instance per AppPropose the
// hub streams, and reports decisions back. Spec.md §6's non-goals keep the
// hub protocol itself and the CLI surface thin -- everything else lives in
// pkg/consensus.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/jabolina/go-epoch-consensus/pkg/consensus/core"
	"github.com/jabolina/go-epoch-consensus/pkg/consensus/definition"
	"github.com/jabolina/go-epoch-consensus/pkg/consensus/hub"
	"github.com/jabolina/go-epoch-consensus/pkg/consensus/metrics"
	"github.com/jabolina/go-epoch-consensus/pkg/consensus/types"
)

var (
	nodePort   = kingpin.Flag("port", "local port this node listens on").Required().Int()
	hubHost    = kingpin.Flag("hub-host", "hub host").Required().String()
	hubPort    = kingpin.Flag("hub-port", "hub port").Required().Int()
	owner      = kingpin.Flag("owner", "owner name used for hub registration").Required().String()
	index      = kingpin.Flag("index", "process index used for hub registration").Required().Int()
	metricsBind = kingpin.Flag("metrics-bind", "address to serve /metrics on, empty disables it").Default("").String()
)

func main() {
	kingpin.Parse()

	logger := definition.NewDefaultLogger()

	network, err := core.NewTCPNetwork("0.0.0.0", *nodePort, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("failed binding node socket: %v", err))
		os.Exit(1)
	}

	client, err := hub.Dial(*hubHost, *hubPort, *owner, *index, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("failed registering with hub: %v", err))
		os.Exit(1)
	}
	defer client.Close()

	registry := metrics.NewRegistry()
	if *metricsBind != "" {
		go func() {
			if err := http.ListenAndServe(*metricsBind, registry.Handler()); err != nil {
				logger.Warnf("metrics server stopped: %v", err)
			}
		}()
	}

	color.Green("node listening on port %d, registered with hub %s:%d as %s/%d", *nodePort, *hubHost, *hubPort, *owner, *index)

	instances := make(map[string]*core.Instance)
	for proposal := range client.Proposals() {
		self, found := proposal.Members.Find(*nodePort)
		if !found {
			logger.Errorf("system %s does not list this node's port %d in its membership, skipping", proposal.SystemId, *nodePort)
			continue
		}

		systemId := proposal.SystemId
		cfg := types.DefaultInstanceConfiguration(systemId, proposal.Members, self, logger)

		instance := core.StartInstance(cfg, network, proposal.Value, func(value types.Value) {
			registry.Decisions.WithLabelValues(systemId).Inc()
			if err := client.Decide(systemId, value); err != nil {
				logger.Errorf("failed reporting decision for %s: %v", systemId, err)
			}
		})
		instances[systemId] = instance

		go pollMetrics(registry, instance)
	}

	for _, instance := range instances {
		instance.Stop()
	}
	if err := network.Close(); err != nil {
		logger.Warnf("error closing network: %v", err)
	}
}

// pollMetrics periodically samples an instance's exported gauges. The
// metrics these feed are best-effort snapshots of state that otherwise only
// the dispatcher goroutine mutates; that race is acceptable for an
// observability surface.
func pollMetrics(registry *metrics.Registry, instance *core.Instance) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		registry.QueueDepth.WithLabelValues(instance.SystemId).Set(float64(instance.Dispatcher.QueueDepth()))
		registry.SuspectedCount.WithLabelValues(instance.SystemId).Set(float64(instance.SuspectedCount()))
		registry.EpochCount.WithLabelValues(instance.SystemId).Set(float64(instance.EpochsStarted()))
	}
}
