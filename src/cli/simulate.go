package cli

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"lsp-pool/src/internal/common"
	"lsp-pool/src/pool"
	"lsp-pool/src/server"
	"lsp-pool/src/workspace"
)

// SimulationOptions configure a pooling drill.
type SimulationOptions struct {
	MaxConnections    int
	Workers           int
	Workspaces        int
	RequestsPerWorker int
	Anonymous         bool
	JSONOutput        bool
	Seed              int64
}

// SimulationReport summarizes a finished drill.
type SimulationReport struct {
	Workers     int                      `json:"workers"`
	Workspaces  int                      `json:"workspaces,omitempty"`
	Requests    int64                    `json:"requests"`
	Succeeded   int64                    `json:"succeeded"`
	Degraded    int64                    `json:"degraded"`
	Failed      int64                    `json:"failed"`
	Created     int                      `json:"connections_created"`
	DurationMs  float64                  `json:"duration_ms"`
	Pool        pool.RegistryStatistics  `json:"pool"`
	Connections []pool.ConnectionMetrics `json:"connections"`
}

// RunSimulation drives concurrent workers through the dispatcher against
// simulated language servers and prints the resulting pool state. In
// workspace mode workers are spread over a fixed set of workspace roots so
// connection sharing kicks in; in anonymous mode the capacity-bounded
// sub-pool does the work.
func RunSimulation(opts SimulationOptions) error {
	if opts.Workers <= 0 {
		opts.Workers = DefaultSimWorkers
	}
	if opts.Workspaces <= 0 {
		opts.Workspaces = DefaultSimWorkspaces
	}
	if opts.RequestsPerWorker <= 0 {
		opts.RequestsPerWorker = DefaultSimRequests
	}

	factory := pool.NewSimulatedFactory(opts.Seed)
	factory.CreateDelay = 20 * time.Millisecond
	factory.RequestDelay = 5 * time.Millisecond

	p := pool.NewConnectionPool(opts.MaxConnections, factory)
	defer func() { _ = p.Close() }()
	dispatcher := server.NewDispatcher(p, server.DispatchPolicy{})

	mode := "workspace sharing"
	if opts.Anonymous {
		mode = "anonymous recycling"
	}
	common.CLILogger.Info("Starting drill: %d workers, %d requests each (%s)",
		opts.Workers, opts.RequestsPerWorker, mode)

	var succeeded, degraded, failed int64
	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			workspacePath := ""
			if !opts.Anonymous {
				workspacePath = fmt.Sprintf("/drill/workspace%d", i%opts.Workspaces)
			}
			for r := 0; r < opts.RequestsPerWorker; r++ {
				ctx, cancel := common.CreateContext(10 * time.Second)
				file := fmt.Sprintf("/drill/file%d.go", r)
				result, err := dispatcher.Hover(ctx, workspacePath, "go", file, uint32(r), 0)
				cancel()
				switch {
				case err != nil:
					atomic.AddInt64(&failed, 1)
				case result.Degraded:
					atomic.AddInt64(&degraded, 1)
				default:
					atomic.AddInt64(&succeeded, 1)
				}
			}
		}()
	}
	wg.Wait()

	report := SimulationReport{
		Workers:     opts.Workers,
		Requests:    int64(opts.Workers) * int64(opts.RequestsPerWorker),
		Succeeded:   atomic.LoadInt64(&succeeded),
		Degraded:    atomic.LoadInt64(&degraded),
		Failed:      atomic.LoadInt64(&failed),
		Created:     factory.CreatedCount(),
		DurationMs:  float64(time.Since(start)) / float64(time.Millisecond),
		Pool:        p.GetStats(),
		Connections: p.MetricsSnapshot(),
	}
	if !opts.Anonymous {
		report.Workspaces = opts.Workspaces
	}

	if opts.JSONOutput {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printSimulationReport(report)
	return nil
}

func printSimulationReport(report SimulationReport) {
	fmt.Printf("Drill finished in %.0fms\n", report.DurationMs)
	fmt.Printf("  Requests:    %d total, %d succeeded, %d degraded, %d failed\n",
		report.Requests, report.Succeeded, report.Degraded, report.Failed)
	fmt.Printf("  Pool:        %d connections (%d created), %d available, %d active checkouts\n",
		report.Pool.TotalConnections, report.Created, report.Pool.AvailableConnections,
		report.Pool.ActiveConnections)
	if len(report.Connections) == 0 {
		return
	}
	fmt.Println("  Connections:")
	for _, cm := range report.Connections {
		target := "(anonymous)"
		if cm.WorkspaceKey != "" {
			target = workspace.KeyToPath(cm.WorkspaceKey)
		}
		fmt.Printf("    %-10s score %.2f  pending %-3d rt %6.1fms  %s\n",
			shortID(cm.ID), cm.HealthScore, cm.PendingRequests, cm.ResponseTimeMs, target)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
