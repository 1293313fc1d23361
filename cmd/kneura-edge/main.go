package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kneurasense/kneuraflow"
	"github.com/kneurasense/kneuraflow/internal/adapters/journal"
	"github.com/kneurasense/kneuraflow/internal/domain"
	"github.com/kneurasense/kneuraflow/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "journal":
		err = journalCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("kneura-edge %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to edge configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := kneuraflow.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.Init(cfg.Log.Level, cfg.Log.Format)

	flow, err := kneuraflow.ConfFromConfig(cfg, kneuraflow.WithFlowOptions(kneuraflow.WithLogger(logger)))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return flow.Run(ctx)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := kneuraflow.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	fmt.Printf("config %s looks good: owner=%s topic=%s storage=%s weather=%t\n",
		*cfgPath, cfg.Device.OwnerID, cfg.MQTT.Topic, cfg.Storage.Driver, cfg.Weather.Enabled)
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	client := &http.Client{Timeout: *interval}
	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(client, *url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

func printMetricsSnapshot(client *http.Client, url string) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	targets := map[string]float64{
		"kneura_samples_received_total":  0,
		"kneura_samples_rejected_total":  0,
		"kneura_snapshots_written_total": 0,
		"kneura_device_online":           0,
		"kneura_risk_score":              0,
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for key := range targets {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %f", &value); err == nil {
					targets[key] = value
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Printf("[%s] samples=%.0f rejected=%.0f snapshots=%.0f online=%.0f risk=%.0f\n",
		time.Now().Format(time.RFC3339),
		targets["kneura_samples_received_total"],
		targets["kneura_samples_rejected_total"],
		targets["kneura_snapshots_written_total"],
		targets["kneura_device_online"],
		targets["kneura_risk_score"],
	)
	return nil
}

func journalCommand(args []string) error {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	dir := fs.String("dir", "./data/journal", "Snapshot journal directory")
	asJSON := fs.Bool("json", false, "Print one JSON object per snapshot")
	if err := fs.Parse(args); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	var count int
	err := journal.ReadFile(journal.Path(*dir), func(s *domain.Snapshot) error {
		count++
		if *asJSON {
			return enc.Encode(s)
		}
		fmt.Printf("%s seq=%d owner=%s risk=%d/%s angle=%.1f bat=%d\n",
			s.RecordedAt.Format(time.RFC3339), s.SampleSeq, s.OwnerID,
			s.RiskScore, s.RiskTier, s.JointAngleDeg, s.BatteryPct)
		return nil
	})
	if err != nil {
		return err
	}
	if !*asJSON {
		fmt.Printf("%d snapshots\n", count)
	}
	return nil
}

func printUsage() {
	fmt.Printf(`KneuraFlow CLI

Usage:
  kneura-edge <command> [flags]

Commands:
  run        Start the telemetry runtime using the provided config
  validate   Load and validate a config file without starting the runtime
  stats      Poll the Prometheus metrics endpoint and print live counters
  journal    Print the snapshots stored in the local journal

Examples:
  kneura-edge run -config ./data/config.yaml
  kneura-edge validate -config ./data/config.yaml
  kneura-edge stats -url http://localhost:9100/metrics -interval 1s
  kneura-edge journal -dir ./data/journal -json
`)
}
