package main

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/kneurasense/kneuraflow"
)

// Simulates a wearable by publishing readings through a PushCollector
// instead of an MQTT broker. The dashboard is served on :9100.
func main() {
	cfg, err := kneuraflow.ParseConfig([]byte(`
device: {owner_id: demo-patient}
mqtt: {broker: "tcp://localhost:1883"}
storage: {driver: journal, journal: {dir: ./data/journal}}
`))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	push := kneuraflow.NewPushCollector("simulator", cfg.Policy)
	rt, err := kneuraflow.NewRuntime(cfg, kneuraflow.WithCollector(push))
	if err != nil {
		log.Fatalf("runtime: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go simulate(ctx, push)

	if err := rt.Run(ctx); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}

func simulate(ctx context.Context, push *kneuraflow.PushCollector) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload, _ := json.Marshal(map[string]any{
				"angle":      20 + rand.Float64()*60,
				"fsr":        rand.Intn(900),
				"skin_temp":  32 + rand.Float64()*3,
				"bat":        85,
				"risk_score": rand.Intn(101),
				"lat":        "52.5200",
				"lng":        "13.4050",
			})
			if err := push.Publish(payload); err != nil {
				log.Printf("publish: %v", err)
			}
		}
	}
}
