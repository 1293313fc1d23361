package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/kneurasense/kneuraflow"
)

func main() {
	flow, err := kneuraflow.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, snaps, closeSnaps := kneuraflow.NewChannelSink("alerts", 32)
	defer closeSnaps()

	go alertWorker(snaps)

	if err := flow.Run(ctx, kneuraflow.StreamOutSink(sink)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}

// alertWorker prints only the snapshots in the critical tier.
func alertWorker(snaps <-chan kneuraflow.Snapshot) {
	for snap := range snaps {
		if snap.RiskTier != kneuraflow.Critical.String() {
			continue
		}
		fmt.Printf("ALERT patient=%s risk=%d angle=%.1f at %s\n",
			snap.OwnerID, snap.RiskScore, snap.JointAngleDeg, snap.ReceivedAt)
	}
}
