package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/kneurasense/kneuraflow/pkg/kneuraflow"
)

func main() {
	flow, err := kneuraflow.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(_ context.Context, snap kneuraflow.Snapshot) error {
		weather := "n/a"
		if snap.WeatherTempC != nil {
			weather = fmt.Sprintf("%.1fC %s", *snap.WeatherTempC, snap.WeatherCondition)
		}
		fmt.Printf("%s patient=%s seq=%d angle=%.1f risk=%d (%s) weather=%s\n",
			snap.RecordedAt.Format(time.RFC3339),
			snap.OwnerID,
			snap.SampleSeq,
			snap.JointAngleDeg,
			snap.RiskScore,
			snap.RiskTier,
			weather,
		)
		return nil
	}

	if err := flow.Run(ctx, kneuraflow.StreamOutCallback("stdout", callback)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}
