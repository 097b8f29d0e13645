package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/ppg-go/pulseox"
)

func main() {
	configPath := flag.String("config", "pulseox.yaml", "path to the YAML configuration")
	busName := flag.String("bus", "", "I2C bus name (empty selects the first available)")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := pulseox.Load(*configPath)
	if err != nil {
		logger.Fatal("could not load configuration", zap.Error(err))
	}

	dev, err := pulseox.New(
		pulseox.OnBus(*busName),
		pulseox.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("could not open sensor", zap.Error(err))
	}
	defer dev.Close()

	if err := dev.Configure(cfg); err != nil {
		logger.Fatal("could not configure sensor", zap.Error(err))
	}
	if err := dev.Activate(); err != nil {
		logger.Fatal("could not activate sensor", zap.Error(err))
	}
	defer dev.Deactivate()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-stop:
			fmt.Println()
			return
		case <-tick.C:
		}

		if !dev.Ready() {
			continue
		}
		if err := dev.Poll(); err != nil {
			logger.Fatal("poll failed", zap.Error(err))
		}

		res, err := dev.ReadProcessedData()
		if err != nil {
			logger.Fatal("read failed", zap.Error(err))
		}

		switch {
		case res.Valid:
			fmt.Printf("\rbpm = %5.1f  spo2 = %5.1f%%  temp = %4.1fC ",
				res.HeartRateBPM, res.SpO2Percent, res.TemperatureC)
		default:
			fmt.Printf("\rwaiting for signal...                     ")
		}
	}
}
