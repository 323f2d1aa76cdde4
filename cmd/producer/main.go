package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"framecast/internal/logging"
	"framecast/producer"
)

var configPath string

func init() {
	flag.StringVar(&configPath, "config", "producer.config.jsonc", "path to config file")
}

func main() {
	flag.Parse()

	cfg, err := producer.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "producer: %v\n", err)
		os.Exit(1)
	}

	// Optional positional argument: camera device index.
	if flag.NArg() > 0 {
		idx, err := strconv.Atoi(flag.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "usage: producer [flags] [device-index]\n")
			os.Exit(1)
		}
		cfg.Camera.Index = idx
	}

	if err := logging.Setup(cfg.Log.Level, cfg.Log.File); err != nil {
		fmt.Fprintf(os.Stderr, "producer: %v\n", err)
		os.Exit(1)
	}
	log := logging.New("main")
	log.Infof("starting: collector=%s cycles=%d period=%v",
		cfg.Collector, cfg.Sequencer.Cycles, cfg.Sequencer.Period())

	pipeline, err := producer.NewPipeline(cfg)
	if err != nil {
		log.Errorf("startup failed: %v", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	if err := pipeline.Run(); err != nil {
		log.Errorf("run failed: %v", err)
		os.Exit(1)
	}
	log.Infof("timing report written to %s", cfg.RecordCSV)
}
