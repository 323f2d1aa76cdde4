package main

import (
	"flag"
	"fmt"
	"os"

	"framecast/collector"
	"framecast/internal/logging"
)

var (
	configPath string
	daemon     bool
)

func init() {
	flag.StringVar(&configPath, "config", "collector.config.jsonc", "path to config file")
	flag.BoolVar(&daemon, "d", false, "run as a daemon")
}

func main() {
	flag.Parse()

	if daemon {
		parent, err := collector.Daemonize(os.Args[1:])
		if err != nil {
			fmt.Fprintf(os.Stderr, "collector: %v\n", err)
			os.Exit(1)
		}
		if parent {
			return
		}
	}

	cfg, err := collector.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "collector: %v\n", err)
		os.Exit(1)
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.File); err != nil {
		fmt.Fprintf(os.Stderr, "collector: %v\n", err)
		os.Exit(1)
	}
	log := logging.New("main")

	srv, err := collector.NewServer(cfg)
	if err != nil {
		log.Errorf("startup failed: %v", err)
		os.Exit(1)
	}
	srv.NotifyStop()

	if err := srv.Run(); err != nil {
		log.Errorf("run failed: %v", err)
		os.Exit(1)
	}
}
