package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"shaper/internal/builder"
	"shaper/internal/config"
	"shaper/internal/util"

	"gopkg.in/yaml.v3"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	util.Infof("starting shaper in %s mode (seed %d)", cfg.Mode, cfg.Distribution.Seed)
	if data, err := yaml.Marshal(&cfg); err == nil {
		util.Highlightf("config:\n%s", string(data))
	}

	b, err := builder.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up builder: %v\n", err)
		os.Exit(1)
	}
	if err := b.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}
}
