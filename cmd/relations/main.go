// Command relations serves the relations endpoint and ingests room events.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/pkg/errors"

	"github.com/Zereker/relations/internal/server"
)

const defaultConfig = "configs/config.toml"

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("relations: %v", err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("relations", flag.ContinueOnError)
	configFile := fs.String("config", configDefault(), "path to the relations TOML config (env RELATIONS_CONFIG)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	conf, err := server.LoadConfig(*configFile)
	if err != nil {
		return errors.WithMessagef(err, "load %s", *configFile)
	}

	srv, err := server.NewServer(conf)
	if err != nil {
		return errors.WithMessage(err, "create relations server")
	}
	defer func() { _ = srv.Shutdown() }()

	return srv.Start()
}

func configDefault() string {
	if p := os.Getenv("RELATIONS_CONFIG"); p != "" {
		return p
	}
	return defaultConfig
}
