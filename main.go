package main

import (
	"log"

	"github.com/derek2403/MicroSearch/config"
	httpapi "github.com/derek2403/MicroSearch/http-api"
)

func main() {
	cfg := config.Load()

	r := httpapi.NewRouter(cfg)

	log.Printf(
		"microsearch listening (addr=%s price=%s network=%s search_mode=%s)",
		cfg.Server.Addr(),
		cfg.Payment.DisplayPrice(),
		cfg.Payment.Network,
		cfg.Search.Mode,
	)
	if err := r.Run(cfg.Server.Addr()); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
