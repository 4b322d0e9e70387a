// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"
	"time"

	"github.com/relabs-tech/flight_computer/internal/app"
	"github.com/relabs-tech/flight_computer/internal/config"
)

func main() {
	configPath := flag.String("config", "flight_config.txt", "path to the configuration file")
	printEvery := flag.Duration("print", 250*time.Millisecond, "status print interval")
	flag.Parse()

	log.Println("starting flight-computer (simulated board)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunSim(*printEvery); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
