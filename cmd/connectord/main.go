package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/config"
	"github.com/flying-pisces/mkd-automation-sub002/internal/infrastructure/server"
	"github.com/flying-pisces/mkd-automation-sub002/internal/shared/paths"
)

// version is stamped by the build
var version = "dev"

func main() {
	port := flag.String("port", "", "HTTP port (overrides PORT)")
	configPath := flag.String("config", "", "Optional YAML or TOML config file")
	dev := flag.Bool("dev", false, "Development logging (console encoder, colored)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *configPath == "" {
		*configPath = defaultConfigFile()
	}
	if *configPath != "" {
		if err := config.LoadFile(cfg, *configPath); err != nil {
			log.Fatalf("Failed to load config file: %v", err)
		}
		log.Printf("Config file: %s", *configPath)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *dev {
		cfg.Logging.Development = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("MKD Connector %s", version)
	log.Printf("Native host: %s (%s)", cfg.Host.Name, cfg.Host.Command)

	srv, err := server.New(cfg, version)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.Printf("Received %v, shutting down gracefully", sig)
		if err := srv.Close(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	case err := <-errChan:
		log.Fatalf("Server error: %v", err)
	}
}

// defaultConfigFile looks for a config file in the user config directory.
// A missing file is fine, the environment defaults stand on their own.
func defaultConfigFile() string {
	dir, err := paths.ConfigDir()
	if err != nil {
		return ""
	}
	for _, name := range []string{"config.yaml", "config.yml", "config.toml"} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
