// Package config provides configuration management for the switchboard
// process.
//
// Configuration is loaded from environment variables and validated on startup.
// All configuration options have sensible defaults for development against a
// local Ollama endpoint. The handler registry itself lives in a separate YAML
// document pointed at by REGISTRY_PATH.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg)
package config
