// Package config provides configuration management for the render worker.
//
// Configuration is loaded from environment variables and validated on startup.
// A .env file in the working directory is applied first when present; values
// already set in the environment win. All options have defaults suitable for
// development.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg)
package config
