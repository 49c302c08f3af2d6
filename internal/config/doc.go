// Package config provides configuration management for the conductor service.
//
// Configuration is loaded from environment variables using the env package.
// All configuration values have sensible defaults for development use; only
// PYANNOTE_API_KEY has to be set to talk to the real diarization backend.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("HTTP server will listen on %s\n", cfg.GetHTTPAddr())
package config
