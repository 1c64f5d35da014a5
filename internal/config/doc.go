// Package config loads service configuration from environment variables.
//
// Only REDIS_URL is optional (standalone mode without the relay); every
// other knob has a sensible default.
package config
