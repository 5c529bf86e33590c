// Package config loads the xrmorder configuration file.
//
// Example xrmorder.yaml:
//
//	schema:
//	  path: ./crm.yaml
//	  debounce: 250ms
//	store:
//	  enabled: true
//	  path: ./metadata.db
//	telemetry:
//	  logging:
//	    level: debug
//	  metrics:
//	    listen_address: ":9090"
//
// Values missing from the file keep their defaults.
package config
