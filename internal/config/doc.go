// Package config handles configuration loading for compliance-gateway.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion. Defaults are applied before validation. When no file exists the
// configuration is assembled from environment variables alone.
//
// # Configuration File
//
// Locations (in order):
//
//  1. The --config flag
//  2. Path from the COMPLIANCE_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/compliance-gateway/config.yaml (~/.config when unset)
//
// Files ending in .toml are parsed as TOML; anything else as YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  api_key: "${MCP_API_KEY}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Environment-Only Mode
//
// Without a file, LoadFromEnv reads:
//
//   - MCP_API_KEY, MCP_JWT_SECRET: credentials
//   - MCP_HOST, MCP_PORT: listen address (default 0.0.0.0:8200)
//   - DATABASE_URL: postgres://..., or sqlite:///relative.db and
//     sqlite:////absolute.db
//
// # Configuration Sections
//
//	server:
//	  http_addr: "0.0.0.0:8200"
//	  read_header_timeout: "10s"
//	  shutdown_timeout: "15s"
//	  max_body_bytes: 1048576
//
//	database:
//	  driver: "sqlite"          # sqlite, postgres or memory
//	  path: "compliance.db"
//	  url: "postgres://..."
//	  max_open_conns: 10
//	  max_idle_conns: 5
//	  conn_max_lifetime: "30m"
//	  seed_demo_data: false
//
//	auth:
//	  api_key: "${MCP_API_KEY}"
//	  jwt_secret: "${MCP_JWT_SECRET}"
//	  disabled: false           # must be explicit to run without credentials
//
//	cache:
//	  driver: "none"            # none, memory or redis
//	  ttl: "5m"
//	  max_entries: 1024
//	  redis_addr: "localhost:6379"
//	  key_prefix: "compliance:"
//
//	files:
//	  root: "/srv/compliance-docs"   # enables the file tools
//	  max_read_bytes: 10485760
//
//	logging:
//	  level: "info"             # debug, info, warn, error
//	  format: "text"            # text or json
//
// # Validation
//
// Validate reports the first problem found. Startup fails when neither
// auth.api_key nor auth.jwt_secret is set, unless auth.disabled is true.
// Loading with StreamOnly waives that one rule for processes that serve
// only the stream transport.
package config
