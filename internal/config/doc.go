// Package config defines the deployment configuration and its persisted records.
//
// The [Config] struct is parsed once from environment variables (optionally
// seeded from an env file), validated, and then passed read-only to every
// provisioning component. The package also owns the JSON records written
// under the config directory: recommended_params.json from the parameter
// detector and current_config.json from the resolver.
package config
