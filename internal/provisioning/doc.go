// Package provisioning provides shared types, interfaces, and orchestration for a deployment.
//
// # Subpackages
//
//   - environment/ — accelerator and container runtime validation
//   - dependencies/ — idempotent system and Python package installation
//   - storage/ — bucket creation, mount and mount verification
//   - model/ — stage-then-commit model snapshot acquisition
//   - params/ — tuning parameter resolution and detection
//   - service/ — serving process launch and supervision
//   - monitoring/ — dashboard stack and auxiliary monitor task
//
// # Core Types
//
// Context carries configuration, the session, observer and metrics.
// Phase defines a provisioning step with Name() and Provision() methods.
// Session tracks the lifecycle state, acquired resources and their teardowns.
// Orchestrator runs the stages in order and always ends with the Coordinator,
// which releases acquired resources in a fixed order.
package provisioning
