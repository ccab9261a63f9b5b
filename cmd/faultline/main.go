// Faultline is a fault-injection control server for testing failure
// handling in other systems.
//
// It keeps a registry of fault rules matched against checkpoint keys and
// can fail, delay, suspend, or kill the checking process when a checkpoint
// is hit. Faults are registered declaratively via a YAML plan file or at
// runtime through the admin HTTP API.
//
// Usage:
//
//	# Start the admin server with default configuration
//	faultline run
//
//	# Start with a custom configuration file
//	faultline run --config /path/to/config.yaml
//
//	# Validate a fault plan without applying it
//	faultline validate --plan faults.yaml
//
//	# Show version information
//	faultline version
package main

func main() {
	Execute()
}
