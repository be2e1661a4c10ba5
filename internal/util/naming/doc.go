// Package naming provides consistent naming functions for deployment resources.
//
// The model bucket is named {prefix}-{host id}, where the host id is the EC2
// instance id (or the machine id off EC2), and is mounted under a directory of
// the same name. Model commits assemble in {final}.staging-{token} siblings
// and retire the previous copy to {final}.old-{token}.
package naming
