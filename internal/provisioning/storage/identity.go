package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ddipass/deepseek-bedrock/internal/config"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning"
	"github.com/ddipass/deepseek-bedrock/internal/util/naming"
)

// Identity is the host-derived storage name.
type Identity = provisioning.StorageIdentity

// Identity sources.
const (
	SourceOverride  = "override"
	SourceIMDS      = "imds"
	SourceMachineID = "machine-id"
)

// HostMetadata answers host identity questions. Implemented by
// internal/platform/imds.Client.
type HostMetadata interface {
	InstanceID(ctx context.Context) (string, error)
	Region(ctx context.Context) (string, error)
}

// DeriveIdentity resolves the host id from, in order: the configured
// override, the EC2 instance id, the local machine id. The result is stable
// for a host, so re-runs reuse the same bucket and mount.
func DeriveIdentity(ctx context.Context, cfg *config.Config, host HostMetadata) (Identity, error) {
	source, hostID, err := hostID(ctx, cfg, host)
	if err != nil {
		return Identity{}, err
	}
	bucket := naming.Bucket(cfg.BucketPrefix, hostID)
	return Identity{
		Source:     source,
		HostID:     hostID,
		BucketName: bucket,
		MountName:  naming.MountDir(bucket),
	}, nil
}

func hostID(ctx context.Context, cfg *config.Config, host HostMetadata) (string, string, error) {
	if id := strings.TrimSpace(cfg.StorageIdentity); id != "" {
		return SourceOverride, id, nil
	}

	var errs []error
	if host != nil {
		id, err := host.InstanceID(ctx)
		if err == nil {
			return SourceIMDS, id, nil
		}
		errs = append(errs, err)
	}

	// #nosec G304 - machine id path comes from configuration
	data, err := os.ReadFile(cfg.MachineIDPath)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return SourceMachineID, id, nil
		}
		err = fmt.Errorf("%s is empty", cfg.MachineIDPath)
	}
	errs = append(errs, err)

	return "", "", fmt.Errorf("cannot derive storage identity: %w", errors.Join(errs...))
}
