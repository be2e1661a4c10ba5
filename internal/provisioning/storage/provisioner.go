// Package storage provisions the S3 bucket that holds the model and mounts
// it as a local directory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ddipass/deepseek-bedrock/internal/provisioning"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning/dependencies"
	"github.com/ddipass/deepseek-bedrock/internal/util/retry"
)

const phaseName = "storage"

// BucketClient creates buckets idempotently. Implemented by
// internal/platform/s3.Client.
type BucketClient interface {
	EnsureBucket(ctx context.Context, name string) (created bool, err error)
}

// BucketClientFactory builds a BucketClient for a region.
type BucketClientFactory func(ctx context.Context, region string) (BucketClient, error)

// Mounter attaches and detaches the bucket. Implemented by
// internal/platform/mount.Mounter.
type Mounter interface {
	IsMounted(path string) (bool, error)
	Mount(ctx context.Context, bucket, path, region string) error
	Unmount(ctx context.Context, path string) error
}

// ToolEnsurer installs the mount client. Implemented by
// dependencies.Installer.
type ToolEnsurer interface {
	Ensure(ctx context.Context, pkgs []dependencies.Package) ([]dependencies.Result, error)
}

// Provisioner is the storage phase.
type Provisioner struct {
	Host      HostMetadata
	Buckets   BucketClientFactory
	Mounter   Mounter
	Tools     ToolEnsurer
	MountTool dependencies.Package
}

// Name implements provisioning.Phase.
func (p *Provisioner) Name() string { return phaseName }

// Provision implements provisioning.Phase.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	mountPath, err := p.Provide(ctx)
	if err != nil {
		return err
	}
	ctx.Session.MountPath = mountPath
	return nil
}

// Provide runs every storage step and returns the verified mount path.
// Each step tolerates the resource already being in place.
func (p *Provisioner) Provide(ctx *provisioning.Context) (string, error) {
	cfg := ctx.Config

	id, err := DeriveIdentity(ctx, cfg, p.Host)
	if err != nil {
		return "", &provisioning.StorageMountError{Err: err}
	}
	ctx.Session.Identity = id
	ctx.Observer.Printf("[%s] storage identity %s from %s", phaseName, id.HostID, id.Source)

	region, err := p.region(ctx)
	if err != nil {
		return "", &provisioning.StorageMountError{Bucket: id.BucketName, Err: err}
	}

	// Bucket
	buckets, err := p.Buckets(ctx, region)
	if err != nil {
		return "", &provisioning.StorageMountError{Bucket: id.BucketName, Err: err}
	}
	created, err := buckets.EnsureBucket(ctx, id.BucketName)
	if err != nil {
		return "", &provisioning.StorageMountError{Bucket: id.BucketName, Err: err}
	}
	provisioning.LogOutcome(ctx.Observer, phaseName, "bucket", id.BucketName, outcome(created))
	// The bucket outlives the run; it is tracked but never deleted.
	ctx.Session.Acquire(provisioning.ResourceBucket, id.BucketName, nil)

	// Mount client
	if p.Tools != nil {
		if _, err := p.Tools.Ensure(ctx, []dependencies.Package{p.MountTool}); err != nil {
			return "", &provisioning.StorageMountError{Bucket: id.BucketName, Err: err}
		}
	}

	// Mount point
	mountPath, err := filepath.Abs(filepath.Join(cfg.ModelDir, id.MountName))
	if err != nil {
		return "", &provisioning.StorageMountError{Bucket: id.BucketName, Err: err}
	}
	if err := os.MkdirAll(mountPath, 0o755); err != nil {
		return "", &provisioning.StorageMountError{Bucket: id.BucketName, MountPath: mountPath, Err: err}
	}

	mounted, err := p.Mounter.IsMounted(mountPath)
	if err != nil {
		return "", &provisioning.StorageMountError{Bucket: id.BucketName, MountPath: mountPath, Err: err}
	}
	if !mounted {
		if err := p.Mounter.Mount(ctx, id.BucketName, mountPath, region); err != nil {
			return "", &provisioning.StorageMountError{Bucket: id.BucketName, MountPath: mountPath, Err: err}
		}
		if err := p.verify(ctx, mountPath); err != nil {
			return "", &provisioning.StorageMountError{Bucket: id.BucketName, MountPath: mountPath, Err: err}
		}
	}
	provisioning.LogOutcome(ctx.Observer, phaseName, "mount", mountPath, outcome(!mounted))

	mounter := p.Mounter
	ctx.Session.Acquire(provisioning.ResourceMount, mountPath, func(ctx context.Context) error {
		return mounter.Unmount(ctx, mountPath)
	})
	return mountPath, nil
}

// verify waits for the path to appear in the mount table. The mount client
// can exit zero while the FUSE attach fails afterwards.
func (p *Provisioner) verify(ctx *provisioning.Context, mountPath string) error {
	err := retry.Until(ctx, ctx.Timeouts.MountVerify, func(context.Context) (bool, error) {
		return p.Mounter.IsMounted(mountPath)
	}, retry.WithInitialDelay(ctx.Timeouts.RetryInitialDelay))
	if err != nil {
		return fmt.Errorf("mount command succeeded but %s is not in the mount table: %w", mountPath, err)
	}
	return nil
}

func (p *Provisioner) region(ctx *provisioning.Context) (string, error) {
	if ctx.Config.AWSRegion != "" {
		return ctx.Config.AWSRegion, nil
	}
	if p.Host == nil {
		return "", errors.New("AWS_REGION is not set and instance metadata is unavailable")
	}
	region, err := p.Host.Region(ctx)
	if err != nil {
		return "", fmt.Errorf("AWS_REGION is not set: %w", err)
	}
	return region, nil
}

func outcome(created bool) provisioning.Outcome {
	if created {
		return provisioning.NewlyCreated
	}
	return provisioning.AlreadyPresent
}
