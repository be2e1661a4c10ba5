package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ddipass/deepseek-bedrock/internal/config"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning/dependencies"
	tu "github.com/ddipass/deepseek-bedrock/internal/testing"
	"github.com/ddipass/deepseek-bedrock/internal/util/naming"
)

type fakeHost struct {
	id     string
	region string
	err    error
}

func (h fakeHost) InstanceID(context.Context) (string, error) { return h.id, h.err }
func (h fakeHost) Region(context.Context) (string, error)     { return h.region, h.err }

type fakeTools struct {
	pkgs []dependencies.Package
	err  error
}

func (f *fakeTools) Ensure(_ context.Context, pkgs []dependencies.Package) ([]dependencies.Result, error) {
	f.pkgs = append(f.pkgs, pkgs...)
	return nil, f.err
}

func newProvisioner(buckets *tu.MockBucketClient, mounter *tu.MockMounter) *Provisioner {
	return &Provisioner{
		Host: fakeHost{id: "i-0abc", region: "us-west-2"},
		Buckets: func(context.Context, string) (BucketClient, error) {
			return buckets, nil
		},
		Mounter:   mounter,
		Tools:     &fakeTools{},
		MountTool: dependencies.DebPackage("mount-s3", "https://example.com/mount-s3.deb"),
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := tu.NewConfigBuilder(t.TempDir()).Build()
	cfg.AWSRegion = ""
	return cfg
}

func TestDeriveIdentity_Precedence(t *testing.T) {
	t.Parallel()
	ctx := tu.TestContext(t)

	t.Run("override wins", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.StorageIdentity = "pinned"

		id, err := DeriveIdentity(ctx, cfg, fakeHost{id: "i-0abc"})

		require.NoError(t, err)
		assert.Equal(t, SourceOverride, id.Source)
		assert.Equal(t, naming.Bucket(cfg.BucketPrefix, "pinned"), id.BucketName)
		assert.Equal(t, id.BucketName, id.MountName)
	})

	t.Run("instance metadata", func(t *testing.T) {
		cfg := testConfig(t)

		id, err := DeriveIdentity(ctx, cfg, fakeHost{id: "i-0abc"})

		require.NoError(t, err)
		assert.Equal(t, SourceIMDS, id.Source)
		assert.Equal(t, "i-0abc", id.HostID)
	})

	t.Run("machine id fallback", func(t *testing.T) {
		cfg := testConfig(t)
		require.NoError(t, os.WriteFile(cfg.MachineIDPath, []byte("0123abcd\n"), 0o644))

		id, err := DeriveIdentity(ctx, cfg, fakeHost{err: errors.New("no imds")})

		require.NoError(t, err)
		assert.Equal(t, SourceMachineID, id.Source)
		assert.Equal(t, "0123abcd", id.HostID)
	})

	t.Run("nothing available", func(t *testing.T) {
		cfg := testConfig(t)

		_, err := DeriveIdentity(ctx, cfg, fakeHost{err: errors.New("no imds")})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "no imds")
	})
}

func TestDeriveIdentity_Stable(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	host := fakeHost{id: "i-0abc"}

	first, err := DeriveIdentity(tu.TestContext(t), cfg, host)
	require.NoError(t, err)
	second, err := DeriveIdentity(tu.TestContext(t), cfg, host)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestProvision_CreatesAndMounts(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	pctx := tu.ProvisioningContext(t, cfg)
	bucket := naming.Bucket(cfg.BucketPrefix, "i-0abc")
	mountPath := filepath.Join(cfg.ModelDir, bucket)

	buckets := &tu.MockBucketClient{}
	buckets.On("EnsureBucket", mock.Anything, bucket).Return(true, nil)
	mounter := &tu.MockMounter{}
	mounter.On("IsMounted", mountPath).Return(false, nil).Once()
	mounter.On("Mount", mock.Anything, bucket, mountPath, "us-west-2").Return(nil)
	mounter.On("IsMounted", mountPath).Return(true, nil)

	p := newProvisioner(buckets, mounter)
	require.NoError(t, p.Provision(pctx))

	assert.Equal(t, mountPath, pctx.Session.MountPath)
	assert.Equal(t, bucket, pctx.Session.Identity.BucketName)
	assert.DirExists(t, mountPath)
	assert.True(t, pctx.Session.Acquired(provisioning.ResourceBucket))
	assert.True(t, pctx.Session.Acquired(provisioning.ResourceMount))
	assert.Equal(t, "mount-s3", p.Tools.(*fakeTools).pkgs[0].Binary)
	buckets.AssertExpectations(t)
	mounter.AssertExpectations(t)
}

func TestProvision_Idempotent(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.AWSRegion = "eu-central-1"
	pctx := tu.ProvisioningContext(t, cfg)
	bucket := naming.Bucket(cfg.BucketPrefix, "i-0abc")

	buckets := &tu.MockBucketClient{}
	buckets.On("EnsureBucket", mock.Anything, bucket).Return(false, nil)
	mounter := &tu.MockMounter{}
	mounter.On("IsMounted", mock.Anything).Return(true, nil)

	require.NoError(t, newProvisioner(buckets, mounter).Provision(pctx))

	mounter.AssertNotCalled(t, "Mount", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.True(t, pctx.Session.Acquired(provisioning.ResourceMount))
}

func TestProvision_MountNotVerified(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	pctx := tu.ProvisioningContext(t, cfg)

	buckets := &tu.MockBucketClient{}
	buckets.On("EnsureBucket", mock.Anything, mock.Anything).Return(true, nil)
	mounter := &tu.MockMounter{}
	mounter.On("IsMounted", mock.Anything).Return(false, nil)
	mounter.On("Mount", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	err := newProvisioner(buckets, mounter).Provision(pctx)

	var mountErr *provisioning.StorageMountError
	require.ErrorAs(t, err, &mountErr)
	assert.Contains(t, err.Error(), "not in the mount table")
	assert.False(t, pctx.Session.Acquired(provisioning.ResourceMount))
	assert.Empty(t, pctx.Session.MountPath)
}

func TestProvision_MountCommandFails(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	pctx := tu.ProvisioningContext(t, cfg)

	buckets := &tu.MockBucketClient{}
	buckets.On("EnsureBucket", mock.Anything, mock.Anything).Return(false, nil)
	mounter := &tu.MockMounter{}
	mounter.On("IsMounted", mock.Anything).Return(false, nil)
	mounter.On("Mount", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("fuse: device not found"))

	err := newProvisioner(buckets, mounter).Provision(pctx)

	var mountErr *provisioning.StorageMountError
	require.ErrorAs(t, err, &mountErr)
	assert.Contains(t, err.Error(), "fuse: device not found")
	assert.True(t, pctx.Session.Acquired(provisioning.ResourceBucket))
	assert.False(t, pctx.Session.Acquired(provisioning.ResourceMount))
}

func TestProvision_BucketFailureStopsBeforeMount(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	pctx := tu.ProvisioningContext(t, cfg)

	buckets := &tu.MockBucketClient{}
	buckets.On("EnsureBucket", mock.Anything, mock.Anything).Return(false, errors.New("AccessDenied"))
	mounter := &tu.MockMounter{}

	err := newProvisioner(buckets, mounter).Provision(pctx)

	require.Error(t, err)
	assert.False(t, pctx.Session.Acquired(provisioning.ResourceBucket))
	mounter.AssertNotCalled(t, "IsMounted", mock.Anything)
}

func TestProvision_TeardownUnmountsOnly(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	pctx := tu.ProvisioningContext(t, cfg)

	buckets := &tu.MockBucketClient{}
	buckets.On("EnsureBucket", mock.Anything, mock.Anything).Return(false, nil)
	mounter := &tu.MockMounter{}
	mounter.On("IsMounted", mock.Anything).Return(true, nil)
	mounter.On("Unmount", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, newProvisioner(buckets, mounter).Provision(pctx))

	teardowns := pctx.Session.Teardowns()
	require.Len(t, teardowns, 1, "the bucket has no teardown")
	assert.Equal(t, provisioning.ResourceMount, teardowns[0].Resource)
	require.NoError(t, teardowns[0].Release(context.Background()))
	mounter.AssertCalled(t, "Unmount", mock.Anything, pctx.Session.MountPath)
}

func TestProvision_RegionRequired(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.StorageIdentity = "pinned"
	pctx := tu.ProvisioningContext(t, cfg)

	p := newProvisioner(&tu.MockBucketClient{}, &tu.MockMounter{})
	p.Host = nil

	err := p.Provision(pctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "AWS_REGION")
}
