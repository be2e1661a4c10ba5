package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ddipass/deepseek-bedrock/internal/config"
	"github.com/ddipass/deepseek-bedrock/internal/platform/s3"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning/environment"
	"github.com/ddipass/deepseek-bedrock/internal/provisioning/storage"
	"github.com/ddipass/deepseek-bedrock/internal/util/prerequisites"
)

// awsCheckTimeout bounds the metadata and S3 reachability checks.
const awsCheckTimeout = 10 * time.Second

// bucketChecker reports whether a bucket exists. Implemented by s3.Client.
type bucketChecker interface {
	BucketExists(ctx context.Context, name string) (bool, error)
}

// Factory function variables for the host check - can be replaced in tests.
var (
	checkMemory   = prerequisites.Memory
	checkFreeDisk = prerequisites.FreeDisk

	newBucketChecker = func(ctx context.Context, cfg *config.Config, region string) (bucketChecker, error) {
		return s3.NewClient(ctx, s3.Options{
			Region:          region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
		})
	}
)

// CheckResult is one row of the host check, as saved in resource_check.json.
type CheckResult struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Detail   string `json:"detail"`
	Required bool   `json:"required"`
}

// CheckReport is the saved outcome of a host check.
type CheckReport struct {
	CheckedAt time.Time     `json:"checked_at"`
	Passed    bool          `json:"passed"`
	Checks    []CheckResult `json:"checks"`
}

// Check reports whether the host is ready for a deployment. Apart from the
// saved report it changes nothing on the host or in AWS.
func Check(ctx context.Context, envFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	runner := newRunner()

	report := CheckReport{CheckedAt: time.Now().UTC()}
	failed := 0
	row := func(name string, ok, required bool, detail string) {
		status := "ok"
		switch {
		case !ok && required:
			status = "FAIL"
			failed++
		case !ok:
			status = "warn"
		}
		report.Checks = append(report.Checks, CheckResult{Name: name, Status: status, Detail: detail, Required: required})
	}

	env, err := environment.NewValidator(runner, cfg.DeviceKind, cfg.MinDevices).Validate(ctx)
	if err != nil {
		row("environment", false, true, err.Error())
	} else {
		row("environment", true, true, env.Describe())
	}

	tools := prerequisites.CheckAll(ctx, runner)
	for _, r := range tools.Results {
		detail := r.Path
		if r.Version != "" {
			detail += " (" + r.Version + ")"
		}
		if !r.Found {
			detail = "not found, see " + r.Tool.InstallURL
		}
		row(r.Tool.Name, r.Found, r.Tool.Required, detail)
	}

	if mem, err := checkMemory(); err != nil {
		row("memory", false, false, err.Error())
	} else {
		row("memory", mem.OK(), true, mem.String())
	}
	if disk, err := checkFreeDisk(cfg.ModelDir); err != nil {
		row("disk", false, false, err.Error())
	} else {
		row(disk.Name, disk.OK(), true, disk.String())
	}

	checkAWS(ctx, cfg, row)

	if cfg.Token() != "" {
		row("hf token", true, false, "set")
	} else {
		row("hf token", false, false, "not set; gated repositories will fail")
	}

	report.Passed = failed == 0
	renderCheck(report)
	if err := config.WriteRecord(cfg.CheckReportPath(), report); err != nil {
		fmt.Fprintf(stdout, "Warning: %v\n", err)
	} else {
		fmt.Fprintf(stdout, "Recorded in %s\n", cfg.CheckReportPath())
	}

	if failed > 0 {
		return fmt.Errorf("%d required check(s) failed", failed)
	}
	return nil
}

// checkAWS reports instance metadata and S3 reachability. The bucket is
// looked up, never created.
func checkAWS(ctx context.Context, cfg *config.Config, row func(string, bool, bool, string)) {
	ctx, cancel := context.WithTimeout(ctx, awsCheckTimeout)
	defer cancel()

	host := newHostMetadata()
	region := cfg.AWSRegion
	if r, err := host.Region(ctx); err != nil {
		row("instance metadata", false, false, "unreachable: "+err.Error())
	} else {
		row("instance metadata", true, false, "region "+r)
		if region == "" {
			region = r
		}
	}

	id, err := storage.DeriveIdentity(ctx, cfg, host)
	if err != nil {
		row("s3", false, true, err.Error())
		return
	}
	if region == "" {
		row("s3", false, true, "AWS_REGION is not set and instance metadata is unavailable")
		return
	}

	client, err := newBucketChecker(ctx, cfg, region)
	if err != nil {
		row("s3", false, true, err.Error())
		return
	}
	exists, err := client.BucketExists(ctx, id.BucketName)
	switch {
	case err != nil:
		row("s3", false, true, err.Error())
	case exists:
		row("s3", true, true, "bucket "+id.BucketName+" exists in "+region)
	default:
		row("s3", true, true, "bucket "+id.BucketName+" will be created in "+region)
	}
}

func renderCheck(report CheckReport) {
	t := table.NewWriter()
	t.SetOutputMirror(stdout)
	t.AppendHeader(table.Row{"Check", "Status", "Detail"})
	for _, c := range report.Checks {
		t.AppendRow(table.Row{c.Name, c.Status, c.Detail})
	}
	t.Render()
}
