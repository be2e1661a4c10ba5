// Package imds reads host identity from the EC2 instance metadata service.
package imds

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
)

// defaultTimeout keeps off-EC2 runs from stalling on the link-local address.
const defaultTimeout = 3 * time.Second

// Client fetches instance metadata.
type Client struct {
	imds    *imds.Client
	timeout time.Duration
}

// NewClient creates a metadata client. An empty endpoint uses the EC2 default.
func NewClient(endpoint string) *Client {
	return &Client{
		imds: imds.New(imds.Options{
			Endpoint: endpoint,
		}),
		timeout: defaultTimeout,
	}
}

// InstanceID returns the EC2 instance id.
func (c *Client) InstanceID(ctx context.Context) (string, error) {
	return c.metadata(ctx, "instance-id")
}

// Region returns the region the instance runs in.
func (c *Client) Region(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.imds.GetRegion(ctx, &imds.GetRegionInput{})
	if err != nil {
		return "", fmt.Errorf("failed to read region from instance metadata: %w", err)
	}
	return out.Region, nil
}

func (c *Client) metadata(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.imds.GetMetadata(ctx, &imds.GetMetadataInput{Path: path})
	if err != nil {
		return "", fmt.Errorf("failed to read %s from instance metadata: %w", path, err)
	}
	defer out.Content.Close()

	data, err := io.ReadAll(out.Content)
	if err != nil {
		return "", fmt.Errorf("failed to read %s from instance metadata: %w", path, err)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", fmt.Errorf("instance metadata returned empty %s", path)
	}
	return value, nil
}
