package naming

import (
	"fmt"
	"strings"
)

// Naming functions for deployment resources.
// Every host-scoped resource is derived from the same host id so re-runs on
// one host always resolve to the same names.

// maxBucketLen is the S3 bucket name length limit.
const maxBucketLen = 63

// ComposeProject is the docker compose project of the dashboard stack.
const ComposeProject = "dsdeploy-monitoring"

// Bucket returns the S3 bucket name for a host: "<prefix>-<hostID>",
// lower-cased, restricted to [a-z0-9-] and at most 63 characters.
func Bucket(prefix, hostID string) string {
	name := sanitize(prefix + "-" + hostID)
	if len(name) > maxBucketLen {
		name = strings.TrimRight(name[:maxBucketLen], "-")
	}
	return name
}

// MountDir returns the directory name the bucket is mounted under.
func MountDir(bucket string) string {
	return bucket
}

// StagingDir returns the sibling directory a commit is assembled in.
func StagingDir(final, token string) string {
	return fmt.Sprintf("%s.staging-%s", final, token)
}

// RevisionDir returns the directory a snapshot revision is committed to
// where directories cannot be renamed.
func RevisionDir(final, revision string) string {
	return final + "@" + revision
}

// RetiredDir returns the sibling a replaced artifact is moved to before removal.
func RetiredDir(final, token string) string {
	return fmt.Sprintf("%s.old-%s", final, token)
}

func sanitize(s string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(s) {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !ok {
			if lastDash {
				continue
			}
			r = '-'
		}
		lastDash = r == '-'
		b.WriteRune(r)
	}
	return strings.Trim(b.String(), "-")
}
