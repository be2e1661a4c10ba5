package provisioning

import "fmt"

// HardwareNotFoundError reports that the accelerator device inventory is
// missing or below the required device count.
type HardwareNotFoundError struct {
	Kind     string
	Found    int
	Required int
	Err      error
}

func (e *HardwareNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s hardware not found: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s hardware not found: %d device(s) present, %d required", e.Kind, e.Found, e.Required)
}

func (e *HardwareNotFoundError) Unwrap() error { return e.Err }

// RuntimeUnavailableError reports that the container runtime is missing or unresponsive.
type RuntimeUnavailableError struct {
	Runtime string
	Err     error
}

func (e *RuntimeUnavailableError) Error() string {
	return fmt.Sprintf("container runtime %s unavailable: %v", e.Runtime, e.Err)
}

func (e *RuntimeUnavailableError) Unwrap() error { return e.Err }

// DependencyVerificationError reports a package that could not be installed
// or is installed but not usable.
type DependencyVerificationError struct {
	Package string
	Err     error
}

func (e *DependencyVerificationError) Error() string {
	return fmt.Sprintf("dependency %s failed verification: %v", e.Package, e.Err)
}

func (e *DependencyVerificationError) Unwrap() error { return e.Err }

// StorageMountError reports a failure to provision or attach model storage.
type StorageMountError struct {
	Bucket    string
	MountPath string
	Err       error
}

func (e *StorageMountError) Error() string {
	switch {
	case e.MountPath != "":
		return fmt.Sprintf("storage mount of %s at %s failed: %v", e.Bucket, e.MountPath, e.Err)
	case e.Bucket != "":
		return fmt.Sprintf("storage provisioning of bucket %s failed: %v", e.Bucket, e.Err)
	default:
		return fmt.Sprintf("storage provisioning failed: %v", e.Err)
	}
}

func (e *StorageMountError) Unwrap() error { return e.Err }

// DownloadError reports a failure to acquire or commit a model snapshot.
type DownloadError struct {
	Repo string
	// Stage is "download" or "commit".
	Stage string
	Err   error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("model %s %s failed: %v", e.Repo, e.Stage, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ServiceLaunchError reports that the serving process could not start,
// never became ready or exited abnormally.
type ServiceLaunchError struct {
	Command string
	Port    int
	Err     error
	// LogTail holds the last lines of the service log, if any.
	LogTail string
}

func (e *ServiceLaunchError) Error() string {
	msg := fmt.Sprintf("service %s on port %d: %v", e.Command, e.Port, e.Err)
	if e.LogTail != "" {
		msg += "\n--- service log tail ---\n" + e.LogTail
	}
	return msg
}

func (e *ServiceLaunchError) Unwrap() error { return e.Err }

// ParameterDetectionWarning is logged when parameter detection fails and
// defaults are kept. It is never returned from a phase.
type ParameterDetectionWarning struct {
	Detector string
	Err      error
}

func (w *ParameterDetectionWarning) Error() string {
	return fmt.Sprintf("parameter detection via %q failed, using defaults: %v", w.Detector, w.Err)
}

func (w *ParameterDetectionWarning) Unwrap() error { return w.Err }
