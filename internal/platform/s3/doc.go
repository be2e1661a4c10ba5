// Package s3 provides a client for the Amazon S3 bucket that backs model storage.
//
// Only bucket lifecycle is handled here: the bucket is created once per host
// identity and reused on every later run. Object traffic goes through the
// Mountpoint for S3 filesystem mount, not through this client.
package s3
