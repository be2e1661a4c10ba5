// Package async provides bounded parallel task execution.
//
// [RunParallel] runs named operations on an errgroup, stops scheduling new
// ones after the first failure and reports that failure with the task
// name. The model acquirer uses it for parallel file downloads.
package async
