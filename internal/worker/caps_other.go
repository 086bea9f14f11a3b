//go:build !linux

package worker

// dropCapabilities is a no-op outside Linux; there is no portable
// capability model to drop.
func dropCapabilities() {}
