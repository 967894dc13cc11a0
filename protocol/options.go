// File: protocol/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import "github.com/sirupsen/logrus"

// Option customizes HTTPServer initialization.
type Option func(*HTTPServer)

// WithThreads sets the worker-loop count; zero runs everything on the
// base loop.
func WithThreads(n int) Option {
	return func(s *HTTPServer) {
		s.server.SetThreadCount(n)
	}
}

// WithIdleTimeout overrides the idle-release timeout in seconds,
// bounded by the timing-wheel range of 60.
func WithIdleTimeout(sec int) Option {
	return func(s *HTTPServer) {
		s.server.EnableInactiveRelease(sec)
	}
}

// WithStaticDir serves static files from dir, which must exist.
func WithStaticDir(dir string) Option {
	return func(s *HTTPServer) {
		if !IsDirectory(dir) {
			logrus.Fatalf("static base %q is not a directory", dir)
		}
		s.baseDir = dir
	}
}
