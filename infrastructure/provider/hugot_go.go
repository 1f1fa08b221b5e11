//go:build !ORT

package provider

import "github.com/knights-analytics/hugot"

// newHugotSession uses the pure-Go ONNX backend. Slower than ORT but
// needs no shared libraries.
func newHugotSession() (*hugot.Session, error) {
	return hugot.NewGoSession()
}
