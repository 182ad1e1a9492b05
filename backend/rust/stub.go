//go:build !rust

package rust

import (
	"github.com/gogpu/bucketoffset"
	"github.com/gogpu/bucketoffset/backend"
)

// init registers a nil-returning factory when the rust tag is not set, so
// backend.Get(backend.BackendRust) returns nil and backend.Default moves
// on to the next backend.
func init() {
	backend.Register(backend.BackendRust, func() bucketoffset.Accelerator {
		return nil
	})
}
