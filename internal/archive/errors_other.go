//go:build !unix

package archive

import "os"

var errDirNotEmpty error = os.ErrExist
