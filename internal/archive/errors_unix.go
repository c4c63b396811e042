//go:build unix

package archive

import "syscall"

var errDirNotEmpty error = syscall.ENOTEMPTY
