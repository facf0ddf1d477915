// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import "syscall"

// fatalErrnos are inotify resource exhaustion errors: the watch limit
// (ENOSPC, see fs.inotify.max_user_watches) or a descriptor limit.
var fatalErrnos = []error{syscall.ENOSPC, syscall.EMFILE, syscall.ENFILE}
