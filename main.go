// SPDX-License-Identifier: MPL-2.0

package main

import (
	"os"

	cmd "github.com/shuliangfu/esbuild-sub001/cmd/esresolve"
)

func main() {
	os.Exit(cmd.Main())
}
