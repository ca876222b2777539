package config

import (
	"strconv"
	"strings"
)

// ScanArgs extracts --env/-e and --no-debug from console arguments before
// the command tree is built, so the kernel can be created for the right
// environment. Arguments after "--" are not scanned.
func ScanArgs(args []string) Options {
	var opts Options
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--":
			return opts
		case a == "--no-debug":
			opts.NoDebug = true
		case strings.HasPrefix(a, "--no-debug="):
			// Invalid values are left for cobra to reject.
			if v, err := strconv.ParseBool(strings.TrimPrefix(a, "--no-debug=")); err == nil {
				opts.NoDebug = v
			}
		case a == "--env" || a == "-e":
			if i+1 < len(args) {
				opts.Env = args[i+1]
				i++
			}
		case strings.HasPrefix(a, "--env="):
			opts.Env = strings.TrimPrefix(a, "--env=")
		case strings.HasPrefix(a, "-e="):
			opts.Env = strings.TrimPrefix(a, "-e=")
		case strings.HasPrefix(a, "-e") && len(a) > 2 && !strings.HasPrefix(a, "--"):
			opts.Env = a[2:]
		}
	}
	return opts
}
