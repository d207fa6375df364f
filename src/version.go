package laika

import (
	"fmt"
	"runtime/debug"
	"strconv"
)

// Set at build time via `-ldflags "-X 'laika.LAIKA_VERSION=X'"`
var LAIKA_VERSION string

func getBuildSettingOrDefault(bi *debug.BuildInfo, key string, defaultValue string) string {
	if bi == nil {
		return defaultValue
	}
	for _, bs := range bi.Settings {
		if bs.Key == key {
			return bs.Value
		}
	}
	return defaultValue
}

// PrintVersion writes the version banner to stdout.
func PrintVersion(verbose bool) {
	var buildInfo, _ = debug.ReadBuildInfo()

	var version = LAIKA_VERSION
	if version == "" {
		version = "dev"
	}

	var commit = getBuildSettingOrDefault(buildInfo, "vcs.revision", "unknown")
	var dirty, err = strconv.ParseBool(getBuildSettingOrDefault(buildInfo, "vcs.modified", "false"))
	if err == nil && dirty {
		commit += "-dirty"
	}
	var builtAt = getBuildSettingOrDefault(buildInfo, "vcs.time", "unknown")

	fmt.Printf("Laika - Version %s (revision %s, built at %s)\n", version, commit, builtAt)

	if verbose {
		fmt.Printf("\nBuildInfo: %+v\n", buildInfo)
	}
}
