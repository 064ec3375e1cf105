package config

import "strings"

const envDocTemplate = `List of environment variables:
	PREFIXENV_DD_NRUNS : int (default:5)
	PREFIXENV_DD_NUM_THREADS : int (default None)
	PREFIXENV_DD_ALGO : in ["ddmax", "rddmin"] (default "rddmin")
	PREFIXENV_DD_RDDMIN : in ["s", "stoch", "dicho" ,"d", "strict",""] (default "d")
	PREFIXENV_DD_RDDMIN_TAB : in ["exp", "all" ,"single"] (default "exp")
	PREFIXENV_DD_DICHO_TAB : in ["exp", "all" ,"single", "half"] or int (default "half")
	PREFIXENV_DD_DICHO_GRANULARITY : int >= 2 (default 2)
	PREFIXENV_DD_QUIET : set or not (default not)
	PREFIXENV_DD_SYM : set or not (default not)
	PREFIXENV_DD_TIMEOUT : int seconds per run script, 0 = none (default 0)
	PREFIXENV_DD_BUNDLE : in ["none", "zstd", "snappy", "lz4"] (default "none")
	PREFIXENV_DD_DEBUG : set or not (default not)
`

// EnvDoc returns the environment documentation printed by --help.
func EnvDoc(prefix string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return strings.ReplaceAll(envDocTemplate, "PREFIXENV_", prefix+"_")
}
