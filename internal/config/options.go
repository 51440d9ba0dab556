package config

import (
	"fmt"
	"maps"
	"sort"
)

// DefaultFSType is the backend selected when neither a flag nor the config
// file names one.
const DefaultFSType = "fsfs"

// LatestMinorVersion is the newest server/backend minor version the harness
// knows about. ServerMinorVersion 0 means "use this one".
const LatestMinorVersion = 14

// oldestMinorVersion is the oldest minor version a test may request.
const oldestMinorVersion = 3

// Options is the run configuration shared by every test in a run.
//
// It is built once by the CLI before scheduling starts and handed to tests by
// pointer. Tests run concurrently and must treat it as read-only.
type Options struct {
	// ProgName is the name of the test program, used to build unique names
	// for scratch repositories and in report lines.
	ProgName string `json:"prog_name"`

	// FSType selects the repository backend under test (e.g. "fsfs", "bdb").
	FSType string `json:"fs_type"`

	// ConfigFile is the path given with --config-file, if any.
	ConfigFile string `json:"config_file,omitempty"`

	// FSConfig holds backend settings read from the config file.
	FSConfig map[string]string `json:"fs_config,omitempty"`

	// SrcDir is the source directory, for tests that need checked-in data.
	SrcDir string `json:"srcdir,omitempty"`

	// ReposDir is the directory scratch repositories are created under.
	ReposDir string `json:"repos_dir,omitempty"`

	// ReposURL is the URL through which ReposDir is reachable.
	ReposURL string `json:"repos_url,omitempty"`

	// ReposTemplate is a pre-created repository that tests may copy.
	ReposTemplate string `json:"repos_template,omitempty"`

	// ServerMinorVersion pins servers and backends to an older minor
	// version. Zero selects LatestMinorVersion.
	ServerMinorVersion int `json:"server_minor_version"`

	Verbose bool `json:"verbose"`
}

// New returns Options with defaults applied for the given program.
func New(progName string) *Options {
	return &Options{
		ProgName: progName,
		FSType:   DefaultFSType,
	}
}

// Validate checks the options for values no test could work with.
func (o *Options) Validate() error {
	if o.ProgName == "" {
		return fmt.Errorf("program name is required")
	}
	if o.FSType == "" {
		return fmt.Errorf("fs-type must not be empty")
	}
	if o.ServerMinorVersion != 0 &&
		(o.ServerMinorVersion < oldestMinorVersion || o.ServerMinorVersion > LatestMinorVersion) {
		return fmt.Errorf("invalid server minor version %d: must be 0 or between %d and %d",
			o.ServerMinorVersion, oldestMinorVersion, LatestMinorVersion)
	}
	return nil
}

// MinorVersion returns the effective server minor version.
func (o *Options) MinorVersion() int {
	if o.ServerMinorVersion == 0 {
		return LatestMinorVersion
	}
	return o.ServerMinorVersion
}

// FSConfigKeys returns the backend setting names in sorted order.
func (o *Options) FSConfigKeys() []string {
	keys := make([]string, 0, len(o.FSConfig))
	for k := range o.FSConfig {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy. The CLI clones before handing options to a run
// so the tests never share the FSConfig map of the settings it merged.
func (o *Options) Clone() *Options {
	c := *o
	c.FSConfig = maps.Clone(o.FSConfig)
	return &c
}
