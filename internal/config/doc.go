// Package config holds the run configuration handed to every test and the
// optional config file that seeds it.
//
// # Config File
//
// The file named by --config-file is YAML and is validated against an
// embedded CUE schema before use:
//
//	fs_type: fsfs
//	server_minor_version: 9
//	fs_config:
//	  compression: "lz4"
//	parallel: true
//	max_threads: 4
//
// Values given on the command line override the file.
package config
