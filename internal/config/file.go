package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// File is the decoded content of a harness config file.
//
// Pointer fields distinguish "absent" from a zero value so that Apply only
// touches what the file actually sets.
type File struct {
	FSType             *string           `json:"fs_type,omitempty"`
	ServerMinorVersion *int              `json:"server_minor_version,omitempty"`
	SrcDir             *string           `json:"srcdir,omitempty"`
	ReposDir           *string           `json:"repos_dir,omitempty"`
	ReposURL           *string           `json:"repos_url,omitempty"`
	ReposTemplate      *string           `json:"repos_template,omitempty"`
	Verbose            *bool             `json:"verbose,omitempty"`
	FSConfig           map[string]string `json:"fs_config,omitempty"`

	Parallel   *bool   `json:"parallel,omitempty"`
	MaxThreads *int    `json:"max_threads,omitempty"`
	ModeFilter *string `json:"mode_filter,omitempty"`
	Cleanup    *bool   `json:"cleanup,omitempty"`
}

// FileError reports a config file that could not be read or does not match
// the schema.
type FileError struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *FileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s:%d:%d: %s",
			e.Path, e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// LoadFile reads a YAML config file and validates it against the embedded
// CUE schema. Unknown keys are rejected.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return ParseFile(path, data)
}

// ParseFile validates and decodes config file content. Path is only used in
// error messages.
func ParseFile(path string, data []byte) (*File, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &FileError{Path: path, Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	if raw == nil {
		raw = map[string]any{}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(path, err)
	}

	var f File
	if err := v.Decode(&f); err != nil {
		return nil, formatCUEError(path, err)
	}
	return &f, nil
}

// Apply copies every value set in the file onto opts.
func (f *File) Apply(opts *Options) {
	if f.FSType != nil {
		opts.FSType = *f.FSType
	}
	if f.ServerMinorVersion != nil {
		opts.ServerMinorVersion = *f.ServerMinorVersion
	}
	if f.SrcDir != nil {
		opts.SrcDir = *f.SrcDir
	}
	if f.ReposDir != nil {
		opts.ReposDir = *f.ReposDir
	}
	if f.ReposURL != nil {
		opts.ReposURL = *f.ReposURL
	}
	if f.ReposTemplate != nil {
		opts.ReposTemplate = *f.ReposTemplate
	}
	if f.Verbose != nil {
		opts.Verbose = *f.Verbose
	}
	if len(f.FSConfig) > 0 {
		if opts.FSConfig == nil {
			opts.FSConfig = make(map[string]string, len(f.FSConfig))
		}
		for k, v := range f.FSConfig {
			opts.FSConfig[k] = v
		}
	}
}

// formatCUEError keeps the first CUE error and its position, if any.
func formatCUEError(path string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &FileError{Path: path, Message: err.Error()}
	}

	first := errs[0]
	fe := &FileError{Path: path, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		fe.Pos = positions[0]
	}
	return fe
}
