package model

import (
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// SyncPair declares one file copied between the repository and the
// package spec tree.
type SyncPair struct {
	Src  string `yaml:"src"`
	Dest string `yaml:"dest"`
}

// Descriptor is the packaging configuration loaded from .drover.yaml.
// It mirrors what a downstream package build needs: which files to keep
// in sync, how to determine the version, how to assemble the vendored
// source archive, and which chroots to build for.
type Descriptor struct {
	SpecFile        string     `yaml:"specfile_path"`
	FilesToSync     []SyncPair `yaml:"files_to_sync"`
	VersionCommand  string     `yaml:"version_command"`
	ArchiveCommands []string   `yaml:"archive_commands"`
	BuildTargets    []string   `yaml:"build_targets"`
}

// DefaultBuildTargets are the chroots built when the descriptor does
// not override them.
var DefaultBuildTargets = []string{
	"fedora-rawhide-x86_64",
	"centos-stream-9-x86_64",
}

// ParseDescriptor parses and validates a packaging descriptor
func ParseDescriptor(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, goerr.Wrap(err, "failed to parse packaging descriptor")
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}

	if len(d.BuildTargets) == 0 {
		d.BuildTargets = DefaultBuildTargets
	}

	return &d, nil
}

// Validate checks the fields required by every packaging operation
func (d *Descriptor) Validate() error {
	if d.VersionCommand == "" {
		return goerr.New("packaging descriptor: version_command is required")
	}
	if len(d.ArchiveCommands) == 0 {
		return goerr.New("packaging descriptor: archive_commands is required")
	}
	for _, pair := range d.FilesToSync {
		if pair.Src == "" || pair.Dest == "" {
			return goerr.New("packaging descriptor: files_to_sync entries need both src and dest",
				goerr.V("src", pair.Src), goerr.V("dest", pair.Dest))
		}
	}
	return nil
}
