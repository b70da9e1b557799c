package model_test

import (
	"testing"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/gt"
)

func TestParseDescriptor(t *testing.T) {
	t.Run("full descriptor", func(t *testing.T) {
		data := []byte(`
specfile_path: packaging/drover.spec
files_to_sync:
  - src: packaging/drover.spec
    dest: drover.spec
  - src: .drover.yaml
    dest: .drover.yaml
version_command: rpmspec -q --qf "%{version}" packaging/drover.spec
archive_commands:
  - go mod vendor
  - git archive --prefix drover/ -o drover.tar HEAD
  - tar rf drover.tar vendor && gzip -f drover.tar && echo drover.tar.gz
build_targets:
  - fedora-rawhide-x86_64
  - centos-stream-9-x86_64
`)

		desc, err := model.ParseDescriptor(data)
		gt.NoError(t, err)
		gt.Value(t, desc.SpecFile).Equal("packaging/drover.spec")
		gt.Array(t, desc.FilesToSync).Length(2)
		gt.Array(t, desc.ArchiveCommands).Length(3)
		gt.Array(t, desc.BuildTargets).Length(2)
	})

	t.Run("build targets default when omitted", func(t *testing.T) {
		data := []byte(`
version_command: echo 1.0.0
archive_commands:
  - echo archive.tar.gz
`)

		desc, err := model.ParseDescriptor(data)
		gt.NoError(t, err)
		gt.Value(t, desc.BuildTargets).Equal(model.DefaultBuildTargets)
	})

	tests := []struct {
		name string
		data string
	}{
		{
			name: "missing version command",
			data: "archive_commands: [echo out.tar.gz]",
		},
		{
			name: "missing archive commands",
			data: "version_command: echo 1.0.0",
		},
		{
			name: "sync pair without dest",
			data: `
version_command: echo 1.0.0
archive_commands: [echo out.tar.gz]
files_to_sync:
  - src: a.spec
`,
		},
		{
			name: "not yaml",
			data: "::",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := model.ParseDescriptor([]byte(tt.data)); err == nil {
				t.Error("ParseDescriptor() should return error")
			}
		})
	}
}
