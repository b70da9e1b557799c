package usecase

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
)

// DescriptorFileName is where the packaging descriptor lives in a
// repository checkout.
const DescriptorFileName = ".drover.yaml"

// ArchiveResult describes a produced source archive
type ArchiveResult struct {
	// Path is the artifact location on the local filesystem
	Path string
	// StorageURL is set when the artifact was uploaded
	StorageURL string
}

// BuildSubmission records one chroot build submission
type BuildSubmission struct {
	Target  string
	BuildID string
	Error   string
}

// Packaging implements the packaging descriptor operations: version
// extraction, archive assembly, file sync and build submission.
type Packaging struct {
	buildClient interfaces.BuildClient
	store       interfaces.ArtifactStore
}

// PackagingOption is a functional option for Packaging configuration
type PackagingOption func(*Packaging)

// WithArtifactStore enables archive uploads to object storage
func WithArtifactStore(store interfaces.ArtifactStore) PackagingOption {
	return func(uc *Packaging) {
		uc.store = store
	}
}

// WithBuildClient enables build submission to the build service
func WithBuildClient(buildClient interfaces.BuildClient) PackagingOption {
	return func(uc *Packaging) {
		uc.buildClient = buildClient
	}
}

// NewPackaging creates a new Packaging use case
func NewPackaging(opts ...PackagingOption) *Packaging {
	uc := &Packaging{}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// LoadDescriptor reads and parses the packaging descriptor in dir
func (uc *Packaging) LoadDescriptor(dir string) (*model.Descriptor, error) {
	path := filepath.Join(dir, DescriptorFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read packaging descriptor", goerr.V("path", path))
	}

	return model.ParseDescriptor(data)
}

// Version runs the descriptor's version command and returns its output
func (uc *Packaging) Version(ctx context.Context, dir string, desc *model.Descriptor) (string, error) {
	output, err := runCommand(ctx, dir, desc.VersionCommand)
	if err != nil {
		return "", goerr.Wrap(err, "version command failed")
	}

	version := lastLine(output)
	if version == "" {
		return "", goerr.New("version command produced no output",
			goerr.V("command", desc.VersionCommand))
	}

	return version, nil
}

// Archive runs the descriptor's archive command sequence. The last
// non-empty output line of the final command names the produced
// artifact, which must exist on disk. When an artifact store is
// configured the archive is uploaded as well.
func (uc *Packaging) Archive(ctx context.Context, dir string, desc *model.Descriptor) (*ArchiveResult, error) {
	logger := ctxlog.From(ctx)

	var output string
	for _, command := range desc.ArchiveCommands {
		logger.Info("Running archive command", "command", command)

		out, err := runCommand(ctx, dir, command)
		if err != nil {
			return nil, goerr.Wrap(err, "archive command failed", goerr.V("command", command))
		}
		output = out
	}

	artifact := lastLine(output)
	if artifact == "" {
		return nil, goerr.New("archive commands did not report an artifact path")
	}
	if !filepath.IsAbs(artifact) {
		artifact = filepath.Join(dir, artifact)
	}

	if _, err := os.Stat(artifact); err != nil {
		return nil, goerr.Wrap(err, "archive artifact does not exist", goerr.V("path", artifact))
	}

	result := &ArchiveResult{Path: artifact}

	if uc.store != nil {
		f, err := os.Open(artifact)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open archive artifact", goerr.V("path", artifact))
		}
		defer f.Close()

		url, err := uc.store.Upload(ctx, filepath.Base(artifact), f)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to upload archive artifact", goerr.V("path", artifact))
		}
		result.StorageURL = url

		logger.Info("Uploaded archive artifact", "url", url)
	}

	return result, nil
}

// Sync copies the declared file pairs from the repository checkout into
// the package spec tree.
func (uc *Packaging) Sync(ctx context.Context, srcDir, destDir string, desc *model.Descriptor) error {
	logger := ctxlog.From(ctx)

	for _, pair := range desc.FilesToSync {
		src := filepath.Join(srcDir, pair.Src)
		dest := filepath.Join(destDir, pair.Dest)

		data, err := os.ReadFile(src)
		if err != nil {
			return goerr.Wrap(err, "failed to read sync source", goerr.V("src", src))
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return goerr.Wrap(err, "failed to create sync destination directory", goerr.V("dest", dest))
		}

		if err := os.WriteFile(dest, data, 0644); err != nil {
			return goerr.Wrap(err, "failed to write sync destination", goerr.V("dest", dest))
		}

		logger.Info("Synced file", "src", pair.Src, "dest", pair.Dest)
	}

	return nil
}

// Build submits one build per descriptor target. Targets are
// independent: a rejected submission never prevents the remaining ones.
func (uc *Packaging) Build(ctx context.Context, desc *model.Descriptor, srpmURL string) ([]BuildSubmission, error) {
	logger := ctxlog.From(ctx)

	if uc.buildClient == nil {
		return nil, goerr.New("no build client configured")
	}

	var submissions []BuildSubmission
	for _, target := range desc.BuildTargets {
		sub := BuildSubmission{Target: target}

		buildID, err := uc.buildClient.SubmitBuild(ctx, target, srpmURL)
		if err != nil {
			logger.Error("Build submission failed", "target", target, "error", err)
			sub.Error = err.Error()
		} else {
			sub.BuildID = buildID
			logger.Info("Submitted build", "target", target, "build_id", buildID)
		}

		submissions = append(submissions, sub)
	}

	return submissions, nil
}

// runCommand executes a descriptor command through the shell in dir
func runCommand(ctx context.Context, dir, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = dir

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", goerr.Wrap(err, "command execution failed",
			goerr.V("command", command), goerr.V("output", string(output)))
	}

	return string(output), nil
}

// lastLine returns the last non-empty line of command output
func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
