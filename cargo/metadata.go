package cargo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"

	"github.com/fwojciec/cargomcp"
)

// Ensure MetadataReader implements cargomcp.MetadataReader at compile time.
var _ cargomcp.MetadataReader = (*MetadataReader)(nil)

// MetadataReader runs cargo metadata. It does not write build artifacts
// and bypasses the per-project gate.
type MetadataReader struct {
	program string
}

// NewMetadataReader creates a reader invoking the given cargo binary.
func NewMetadataReader(program string) *MetadataReader {
	if program == "" {
		program = "cargo"
	}
	return &MetadataReader{program: program}
}

// ReadMetadata implements cargomcp.MetadataReader.
func (r *MetadataReader) ReadMetadata(ctx context.Context, root cargomcp.ProjectRoot) (*cargomcp.Metadata, error) {
	cmd := exec.CommandContext(ctx, r.program, "metadata", "--format-version", "1", "--manifest-path", root.ManifestPath())
	cmd.Dir = root.Dir()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, cargomcp.Errorf(cargomcp.ESPAWN, "cannot run %s metadata in %s: %s", r.program, root, err)
		}
		return nil, fmt.Errorf("%s metadata in %s: %w: %s", r.program, root, err, lastLine(stderr.String()))
	}

	meta, err := ParseMetadata(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%s metadata in %s: %w", r.program, root, err)
	}
	return meta, nil
}

type metadataJSON struct {
	Packages         []packageJSON `json:"packages"`
	WorkspaceMembers []string      `json:"workspace_members"`
	Resolve          *struct {
		Root  *string `json:"root"`
		Nodes []struct {
			ID       string   `json:"id"`
			Features []string `json:"features"`
		} `json:"nodes"`
	} `json:"resolve"`
	TargetDirectory string `json:"target_directory"`
	WorkspaceRoot   string `json:"workspace_root"`
}

type packageJSON struct {
	Name    string  `json:"name"`
	Version string  `json:"version"`
	ID      string  `json:"id"`
	Source  *string `json:"source"`
	Targets []struct {
		Name string   `json:"name"`
		Kind []string `json:"kind"`
	} `json:"targets"`
}

// ParseMetadata converts cargo metadata --format-version 1 output into the
// crate graph. Workspace members come first in member order, followed by
// the other packages sorted by name and version.
func ParseMetadata(data []byte) (*cargomcp.Metadata, error) {
	var raw metadataJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	features := make(map[string][]string)
	var rootID string
	if raw.Resolve != nil {
		for _, n := range raw.Resolve.Nodes {
			features[n.ID] = n.Features
		}
		if raw.Resolve.Root != nil {
			rootID = *raw.Resolve.Root
		}
	}

	members := make(map[string]int, len(raw.WorkspaceMembers))
	for i, id := range raw.WorkspaceMembers {
		members[id] = i
	}

	meta := &cargomcp.Metadata{
		WorkspaceRoot: raw.WorkspaceRoot,
		TargetDir:     raw.TargetDirectory,
	}

	type ranked struct {
		desc   cargomcp.CrateDescriptor
		member int
	}
	var crates []ranked
	for _, pkg := range raw.Packages {
		desc := cargomcp.CrateDescriptor{
			Name:     pkg.Name,
			Version:  pkg.Version,
			Source:   cargomcp.SourcePath,
			DocName:  libraryName(pkg),
			Features: slices.Sorted(slices.Values(features[pkg.ID])),
		}
		if desc.Features == nil {
			desc.Features = []string{}
		}
		if pkg.Source != nil {
			desc.SourceID = *pkg.Source
			desc.Source = SourceFromID(*pkg.Source)
		}
		rank := -1
		if i, ok := members[pkg.ID]; ok {
			desc.Member = true
			rank = i
		}
		if pkg.ID == rootID {
			meta.RootCrate = desc.DocName
		}
		crates = append(crates, ranked{desc: desc, member: rank})
	}

	slices.SortStableFunc(crates, func(a, b ranked) int {
		switch {
		case a.member >= 0 && b.member >= 0:
			return a.member - b.member
		case a.member >= 0:
			return -1
		case b.member >= 0:
			return 1
		}
		if c := strings.Compare(a.desc.Name, b.desc.Name); c != 0 {
			return c
		}
		return strings.Compare(a.desc.Version, b.desc.Version)
	})

	meta.Crates = make([]cargomcp.CrateDescriptor, len(crates))
	for i, c := range crates {
		meta.Crates[i] = c.desc
	}
	// A virtual workspace with a single member documents like a package.
	if meta.RootCrate == "" && len(raw.WorkspaceMembers) == 1 && len(meta.Crates) > 0 {
		meta.RootCrate = meta.Crates[0].DocName
	}
	return meta, nil
}

// SourceFromID classifies a cargo package source id.
func SourceFromID(id string) cargomcp.CrateSource {
	switch {
	case strings.HasPrefix(id, "git+"):
		return cargomcp.SourceGit
	case strings.HasPrefix(id, "registry+"), strings.HasPrefix(id, "sparse+"):
		return cargomcp.SourceRegistry
	default:
		return cargomcp.SourcePath
	}
}

// libraryName returns the doc directory name of a package: its library
// target name when it has one, the package name otherwise.
func libraryName(pkg packageJSON) string {
	for _, t := range pkg.Targets {
		for _, k := range t.Kind {
			switch k {
			case "lib", "rlib", "dylib", "proc-macro", "cdylib", "staticlib":
				return cargomcp.DocNameOf(t.Name)
			}
		}
	}
	return cargomcp.DocNameOf(pkg.Name)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
