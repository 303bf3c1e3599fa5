// Package workflow is the sequencing layer: it turns declarative manifests
// into prepared transactions over the gitops, hosting and provision
// boundaries, and persists terminal outcomes so the caller has a durable
// record even though the engine itself keeps everything in memory.
package workflow

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Workflow kinds accepted in a manifest.
const (
	KindPatch     = "patch"
	KindRelease   = "release"
	KindProvision = "provision"
)

// Manifest is the YAML definition of a workflow run. Exactly one of the
// kind-specific spec blocks must be set, matching Kind.
type Manifest struct {
	Name      string         `yaml:"name"`
	Kind      string         `yaml:"kind"`
	Patch     *PatchSpec     `yaml:"patch,omitempty"`
	Release   *ReleaseSpec   `yaml:"release,omitempty"`
	Provision *ProvisionSpec `yaml:"provision,omitempty"`
}

// PatchSpec parameterizes a patch workflow: branch off, commit the working
// tree, push and open a pull request.
type PatchSpec struct {
	Branch        string   `yaml:"branch"`
	CommitMessage string   `yaml:"commitMessage"`
	Remote        string   `yaml:"remote"`
	BaseBranch    string   `yaml:"baseBranch"`
	Title         string   `yaml:"title"`
	Body          string   `yaml:"body,omitempty"`
	Labels        []string `yaml:"labels,omitempty"`
}

// ReleaseSpec parameterizes a release workflow: bump the latest tag, write
// release notes, tag and open a pull request.
type ReleaseSpec struct {
	Bump       string   `yaml:"bump"` // major, minor or patch
	Remote     string   `yaml:"remote"`
	BaseBranch string   `yaml:"baseBranch"`
	NotesFile  string   `yaml:"notesFile"`
	Notes      string   `yaml:"notes"`
	Labels     []string `yaml:"labels,omitempty"`
}

// ProvisionSpec parameterizes a provision workflow: plan and apply an
// infrastructure change scoped to targets.
type ProvisionSpec struct {
	PlanFile string   `yaml:"planFile"`
	Targets  []string `yaml:"targets,omitempty"`
}

// Validate checks the manifest is internally consistent.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return errors.New("manifest: name is required")
	}

	switch m.Kind {
	case KindPatch:
		if m.Patch == nil {
			return errors.New("manifest: kind is patch but no patch spec given")
		}

		return m.Patch.validate()
	case KindRelease:
		if m.Release == nil {
			return errors.New("manifest: kind is release but no release spec given")
		}

		return m.Release.validate()
	case KindProvision:
		if m.Provision == nil {
			return errors.New("manifest: kind is provision but no provision spec given")
		}

		return m.Provision.validate()
	default:
		return fmt.Errorf("manifest: unknown kind %q", m.Kind)
	}
}

func (s *PatchSpec) validate() error {
	switch {
	case s.Branch == "":
		return errors.New("patch: branch is required")
	case s.CommitMessage == "":
		return errors.New("patch: commitMessage is required")
	case s.Title == "":
		return errors.New("patch: title is required")
	}

	return nil
}

func (s *ReleaseSpec) validate() error {
	switch s.Bump {
	case "major", "minor", "patch":
	default:
		return fmt.Errorf("release: bump must be major, minor or patch, got %q", s.Bump)
	}
	if s.NotesFile == "" {
		return errors.New("release: notesFile is required")
	}

	return nil
}

func (s *ProvisionSpec) validate() error {
	if s.PlanFile == "" {
		return errors.New("provision: planFile is required")
	}

	return nil
}

// LoadManifest reads and validates a manifest from a YAML file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// defaulted fills the common optional fields callers usually omit.
func (s *PatchSpec) defaulted() PatchSpec {
	out := *s
	if out.Remote == "" {
		out.Remote = "origin"
	}
	if out.BaseBranch == "" {
		out.BaseBranch = "main"
	}

	return out
}

func (s *ReleaseSpec) defaulted() ReleaseSpec {
	out := *s
	if out.Remote == "" {
		out.Remote = "origin"
	}
	if out.BaseBranch == "" {
		out.BaseBranch = "main"
	}

	return out
}
