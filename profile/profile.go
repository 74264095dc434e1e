// Package profile describes how the transcoder binary is invoked for a
// source locator, and loads that description from YAML or TOML files.
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// SourcePlaceholder marks the argument replaced by the source locator.
const SourcePlaceholder = "{source}"

var (
	ErrNoSourcePlaceholder = errors.New("profile args do not contain " + SourcePlaceholder)
	ErrUnsupportedFormat   = errors.New("unsupported profile format")
	ErrEmptyProfile        = errors.New("profile is empty")
)

// Profile is an argument template for the transcoder binary.
type Profile struct {
	Name   string   `yaml:"name" toml:"name"`
	Binary string   `yaml:"binary" toml:"binary"`
	Args   []string `yaml:"args" toml:"args"`
}

// Default returns the built-in FLV profile: video is copied, audio is
// re-encoded to MP3 and the container is written to stdout.
func Default() Profile {
	return Profile{
		Name:   "flv",
		Binary: "ffmpeg",
		Args: []string{
			"-thread_queue_size", "1024",
			"-rtsp_flags", "prefer_tcp",
			"-max_delay", "500000",
			"-stimeout", "5000000",
			"-i", SourcePlaceholder,
			"-c:v", "copy",
			"-c:a", "libmp3lame",
			"-q:a", "2",
			"-loglevel", "quiet",
			"-f", "flv",
			"-ar", "22050",
			"-crf", "50",
			"-r", "15",
			"-",
		},
	}
}

// Validate checks that the profile can produce a command line.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Binary) == "" {
		return errors.New("profile binary is empty")
	}
	for _, a := range p.Args {
		if a == SourcePlaceholder {
			return nil
		}
	}
	return ErrNoSourcePlaceholder
}

// Command returns the binary and the argument list for source. The source
// is substituted verbatim.
func (p Profile) Command(source string) (string, []string) {
	args := make([]string, len(p.Args))
	for i, a := range p.Args {
		if a == SourcePlaceholder {
			args[i] = source
			continue
		}
		args[i] = a
	}
	return p.Binary, args
}

// Parse decodes a profile. format is "yaml", "yml" or "toml". Missing
// fields fall back to Default.
func Parse(data []byte, format string) (Profile, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Profile{}, ErrEmptyProfile
	}

	var p Profile
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return Profile{}, fmt.Errorf("parse yaml profile: %w", err)
		}
	case "toml":
		if _, err := toml.Decode(string(data), &p); err != nil {
			return Profile{}, fmt.Errorf("parse toml profile: %w", err)
		}
	default:
		return Profile{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	def := Default()
	if p.Name == "" {
		p.Name = def.Name
	}
	if p.Binary == "" {
		p.Binary = def.Binary
	}
	if len(p.Args) == 0 {
		p.Args = def.Args
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// LoadFile reads a profile, choosing the format from the file extension.
func LoadFile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	return Parse(data, filepath.Ext(path))
}
