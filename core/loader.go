package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the encoding of a descriptor file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var (
	ErrMissingDescriptor = errors.New("descriptor file not found")
	ErrUnknownFormat     = errors.New("unknown descriptor format")
)

// Descriptor file base names inside a dataset directory.
const (
	FileOverlay       = "overlay"
	FileTunnel        = "tunnel"
	FileUnderlay      = "underlay"
	FileParameterList = "parameter_list"
	FileConfig        = "config"
)

var extensions = []string{".json", ".yaml", ".yml"}

// FormatFromPath infers the descriptor format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// LoadDataset reads a dataset from path, which is either a directory holding
// one file per descriptor (overlay, tunnel, underlay, parameter_list and the
// optional config, each .json, .yaml or .yml) or a single bundle file with
// those keys at the top level.
func LoadDataset(path string) (*Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("LoadDataset: %w", err)
	}
	if !info.IsDir() {
		format, err := FormatFromPath(path)
		if err != nil {
			return nil, fmt.Errorf("LoadDataset: %w", err)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("LoadDataset: %w", err)
		}
		defer f.Close()
		ds, err := DecodeDataset(f, format)
		if err != nil {
			return nil, fmt.Errorf("LoadDataset %s: %w", path, err)
		}
		return ds, nil
	}

	ds := &Dataset{}
	targets := []struct {
		name     string
		dst      any
		optional bool
	}{
		{FileOverlay, &ds.Overlay, false},
		{FileTunnel, &ds.Tunnel, false},
		{FileUnderlay, &ds.Underlay, false},
		{FileParameterList, &ds.ParameterList, false},
		{FileConfig, &ds.Config, true},
	}
	for _, tgt := range targets {
		file, ok := findDescriptor(path, tgt.name)
		if !ok {
			if tgt.optional {
				continue
			}
			return nil, fmt.Errorf("LoadDataset: %w: %s in %s", ErrMissingDescriptor, tgt.name, path)
		}
		if err := decodeFile(file, tgt.dst); err != nil {
			return nil, fmt.Errorf("LoadDataset: %w", err)
		}
	}
	return ds, nil
}

// DecodeDataset decodes a bundle document holding every descriptor.
func DecodeDataset(r io.Reader, format Format) (*Dataset, error) {
	var ds Dataset
	if err := decode(r, format, &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

func findDescriptor(dir, name string) (string, bool) {
	for _, ext := range extensions {
		p := filepath.Join(dir, name+ext)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

func decodeFile(path string, dst any) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := decode(bytes.NewReader(raw), format, dst); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

func decode(r io.Reader, format Format, dst any) error {
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(dst); err != nil {
			return fmt.Errorf("decode json: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return nil
}
