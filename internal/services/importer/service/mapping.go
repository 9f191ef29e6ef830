package service

import (
	"bytes"
	_ "embed"
	"os"

	perr "gridintake/internal/platform/errors"
	"gridintake/internal/services/importer/domain"

	"gopkg.in/yaml.v3"
)

//go:embed mapping.yaml
var defaultMapping []byte

// LoadMapping reads a mapping file, or the embedded one when path is empty
func LoadMapping(path string) (domain.MappingFile, error) {
	raw := defaultMapping
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return domain.MappingFile{}, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "read mapping %s", path)
		}
		raw = b
	}
	return ParseMapping(raw)
}

// ParseMapping decodes a mapping strictly and validates every category in it
func ParseMapping(raw []byte) (domain.MappingFile, error) {
	var f domain.MappingFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return domain.MappingFile{}, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "decode mapping")
	}
	if err := f.Default.Validate(); err != nil {
		return domain.MappingFile{}, err
	}
	for name := range f.Categories {
		if err := f.For(name).Validate(); err != nil {
			return domain.MappingFile{}, perr.Wrapf(err, perr.ErrorCodeValidation, "category %s", name)
		}
	}
	return f, nil
}
