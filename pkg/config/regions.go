package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/user/listing-aggregator/internal/entity"
)

type regionsFile struct {
	Regions []struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"regions"`
}

// LoadRegions reads a YAML seed file of crawl targets.
//
//	regions:
//	  - id: "6035"
//	    name: 역삼동
func LoadRegions(path string) ([]entity.Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regions file: %w", err)
	}
	return ParseRegions(data)
}

// ParseRegions decodes region seed YAML. Entries without an id or name are rejected.
func ParseRegions(data []byte) ([]entity.Region, error) {
	var file regionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode regions yaml: %w", err)
	}

	regions := make([]entity.Region, 0, len(file.Regions))
	for i, r := range file.Regions {
		id := strings.TrimSpace(r.ID)
		name := strings.TrimSpace(r.Name)
		if id == "" || name == "" {
			return nil, fmt.Errorf("region #%d: id and name are required", i)
		}
		regions = append(regions, entity.Region{ID: id, Name: name})
	}
	return regions, nil
}
