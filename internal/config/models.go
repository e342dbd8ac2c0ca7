package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Purpose-arch/tgbotaimult/internal/domain"
)

// DefaultModels is used when no MODELS_FILE is configured.
var DefaultModels = []domain.Model{
	{ID: "qwen/qwen2.5-vl-72b-instruct:free", Label: "Qwen VL 72B (Free)"},
	{ID: "cognitivecomputations/dolphin3.0-r1-mistral-24b:free", Label: "Dolphin 3.0 Mistral 24B (Free)"},
	{ID: "google/gemini-exp-1206:free", Label: "Gemini Experimental (Free)"},
}

type modelsFile struct {
	Models []domain.Model `yaml:"models"`
}

// LoadModels reads the seed catalog. An empty path yields DefaultModels.
func LoadModels(path string) ([]domain.Model, error) {
	if strings.TrimSpace(path) == "" {
		return append([]domain.Model(nil), DefaultModels...), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f modelsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	models := make([]domain.Model, 0, len(f.Models))
	for i, m := range f.Models {
		m.ID = strings.TrimSpace(m.ID)
		m.Label = strings.TrimSpace(m.Label)
		if m.ID == "" {
			return nil, fmt.Errorf("parse %s: model #%d has no id", path, i+1)
		}
		if m.Label == "" {
			m.Label = m.ID
		}
		models = append(models, m)
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("parse %s: no models listed", path)
	}
	return models, nil
}
