package config

import (
	"fmt"

	"github.com/cognicore/supportlens/pkg/supportlens/patterns"
	"github.com/cognicore/supportlens/pkg/supportlens/textnorm"
)

// Loader loads all configuration files and constructs components
type Loader struct {
	PatternsPath string
	SettingsPath string
}

// Components holds all loaded configuration components
type Components struct {
	Library    *patterns.Library
	Normalizer *textnorm.Normalizer
	Tokenizer  *textnorm.Tokenizer
	Questions  *textnorm.QuestionDetector
	Settings   Settings
}

// Load reads all configuration files and returns initialized components
func (l *Loader) Load() (*Components, error) {
	lib := patterns.Default()
	if l.PatternsPath != "" {
		loaded, err := patterns.Load(l.PatternsPath)
		if err != nil {
			return nil, fmt.Errorf("load patterns: %w", err)
		}
		lib = loaded
	}

	settings := DefaultSettings()
	if l.SettingsPath != "" {
		loaded, err := LoadSettings(l.SettingsPath)
		if err != nil {
			return nil, fmt.Errorf("load settings: %w", err)
		}
		settings = loaded
	}

	return Build(lib, settings), nil
}

// Build assembles components from an already loaded library and settings
func Build(lib *patterns.Library, settings Settings) *Components {
	if lib == nil {
		lib = patterns.Default()
	}
	settings = settings.WithLibraryDefaults(lib)
	return &Components{
		Library:    lib,
		Normalizer: textnorm.New(lib),
		Tokenizer:  textnorm.NewTokenizer(settings.StopWords),
		Questions:  textnorm.NewQuestionDetector(settings.QuestionWords, lib),
		Settings:   settings,
	}
}
