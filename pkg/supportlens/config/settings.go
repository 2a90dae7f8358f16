package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/cognicore/supportlens/pkg/supportlens/internalerr"
	"github.com/cognicore/supportlens/pkg/supportlens/patterns"
	"github.com/cognicore/supportlens/pkg/supportlens/records"
)

// EnvPrefix prefixes every environment override, e.g. SUPPORTLENS_TOPN_FAQ.
const EnvPrefix = "SUPPORTLENS"

// TopN caps the ranked lists of each tag
type TopN struct {
	FAQ      int `mapstructure:"faq" yaml:"faq" json:"faq"`
	Keywords int `mapstructure:"keywords" yaml:"keywords" json:"keywords"`
}

// Settings configures record building and aggregation
type Settings struct {
	StopWords                 []string `mapstructure:"stopWords" yaml:"stopWords" json:"stopWords"`
	QuestionWords             []string `mapstructure:"questionWords" yaml:"questionWords" json:"questionWords"`
	TopN                      TopN     `mapstructure:"topN" yaml:"topN" json:"topN"`
	MinChatCount              int      `mapstructure:"minChatCount" yaml:"minChatCount" json:"minChatCount"`
	RepresentativeMessageRule string   `mapstructure:"representativeMessageRule" yaml:"representativeMessageRule" json:"representativeMessageRule"`

	// Workers bounds parallel aggregation; 0 means GOMAXPROCS.
	Workers int `mapstructure:"workers" yaml:"workers" json:"workers"`
}

// DefaultSettings returns the settings used when nothing is configured.
// Unset word lists are filled from the pattern library by WithLibraryDefaults.
func DefaultSettings() Settings {
	return Settings{
		TopN:                      TopN{FAQ: 10, Keywords: 20},
		MinChatCount:              1,
		RepresentativeMessageRule: string(records.RuleLongest),
	}
}

// WithLibraryDefaults returns a copy whose unset (nil) word lists are taken
// from lib. An explicitly empty list stays empty.
func (s Settings) WithLibraryDefaults(lib *patterns.Library) Settings {
	if lib == nil {
		lib = patterns.Default()
	}
	if s.StopWords == nil {
		s.StopWords = lib.StopWords()
	}
	if s.QuestionWords == nil {
		s.QuestionWords = lib.QuestionWords()
	}
	return s
}

// Rule returns the parsed representative-message rule
func (s Settings) Rule() (records.Rule, error) {
	return records.ParseRule(s.RepresentativeMessageRule)
}

// Validate reports every invalid field at once. The error wraps
// internalerr.ErrInvalidConfig.
func (s Settings) Validate() error {
	var errs []error
	if s.TopN.FAQ < 0 {
		errs = append(errs, fmt.Errorf("topN.faq must be >= 0, got %d", s.TopN.FAQ))
	}
	if s.TopN.Keywords < 0 {
		errs = append(errs, fmt.Errorf("topN.keywords must be >= 0, got %d", s.TopN.Keywords))
	}
	if s.MinChatCount < 0 {
		errs = append(errs, fmt.Errorf("minChatCount must be >= 0, got %d", s.MinChatCount))
	}
	if s.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", s.Workers))
	}
	if _, err := s.Rule(); err != nil {
		errs = append(errs, fmt.Errorf("representativeMessageRule %q is not one of longest, latest, question_first", s.RepresentativeMessageRule))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", internalerr.ErrInvalidConfig, errors.Join(errs...))
}

// LoadSettings reads settings from an optional YAML file with SUPPORTLENS_*
// environment overrides, then validates them.
func LoadSettings(path string) (Settings, error) {
	v, err := newViper(path)
	if err != nil {
		return Settings{}, err
	}
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()

	def := DefaultSettings()
	// Word lists get no default so an absent key decodes to nil.
	v.BindEnv("stopWords")     //nolint:errcheck
	v.BindEnv("questionWords") //nolint:errcheck
	v.SetDefault("topN.faq", def.TopN.FAQ)
	v.SetDefault("topN.keywords", def.TopN.Keywords)
	v.SetDefault("minChatCount", def.MinChatCount)
	v.SetDefault("representativeMessageRule", def.RepresentativeMessageRule)
	v.SetDefault("workers", def.Workers)
	setAppDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return v, nil
}
