package config

import (
	"testing"

	"github.com/cognicore/supportlens/pkg/supportlens/patterns"
)

func TestLoaderAllEmpty(t *testing.T) {
	loader := Loader{}

	comp, err := loader.Load()
	if err != nil {
		t.Fatalf("Empty loader should succeed: %v", err)
	}
	if comp.Library != patterns.Default() {
		t.Error("Should use the default pattern library")
	}
	if comp.Normalizer == nil || comp.Tokenizer == nil || comp.Questions == nil {
		t.Error("Should build every text component")
	}
	if len(comp.Settings.StopWords) == 0 || len(comp.Settings.QuestionWords) == 0 {
		t.Error("Word lists should fall back to the library defaults")
	}
}

func TestLoaderCustomFiles(t *testing.T) {
	loader := Loader{
		PatternsPath: writeFile(t, "patterns.yaml", "version: test-7\nstop_words: [배송]\n"),
		SettingsPath: writeFile(t, "settings.yaml", "questionWords: [언제]\n"),
	}

	comp, err := loader.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if comp.Library.Version() != "test-7" {
		t.Errorf("version = %q", comp.Library.Version())
	}
	if len(comp.Settings.StopWords) != 1 || comp.Settings.StopWords[0] != "배송" {
		t.Errorf("stop words should come from the custom library, got %v", comp.Settings.StopWords)
	}
	if got := comp.Tokenizer.Tokenize("배송 언제 와요"); len(got) != 2 {
		t.Errorf("Tokenize = %v", got)
	}
	if !comp.Questions.IsQuestion("언제 와요") {
		t.Error("configured question word should be detected")
	}
}

func TestLoaderNonExistentPatterns(t *testing.T) {
	loader := Loader{PatternsPath: "/nonexistent/patterns.yaml"}
	if _, err := loader.Load(); err == nil {
		t.Error("Should error on nonexistent patterns file")
	}
}

func TestLoaderNonExistentSettings(t *testing.T) {
	loader := Loader{SettingsPath: "/nonexistent/settings.yaml"}
	if _, err := loader.Load(); err == nil {
		t.Error("Should error on nonexistent settings file")
	}
}
