package patterns

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Category names one ordered group of cleanup patterns
type Category string

const (
	CategoryAttachments  Category = "attachments"
	CategoryAutoReply    Category = "auto_reply"
	CategoryScriptedFlow Category = "scripted_flow"
	CategoryHelpDocs     Category = "help_docs"
	CategoryURLs         Category = "urls"
	CategoryContactCodes Category = "contact_codes"
	CategoryHashes       Category = "hashes"
)

// cleanupOrder is the fixed order in which Clean applies rule categories.
var cleanupOrder = []Category{
	CategoryAttachments,
	CategoryAutoReply,
	CategoryScriptedFlow,
	CategoryHelpDocs,
	CategoryURLs,
	CategoryContactCodes,
	CategoryHashes,
}

// Document is the YAML form of a pattern library
type Document struct {
	Version         string   `yaml:"version"`
	Greetings       []string `yaml:"greetings"`
	SignOffs        []string `yaml:"signoffs"`
	Attachments     []string `yaml:"attachments"`
	AutoReply       []string `yaml:"auto_reply"`
	ScriptedFlow    []string `yaml:"scripted_flow"`
	HelpDocs        []string `yaml:"help_docs"`
	URLs            []string `yaml:"urls"`
	ContactCodes    []string `yaml:"contact_codes"`
	Hashes          []string `yaml:"hashes"`
	Noise           []string `yaml:"noise"`
	ExcludeSpeakers []string `yaml:"exclude_speakers"`
	FailureMarkers  []string `yaml:"failure_markers"`
	QuestionEndings string   `yaml:"question_endings"`
	CustomerLabel   string   `yaml:"customer_label"`
	TranscriptLine  string   `yaml:"transcript_line"`
	SubjectName     string   `yaml:"subject_name"`
	CustomerMarkup  Markup   `yaml:"customer_markup"`
	StopWords       []string `yaml:"stop_words"`
	QuestionWords   []string `yaml:"question_words"`
}

// Markup identifies HTML elements that wrap end-user-authored text
type Markup struct {
	Attributes map[string]string `yaml:"attributes"`
	Classes    []string          `yaml:"classes"`
}

// Rule is one compiled cleanup pattern
type Rule struct {
	Category Category
	Pattern  *regexp.Regexp
}

// Library is an immutable, compiled pattern library. It is safe for
// concurrent use.
type Library struct {
	version         string
	greetings       []string
	signOffs        []string
	rules           []Rule
	noise           []*regexp.Regexp
	excludeSpeakers []string
	failureMarkers  []string
	questionEndings *regexp.Regexp
	customerLabel   *regexp.Regexp
	transcriptLine  *regexp.Regexp
	subjectName     *regexp.Regexp
	markup          Markup
	stopWords       []string
	questionWords   []string
}

var defaultLibrary = sync.OnceValues(func() (*Library, error) {
	doc, err := DefaultDocument()
	if err != nil {
		return nil, err
	}
	return Compile(doc)
})

// Default returns the library compiled from the embedded default document.
func Default() *Library {
	lib, err := defaultLibrary()
	if err != nil {
		panic(fmt.Sprintf("patterns: embedded default library is invalid: %v", err))
	}
	return lib
}

// DefaultDocument decodes the embedded default document
func DefaultDocument() (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(defaultYAML, &doc); err != nil {
		return Document{}, fmt.Errorf("decode default patterns: %w", err)
	}
	return doc, nil
}

// Load reads a YAML pattern document from path. Keys present in the file
// replace the corresponding default category; absent keys keep the default.
func Load(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML pattern document layered over the default document.
func Parse(data []byte) (*Library, error) {
	doc, err := DefaultDocument()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode patterns: %w", err)
	}
	return Compile(doc)
}

// Compile validates and compiles a pattern document
func Compile(doc Document) (*Library, error) {
	lib := &Library{
		version:         strings.TrimSpace(doc.Version),
		greetings:       phraseList(doc.Greetings),
		signOffs:        phraseList(doc.SignOffs),
		excludeSpeakers: lowerList(doc.ExcludeSpeakers),
		failureMarkers:  lowerList(doc.FailureMarkers),
		stopWords:       lowerList(doc.StopWords),
		questionWords:   lowerList(doc.QuestionWords),
		markup:          copyMarkup(doc.CustomerMarkup),
	}
	if lib.version == "" {
		return nil, fmt.Errorf("patterns: version is required")
	}

	byCategory := map[Category][]string{
		CategoryAttachments:  doc.Attachments,
		CategoryAutoReply:    doc.AutoReply,
		CategoryScriptedFlow: doc.ScriptedFlow,
		CategoryHelpDocs:     doc.HelpDocs,
		CategoryURLs:         doc.URLs,
		CategoryContactCodes: doc.ContactCodes,
		CategoryHashes:       doc.Hashes,
	}
	for _, cat := range cleanupOrder {
		for i, expr := range byCategory[cat] {
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("patterns: %s[%d]: %w", cat, i, err)
			}
			lib.rules = append(lib.rules, Rule{Category: cat, Pattern: re})
		}
	}

	for i, expr := range doc.Noise {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("patterns: noise[%d]: %w", i, err)
		}
		lib.noise = append(lib.noise, re)
	}

	singles := []struct {
		name   string
		expr   string
		target **regexp.Regexp
	}{
		{"question_endings", doc.QuestionEndings, &lib.questionEndings},
		{"customer_label", doc.CustomerLabel, &lib.customerLabel},
		{"transcript_line", doc.TranscriptLine, &lib.transcriptLine},
		{"subject_name", doc.SubjectName, &lib.subjectName},
	}
	for _, s := range singles {
		if strings.TrimSpace(s.expr) == "" {
			return nil, fmt.Errorf("patterns: %s is required", s.name)
		}
		re, err := regexp.Compile(s.expr)
		if err != nil {
			return nil, fmt.Errorf("patterns: %s: %w", s.name, err)
		}
		*s.target = re
	}
	if lib.customerLabel.NumSubexp() < 1 {
		return nil, fmt.Errorf("patterns: customer_label needs a capture group")
	}
	if lib.transcriptLine.NumSubexp() < 2 {
		return nil, fmt.Errorf("patterns: transcript_line needs timestamp and speaker groups")
	}
	if lib.subjectName.NumSubexp() < 1 {
		return nil, fmt.Errorf("patterns: subject_name needs a capture group")
	}

	return lib, nil
}

// Version reports the document version the library was compiled from
func (l *Library) Version() string { return l.version }

// Greetings returns lower-cased greeting phrases, longest first
func (l *Library) Greetings() []string { return append([]string(nil), l.greetings...) }

// SignOffs returns lower-cased sign-off phrases, longest first
func (l *Library) SignOffs() []string { return append([]string(nil), l.signOffs...) }

// Rules returns the cleanup rules in application order
func (l *Library) Rules() []Rule { return append([]Rule(nil), l.rules...) }

// RulesFor returns the cleanup rules of the given categories, in application order.
func (l *Library) RulesFor(cats ...Category) []Rule {
	want := make(map[Category]struct{}, len(cats))
	for _, c := range cats {
		want[c] = struct{}{}
	}
	var out []Rule
	for _, r := range l.rules {
		if _, ok := want[r.Category]; ok {
			out = append(out, r)
		}
	}
	return out
}

// IsNoiseLine reports whether a line matches a noise pattern or any cleanup rule.
func (l *Library) IsNoiseLine(line string) bool {
	for _, re := range l.noise {
		if re.MatchString(line) {
			return true
		}
	}
	for _, r := range l.rules {
		if r.Pattern.MatchString(line) {
			return true
		}
	}
	return false
}

// IsExcludedSpeaker reports whether a speaker name looks like a bot, agent
// or system participant. Latin-script entries must match whole words, so
// "Abbott" is not a bot; other entries match anywhere in the name.
func (l *Library) IsExcludedSpeaker(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}
	words := " " + strings.Join(wordsOf(name), " ") + " "
	for _, ex := range l.excludeSpeakers {
		if isASCII(ex) {
			if w := strings.Join(wordsOf(ex), " "); w != "" && strings.Contains(words, " "+w+" ") {
				return true
			}
			continue
		}
		if strings.Contains(name, ex) {
			return true
		}
	}
	return false
}

func wordsOf(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// IsFailureMarker reports whether text is an error placeholder rather than content
func (l *Library) IsFailureMarker(text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return true
	}
	for _, m := range l.failureMarkers {
		if !strings.HasPrefix(text, m) {
			continue
		}
		rest := text[len(m):]
		if rest == "" {
			return true
		}
		r, _ := utf8.DecodeRuneInString(rest)
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// QuestionEndings matches question-style sentence endings
func (l *Library) QuestionEndings() *regexp.Regexp { return l.questionEndings }

// CustomerLabel matches a literal customer-inquiry label; group 1 is the inquiry
func (l *Library) CustomerLabel() *regexp.Regexp { return l.customerLabel }

// TranscriptLine matches "(HH:MM:SS) Speaker:" headers; group 2 is the speaker
func (l *Library) TranscriptLine() *regexp.Regexp { return l.transcriptLine }

// SubjectName matches "<name>'s conversation" subjects; group 1 is the name
func (l *Library) SubjectName() *regexp.Regexp { return l.subjectName }

// Markup returns the customer-authored markup markers
func (l *Library) Markup() Markup { return copyMarkup(l.markup) }

// StopWords returns the default stopword list
func (l *Library) StopWords() []string { return append([]string(nil), l.stopWords...) }

// QuestionWords returns the default question-word list
func (l *Library) QuestionWords() []string { return append([]string(nil), l.questionWords...) }

// phraseList lower-cases, trims and orders phrases longest first so the most
// specific phrase is stripped before its prefixes.
func phraseList(in []string) []string {
	out := lowerList(in)
	sort.SliceStable(out, func(i, j int) bool {
		return utf8.RuneCountInString(out[i]) > utf8.RuneCountInString(out[j])
	})
	return out
}

func lowerList(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func copyMarkup(m Markup) Markup {
	out := Markup{Attributes: make(map[string]string, len(m.Attributes))}
	for k, v := range m.Attributes {
		out.Attributes[strings.ToLower(k)] = strings.ToLower(v)
	}
	out.Classes = lowerList(m.Classes)
	return out
}
