package normalize

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hupe1980/convomesh/core"
)

// DefaultMaxFileChars is the file body budget, counted in characters.
const DefaultMaxFileChars = 15000

// Fixed texts used when building canonical messages.
const (
	LegacyImageText   = "He subido una imagen. Analizala."
	DefaultFileText   = "Analiza este archivo."
	DefaultUploadText = "Describe brevemente esta imagen y pregunta al usuario qué quiere saber sobre ella o qué quiere hacer con ella."
	TruncationNote    = "\n\n[... contenido truncado por longitud ...]"
)

// Result is the canonical form of one input.
type Result struct {
	// Content is appended to the prompt context.
	Content core.Content
	// Persist reports whether a user turn is written to the conversation log.
	Persist bool
	// LogText and Images form the persisted turn.
	LogText string
	Images  []string
	// Truncated is set when a file body exceeded the budget.
	Truncated bool
}

// Options configures a Normalizer.
type Options struct {
	// MaxFileChars defaults to DefaultMaxFileChars.
	MaxFileChars int
}

// Normalizer turns inputs into canonical content.
type Normalizer struct {
	maxFileChars int
}

// New creates a Normalizer.
func New(optFns ...func(o *Options)) *Normalizer {
	opts := Options{MaxFileChars: DefaultMaxFileChars}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxFileChars <= 0 {
		opts.MaxFileChars = DefaultMaxFileChars
	}
	return &Normalizer{maxFileChars: opts.MaxFileChars}
}

// Normalize converts in into its canonical Result. Inputs that carry nothing
// return core.ErrEmptyInput; unknown variants return core.ErrUnsupportedInput.
func (n *Normalizer) Normalize(in Input) (Result, error) {
	switch v := in.(type) {
	case TextInput:
		return text(v.Text)
	case TranscriptInput:
		return text(v.Text)
	case LegacyImageInput:
		return legacyImage(v)
	case MultimodalInput:
		return multimodal(v)
	case FileInput:
		return n.file(v)
	case ImageUploadInput:
		return imageUpload(v)
	default:
		return Result{}, fmt.Errorf("%w: %T", core.ErrUnsupportedInput, in)
	}
}

func text(s string) (Result, error) {
	if strings.TrimSpace(s) == "" {
		return Result{}, core.ErrEmptyInput
	}
	return Result{
		Content: core.NewTextContent(core.RoleUser, s),
		Persist: true,
		LogText: s,
	}, nil
}

func legacyImage(v LegacyImageInput) (Result, error) {
	if v.Image == "" {
		return Result{}, core.ErrEmptyInput
	}
	return Result{
		Content: core.Content{Role: core.RoleUser, Parts: []core.Part{
			core.TextPart{Text: LegacyImageText},
			core.ImagePart{URL: ImageURL(v.Image)},
		}},
	}, nil
}

func multimodal(v MultimodalInput) (Result, error) {
	urls := nonEmpty(v.ImageURLs)
	if v.Text == "" && len(urls) == 0 {
		return Result{}, core.ErrEmptyInput
	}
	parts := make([]core.Part, 0, len(urls)+1)
	if v.Text != "" {
		parts = append(parts, core.TextPart{Text: v.Text})
	}
	for _, u := range urls {
		parts = append(parts, core.ImagePart{URL: u})
	}
	return Result{
		Content: core.Content{Role: core.RoleUser, Parts: parts},
		Persist: true,
		LogText: v.Text,
		Images:  urls,
	}, nil
}

func (n *Normalizer) file(v FileInput) (Result, error) {
	if v.FileContent == "" {
		return Result{}, core.ErrEmptyInput
	}
	body, truncated := Truncate(v.FileContent, n.maxFileChars)
	note := ""
	if truncated {
		note = TruncationNote
	}
	msg := v.Text
	if msg == "" {
		msg = DefaultFileText
	}
	full := fmt.Sprintf("El usuario ha compartido un archivo llamado \"%s\".\nCONTENIDO DEL ARCHIVO:\n---\n%s%s\n---\nMENSAJE DEL USUARIO %s",
		v.FileName, body, note, msg)
	return Result{
		Content:   core.NewTextContent(core.RoleUser, full),
		Persist:   true,
		LogText:   strings.TrimSpace(fmt.Sprintf("[Archivo: %s] %s", v.FileName, v.Text)),
		Truncated: truncated,
	}, nil
}

func imageUpload(v ImageUploadInput) (Result, error) {
	if v.DataURL == "" {
		return Result{}, core.ErrEmptyInput
	}
	msg := v.Text
	if msg == "" {
		msg = DefaultUploadText
	}
	logText := v.Text
	if logText == "" {
		logText = fmt.Sprintf("[Imagen: %s]", v.FileName)
	}
	return Result{
		Content: core.Content{Role: core.RoleUser, Parts: []core.Part{
			core.TextPart{Text: msg},
			core.ImagePart{URL: v.DataURL},
		}},
		Persist: true,
		LogText: logText,
		Images:  nonEmpty(v.PublicURLs),
	}, nil
}

// Truncate cuts s to at most max characters and reports whether it did.
func Truncate(s string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s, false
	}
	i, count := 0, 0
	for i = range s {
		if count == max {
			break
		}
		count++
	}
	return s[:i], true
}

// ImageURL returns s as a URL usable in an image part. Bare base64 payloads
// are wrapped in a JPEG data URL.
func ImageURL(s string) string {
	if strings.HasPrefix(s, "data:") || strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}
	return "data:image/jpeg;base64," + s
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
