package message

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Kind identifies a content variant.
type Kind string

const (
	KindText        Kind = "text"
	KindImage       Kind = "image"
	KindImageURL    Kind = "image_url"
	KindAudio       Kind = "audio"
	KindVideo       Kind = "video"
	KindFile        Kind = "file"
	KindDocument    Kind = "document"
	KindDocumentURL Kind = "document_url"
)

// ErrInvalidDataURL is returned when a data URL cannot be parsed.
var ErrInvalidDataURL = errors.New("invalid data url")

// Content is one part of a user message.
type Content interface {
	Kind() Kind
}

// Text is a plain text part.
type Text struct {
	Text string
}

func (Text) Kind() Kind { return KindText }

// ImageURL references a remote image.
type ImageURL struct {
	URL string
}

func (ImageURL) Kind() Kind { return KindImageURL }

// DocumentURL references a remote document.
type DocumentURL struct {
	URL string
}

func (DocumentURL) Kind() Kind { return KindDocumentURL }

// File is binary content backed either by in-memory bytes or by a path on
// disk, never both. Base64 and data-URL forms are derived on demand.
type File struct {
	data   []byte
	path   string
	format string
}

func (File) Kind() Kind { return KindFile }

// NewFile wraps raw bytes with an explicit MIME format. An empty format is
// detected from the content.
func NewFile(data []byte, format string) File {
	if format == "" {
		format = mimetype.Detect(data).String()
	}
	return File{data: data, format: baseFormat(format)}
}

// FileFromPath references a file on disk. The file must be readable; its
// MIME format is detected from content.
func FileFromPath(path string) (File, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return File{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return File{path: path, format: baseFormat(mt.String())}, nil
}

// FileFromDataURL parses "data:<mime>;base64,<payload>".
func FileFromDataURL(dataURL string) (File, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return File{}, fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURL)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return File{}, fmt.Errorf("%w: missing payload", ErrInvalidDataURL)
	}
	format, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return File{}, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURL)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return NewFile(data, format), nil
}

// Bytes returns the payload, reading it from disk for path-backed files.
func (f File) Bytes() ([]byte, error) {
	if f.path == "" {
		return f.data, nil
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.path, err)
	}
	return data, nil
}

// Format returns the MIME type, e.g. "image/png".
func (f File) Format() string { return f.format }

// Path returns the backing path, empty for in-memory files.
func (f File) Path() string { return f.path }

// Filename returns the base name of the backing path.
func (f File) Filename() string {
	if f.path == "" {
		return ""
	}
	return filepath.Base(f.path)
}

// Base64 returns the standard base64 encoding of the payload.
func (f File) Base64() (string, error) {
	data, err := f.Bytes()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DataURL returns the payload as a data URL.
func (f File) DataURL() (string, error) {
	encoded, err := f.Base64()
	if err != nil {
		return "", err
	}
	return "data:" + f.format + ";base64," + encoded, nil
}

// baseFormat strips MIME parameters such as "; charset=utf-8".
func baseFormat(format string) string {
	base, _, _ := strings.Cut(format, ";")
	return strings.TrimSpace(base)
}

// Image is an image part.
type Image struct{ File }

func (Image) Kind() Kind { return KindImage }

// Audio is an audio part.
type Audio struct{ File }

func (Audio) Kind() Kind { return KindAudio }

// Video is a video part.
type Video struct{ File }

func (Video) Kind() Kind { return KindVideo }

// Document is a document part, typically a PDF.
type Document struct{ File }

func (Document) Kind() Kind { return KindDocument }

// ImageFromPath loads an image part from disk.
func ImageFromPath(path string) (Image, error) {
	f, err := FileFromPath(path)
	return Image{f}, err
}

// AudioFromPath loads an audio part from disk.
func AudioFromPath(path string) (Audio, error) {
	f, err := FileFromPath(path)
	return Audio{f}, err
}

// VideoFromPath loads a video part from disk.
func VideoFromPath(path string) (Video, error) {
	f, err := FileFromPath(path)
	return Video{f}, err
}

// DocumentFromPath loads a document part from disk.
func DocumentFromPath(path string) (Document, error) {
	f, err := FileFromPath(path)
	return Document{f}, err
}

// FromPath loads a binary part from disk, choosing the variant by MIME type.
func FromPath(path string) (Content, error) {
	f, err := FileFromPath(path)
	if err != nil {
		return nil, err
	}
	return classify(f), nil
}

func classify(f File) Content {
	switch {
	case strings.HasPrefix(f.format, "image/"):
		return Image{f}
	case strings.HasPrefix(f.format, "audio/"):
		return Audio{f}
	case strings.HasPrefix(f.format, "video/"):
		return Video{f}
	case f.format == "application/pdf":
		return Document{f}
	default:
		return f
	}
}
