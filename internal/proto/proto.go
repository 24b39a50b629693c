// Package proto shared protocol.
package proto

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"slices"
	"strings"
)

// Persona selects the tone of the analysis report.
type Persona string

// Personas known by the analysis backend.
const (
	PersonaHRBP      Persona = "hrbp"
	PersonaCandidate Persona = "candidate"
)

// DefaultPersona is used when none is given.
const DefaultPersona = PersonaHRBP

// Personas lists the known personas in display order.
var Personas = []Persona{PersonaHRBP, PersonaCandidate}

// Description is a short human description of the persona.
func (p Persona) Description() string {
	switch p {
	case PersonaHRBP:
		return "Strict HR director, finds every flaw like a real interview"
	case PersonaCandidate:
		return "Career coach, gentle advice that surfaces your strengths"
	default:
		return string(p)
	}
}

// Valid reports whether the backend knows the persona.
func (p Persona) Valid() bool {
	for _, known := range Personas {
		if p == known {
			return true
		}
	}
	return false
}

// Form field names.
const (
	FieldResume  = "resume_file"
	FieldJDText  = "jd_text"
	FieldJDFile  = "jd_file"
	FieldPersona = "persona"
)

// Validation errors.
var (
	ErrNoResume          = errors.New("please upload a resume file")
	ErrNoJobDescription  = errors.New("please provide a job description (paste text or upload a file)")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Extensions lists the document formats the backend can parse.
var Extensions = []string{".pdf", ".docx", ".txt", ".md"}

// FormatError reports a document the backend would reject.
type FormatError struct {
	Field string
	Ext   string
}

func (e FormatError) Error() string {
	ext := e.Ext
	if ext == "" {
		ext = "(none)"
	}
	return fmt.Sprintf("%s: unsupported file format: %s. Supported: PDF, DOCX, TXT, MD", e.Field, ext)
}

func (e FormatError) Unwrap() error { return ErrUnsupportedFormat }

func checkFormat(field string, f File) error {
	ext := strings.ToLower(filepath.Ext(f.Name))
	if !slices.Contains(Extensions, ext) {
		return FormatError{Field: field, Ext: ext}
	}
	return nil
}

// File is a document attached to a request.
type File struct {
	Name    string
	Content []byte
}

// Payload is an analysis request.
type Payload struct {
	Resume  File
	JDText  string
	JDFile  *File
	Persona Persona
}

// Validate checks the payload has everything the backend requires.
func (p Payload) Validate() error {
	if p.Resume.Name == "" || len(p.Resume.Content) == 0 {
		return ErrNoResume
	}
	if err := checkFormat(FieldResume, p.Resume); err != nil {
		return err
	}
	if p.JDFile != nil {
		return checkFormat(FieldJDFile, *p.JDFile)
	}
	if strings.TrimSpace(p.JDText) == "" {
		return ErrNoJobDescription
	}
	return nil
}

// Encode renders the payload as a multipart form. The job description file
// takes precedence over the pasted text.
func (p Payload) Encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := writeFile(w, FieldResume, p.Resume); err != nil {
		return nil, "", err
	}
	if p.JDFile != nil {
		if err := writeFile(w, FieldJDFile, *p.JDFile); err != nil {
			return nil, "", err
		}
	} else if err := w.WriteField(FieldJDText, p.JDText); err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", FieldJDText, err)
	}

	persona := p.Persona
	if persona == "" {
		persona = DefaultPersona
	}
	if err := w.WriteField(FieldPersona, string(persona)); err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", FieldPersona, err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("encode: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, field string, f File) error {
	part, err := w.CreateFormFile(field, filepath.Base(f.Name))
	if err != nil {
		return fmt.Errorf("encode %s: %w", field, err)
	}
	if _, err := part.Write(f.Content); err != nil {
		return fmt.Errorf("encode %s: %w", field, err)
	}
	return nil
}
