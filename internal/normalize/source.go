// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize reads downloaded page files and yields cleaned,
// identified study records.
//
// A page file is a JSON object with a "studies" array. Files are decoded as
// a stream, one study at a time, so a single aggregated file with the whole
// registry never has to fit in memory as a parsed tree.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"

	"github.com/pdiddy/ctgov-connector/internal/logger"
	"github.com/pdiddy/ctgov-connector/pkg/types"
)

// studiesKey is the top-level key holding the records in a page file.
const studiesKey = "studies"

// Errors wrapped in a ParseError.
var (
	ErrMissingStudies   = errors.New(`no "studies" array`)
	ErrDuplicateStudies = errors.New(`repeated "studies" key`)
	ErrTrailingData     = errors.New("data after the top-level object")
)

// ParseError reports a page file that could not be decoded.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// RecordSource yields study records.
type RecordSource interface {
	// Records returns a finite sequence of studies. Iteration stops after
	// the first error. Each call starts over from the first file.
	Records() iter.Seq2[types.Study, error]
}

// FileSource reads studies from page files on disk.
type FileSource struct {
	dir      string
	file     string
	stampIDs bool
	onSkip   func(file string)
	log      *logger.Logger
}

var _ RecordSource = (*FileSource)(nil)

// Option configures a FileSource.
type Option func(*FileSource)

// WithoutIDs disables _id stamping.
func WithoutIDs() Option {
	return func(s *FileSource) { s.stampIDs = false }
}

// WithLogger sets the logger used for per-file progress and skipped records.
func WithLogger(l *logger.Logger) Option {
	return func(s *FileSource) {
		if l != nil {
			s.log = l
		}
	}
}

// OnSkip registers fn to be called for every study dropped because it has
// no nctId to stamp as _id.
func OnSkip(fn func(file string)) Option {
	return func(s *FileSource) { s.onSkip = fn }
}

// NewDirSource reads every *.json file in dir, in name order.
func NewDirSource(dir string, opts ...Option) *FileSource {
	return newSource(dir, "", opts)
}

// NewFileSource reads a single page file.
func NewFileSource(path string, opts ...Option) *FileSource {
	return newSource("", path, opts)
}

// NewSource builds a source from normalize settings; File wins over Dir.
func NewSource(cfg types.NormalizeConfig, log *logger.Logger, extra ...Option) (*FileSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := append([]Option{WithLogger(log)}, extra...)
	if !cfg.StampIDs {
		opts = append(opts, WithoutIDs())
	}
	if cfg.File != "" {
		return NewFileSource(cfg.File, opts...), nil
	}
	return NewDirSource(cfg.Dir, opts...), nil
}

func newSource(dir, file string, opts []Option) *FileSource {
	s := &FileSource{
		dir:      dir,
		file:     file,
		stampIDs: true,
		log:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("stage", "normalize")
	return s
}

// Files lists the page files the source reads, resolved at call time.
func (s *FileSource) Files() ([]string, error) {
	if s.file != "" {
		return []string{s.file}, nil
	}
	info, err := os.Stat(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("reading data directory: %s is not a directory", s.dir)
	}
	// Glob returns names in lexical order.
	files, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.dir, err)
	}
	return files, nil
}

// Records yields the cleaned studies of every file in order.
func (s *FileSource) Records() iter.Seq2[types.Study, error] {
	return func(yield func(types.Study, error) bool) {
		files, err := s.Files()
		if err != nil {
			yield(nil, err)
			return
		}
		for _, path := range files {
			if !s.readFile(path, yield) {
				return
			}
		}
	}
}

// readFile yields one file's studies and reports whether iteration should
// continue.
func (s *FileSource) readFile(path string, yield func(types.Study, error) bool) bool {
	s.log.Info("reading page file", "file", path)

	f, err := os.Open(path)
	if err != nil {
		return yield(nil, fmt.Errorf("opening %s: %w", path, err))
	}
	defer f.Close()

	var (
		stopped bool
		count   int
		skipped int
	)
	err = decodeStudies(f, func(study types.Study) bool {
		if s.stampIDs && !StampID(study) {
			skipped++
			s.log.Warn("skipping study without nctId", "file", filepath.Base(path))
			if s.onSkip != nil {
				s.onSkip(path)
			}
			return true
		}
		count++
		if !yield(CleanStudy(study), nil) {
			stopped = true
			return false
		}
		return true
	})
	if stopped {
		return false
	}
	if err != nil {
		return yield(nil, &ParseError{File: path, Err: err})
	}
	s.log.Debug("page file done", "file", path, "studies", count, "skipped", skipped)
	return true
}

// decodeStudies streams the elements of the top-level "studies" array to
// fn. Other top-level keys are skipped; a second "studies" key or anything
// after the closing brace is an error. It stops early, without error, when
// fn returns false.
func decodeStudies(r io.Reader, fn func(types.Study) bool) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := expectDelim(dec, '{'); err != nil {
		return err
	}

	found := false
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		if key != studiesKey {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return err
			}
			continue
		}

		if found {
			return ErrDuplicateStudies
		}
		found = true
		if err := expectDelim(dec, '['); err != nil {
			return fmt.Errorf("%q: %w", studiesKey, err)
		}
		for dec.More() {
			var study types.Study
			if err := dec.Decode(&study); err != nil {
				return err
			}
			if study == nil {
				continue
			}
			if !fn(study) {
				return nil
			}
		}
		if err := expectDelim(dec, ']'); err != nil {
			return err
		}
	}

	if err := expectDelim(dec, '}'); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return ErrTrailingData
	}
	if !found {
		return ErrMissingStudies
	}
	return nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, found %v", want, tok)
	}
	return nil
}

// Collect drains a source into a slice.
func Collect(src RecordSource) ([]types.Study, error) {
	var out []types.Study
	for study, err := range src.Records() {
		if err != nil {
			return out, err
		}
		out = append(out, study)
	}
	return out, nil
}
