package common

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"resumatch/internal/errors"
	"resumatch/internal/utils"
)

// FileProcessor wraps file IO with the application error taxonomy.
type FileProcessor struct {
	logger *errors.Logger
}

// NewFileProcessor creates a new file processor instance
func NewFileProcessor(logger *errors.Logger) *FileProcessor {
	if logger == nil {
		logger = errors.Discard()
	}
	return &FileProcessor{logger: logger}
}

// ReadFile reads a text file into a string.
func (p *FileProcessor) ReadFile(filename string) (string, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		code, msg := errors.ErrCodeFileNotReadable, "Cannot read file"
		if stderrors.Is(err, os.ErrNotExist) {
			code, msg = errors.ErrCodeFileNotFound, "File not found"
		}
		return "", errors.NewIOError(code, fmt.Sprintf("%s: %s", msg, filename), err)
	}
	return string(content), nil
}

// ReadDocument reads a binary input document such as a resume PDF, refusing
// files over maxBytes before reading them. A non-positive maxBytes reads
// without a size guard.
func (p *FileProcessor) ReadDocument(filename string, maxBytes int64) ([]byte, error) {
	if err := utils.ValidateInputFile(filename); err != nil {
		return nil, errors.NewValidationError("INVALID_INPUT_FILE", "Invalid file "+filename, err)
	}

	if maxBytes > 0 {
		info, err := os.Stat(filename)
		if err != nil {
			return nil, errors.NewIOError(errors.ErrCodeFileNotReadable, "Cannot stat file: "+filename, err)
		}
		if info.Size() > maxBytes {
			return nil, errors.NewValidationError(errors.ErrCodePDFTooLarge,
				fmt.Sprintf("File %s exceeds the %s limit", filename, utils.FormatFileSize(maxBytes)), nil).
				WithContext("size_bytes", info.Size()).
				WithContext("limit_bytes", maxBytes)
		}
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable, "Failed to read file content: "+filename, err)
	}

	return data, nil
}

// WriteFile writes content to a file, creating parent directories as
// needed.
func (p *FileProcessor) WriteFile(filename, content string) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return errors.NewIOError("DIRECTORY_CREATE_FAILED", "Cannot create directory: "+dir, err)
		}
	}

	if err := os.WriteFile(filename, []byte(content), 0600); err != nil {
		return errors.NewIOError("FILE_WRITE_FAILED", "Cannot write file: "+filename, err)
	}
	return nil
}

// ValidateAndReadFiles reads several text inputs, validating each path
// first. A file without a recognized text extension produces a warning but
// is still read.
func (p *FileProcessor) ValidateAndReadFiles(filenames ...string) ([]string, error) {
	contents := make([]string, len(filenames))
	for i, name := range filenames {
		if err := utils.ValidateInputFile(name); err != nil {
			return nil, errors.NewValidationError("INVALID_INPUT_FILE", "Invalid file "+name, err)
		}
		if !utils.IsTextFile(name) {
			p.logger.Warn("File may not be a text file", "filename", name)
		}

		content, err := p.ReadFile(name)
		if err != nil {
			return nil, err
		}
		contents[i] = content
	}
	return contents, nil
}

// ValidateOutputFile checks an output path. An empty path means stdout and
// is always valid.
func (p *FileProcessor) ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil
	}
	if err := utils.ValidateOutputFile(filename); err != nil {
		return errors.NewValidationError("INVALID_OUTPUT_FILE", "Invalid output file: "+filename, err)
	}
	return nil
}
