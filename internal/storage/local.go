package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/immxrtalbeast/supportchat/internal/domain"
	"github.com/immxrtalbeast/supportchat/lib/logger/sl"
)

const (
	DefaultMaxBytes = 16 << 20
	sniffLength     = 3072
	maxNameLength   = 128
)

// LocalStore writes attachments under dir as "<uuid>_<name>" and exposes them
// under publicPrefix.
type LocalStore struct {
	dir          string
	publicPrefix string
	maxBytes     int64
	log          *slog.Logger
}

func NewLocalStore(dir, publicPrefix string, maxBytes int64, log *slog.Logger) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("upload dir is empty")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{
		dir:          dir,
		publicPrefix: "/" + strings.Trim(publicPrefix, "/"),
		maxBytes:     maxBytes,
		log:          log,
	}, nil
}

func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) Save(ctx context.Context, upload *domain.Upload) (*domain.Attachment, error) {
	const op = "storage.local.save"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if upload == nil || upload.Content == nil {
		return nil, domain.ValidationError("file is empty")
	}
	if upload.Size > s.maxBytes {
		return nil, domain.ValidationError("file is too large")
	}

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(upload.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	head = head[:n]
	if n == 0 {
		return nil, domain.ValidationError("file is empty")
	}

	contentType := mimetype.Detect(head).String()
	name := SanitizeFileName(upload.FileName)
	stored := uuid.New().String() + "_" + name
	full := filepath.Join(s.dir, stored)

	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	body := io.MultiReader(bytes.NewReader(head), upload.Content)
	written, err := io.Copy(f, io.LimitReader(body, s.maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > s.maxBytes {
		err = domain.ValidationError("file is too large")
	}
	if err != nil {
		if rmErr := os.Remove(full); rmErr != nil {
			s.log.Warn("failed to remove partial upload", slog.String("op", op), slog.String("path", full), sl.Err(rmErr))
		}
		if errors.Is(err, domain.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &domain.Attachment{
		ID:          uuid.New(),
		Path:        path.Join(s.publicPrefix, stored),
		FileName:    name,
		ContentType: contentType,
		Size:        written,
	}, nil
}

func (s *LocalStore) Delete(ctx context.Context, attachment *domain.Attachment) error {
	const op = "storage.local.delete"
	if attachment == nil {
		return nil
	}
	full := filepath.Join(s.dir, path.Base(attachment.Path))
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SanitizeFileName keeps the base name and replaces anything outside a
// conservative character set.
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		out = "file"
	}
	if len(out) > maxNameLength {
		out = out[len(out)-maxNameLength:]
	}
	return out
}
