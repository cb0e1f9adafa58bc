package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/Dosada05/event-participation/metrics"
	"github.com/Dosada05/event-participation/models"
	"github.com/Dosada05/event-participation/storage"
	"github.com/google/uuid"
)

const (
	MaxAttachmentSize int64 = 10 << 20
	sniffLen                = 512
)

var deniedContentTypes = map[string]struct{}{
	"application/x-msdownload":                      {},
	"application/x-msdos-program":                   {},
	"application/x-ms-installer":                    {},
	"application/x-msi":                             {},
	"application/vnd.microsoft.portable-executable": {},
	"application/x-executable":                      {},
	"application/x-elf":                             {},
	"application/x-mach-binary":                     {},
	"application/x-sharedlib":                       {},
	"application/x-sh":                              {},
	"application/x-shellscript":                     {},
	"text/x-shellscript":                            {},
	"application/x-csh":                             {},
	"application/x-bat":                             {},
	"application/x-powershell":                      {},
	"application/javascript":                        {},
	"text/javascript":                               {},
	"application/x-python-code":                     {},
	"text/x-python":                                 {},
	"application/x-perl":                            {},
	"application/x-php":                             {},
	"application/java-archive":                      {},
	"application/vnd.android.package-archive":       {},
}

var deniedExtensions = map[string]struct{}{
	".exe": {}, ".dll": {}, ".com": {}, ".scr": {}, ".msi": {}, ".bat": {}, ".cmd": {},
	".sh": {}, ".bash": {}, ".zsh": {}, ".csh": {}, ".ps1": {}, ".psm1": {},
	".vbs": {}, ".vbe": {}, ".wsf": {}, ".js": {}, ".mjs": {}, ".jar": {},
	".apk": {}, ".app": {}, ".bin": {}, ".elf": {}, ".so": {}, ".dylib": {},
	".py": {}, ".pl": {}, ".php": {}, ".rb": {},
}

// executableMagic lists leading byte patterns of native binaries and scripts.
var executableMagic = [][]byte{
	[]byte("MZ"),
	[]byte("\x7fELF"),
	[]byte("#!"),
	{0xfe, 0xed, 0xfa, 0xce},
	{0xfe, 0xed, 0xfa, 0xcf},
	{0xce, 0xfa, 0xed, 0xfe},
	{0xcf, 0xfa, 0xed, 0xfe},
	{0xca, 0xfe, 0xba, 0xbe},
}

type FileUpload struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

type UploadedFile struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

type UploadService interface {
	UploadAttachment(ctx context.Context, event *models.Event, session *models.Session, file FileUpload) (*UploadedFile, error)
}

type uploadService struct {
	uploader storage.FileUploader
	logger   *slog.Logger
	newID    func() string
}

func NewUploadService(uploader storage.FileUploader, logger *slog.Logger) UploadService {
	if logger == nil {
		logger = slog.Default()
	}
	return &uploadService{uploader: uploader, logger: logger, newID: uuid.NewString}
}

func baseContentType(ct string) string {
	if ct == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return mediaType
}

func looksExecutable(head []byte) bool {
	for _, magic := range executableMagic {
		if bytes.HasPrefix(head, magic) {
			return true
		}
	}
	return false
}

// checkAllowed rejects executables and scripts by name, declared type or
// leading bytes.
func checkAllowed(name, declared string, head []byte) error {
	if _, denied := deniedExtensions[strings.ToLower(filepath.Ext(name))]; denied {
		return ErrFileTypeNotAllowed
	}
	if _, denied := deniedContentTypes[baseContentType(declared)]; denied {
		return ErrFileTypeNotAllowed
	}
	if looksExecutable(head) {
		return ErrFileTypeNotAllowed
	}
	if _, denied := deniedContentTypes[baseContentType(http.DetectContentType(head))]; denied {
		return ErrFileTypeNotAllowed
	}
	return nil
}

func (s *uploadService) UploadAttachment(ctx context.Context, event *models.Event, session *models.Session, file FileUpload) (*UploadedFile, error) {
	if err := sessionFor(event, session); err != nil {
		return nil, err
	}
	if file.Reader == nil || file.Size <= 0 {
		return nil, ErrFileRequired
	}
	if file.Size > MaxAttachmentSize {
		return nil, ErrFileTooLarge
	}

	name := filepath.Base(strings.TrimSpace(file.Name))
	if name == "." || name == string(filepath.Separator) {
		name = "file"
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file.Reader, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, ErrFileRequired
	}

	if err := checkAllowed(name, file.ContentType, head); err != nil {
		return nil, err
	}

	contentType := baseContentType(file.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = baseContentType(http.DetectContentType(head))
	}

	ext := strings.ToLower(filepath.Ext(name))
	key := fmt.Sprintf("submissions/%d/%d/%s%s", event.ID, session.AttendeeID, s.newID(), ext)

	body := io.MultiReader(bytes.NewReader(head), file.Reader)
	result, err := s.uploader.Upload(ctx, key, contentType, file.Size, io.LimitReader(body, MaxAttachmentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to store attachment: %w", err)
	}

	metrics.UploadBytes.Add(float64(file.Size))
	s.logger.InfoContext(ctx, "attachment uploaded",
		slog.String("key", result.Key),
		slog.Int("attendee_id", session.AttendeeID),
		slog.Int64("size", file.Size),
	)

	return &UploadedFile{
		URL:  result.Location,
		Name: name,
		Size: file.Size,
		Type: contentType,
	}, nil
}
