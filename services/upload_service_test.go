package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Dosada05/event-participation/models"
	"github.com/Dosada05/event-participation/storage"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestUploadAttachment(t *testing.T) {
	env := newTestEnv(t, models.EventRequirements{})
	env.uploads.newID = func() string { return "fixed-id" }
	alice := env.attendee("Alice")

	body := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0x42}, 2048)...)
	uploaded, err := env.uploads.UploadAttachment(context.Background(), env.event, alice, FileUpload{
		Name:        "../../Screenshot.PNG",
		ContentType: "application/octet-stream",
		Size:        int64(len(body)),
		Reader:      bytes.NewReader(body),
	})
	if err != nil {
		t.Fatalf("UploadAttachment() error = %v", err)
	}

	wantKey := "submissions/1/2/fixed-id.png"
	if uploaded.URL != "https://files.example.com/"+wantKey {
		t.Fatalf("URL = %q, want key %q", uploaded.URL, wantKey)
	}
	if uploaded.Name != "Screenshot.PNG" {
		t.Fatalf("Name = %q, want the base name", uploaded.Name)
	}
	if uploaded.Type != "image/png" {
		t.Fatalf("Type = %q, want sniffed image/png", uploaded.Type)
	}
	if got := env.uploader.objects[wantKey]; !bytes.Equal(got, body) {
		t.Fatalf("stored %d bytes, want the full %d byte body", len(got), len(body))
	}
}

func TestUploadAttachmentKeepsDeclaredType(t *testing.T) {
	env := newTestEnv(t, models.EventRequirements{})
	body := []byte("%PDF-1.7\n...")

	uploaded, err := env.uploads.UploadAttachment(context.Background(), env.event, env.attendee("Alice"), FileUpload{
		Name:        "deck.pdf",
		ContentType: "application/pdf; name=deck.pdf",
		Size:        int64(len(body)),
		Reader:      bytes.NewReader(body),
	})
	if err != nil {
		t.Fatalf("UploadAttachment() error = %v", err)
	}
	if uploaded.Type != "application/pdf" {
		t.Fatalf("Type = %q, want application/pdf", uploaded.Type)
	}
}

func TestUploadAttachmentRejects(t *testing.T) {
	text := []byte("hello world")

	tests := []struct {
		name string
		file FileUpload
		want error
	}{
		{"no reader", FileUpload{Name: "a.txt", Size: 10}, ErrFileRequired},
		{"zero size", FileUpload{Name: "a.txt", Reader: bytes.NewReader(text)}, ErrFileRequired},
		{"empty body", FileUpload{Name: "a.txt", Size: 10, Reader: bytes.NewReader(nil)}, ErrFileRequired},
		{"too large", FileUpload{Name: "a.txt", Size: MaxAttachmentSize + 1, Reader: bytes.NewReader(text)}, ErrFileTooLarge},
		{"exe extension", FileUpload{Name: "setup.EXE", Size: 11, Reader: bytes.NewReader(text)}, ErrFileTypeNotAllowed},
		{"script extension", FileUpload{Name: "run.sh", Size: 11, Reader: bytes.NewReader(text)}, ErrFileTypeNotAllowed},
		{"declared executable", FileUpload{Name: "notes.txt", ContentType: "application/x-msdownload", Size: 11, Reader: bytes.NewReader(text)}, ErrFileTypeNotAllowed},
		{"pe header", FileUpload{Name: "image.png", Size: 4, Reader: bytes.NewReader([]byte("MZ\x90\x00"))}, ErrFileTypeNotAllowed},
		{"elf header", FileUpload{Name: "data.bin.txt", Size: 4, Reader: bytes.NewReader([]byte("\x7fELF"))}, ErrFileTypeNotAllowed},
		{"shebang", FileUpload{Name: "readme.txt", Size: 12, Reader: strings.NewReader("#!/bin/sh\nrm")}, ErrFileTypeNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, models.EventRequirements{})
			_, err := env.uploads.UploadAttachment(context.Background(), env.event, env.attendee("Alice"), tt.file)
			expectErr(t, err, tt.want)
			if len(env.uploader.objects) != 0 {
				t.Fatal("rejected file reached storage")
			}
		})
	}
}

func TestUploadAttachmentRequiresSession(t *testing.T) {
	env := newTestEnv(t, models.EventRequirements{})
	_, err := env.uploads.UploadAttachment(context.Background(), env.event, nil, FileUpload{
		Name: "a.txt", Size: 1, Reader: strings.NewReader("a"),
	})
	expectErr(t, err, ErrAuthRequired)
}

func TestUploadAttachmentStorageFailure(t *testing.T) {
	env := newTestEnv(t, models.EventRequirements{})
	env.uploader.err = storage.ErrStorageDisabled

	_, err := env.uploads.UploadAttachment(context.Background(), env.event, env.attendee("Alice"), FileUpload{
		Name: "a.txt", Size: 5, Reader: strings.NewReader("hello"),
	})
	if !errors.Is(err, storage.ErrStorageDisabled) {
		t.Fatalf("error = %v, want wrapped ErrStorageDisabled", err)
	}
	if KindOf(err) != KindInternal {
		t.Fatalf("kind = %v, want internal", KindOf(err))
	}
}
