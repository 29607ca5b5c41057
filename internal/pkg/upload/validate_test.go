package upload

import (
	"bytes"
	"errors"
	"testing"
)

var (
	jpegHead = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	pngHead  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 13, 'I', 'H', 'D', 'R'}
	webpHead = append([]byte("RIFF\x24\x00\x00\x00WEBP"), []byte("VP8 ")...)
)

func TestValidateImageBySniff(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		head     []byte
		wantMime string
		wantErr  bool
	}{
		{name: "jpeg", filename: "photo.jpg", head: jpegHead, wantMime: "image/jpeg"},
		{name: "jpeg alt ext", filename: "photo.jpeg", head: jpegHead, wantMime: "image/jpeg"},
		{name: "png", filename: "photo.png", head: pngHead, wantMime: "image/png"},
		{name: "webp", filename: "photo.webp", head: webpHead, wantMime: "image/webp"},
		{name: "bad extension", filename: "photo.gif", head: jpegHead, wantErr: true},
		{name: "html masquerading as jpg", filename: "photo.jpg", head: []byte("<html><body>hi</body></html>"), wantErr: true},
		{name: "svg", filename: "photo.png", head: []byte(`<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg"/>`), wantErr: true},
		{name: "plain text", filename: "photo.jpg", head: []byte("just some text content here"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mime, err := ValidateImageBySniff(tt.filename, tt.head)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got mime %q", mime)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if mime != tt.wantMime {
				t.Fatalf("mime = %q, want %q", mime, tt.wantMime)
			}
		})
	}
}

func TestValidateSize(t *testing.T) {
	if err := ValidateSize(MaxUploadSize + 1); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("oversize = %v, want ErrTooLarge", err)
	}
	if err := ValidateSize(MinUploadSize - 1); !errors.Is(err, ErrTooSmall) {
		t.Fatalf("undersize = %v, want ErrTooSmall", err)
	}
	if err := ValidateSize(len(bytes.Repeat([]byte{0}, 1024))); err != nil {
		t.Fatalf("valid size rejected: %v", err)
	}
}
