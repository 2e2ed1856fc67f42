package storage

import (
	"testing"
)

func TestGetContentType(t *testing.T) {
	tests := []struct {
		filePath string
		wantType string
	}{
		{"video.mp4", "video/mp4"},
		{"video.webm", "video/webm"},
		{"video.mkv", "video/x-matroska"},
		{"video.mov", "video/quicktime"},
		{"song.mp3", "audio/mpeg"},
		{"song.m4a", "audio/mp4"},
		{"unknown.xyz", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.filePath, func(t *testing.T) {
			contentType := getContentType(tt.filePath)
			if contentType != tt.wantType {
				t.Errorf("getContentType(%q) = %q, want %q", tt.filePath, contentType, tt.wantType)
			}
		})
	}
}

func TestObjectName(t *testing.T) {
	got := ObjectName("0b3c", "/tmp/mediafetch-123/0b3c.mp4")
	if got != "downloads/0b3c/0b3c.mp4" {
		t.Errorf("ObjectName() = %q", got)
	}
}
