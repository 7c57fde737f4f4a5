package filehandler

import (
	"testing"
)

func TestFormatFromExtSupported(t *testing.T) {
	tests := []struct {
		ext      string
		expected bool
	}{
		{".jpg", true},
		{".jpeg", true},
		{".JPG", true},
		{".JPEG", true},
		{".png", true},
		{".PNG", true},
		{".gif", true},
		{".svg", true},
		{".webp", true},
		{"webp", true},
		{".heic", false},
		{".avif", false},
		{".mp4", false},
		{".txt", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			_, result := FormatFromExt(tt.ext)
			if result != tt.expected {
				t.Errorf("FormatFromExt(%q) ok = %v, want %v", tt.ext, result, tt.expected)
			}
		})
	}
}

func TestFormatFromExtKeepsToken(t *testing.T) {
	f, ok := FormatFromExt(".JPG")
	if !ok {
		t.Fatal("FormatFromExt(.JPG) not recognised")
	}
	if f != FormatJPG {
		t.Errorf("FormatFromExt(.JPG) = %q, want %q", f, FormatJPG)
	}
	if f.Canonical() != FormatJPEG {
		t.Errorf("Canonical() = %q, want %q", f.Canonical(), FormatJPEG)
	}
}

func TestParseTargetFormat(t *testing.T) {
	tests := []struct {
		token   string
		want    Format
		wantErr bool
	}{
		{"webp", FormatWebP, false},
		{" AVIF ", FormatAVIF, false},
		{"jpg", FormatJPG, false},
		{"jpeg", FormatJPEG, false},
		{"png", FormatPNG, false},
		{"gif", "", true},
		{"svg", "", true},
		{"tiff", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParseTargetFormat(tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTargetFormat(%q) error = %v, wantErr %v", tt.token, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseTargetFormat(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}

func TestFormatMIMEType(t *testing.T) {
	tests := map[Format]string{
		FormatWebP:   "image/webp",
		FormatAVIF:   "image/avif",
		FormatJPG:    "image/jpeg",
		FormatPNG:    "image/png",
		FormatSVG:    "image/svg+xml",
		Format("xx"): "application/octet-stream",
	}
	for f, want := range tests {
		if got := f.MIMEType(); got != want {
			t.Errorf("%q.MIMEType() = %q, want %q", f, got, want)
		}
	}
}
