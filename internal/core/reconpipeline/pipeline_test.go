package reconpipeline

import "testing"

func TestHostFromURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://api.example.com/path": "api.example.com",
		"http://example.com:8080":      "example.com",
		"example.com":                  "example.com",
		"https://example.com":          "example.com",
	}
	for in, want := range cases {
		if got := hostFromURL(in); got != want {
			t.Errorf("hostFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDecodeScreenshotFilename(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https-api-example-com.png": "https://api.example.com",
		"http-example-com.png":      "http://example.com",
		"noscheme.png":              "",
		"ftp-example-com.png":       "",
		"https-only.png":            "https://only",
	}
	for in, want := range cases {
		if got := DecodeScreenshotFilename(in); got != want {
			t.Errorf("DecodeScreenshotFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
