package api

import "testing"

func TestValidateDomain(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "example.com", want: "example.com"},
		{raw: "  Example.COM  ", want: "example.com"},
		{raw: "https://Sub.Example.com/path?x=1", want: "sub.example.com"},
		{raw: "", wantErr: true},
		{raw: "   ", wantErr: true},
		{raw: "localhost", wantErr: true}, // no dot
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.raw, func(t *testing.T) {
			t.Parallel()
			got, err := ValidateDomain(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ValidateDomain(%q) = %q, nil; want error", tc.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateDomain(%q) unexpected error: %v", tc.raw, err)
			}
			if got != tc.want {
				t.Fatalf("ValidateDomain(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}
