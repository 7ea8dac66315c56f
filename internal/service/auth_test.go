package service

import "testing"

func TestAuthService_Check(t *testing.T) {
	svc := NewAuthService("s3cret")

	cases := []struct {
		key  string
		want bool
	}{
		{"s3cret", true},
		{"s3cre", false},
		{"s3cret ", false},
		{"S3CRET", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := svc.Check(tc.key); got != tc.want {
			t.Errorf("Check(%q) = %v; want %v", tc.key, got, tc.want)
		}
	}
}

func TestAuthService_EmptySecretNeverMatches(t *testing.T) {
	svc := NewAuthService("")
	if svc.Check("") {
		t.Errorf("empty key matched empty secret")
	}
}
