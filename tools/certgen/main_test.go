package main

import (
	"bytes"
	"crypto/tls"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestSplitHosts(t *testing.T) {
	got := splitHosts(" localhost, ,127.0.0.1,env.local ")
	want := []string{"localhost", "127.0.0.1", "env.local"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitHosts = %v; want %v", got, want)
	}
}

func TestRun_WritesLoadableKeyPair(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	var out bytes.Buffer

	if err := run([]string{"-dir", dir, "-hosts", "localhost"}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), dir) {
		t.Errorf("output %q does not mention %s", out.String(), dir)
	}
	if _, err := tls.LoadX509KeyPair(filepath.Join(dir, "server.crt"), filepath.Join(dir, "server.key")); err != nil {
		t.Errorf("server key pair not loadable: %v", err)
	}
}

func TestRun_BadFlag(t *testing.T) {
	if err := run([]string{"-nope"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown flag")
	}
}
