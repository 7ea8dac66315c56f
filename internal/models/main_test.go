package models

import (
	"testing"
	"time"
)

func TestValidName(t *testing.T) {
	cases := map[string]bool{
		"shop":        true,
		"my_app-2":    true,
		"PROD":        true,
		"":            false,
		"my project":  false,
		"../etc":      false,
		"prod.backup": false,
		"ünicode":     false,
	}
	for name, want := range cases {
		if got := ValidName(name); got != want {
			t.Errorf("ValidName(%q) = %v; want %v", name, got, want)
		}
	}
}

func TestEnvDataStatus(t *testing.T) {
	modified := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := EnvData{LastModified: modified, Variables: map[string]string{"A": "1"}}
	if st := d.Status(); !st.LastModified.Equal(modified) {
		t.Errorf("Status().LastModified = %v; want %v", st.LastModified, modified)
	}
}
