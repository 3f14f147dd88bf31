package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	c := Default()
	want := Config{Output: "table", Color: "auto", Prompt: "bitlayout> "}
	if !reflect.DeepEqual(c, want) {
		t.Fatalf("got %+v want %+v", c, want)
	}
}

func TestDecode(t *testing.T) {
	testCases := []struct {
		name    string
		toml    string
		want    Config
		wantErr string
	}{
		{
			name: "empty",
			want: Default(),
		},
		{
			name: "all",
			toml: `
format = "ipv4_word0"
output = "json"
color = "never"
prompt = "> "
history_file = "/tmp/h"
schema_dirs = ["/a", "/b"]
`,
			want: Config{
				Format:      "ipv4_word0",
				Output:      "json",
				Color:       "never",
				Prompt:      "> ",
				HistoryFile: "/tmp/h",
				SchemaDirs:  []string{"/a", "/b"},
			},
		},
		{
			name:    "unknown key",
			toml:    "outptu = \"json\"\n",
			wantErr: "unknown keys: outptu",
		},
		{
			name:    "bad output",
			toml:    "output = \"xml\"\n",
			wantErr: `output "xml"`,
		},
		{
			name:    "bad color",
			toml:    "color = \"sometimes\"\n",
			wantErr: `color "sometimes"`,
		},
		{
			name:    "syntax",
			toml:    "output = \n",
			wantErr: "toml: line",
		},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c, err := Decode(tc.toml)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("got %v want %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(c, tc.want) {
				t.Fatalf("got %+v want %+v", c, tc.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(p, []byte(`output = "yaml"`), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if c.Output != "yaml" || c.Color != "auto" {
		t.Fatalf("got %+v", c)
	}

	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Fatal("expected error for missing explicit config")
	}

	if err := os.WriteFile(p, []byte(`nope = 1`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(p); err == nil || !strings.Contains(err.Error(), p) {
		t.Fatalf("expected error mentioning path, got %v", err)
	}
}

func TestHistory(t *testing.T) {
	c := Default()
	c.HistoryFile = "/tmp/x"
	if c.History() != "/tmp/x" {
		t.Fatal(c.History())
	}
}
