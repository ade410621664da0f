package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"
	"github.com/google/go-cmp/cmp"
)

func TestInitRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		force   bool
		exists  bool
		wantErr error
	}{
		{name: "create_new_config"},
		{name: "overwrite_existing_with_force", force: true, exists: true},
		{name: "fail_without_force", exists: true, wantErr: ErrFileExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			confPath := filepath.Join(t.TempDir(), "config.yaml")

			if tt.exists {
				writeFile(t, filepath.Dir(confPath), "config.yaml", "existing: content\n")
			}

			var cli struct {
				Level string `default:"info"`
			}

			ctx := kongContext(t, &cli, kong.Vars{ConfigIdentifier: confPath})

			err := (&Init{Force: tt.force}).Run(ctx)
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Fatalf("Init.Run() error = %v, want %v", err, tt.wantErr)
			}

			if tt.wantErr != nil {
				return
			}

			content, err := os.ReadFile(confPath)
			if err != nil {
				t.Fatal(err)
			}

			var got map[string]any
			if err := yaml.Unmarshal(content, &got); err != nil {
				t.Fatalf("generated config is not valid YAML: %v\n%s", err, content)
			}

			if got["level"] != "info" {
				t.Errorf("level = %v, want info", got["level"])
			}
		})
	}
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	var cli struct {
		Verbose bool          `help:"Enable verbose output"`
		Output  string        `help:"Output file"`
		Empty   string        `help:"Unset"`
		Count   int           `help:"Number of items"`
		Hidden  string        `default:"x"                  hidden:""`
		Run     struct {
			Timeout time.Duration `default:"30s"`
			Kinds   []string      `default:"a,b" sep:","`
		} `cmd:""`
		Other struct{} `cmd:""`
	}

	parser, err := kong.New(&cli)
	if err != nil {
		t.Fatal(err)
	}

	ktx, err := parser.Parse([]string{"--verbose", "--output=test.txt", "--count=5", "run"})
	if err != nil {
		t.Fatal(err)
	}

	data, err := yaml.Marshal(buildConfig(ktx))
	if err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}

	if count := fmt.Sprint(got["count"]); count != "5" {
		t.Errorf("count = %s, want 5", count)
	}

	delete(got, "count")

	want := map[string]any{
		"verbose": true,
		"output":  "test.txt",
		"run": map[string]any{
			"timeout": "30s",
			"kinds":   []any{"a", "b"},
		},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("buildConfig mismatch (-want +got):\n%s\n%s", diff, data)
	}
}
