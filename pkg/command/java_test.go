// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestParseJavaVersion(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   int
	}{
		{"legacy scheme", `java version "1.8.0_392"` + "\nJava(TM) SE Runtime Environment", 8},
		{"openjdk 17", `openjdk version "17.0.8" 2023-07-18`, 17},
		{"feature release only", `openjdk version "21" 2023-09-19`, 21},
		{"early access", `openjdk version "22-ea" 2024-03-19`, 22},
		{"with build", `openjdk version "11.0.21+9"`, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseJavaVersion(tt.output)
			if err != nil || got != tt.want {
				t.Errorf("parseJavaVersion = %d, %v; want %d", got, err, tt.want)
			}
		})
	}

	if _, err := parseJavaVersion("command not found"); err == nil {
		t.Error("expected error for output without version")
	}
}

func TestJavaMajorVersion(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}

	java := filepath.Join(t.TempDir(), "java")
	script := "#!/bin/sh\n[ \"$1\" = -version ] || exit 9\necho 'openjdk version \"17.0.2\" 2022-01-18' >&2\n"
	if err := os.WriteFile(java, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := JavaMajorVersion(context.Background(), java)
	if err != nil || got != 17 {
		t.Errorf("JavaMajorVersion = %d, %v", got, err)
	}

	if _, err := JavaMajorVersion(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing executable")
	}
}
