// SPDX-License-Identifier: Apache-2.0

package permissions

import (
	"io/fs"
	"testing"
)

func TestForExtracted(t *testing.T) {
	tests := []struct {
		name string
		mode fs.FileMode
		want fs.FileMode
	}{
		{"zero mode", 0, DefaultFilePerms},
		{"plain file", 0o600, DefaultFilePerms},
		{"world writable", 0o666, DefaultFilePerms},
		{"executable", 0o700, DefaultExecutablePerms},
		{"setuid stripped", fs.ModeSetuid | 0o4755, DefaultExecutablePerms},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ForExtracted(tt.mode); got != tt.want {
				t.Errorf("ForExtracted(%o) = %o, want %o", tt.mode, got, tt.want)
			}
		})
	}
}
