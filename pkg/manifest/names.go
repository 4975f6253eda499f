// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"fmt"
	"strings"
)

// ValidName reports whether s can be used as a single path element of the
// installation layout: non-empty, no separators, no parent references.
func ValidName(s string) bool {
	if s == "" || s == "." || strings.Contains(s, "..") {
		return false
	}
	return !strings.ContainsAny(s, "/\\\x00")
}

// checkName wraps ErrManifestMalformed when value cannot name a path element.
func checkName(id VersionID, field, value string) error {
	if !ValidName(value) {
		return fmt.Errorf("%w: %s: %s %q is not a valid name", ErrManifestMalformed, id, field, value)
	}
	return nil
}

// checkID rejects ids that would leave the versions directory.
func checkID(id VersionID) error {
	if !ValidName(string(id)) {
		return fmt.Errorf("%w: invalid version id %q", ErrManifestMalformed, id)
	}
	return nil
}

// validateNames checks every descriptor field that ends up in a file path.
func validateNames(desc *VersionDescriptor) error {
	id := desc.ID
	if desc.InheritsFrom != "" {
		if err := checkName(id, "inheritsFrom", string(desc.InheritsFrom)); err != nil {
			return err
		}
	}
	if desc.Jar != "" {
		if err := checkName(id, "jar", string(desc.Jar)); err != nil {
			return err
		}
	}
	if desc.Assets != "" {
		if err := checkName(id, "assets", desc.Assets); err != nil {
			return err
		}
	}
	if desc.AssetIndex != nil {
		if err := checkName(id, "assetIndex.id", desc.AssetIndex.ID); err != nil {
			return err
		}
	}
	for i, lib := range desc.Libraries {
		name, ext, hasExt := strings.Cut(lib.Name, "@")
		parts := strings.Split(name, ":")
		if hasExt {
			parts = append(parts, ext)
		}
		for _, part := range parts {
			if !ValidName(part) {
				return fmt.Errorf("%w: %s: library %d has invalid name %q", ErrManifestMalformed, id, i, lib.Name)
			}
		}
		for osName, classifier := range lib.Natives {
			if !ValidName(classifier) {
				return fmt.Errorf("%w: %s: library %q has invalid %s natives classifier %q", ErrManifestMalformed, id, lib.Name, osName, classifier)
			}
		}
	}
	return nil
}
