// SPDX-License-Identifier: Apache-2.0

// Package platform evaluates manifest applicability rules against a
// description of the host. Rule evaluation never inspects the running
// environment; callers pass an Info value, usually from Current.
package platform

import (
	"regexp"
	"runtime"
)

// Manifest OS names.
const (
	OSLinux   = "linux"
	OSMacOS   = "osx"
	OSWindows = "windows"
)

// Info describes the platform a launch targets.
type Info struct {
	OS      string `json:"os"`
	Arch    string `json:"arch"`
	Version string `json:"version,omitempty"`
}

// Rule is one entry of a manifest "rules" list.
type Rule struct {
	Action   string          `json:"action"`
	OS       *OSRule         `json:"os,omitempty"`
	Features map[string]bool `json:"features,omitempty"`
}

// OSRule restricts a rule to an OS family. Version and Arch are regular
// expressions matched against Info.Version and Info.Arch.
type OSRule struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
	Arch    string `json:"arch,omitempty"`
}

// Features holds the launch feature flags rules may test, such as
// "is_demo_user" or "has_custom_resolution". Absent keys are false.
type Features map[string]bool

// Current describes the host the binary runs on.
func Current() Info {
	return FromGo(runtime.GOOS, runtime.GOARCH)
}

// FromGo maps Go's GOOS/GOARCH names to manifest names.
func FromGo(goos, goarch string) Info {
	info := Info{OS: goos, Arch: goarch}
	switch goos {
	case "darwin":
		info.OS = OSMacOS
	case "linux", "windows":
		info.OS = goos
	}
	switch goarch {
	case "amd64":
		info.Arch = "x86_64"
	case "386":
		info.Arch = "x86"
	case "arm64":
		info.Arch = "arm64"
	case "arm":
		info.Arch = "arm32"
	}
	return info
}

// Bitness returns "64" or "32", the value manifests substitute for ${arch}
// in native classifiers.
func (i Info) Bitness() string {
	switch i.Arch {
	case "x86", "arm32":
		return "32"
	default:
		return "64"
	}
}

// Allowed reports whether an entry guarded by rules applies to info with the
// given features. An empty rule list always applies. Otherwise the entry
// starts disallowed and every matching rule sets the verdict to its action,
// so later rules win.
func Allowed(rules []Rule, info Info, features Features) bool {
	if len(rules) == 0 {
		return true
	}
	allowed := false
	for _, rule := range rules {
		if !Matches(rule, info, features) {
			continue
		}
		allowed = rule.Action == "allow"
	}
	return allowed
}

// Matches reports whether a single rule's conditions hold. The action is
// not considered.
func Matches(rule Rule, info Info, features Features) bool {
	if rule.OS != nil {
		if rule.OS.Name != "" && rule.OS.Name != info.OS {
			return false
		}
		if rule.OS.Version != "" && !matchPattern(rule.OS.Version, info.Version) {
			return false
		}
		if rule.OS.Arch != "" && !matchPattern(rule.OS.Arch, info.Arch) {
			return false
		}
	}
	for name, want := range rule.Features {
		if features[name] != want {
			return false
		}
	}
	return true
}

// matchPattern treats an invalid expression as a literal so a malformed
// manifest pattern fails closed instead of matching everything.
func matchPattern(pattern, value string) bool {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return pattern == value
	}
	return re.MatchString(value)
}
