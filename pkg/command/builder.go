// SPDX-License-Identifier: Apache-2.0

// Package command turns an effective descriptor and a materialization plan
// into a fully substituted process invocation.
package command

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/blocklaunch/internal/workenv"
	"github.com/provide-io/blocklaunch/pkg/auth"
	"github.com/provide-io/blocklaunch/pkg/logging"
	"github.com/provide-io/blocklaunch/pkg/manifest"
	"github.com/provide-io/blocklaunch/pkg/platform"
	"github.com/provide-io/blocklaunch/pkg/resolve"
	"github.com/provide-io/blocklaunch/pkg/utils/shellparse"
)

var (
	// ErrInvalidMemoryBounds is returned when the memory minimum exceeds the maximum.
	ErrInvalidMemoryBounds = errors.New("invalid memory bounds")

	// ErrUnresolvedPlaceholder is returned when a template token has no value.
	ErrUnresolvedPlaceholder = errors.New("unresolved placeholder")

	// ErrInvalidJVMFlags is returned when extra JVM flags cannot be split.
	ErrInvalidJVMFlags = errors.New("invalid jvm flags")
)

// Feature flags rules may test.
const (
	FeatureDemoUser         = "is_demo_user"
	FeatureCustomResolution = "has_custom_resolution"
)

const (
	defaultLauncherName    = "blocklaunch"
	defaultLauncherVersion = "dev"
)

// Memory bounds in megabytes. Zero leaves the JVM default.
type Memory struct {
	MinMB int
	MaxMB int
}

// Window is a requested game window size.
type Window struct {
	Width  int
	Height int
}

// LaunchContext is everything the caller decides about one launch attempt.
type LaunchContext struct {
	Paths   *workenv.Paths
	GameDir string
	Profile auth.Profile
	Memory  Memory
	// JVMFlags is a shell-quoted string of extra JVM options.
	JVMFlags        string
	Window          *Window
	Demo            bool
	JavaPath        string
	NativesDir      string
	LauncherName    string
	LauncherVersion string
	// BaseEnv is the environment the child inherits; nil means os.Environ().
	BaseEnv []string
}

// Invocation is a ready-to-run process description.
type Invocation struct {
	Executable string   `json:"executable"`
	Args       []string `json:"args"`
	Env        []string `json:"env"`
	Dir        string   `json:"dir"`
}

// Builder assembles invocations. It is stateless apart from its logger.
type Builder struct {
	logger hclog.Logger
}

// NewBuilder creates a Builder. A nil logger discards output.
func NewBuilder(logger hclog.Logger) *Builder {
	return &Builder{logger: logging.OrNull(logger)}
}

// Build assembles the invocation. Identical inputs produce identical
// invocations.
//
// Argument order: memory flags (unless a template already sets them), JVM
// templates, the library path and classpath when no template supplies
// them, extra JVM flags, the main class and finally the game templates.
func (b *Builder) Build(desc *manifest.EffectiveDescriptor, plan *resolve.Plan, lctx LaunchContext) (*Invocation, error) {
	if err := checkMemory(lctx.Memory); err != nil {
		return nil, err
	}
	if lctx.Paths == nil {
		return nil, fmt.Errorf("launch context has no installation root")
	}

	features := platform.Features{
		FeatureDemoUser:         lctx.Demo,
		FeatureCustomResolution: lctx.Window != nil,
	}

	jvm := expand(desc.JVM, plan.Platform, features)
	if !References(jvm, "natives_directory") {
		jvm = append(jvm, "-Djava.library.path=${natives_directory}")
	}
	if !References(jvm, "classpath") {
		jvm = append(jvm, "-cp", "${classpath}")
	}
	game := expand(desc.GameTemplates(), plan.Platform, features)

	values := b.values(desc, plan, lctx)

	var args []string
	for _, tpl := range jvm {
		s, err := Substitute(tpl, values)
		if err != nil {
			return nil, err
		}
		args = append(args, s)
	}

	extra, err := shellparse.Split(lctx.JVMFlags)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJVMFlags, err)
	}
	args = append(args, extra...)

	var memFlags []string
	if lctx.Memory.MinMB > 0 && !hasFlag(args, "-Xms") {
		memFlags = append(memFlags, "-Xms"+strconv.Itoa(lctx.Memory.MinMB)+"m")
	}
	if lctx.Memory.MaxMB > 0 && !hasFlag(args, "-Xmx") {
		memFlags = append(memFlags, "-Xmx"+strconv.Itoa(lctx.Memory.MaxMB)+"m")
	}
	args = append(memFlags, args...)

	args = append(args, desc.MainClass)
	for _, tpl := range game {
		s, err := Substitute(tpl, values)
		if err != nil {
			return nil, err
		}
		args = append(args, s)
	}

	base := lctx.BaseEnv
	if base == nil {
		base = os.Environ()
	}
	env := buildEnv(base, map[string]string{
		EnvVersion: string(desc.ID),
		EnvRoot:    lctx.Paths.Root(),
	})

	inv := &Invocation{
		Executable: resolveJava(lctx.JavaPath, env, plan.Platform, b.logger),
		Args:       args,
		Env:        env,
		Dir:        values["game_directory"],
	}

	b.logger.Debug("🛠️ Launch invocation built",
		"version", desc.ID,
		"executable", inv.Executable,
		"args", len(inv.Args),
		"dir", inv.Dir)
	if b.logger.IsTrace() {
		b.logger.Trace("🛠️ Arguments", "args", shellparse.Join(redactArgs(inv.Args, lctx.Profile.AccessToken)))
		logEnvironmentTrace(inv.Env, b.logger)
	}
	return inv, nil
}

func checkMemory(m Memory) error {
	if m.MinMB < 0 || m.MaxMB < 0 {
		return fmt.Errorf("%w: negative size (min=%d max=%d)", ErrInvalidMemoryBounds, m.MinMB, m.MaxMB)
	}
	if m.MinMB > 0 && m.MaxMB > 0 && m.MinMB > m.MaxMB {
		return fmt.Errorf("%w: minimum %dm exceeds maximum %dm", ErrInvalidMemoryBounds, m.MinMB, m.MaxMB)
	}
	return nil
}

// expand flattens argument templates, dropping entries whose rules reject
// the platform or features.
func expand(args []manifest.Argument, info platform.Info, features platform.Features) []string {
	var out []string
	for _, a := range args {
		if platform.Allowed(a.Rules, info, features) {
			out = append(out, a.Values...)
		}
	}
	return out
}

func (b *Builder) values(desc *manifest.EffectiveDescriptor, plan *resolve.Plan, lctx LaunchContext) Values {
	paths := lctx.Paths

	gameDir := lctx.GameDir
	if gameDir == "" {
		gameDir = paths.Root()
	}
	launcherName := lctx.LauncherName
	if launcherName == "" {
		launcherName = defaultLauncherName
	}
	launcherVersion := lctx.LauncherVersion
	if launcherVersion == "" {
		launcherVersion = defaultLauncherVersion
	}

	sep := ":"
	if plan.Platform.OS == platform.OSWindows {
		sep = ";"
	}

	v := Values{
		"auth_player_name":    lctx.Profile.Name,
		"auth_uuid":           lctx.Profile.UUID,
		"auth_access_token":   lctx.Profile.AccessToken,
		"auth_session":        lctx.Profile.AccessToken,
		"auth_xuid":           lctx.Profile.XUID,
		"clientid":            lctx.Profile.ClientID,
		"user_type":           lctx.Profile.UserType,
		"user_properties":     "{}",
		"version_name":        string(desc.ID),
		"version_type":        desc.Type,
		"game_directory":      gameDir,
		"assets_root":         paths.Assets(),
		"library_directory":   paths.Libraries(),
		"natives_directory":   lctx.NativesDir,
		"classpath":           strings.Join(plan.Classpath(), sep),
		"classpath_separator": sep,
		"launcher_name":       launcherName,
		"launcher_version":    launcherVersion,
		"main_class":          desc.MainClass,
	}
	if plan.AssetsID != "" {
		v["assets_index_name"] = plan.AssetsID
		v["game_assets"] = paths.AssetVirtual(plan.AssetsID)
	}
	if lctx.Memory.MinMB > 0 {
		v["memory_min"] = strconv.Itoa(lctx.Memory.MinMB)
	}
	if lctx.Memory.MaxMB > 0 {
		v["memory_max"] = strconv.Itoa(lctx.Memory.MaxMB)
	}
	if lctx.Window != nil {
		v["resolution_width"] = strconv.Itoa(lctx.Window.Width)
		v["resolution_height"] = strconv.Itoa(lctx.Window.Height)
	}
	return v
}
