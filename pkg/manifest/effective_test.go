// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"encoding/json"
	"testing"
)

func TestMergeRules(t *testing.T) {
	parent := &VersionDescriptor{
		ID:                 "parent",
		MainClass:          "p.Main",
		MinecraftArguments: "--username ${auth_player_name}",
		Arguments:          &Arguments{Game: []Argument{{Values: []string{"--p"}}}},
		Libraries:          []Library{{Name: "g:a:1.0"}},
		Downloads:          &VersionDownloads{Client: &Download{SHA1: "aa"}},
		Assets:             "legacy",
	}
	child := &VersionDescriptor{
		ID:                 "child",
		InheritsFrom:       "parent",
		MinecraftArguments: "--tweakClass x",
		Arguments:          &Arguments{Game: []Argument{{Values: []string{"--c"}}}},
		Libraries:          []Library{{Name: "g:a:1.2"}, {Name: "g:a:1.0"}},
	}

	eff, err := Merge([]*VersionDescriptor{child, parent})
	if err != nil {
		t.Fatal(err)
	}

	if eff.MainClass != "p.Main" {
		t.Errorf("MainClass = %s, want inherited", eff.MainClass)
	}
	if eff.LegacyGame != "--tweakClass x" {
		t.Errorf("minecraftArguments = %q, child should replace", eff.LegacyGame)
	}
	if len(eff.Game) != 2 || eff.Game[0].Values[0] != "--p" || eff.Game[1].Values[0] != "--c" {
		t.Errorf("Game = %+v, want parent then child", eff.Game)
	}
	if len(eff.Libraries) != 3 {
		t.Errorf("Libraries = %d, duplicates must be preserved", len(eff.Libraries))
	}
	if eff.Jar != "parent" || eff.Assets != "legacy" {
		t.Errorf("Jar = %s Assets = %s", eff.Jar, eff.Assets)
	}

	// Inputs stay untouched.
	if len(parent.Libraries) != 1 || parent.Arguments.Game[0].Values[0] != "--p" {
		t.Error("Merge mutated a raw descriptor")
	}
}

func TestGameTemplatesLegacy(t *testing.T) {
	eff := &EffectiveDescriptor{LegacyGame: "--username ${auth_player_name}  --version ${version_name}"}
	got := eff.GameTemplates()
	if len(got) != 4 || got[1].Values[0] != "${auth_player_name}" {
		t.Errorf("GameTemplates = %+v", got)
	}
}

func TestArgumentJSON(t *testing.T) {
	raw := `["plain",{"rules":[{"action":"allow","os":{"name":"osx"}}],"value":"-XstartOnFirstThread"},{"rules":[{"action":"allow","features":{"has_custom_resolution":true}}],"value":["--width","${resolution_width}"]}]`

	var args []Argument
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		t.Fatal(err)
	}
	if len(args) != 3 || len(args[2].Values) != 2 || args[1].Rules[0].OS.Name != "osx" {
		t.Fatalf("decoded = %+v", args)
	}

	out, err := json.Marshal(args)
	if err != nil {
		t.Fatal(err)
	}
	var again []Argument
	if err := json.Unmarshal(out, &again); err != nil {
		t.Fatal(err)
	}
	if len(again) != 3 || again[0].Values[0] != "plain" || again[1].Values[0] != "-XstartOnFirstThread" {
		t.Errorf("re-decoded = %+v", again)
	}
}
