// SPDX-License-Identifier: Apache-2.0

// Package auth supplies the player profile substituted into launch
// arguments. Tokens are opaque: nothing here validates or refreshes them.
package auth

import (
	"context"
	"crypto/md5"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrNoPlayerName is returned when a profile has no display name.
var ErrNoPlayerName = errors.New("profile has no player name")

// Placeholder values used when no account backs the profile.
const (
	OfflineToken    = "0"
	OfflineXUID     = "0"
	OfflineClientID = "0"
	DefaultUserType = "msa"
)

// Profile is the identity a launch runs as.
type Profile struct {
	Name        string `json:"name" mapstructure:"name"`
	UUID        string `json:"uuid,omitempty" mapstructure:"uuid"`
	AccessToken string `json:"-" mapstructure:"access_token"`
	UserType    string `json:"user_type,omitempty" mapstructure:"user_type"`
	XUID        string `json:"xuid,omitempty" mapstructure:"xuid"`
	ClientID    string `json:"client_id,omitempty" mapstructure:"client_id"`
}

// Provider supplies a profile for one launch.
type Provider interface {
	Profile(ctx context.Context) (Profile, error)
}

// Static returns a fixed profile, filling unset fields with offline
// defaults.
type Static struct {
	Value Profile
}

// Profile implements Provider.
func (s Static) Profile(ctx context.Context) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}
	return withDefaults(s.Value)
}

// Offline derives a complete profile from a player name alone.
type Offline struct {
	Name string
}

// Profile implements Provider.
func (o Offline) Profile(ctx context.Context) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}
	return withDefaults(Profile{Name: o.Name})
}

func withDefaults(p Profile) (Profile, error) {
	if strings.TrimSpace(p.Name) == "" {
		return Profile{}, ErrNoPlayerName
	}
	if p.UUID == "" {
		p.UUID = OfflineUUID(p.Name)
	}
	if p.AccessToken == "" {
		p.AccessToken = OfflineToken
	}
	if p.UserType == "" {
		p.UserType = DefaultUserType
	}
	if p.XUID == "" {
		p.XUID = OfflineXUID
	}
	if p.ClientID == "" {
		p.ClientID = OfflineClientID
	}
	return p, nil
}

// OfflineUUID returns the name-based (version 3) UUID servers assign to
// unauthenticated players: the md5 of "OfflinePlayer:<name>" with the
// version and variant bits set, written without dashes.
func OfflineUUID(name string) string {
	sum := md5.Sum([]byte("OfflinePlayer:" + name))
	sum[6] = sum[6]&0x0f | 0x30
	sum[8] = sum[8]&0x3f | 0x80

	id, err := uuid.FromBytes(sum[:])
	if err != nil {
		return ""
	}
	return strings.ReplaceAll(id.String(), "-", "")
}
