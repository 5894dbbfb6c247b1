// Package models defines the data structures used for API requests, registry entries and database persistence.
package models

import "time"

// Server is the public-facing record a game server announces about itself.
// Checksum, Version and Hidden are accepted from the game server but never echoed to game clients.
type Server struct {
	Description *string `json:"description,omitempty"`
	Name        string  `json:"name"`
	Map         string  `json:"map"`
	Playlist    string  `json:"playlist"`
	MaxPlayers  string  `json:"maxPlayers"`
	PlayerCount string  `json:"playerCount"`
	IP          string  `json:"ip"`
	Key         string  `json:"key"`
	Checksum    string  `json:"checksum,omitempty"`
	Version     string  `json:"version,omitempty"`
	Port        uint16  `json:"port"`
	Hidden      bool    `json:"hidden,omitempty"`
}

// Public returns a copy of the server with fields stripped that game clients must not see.
func (s Server) Public() Server {
	s.Checksum = ""
	s.Version = ""
	s.Hidden = false
	if s.Description != nil {
		d := *s.Description
		s.Description = &d
	}
	return s
}

// Announce is the payload posted by a game server on /servers/add.
type Announce struct {
	UID       string `json:"uid"`
	Server    Server `json:"server"`
	TimeStamp int64  `json:"timeStamp"`
}

// Internal holds registry-only metadata of an entry. It is never sent to game clients.
type Internal struct {
	UID       string `json:"uid"`
	Region    string `json:"region,omitempty"`
	Token     string `json:"token,omitempty"`
	Expiry    int64  `json:"expiry"`
	TimeStamp int64  `json:"timeStamp"`
}

// Player is a connected player reported by a bulk check.
type Player struct {
	IP   *string `json:"ip,omitempty"`
	UID  *uint64 `json:"uid,omitempty"`
	Name string  `json:"name"`
}

// Entry is the unit stored in a registry partition.
type Entry struct {
	Server   Server   `json:"server"`
	Internal Internal `json:"internal"`
	Players  []Player `json:"players"`
	KickList []uint64 `json:"kickList"`
}

// Clone returns a deep copy so callers never share slices with the registry.
func (e Entry) Clone() Entry {
	out := e
	if e.Server.Description != nil {
		d := *e.Server.Description
		out.Server.Description = &d
	}
	out.Players = make([]Player, len(e.Players))
	copy(out.Players, e.Players)
	out.KickList = make([]uint64, len(e.KickList))
	copy(out.KickList, e.KickList)
	return out
}

// HostInfo is returned to a game server after a successful announce.
type HostInfo struct {
	Token *string `json:"token,omitempty"`
	IP    string  `json:"ip"`
	UID   string  `json:"uid"`
	Port  uint16  `json:"port"`
}

// BanIdentifiers identifies a player for a ban check.
// IP is never serialized back to the caller.
type BanIdentifiers struct {
	ID     *uint64 `json:"id,omitempty"`
	IP     *string `json:"-"`
	Reason *string `json:"reason,omitempty"`
	UID    *string `json:"-"`
}

// banIdentifiersWire is the inbound shape of BanIdentifiers, which accepts ip and uid.
type banIdentifiersWire struct {
	ID     *uint64 `json:"id,omitempty"`
	IP     *string `json:"ip,omitempty"`
	Reason *string `json:"reason,omitempty"`
	UID    *string `json:"uid,omitempty"`
}

// Ban is a row of the bans table.
type Ban struct {
	BannedOn   time.Time  `json:"banned_on"`
	UnbanDate  *time.Time `json:"unban_date,omitempty"`
	Identifier string     `json:"identifier"`
	Reason     string     `json:"reason"`
	ID         int64      `json:"ban_id"`
}

// EULA is the end user license agreement served to game clients.
type EULA struct {
	Lang     string `json:"lang"`
	Contents string `json:"contents"`
	Version  int    `json:"version"`
}

// User is an operator account allowed to use the admin API.
type User struct {
	Username string
	PwHash   string
}
