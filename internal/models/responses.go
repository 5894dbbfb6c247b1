package models

import "encoding/json"

// UnmarshalJSON accepts ip and uid on input while MarshalJSON (the default) hides them.
func (b *BanIdentifiers) UnmarshalJSON(data []byte) error {
	var w banIdentifiersWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	b.ID = w.ID
	b.IP = w.IP
	b.Reason = w.Reason
	b.UID = w.UID
	return nil
}

// Response is the JSON envelope used by every game-facing endpoint.
type Response struct {
	Error         *string           `json:"error,omitempty"`
	Server        *Server           `json:"server,omitempty"`
	Servers       *[]Server         `json:"servers,omitempty"`
	Host          *HostInfo         `json:"host,omitempty"`
	Token         *string           `json:"token,omitempty"`
	Banned        *bool             `json:"banned,omitempty"`
	Reason        *string           `json:"reason,omitempty"`
	BannedPlayers *[]BanIdentifiers `json:"bannedPlayers,omitempty"`
	Data          *EULA             `json:"data,omitempty"`
	Success       bool              `json:"success"`
}

// ErrorResponse builds a failed envelope carrying a human readable reason.
func ErrorResponse(msg string) Response {
	return Response{Error: &msg}
}

// TokenRequest is the body of /servers/byToken.
type TokenRequest struct {
	Token string `json:"token"`
}

// BulkCheckRequest is the body of /banlist/bulkCheck.
type BulkCheckRequest struct {
	UID     string           `json:"uid"`
	Players []BanIdentifiers `json:"players"`
}

// BanRequest is the body of /panel/ban.
type BanRequest struct {
	UnbanTimestamp *int64 `json:"unban_timestamp,omitempty"`
	Identifier     string `json:"identifier"`
	Reason         string `json:"reason"`
}

// BanSearchRequest is the body of /panel/ban_search.
type BanSearchRequest struct {
	Identifier string `json:"identifier"`
}

// UnbanRequest is the body of /panel/unban.
type UnbanRequest struct {
	Key int64 `json:"key"`
}

// KickRequest is the body of /panel/kick.
type KickRequest struct {
	ServerUID  string   `json:"server_uid"`
	PlayerUIDs []uint64 `json:"player_uids"`
}

// ServerList is the admin view of both partitions.
type ServerList struct {
	Public []Entry `json:"public"`
	Hidden []Entry `json:"hidden"`
}
