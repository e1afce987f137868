package game

import (
	"strings"

	"github.com/google/uuid"

	"github.com/hyproxy/hyproxy/pkg/proto/codec"
)

// Player list item actions of protocol 47.
const (
	PlayerActionAdd            int32 = 0
	PlayerActionUpdateGamemode int32 = 1
	PlayerActionUpdatePing     int32 = 2
	PlayerActionUpdateDisplay  int32 = 3
	PlayerActionRemove         int32 = 4
)

// Property is one entry of a player's profile property map (skin etc.).
type Property struct {
	Name      string
	Value     string
	Signature string
}

// PlayerEntry is one tab-list row.
type PlayerEntry struct {
	UUID        uuid.UUID
	Name        string
	Gamemode    int32
	Ping        int32
	DisplayName string // raw chat JSON, empty when unset
	Properties  []Property
}

// PlayerList tracks the tab list in two generations: the live entries and
// the previous snapshot, kept so asynchronous stat results can still be
// matched to a uuid after the player left.
type PlayerList struct {
	Players    map[uuid.UUID]*PlayerEntry
	PlayersOld map[uuid.UUID]*PlayerEntry
}

// NewPlayerList returns an empty list.
func NewPlayerList() *PlayerList {
	return &PlayerList{
		Players:    map[uuid.UUID]*PlayerEntry{},
		PlayersOld: map[uuid.UUID]*PlayerEntry{},
	}
}

// Reset drops both generations, as happens on join-game.
func (l *PlayerList) Reset() {
	l.Players = map[uuid.UUID]*PlayerEntry{}
	l.PlayersOld = map[uuid.UUID]*PlayerEntry{}
}

// OldByName returns the snapshot entry matching name case-insensitively,
// or nil. Used to recover a uuid for players who already left.
func (l *PlayerList) OldByName(name string) *PlayerEntry {
	for _, e := range l.PlayersOld {
		if strings.EqualFold(e.Name, name) {
			return e
		}
	}
	return nil
}

// ByName returns the live entry with the given name, or nil.
func (l *PlayerList) ByName(name string) *PlayerEntry {
	for _, e := range l.Players {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Apply parses a player-list-item payload and folds it into the list.
func (l *PlayerList) Apply(b *codec.Buffer) error {
	action, err := b.ReadVarInt()
	if err != nil {
		return err
	}
	count, err := b.ReadVarInt()
	if err != nil {
		return err
	}
	for i := int32(0); i < count; i++ {
		id, err := b.ReadUUID()
		if err != nil {
			return err
		}
		switch action {
		case PlayerActionAdd:
			entry := &PlayerEntry{UUID: id}
			if entry.Name, err = b.ReadString(); err != nil {
				return err
			}
			props, err := b.ReadVarInt()
			if err != nil {
				return err
			}
			for j := int32(0); j < props; j++ {
				var p Property
				if p.Name, err = b.ReadString(); err != nil {
					return err
				}
				if p.Value, err = b.ReadString(); err != nil {
					return err
				}
				signed, err := b.ReadBool()
				if err != nil {
					return err
				}
				if signed {
					if p.Signature, err = b.ReadString(); err != nil {
						return err
					}
				}
				entry.Properties = append(entry.Properties, p)
			}
			if entry.Gamemode, err = b.ReadVarInt(); err != nil {
				return err
			}
			if entry.Ping, err = b.ReadVarInt(); err != nil {
				return err
			}
			if entry.DisplayName, err = readOptionalChat(b); err != nil {
				return err
			}
			l.Players[id] = entry
			l.PlayersOld[id] = entry
		case PlayerActionUpdateGamemode:
			gamemode, err := b.ReadVarInt()
			if err != nil {
				return err
			}
			if e := l.Players[id]; e != nil {
				e.Gamemode = gamemode
			}
		case PlayerActionUpdatePing:
			ping, err := b.ReadVarInt()
			if err != nil {
				return err
			}
			if e := l.Players[id]; e != nil {
				e.Ping = ping
			}
		case PlayerActionUpdateDisplay:
			display, err := readOptionalChat(b)
			if err != nil {
				return err
			}
			if e := l.Players[id]; e != nil {
				e.DisplayName = display
			}
		case PlayerActionRemove:
			delete(l.Players, id)
		}
	}
	return nil
}

func readOptionalChat(b *codec.Buffer) (string, error) {
	has, err := b.ReadBool()
	if err != nil {
		return "", err
	}
	if !has {
		return "", nil
	}
	raw, err := b.ReadByteArray()
	return string(raw), err
}

// PackDisplayNameUpdate builds the payload of a synthetic player-list-item
// frame that sets one player's display name. chatJSON must be a complete
// chat component document.
func PackDisplayNameUpdate(id uuid.UUID, chatJSON string) []byte {
	payload := codec.PackVarInt(PlayerActionUpdateDisplay)
	payload = append(payload, codec.PackVarInt(1)...)
	payload = append(payload, codec.PackUUID(id)...)
	payload = append(payload, codec.PackBool(true)...)
	payload = append(payload, codec.PackString(chatJSON)...)
	return payload
}
