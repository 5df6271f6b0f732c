package directory

import (
	"fmt"
	"sort"
	"strings"
)

// TransportPrefix is the address prefix the messaging provider puts in front
// of WhatsApp sender identifiers.
const TransportPrefix = "whatsapp:"

// AgentProfile is the named agent a known sender is routed to.
type AgentProfile struct {
	AgentID     string
	DisplayName string
}

// Entry binds a sender identifier to its profile.
type Entry struct {
	Phone   string
	Profile AgentProfile
}

// Directory maps sender identifiers to agent profiles. It is built once at
// startup and never mutated, so it is safe for concurrent reads.
type Directory struct {
	bySender map[string]AgentProfile
}

func NewDirectory(entries []Entry) (*Directory, error) {
	d := &Directory{bySender: make(map[string]AgentProfile, len(entries))}
	for _, e := range entries {
		phone := NormalizeSender(e.Phone)
		if phone == "" {
			return nil, fmt.Errorf("directory: agent %q has no phone", e.Profile.AgentID)
		}
		if strings.TrimSpace(e.Profile.AgentID) == "" {
			return nil, fmt.Errorf("directory: phone %s has no agent id", phone)
		}
		if prev, ok := d.bySender[phone]; ok {
			return nil, fmt.Errorf("directory: phone %s is assigned to both %q and %q",
				phone, prev.AgentID, e.Profile.AgentID)
		}
		d.bySender[phone] = e.Profile
	}
	return d, nil
}

// Lookup returns the profile for senderID. Unknown senders are reported with
// ok == false and must not be routed anywhere.
func (d *Directory) Lookup(senderID string) (AgentProfile, bool) {
	p, ok := d.bySender[NormalizeSender(senderID)]
	return p, ok
}

func (d *Directory) Len() int {
	return len(d.bySender)
}

// Entries returns a copy of the directory sorted by agent id.
func (d *Directory) Entries() []Entry {
	out := make([]Entry, 0, len(d.bySender))
	for phone, p := range d.bySender {
		out = append(out, Entry{Phone: phone, Profile: p})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Profile.AgentID == out[j].Profile.AgentID {
			return out[i].Phone < out[j].Phone
		}
		return out[i].Profile.AgentID < out[j].Profile.AgentID
	})
	return out
}

// NormalizeSender strips whitespace and the transport prefix from a raw
// sender address.
func NormalizeSender(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) >= len(TransportPrefix) && strings.EqualFold(s[:len(TransportPrefix)], TransportPrefix) {
		s = s[len(TransportPrefix):]
	}
	return strings.TrimSpace(s)
}
