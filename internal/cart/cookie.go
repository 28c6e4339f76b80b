package cart

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const cookieVersion = 1

type cookiePayload struct {
	Version int                    `json:"v"`
	Expires int64                  `json:"exp"`
	Items   map[string]cookieEntry `json:"items"`
}

type cookieEntry struct {
	Count    int  `json:"count"`
	Selected bool `json:"selected"`
}

// EncodeCookie serializes entries into the cookie value carried by anonymous
// clients: versioned JSON, base64url without padding.
func EncodeCookie(entries []Entry, expiresAt time.Time) (string, error) {
	payload := cookiePayload{
		Version: cookieVersion,
		Expires: expiresAt.Unix(),
		Items:   make(map[string]cookieEntry, len(entries)),
	}
	for _, entry := range entries {
		payload.Items[entry.ItemID.String()] = cookieEntry{Count: entry.Count, Selected: entry.Selected}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeCookie parses a cookie value. Anything it cannot trust (bad encoding,
// unknown version, expired payload) decodes to an empty cart.
func DecodeCookie(value string, now time.Time) []Entry {
	if value == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil
	}
	var payload cookiePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	if payload.Version != cookieVersion {
		return nil
	}
	if payload.Expires > 0 && !now.Before(time.Unix(payload.Expires, 0)) {
		return nil
	}

	entries := make([]Entry, 0, len(payload.Items))
	for key, item := range payload.Items {
		itemID, err := uuid.Parse(key)
		if err != nil || item.Count < 1 {
			continue
		}
		entries = append(entries, Entry{ItemID: itemID, Count: item.Count, Selected: item.Selected})
	}
	sortEntries(entries)
	return entries
}

// CookieStore is the anonymous cart. It lives for one request: decoded from
// the incoming cookie, mutated in memory, then re-encoded by the handler.
type CookieStore struct {
	entries map[uuid.UUID]Entry
	dirty   bool
}

// NewCookieStore decodes value into a store; an empty or invalid value gives an empty cart.
func NewCookieStore(value string, now time.Time) *CookieStore {
	store := &CookieStore{entries: map[uuid.UUID]Entry{}}
	for _, entry := range DecodeCookie(value, now) {
		store.entries[entry.ItemID] = entry
	}
	return store
}

func (s *CookieStore) Add(_ context.Context, itemID uuid.UUID, count int, selected bool) error {
	entry := s.entries[itemID]
	entry.ItemID = itemID
	entry.Count += count
	entry.Selected = selected
	s.entries[itemID] = entry
	s.dirty = true
	return nil
}

// Update upserts: an unknown item is inserted with the given values.
func (s *CookieStore) Update(_ context.Context, itemID uuid.UUID, count int, selected bool) error {
	s.entries[itemID] = Entry{ItemID: itemID, Count: count, Selected: selected}
	s.dirty = true
	return nil
}

func (s *CookieStore) Remove(_ context.Context, itemID uuid.UUID) error {
	if _, ok := s.entries[itemID]; ok {
		delete(s.entries, itemID)
		s.dirty = true
	}
	return nil
}

func (s *CookieStore) SetAllSelected(_ context.Context, selected bool) error {
	for id, entry := range s.entries {
		entry.Selected = selected
		s.entries[id] = entry
	}
	s.dirty = true
	return nil
}

func (s *CookieStore) Entries(context.Context) ([]Entry, error) {
	return s.snapshot(), nil
}

// Len returns the number of entries.
func (s *CookieStore) Len() int {
	return len(s.entries)
}

// Dirty reports whether the cart changed since it was decoded.
func (s *CookieStore) Dirty() bool {
	return s.dirty
}

// Clear empties the store; the next Encode asks the client to drop the cookie.
func (s *CookieStore) Clear() {
	if len(s.entries) > 0 {
		s.entries = map[uuid.UUID]Entry{}
	}
	s.dirty = true
}

// Encode returns the cookie value to send back. An empty value means the
// cookie should expire immediately.
func (s *CookieStore) Encode(now time.Time, ttl time.Duration) (string, error) {
	if len(s.entries) == 0 {
		return "", nil
	}
	return EncodeCookie(s.snapshot(), now.Add(ttl))
}

func (s *CookieStore) snapshot() []Entry {
	entries := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, entry)
	}
	sortEntries(entries)
	return entries
}
