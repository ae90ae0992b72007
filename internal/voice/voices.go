package voice

import (
	"errors"
	"strings"
)

// ErrNoSuchVoice is returned when selecting an index outside the list.
var ErrNoSuchVoice = errors.New("voice: no such voice")

// VoiceProfile describes a synthesis voice. Ref is the host's handle.
type VoiceProfile struct {
	Name string
	Lang string
	Ref  string
}

func (v VoiceProfile) key() string {
	if v.Ref != "" {
		return v.Ref
	}
	return v.Name + "|" + v.Lang
}

// VoiceCatalog holds the enumerated voices and the current selection.
type VoiceCatalog struct {
	src        VoiceSource
	preferLang string

	voices   []VoiceProfile
	selected int
	// pinned is the key of a voice the user picked explicitly.
	pinned string
}

// NewVoiceCatalog creates an empty catalog preferring voices whose locale
// starts with preferLang. Call Refresh to enumerate.
func NewVoiceCatalog(src VoiceSource, preferLang string) *VoiceCatalog {
	return &VoiceCatalog{src: src, preferLang: normalizeLang(preferLang)}
}

// Refresh re-enumerates the host voices. A user selection survives when the
// same voice is still offered.
func (c *VoiceCatalog) Refresh() []VoiceProfile {
	c.voices = c.src.Voices()
	c.selected = c.preferred()

	if c.pinned != "" {
		for i, v := range c.voices {
			if v.key() == c.pinned {
				c.selected = i
				break
			}
		}
	}
	return c.List()
}

// List returns a copy of the enumerated voices.
func (c *VoiceCatalog) List() []VoiceProfile {
	return append([]VoiceProfile(nil), c.voices...)
}

// Select picks voice i as the user's choice.
func (c *VoiceCatalog) Select(i int) error {
	if i < 0 || i >= len(c.voices) {
		return ErrNoSuchVoice
	}
	c.selected = i
	c.pinned = c.voices[i].key()
	return nil
}

// SelectedIndex returns the selected index, or -1 when no voices are known.
func (c *VoiceCatalog) SelectedIndex() int {
	if len(c.voices) == 0 {
		return -1
	}
	return c.selected
}

// Resolve returns the voice to speak with, enumerating again if the list is
// still empty. It falls back to the first voice when the selection is out of
// range.
func (c *VoiceCatalog) Resolve() (VoiceProfile, bool) {
	if len(c.voices) == 0 {
		c.Refresh()
	}
	if len(c.voices) == 0 {
		return VoiceProfile{}, false
	}
	if c.selected < 0 || c.selected >= len(c.voices) {
		return c.voices[0], true
	}
	return c.voices[c.selected], true
}

func (c *VoiceCatalog) preferred() int {
	if c.preferLang == "" {
		return 0
	}
	for i, v := range c.voices {
		if strings.HasPrefix(normalizeLang(v.Lang), c.preferLang) {
			return i
		}
	}
	return 0
}

// normalizeLang maps "en_IN" and "EN-in" alike to "en-in".
func normalizeLang(lang string) string {
	return strings.ToLower(strings.ReplaceAll(lang, "_", "-"))
}
