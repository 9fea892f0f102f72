// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package reports

// Message kinds configured under notify.messages.
const (
	MessageInvite    = "invite_text"
	MessageAskForGeo = "askforgeo_text"
	MessageThanks    = "thanks_text"
)

// Messages resolves reply texts by kind and language.
type Messages struct {
	texts           map[string]map[string]string
	defaultLanguage string
}

// NewMessages returns a resolver over texts, keyed by kind then language.
func NewMessages(texts map[string]map[string]string, defaultLanguage string) Messages {
	return Messages{texts: texts, defaultLanguage: defaultLanguage}
}

// Get returns the text for kind in the first of langs that has one, falling
// back to the default language.
func (m Messages) Get(kind string, langs []string) (string, bool) {
	byLang, ok := m.texts[kind]
	if !ok {
		return "", false
	}
	for _, lang := range langs {
		if text, ok := byLang[lang]; ok && text != "" {
			return text, true
		}
	}
	text, ok := byLang[m.defaultLanguage]
	return text, ok && text != ""
}
