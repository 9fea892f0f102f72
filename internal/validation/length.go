// Sitioss Reports - Resilient Crowd Report Ingestion
// Copyright 2026 PetaBencana contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/petabencana/sitioss-reports

package validation

import (
	"fmt"
	"regexp"
	"sort"
	"unicode/utf8"
)

// Reply budget constants, in characters.
const (
	DefaultBudget    = 140
	ReplyPrefix      = 17 // "@" + screen name + " "
	TimestampReserve = 14 // " " + 13 digit millisecond timestamp
)

var linkPattern = regexp.MustCompile(`http[^ ]*`)

// MessageLength is the outbound message length policy. Links are counted as
// URLLength characters regardless of their raw length, matching the link
// shortener applied by the reply channel.
type MessageLength struct {
	Budget       int
	AddTimestamp bool
	URLLength    int
}

// Max returns the number of characters a message body may use.
func (m MessageLength) Max() int {
	budget := m.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}
	budget -= ReplyPrefix
	if m.AddTimestamp {
		budget -= TimestampReserve
	}
	return budget
}

// Length returns the measured length of text with links normalised.
func (m MessageLength) Length(text string) int {
	n := utf8.RuneCountInString(text)
	for _, link := range linkPattern.FindAllString(text, -1) {
		n += m.URLLength - utf8.RuneCountInString(link)
	}
	return n
}

// Fits reports whether text fits the budget.
func (m MessageLength) Fits(text string) bool {
	return m.Length(text) <= m.Max()
}

// TooLongError names the first message text that exceeds the budget.
type TooLongError struct {
	Key    string
	Text   string
	Length int
	Max    int
}

func (e *TooLongError) Error() string {
	return fmt.Sprintf("message %s '%s' is too long (%d chars, max %d)", e.Key, e.Text, e.Length, e.Max)
}

// CheckMessages validates every text in messages, keyed by kind then language.
// Keys are visited in sorted order so the reported message is deterministic.
func (m MessageLength) CheckMessages(messages map[string]map[string]string) error {
	kinds := make([]string, 0, len(messages))
	for kind := range messages {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	for _, kind := range kinds {
		langs := make([]string, 0, len(messages[kind]))
		for lang := range messages[kind] {
			langs = append(langs, lang)
		}
		sort.Strings(langs)

		for _, lang := range langs {
			text := messages[kind][lang]
			if !m.Fits(text) {
				return &TooLongError{
					Key:    kind + "." + lang,
					Text:   text,
					Length: m.Length(text),
					Max:    m.Max(),
				}
			}
		}
	}
	return nil
}
