package models

import (
	"fmt"
	"strings"
)

// RecipientFieldKind names one of the three addressed recipient fields.
type RecipientFieldKind string

const (
	FieldTo  RecipientFieldKind = "to"
	FieldCc  RecipientFieldKind = "cc"
	FieldBcc RecipientFieldKind = "bcc"
)

// ParseRecipientFieldKind validates a field name from a route parameter.
func ParseRecipientFieldKind(s string) (RecipientFieldKind, error) {
	switch RecipientFieldKind(s) {
	case FieldTo, FieldCc, FieldBcc:
		return RecipientFieldKind(s), nil
	}
	return "", fmt.Errorf("unknown recipient field %q", s)
}

// RecipientToken is one selected recipient in a field. AddressKey is the
// unique identity (the address itself); Label is what the pill displays.
type RecipientToken struct {
	Label      string `json:"label"`
	AddressKey string `json:"address_key"`
	Icon       string `json:"icon"`
}

// RecipientCandidate is one row of a recipient search response.
type RecipientCandidate struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

// Token builds the RecipientToken for a selected candidate. A label of the
// form "Name <addr>" is trimmed to its name part; a missing icon falls back
// to the generic user icon.
func (c RecipientCandidate) Token() RecipientToken {
	label := c.Label
	if idx := strings.Index(label, " <"); idx > 0 {
		label = label[:idx]
	}
	if label == "" {
		label = c.Value
	}
	icon := c.Icon
	if icon == "" {
		icon = "standard:user"
	}
	return RecipientToken{Label: label, AddressKey: c.Value, Icon: icon}
}
