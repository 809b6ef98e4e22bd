package compose

import (
	"feedcompose/backend"
	"feedcompose/models"
	"feedcompose/recipients"
)

// View is the JSON shape of a session returned to the client after open
// and after every mutation.
type View struct {
	Kind        models.ComposerKind                            `json:"kind"`
	ContextID   string                                         `json:"context_id"`
	Body        string                                         `json:"body"`
	Subject     string                                         `json:"subject"`
	SenderID    string                                         `json:"sender_id"`
	Visibility  string                                         `json:"visibility"`
	InReplyTo   string                                         `json:"in_reply_to,omitempty"`
	Senders     []backend.Option                               `json:"senders,omitempty"`
	QuickTexts  []backend.QuickText                            `json:"quick_texts,omitempty"`
	Templates   []backend.Option                               `json:"templates,omitempty"`
	Attachments []models.Attachment                            `json:"attachments"`
	Fields      map[models.RecipientFieldKind]recipients.State `json:"fields,omitempty"`
	CanSubmit   bool                                           `json:"can_submit"`
}

// Snapshot builds the client view of the session.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	v := View{
		Kind:        s.cc.Kind,
		ContextID:   s.cc.ContextID,
		Body:        s.body,
		Subject:     s.subject,
		SenderID:    s.senderID,
		Visibility:  s.visibility,
		InReplyTo:   s.inReplyTo,
		Senders:     s.senders,
		QuickTexts:  s.quickTexts,
		Templates:   s.templates,
		Attachments: append([]models.Attachment(nil), s.attachments...),
	}
	s.mu.Unlock()

	if v.Kind == models.KindEmail {
		v.Fields = map[models.RecipientFieldKind]recipients.State{
			models.FieldTo:  s.fields[models.FieldTo].Snapshot(),
			models.FieldCc:  s.fields[models.FieldCc].Snapshot(),
			models.FieldBcc: s.fields[models.FieldBcc].Snapshot(),
		}
	}
	v.CanSubmit = s.CanSubmit()
	return v
}
