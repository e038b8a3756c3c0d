package imapsync

import (
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"unibox-backend/internal/platform"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
)

// How many messages an initial sync pulls from the mailbox tail.
const initialFetchLimit = 50

// Adapter syncs a generic IMAP mailbox. The cursor is
// "<uidvalidity>:<last seen uid>"; a UIDVALIDITY change on the server
// invalidates all stored UIDs and forces a full re-fetch.
type Adapter struct{}

func NewAdapter() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Platform() string {
	return platform.IMAP
}

func (a *Adapter) FetchSince(ctx context.Context, creds platform.Credentials, cursor string) (*platform.FetchResult, error) {
	if creds.Host == "" || creds.Password == "" {
		return nil, platform.ErrNotAuthenticated
	}

	addr := fmt.Sprintf("%s:%d", creds.Host, creds.Port)
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, &platform.TransientError{Err: fmt.Errorf("imap dial %s: %w", addr, err)}
	}
	defer c.Logout()

	if err := c.Login(creds.Username, creds.Password); err != nil {
		return nil, platform.ErrNotAuthenticated
	}

	mbox, err := c.Select("INBOX", true)
	if err != nil {
		return nil, &platform.TransientError{Err: fmt.Errorf("imap select: %w", err)}
	}

	uidValidity, lastUID := parseCursor(cursor)
	if uidValidity != 0 && uidValidity != mbox.UidValidity {
		log.Printf("[IMAP] UIDVALIDITY changed (%d -> %d), full re-fetch", uidValidity, mbox.UidValidity)
		lastUID = 0
	}

	result := &platform.FetchResult{
		NextCursor: formatCursor(mbox.UidValidity, lastUID),
	}
	if mbox.Messages == 0 {
		return result, nil
	}

	seqset := new(imap.SeqSet)
	useUID := lastUID > 0
	if useUID {
		seqset.AddRange(lastUID+1, 0)
	} else {
		from := uint32(1)
		if mbox.Messages > initialFetchLimit {
			from = mbox.Messages - initialFetchLimit + 1
		}
		seqset.AddRange(from, mbox.Messages)
	}

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		if useUID {
			done <- c.UidFetch(seqset, items, messages)
		} else {
			done <- c.Fetch(seqset, items, messages)
		}
	}()

	seenSenders := make(map[string]bool)
	maxUID := lastUID

	for msg := range messages {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// A UID fetch with a start past the mailbox end still returns the
		// last message; skip anything at or below the cursor.
		if useUID && msg.Uid <= lastUID {
			continue
		}
		if msg.Uid > maxUID {
			maxUID = msg.Uid
		}

		m, sender := normalizeMessage(msg, section)
		result.Messages = append(result.Messages, m)

		if sender.RemoteID != "" && !seenSenders[sender.RemoteID] {
			seenSenders[sender.RemoteID] = true
			result.Contacts = append(result.Contacts, sender)
		}
	}

	if err := <-done; err != nil {
		return nil, &platform.TransientError{Err: fmt.Errorf("imap fetch: %w", err)}
	}

	result.NextCursor = formatCursor(mbox.UidValidity, maxUID)
	return result, nil
}

func normalizeMessage(msg *imap.Message, section *imap.BodySectionName) (platform.Message, platform.Contact) {
	var sender platform.Contact
	var senderAddress, subject string
	timestamp := time.Now()

	if msg.Envelope != nil {
		subject = msg.Envelope.Subject
		if !msg.Envelope.Date.IsZero() {
			timestamp = msg.Envelope.Date
		}
		if len(msg.Envelope.From) > 0 {
			from := msg.Envelope.From[0]
			email := strings.ToLower(from.Address())
			sender = platform.Contact{
				RemoteID: email,
				Name:     from.PersonalName,
				Email:    email,
			}
			if from.PersonalName != "" {
				senderAddress = fmt.Sprintf("%s <%s>", from.PersonalName, email)
			} else {
				senderAddress = email
			}
		}
	}

	m := platform.Message{
		RemoteID:       messageKey(msg),
		ThreadID:       threadKey(msg),
		SenderRemoteID: sender.RemoteID,
		SenderAddress:  senderAddress,
		Subject:        subject,
		Content:        bodyText(msg.GetBody(section)),
		Direction:      platform.DirectionInbound,
		Timestamp:      timestamp,
	}
	return m, sender
}

// messageKey prefers the globally-unique Message-Id header over the
// mailbox-local UID so re-syncs after a UIDVALIDITY change still dedupe.
func messageKey(msg *imap.Message) string {
	if msg.Envelope != nil && msg.Envelope.MessageId != "" {
		return strings.Trim(msg.Envelope.MessageId, "<>")
	}
	return fmt.Sprintf("uid-%d", msg.Uid)
}

// threadKey groups replies with their root via In-Reply-To when present.
func threadKey(msg *imap.Message) string {
	if msg.Envelope != nil && msg.Envelope.InReplyTo != "" {
		return strings.Trim(msg.Envelope.InReplyTo, "<>")
	}
	return ""
}

// bodyText extracts the first text part of the message.
func bodyText(r io.Reader) string {
	if r == nil {
		return ""
	}
	mr, err := mail.CreateReader(r)
	if err != nil {
		return ""
	}
	for {
		part, err := mr.NextPart()
		if err != nil {
			return ""
		}
		if _, ok := part.Header.(*mail.InlineHeader); ok {
			body, err := io.ReadAll(part.Body)
			if err != nil {
				return ""
			}
			return string(body)
		}
	}
}

func parseCursor(cursor string) (uidValidity, lastUID uint32) {
	parts := strings.SplitN(cursor, ":", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	validity, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, 0
	}
	uid, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, 0
	}
	return uint32(validity), uint32(uid)
}

func formatCursor(uidValidity, lastUID uint32) string {
	return fmt.Sprintf("%d:%d", uidValidity, lastUID)
}
