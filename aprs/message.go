package aprs

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/juju/errors"
)

const (
	DataTypeMessage = ':'

	maxAddresseeLen = 9
	maxMessageLen   = 67
	maxMessageIDLen = 5
)

// Message is APRS data type ':' addressed text.
type Message struct {
	Addressee string
	Text      string
	ID        string
}

// NewMessage builds packet carrying message from `from` to `addressee`.
// `to` is usually generic destination like APRS or software tocall.
func NewMessage(from, to Callsign, via []Via, m Message) (*Packet, error) {
	data, err := m.Encode()
	if err != nil {
		return nil, err
	}
	return &Packet{From: from, To: to, Via: via, Data: data}, nil
}

func (m Message) Encode() ([]byte, error) {
	if m.Addressee == "" || len(m.Addressee) > maxAddresseeLen {
		return nil, errors.NotValidf("message addressee=%q", m.Addressee)
	}
	if len(m.Text) > maxMessageLen || strings.ContainsAny(m.Text, "|~{\r\n") {
		return nil, errors.NotValidf("message text=%q", m.Text)
	}
	if len(m.ID) > maxMessageIDLen {
		return nil, errors.NotValidf("message id=%q", m.ID)
	}
	s := fmt.Sprintf(":%-9s:%s", m.Addressee, m.Text)
	if m.ID != "" {
		s += "{" + m.ID
	}
	return []byte(s), nil
}

// Message decodes Data as message, ok=false for other data types.
func (p *Packet) Message() (m Message, ok bool) {
	d := p.Data
	if len(d) < 11 || d[0] != DataTypeMessage || d[10] != ':' {
		return Message{}, false
	}
	m.Addressee = strings.TrimRight(string(d[1:10]), " ")
	text := d[11:]
	if i := bytes.LastIndexByte(text, '{'); i >= 0 {
		m.ID = string(text[i+1:])
		text = text[:i]
	}
	m.Text = string(text)
	return m, true
}
