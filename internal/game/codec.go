package game

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
)

const (
	// IDUnconnectedPing is the RakNet message id of an unconnected ping.
	IDUnconnectedPing byte = 0x01

	// IDUnconnectedPong is the RakNet message id of an unconnected pong.
	IDUnconnectedPong byte = 0x1c

	// PingSize is the length of an encoded unconnected ping.
	PingSize = 1 + 8 + len(Magic)

	// pongHeaderSize covers id, ping id, server guid, magic and the string length prefix.
	pongHeaderSize = 1 + 8 + 8 + len(Magic) + 2

	// minFields is the number of leading payload fields that must be present.
	minFields = 6
)

// Magic is the offline message sequence carried by every unconnected RakNet message.
var Magic = [16]byte{0x00, 0xff, 0xff, 0x00, 0xfe, 0xfe, 0xfe, 0xfe, 0xfd, 0xfd, 0xfd, 0xfd, 0x12, 0x34, 0x56, 0x78}

// EncodePing builds an unconnected ping datagram carrying pingID.
func EncodePing(pingID int64) []byte {
	b := make([]byte, PingSize)
	b[0] = IDUnconnectedPing
	binary.BigEndian.PutUint64(b[1:], uint64(pingID))
	copy(b[9:], Magic[:])
	return b
}

// EncodePong builds an unconnected pong datagram, as a server would answer a ping.
// A nil Status produces an empty payload. Payloads longer than the int16 length
// prefix allows are cut.
func EncodePong(p Pong) []byte {
	var payload string
	if p.Status != nil {
		payload = FormatStatus(*p.Status, p.ServerGUID)
	}
	if len(payload) > math.MaxInt16 {
		payload = payload[:math.MaxInt16]
	}

	id := p.ID
	if id == 0 {
		id = IDUnconnectedPong
	}
	magic := p.Magic
	if magic == [16]byte{} {
		magic = Magic
	}

	b := make([]byte, pongHeaderSize+len(payload))
	b[0] = id
	binary.BigEndian.PutUint64(b[1:], uint64(p.PingID))
	binary.BigEndian.PutUint64(b[9:], uint64(p.ServerGUID))
	copy(b[17:], magic[:])
	binary.BigEndian.PutUint16(b[33:], uint16(len(payload)))
	copy(b[pongHeaderSize:], payload)
	return b
}

// FormatStatus renders s as the semicolon separated pong payload.
// The optional world name and game mode are appended only when one of them is set,
// with serverGUID filling the server id field in between.
func FormatStatus(s Status, serverGUID int64) string {
	fields := []string{
		s.Edition,
		s.Name,
		strconv.Itoa(s.Protocol),
		s.Version,
		strconv.Itoa(s.Players),
		strconv.Itoa(s.MaxPlayers),
	}
	if s.WorldName != "" || s.GameMode != "" {
		fields = append(fields, strconv.FormatInt(serverGUID, 10), s.WorldName, s.GameMode)
	}

	return strings.Join(fields, ";")
}

// DecodePong parses an unconnected pong datagram.
// The message id and magic are returned as read and are not validated here.
func DecodePong(data []byte) (*Pong, error) {
	if len(data) < pongHeaderSize {
		return nil, &DecodeError{Err: ErrTruncated}
	}

	p := &Pong{
		ID:         data[0],
		PingID:     int64(binary.BigEndian.Uint64(data[1:9])),
		ServerGUID: int64(binary.BigEndian.Uint64(data[9:17])),
	}
	copy(p.Magic[:], data[17:33])

	size := int(int16(binary.BigEndian.Uint16(data[33:35])))
	body := data[pongHeaderSize:]
	if size < 0 || size > len(body) {
		return nil, &DecodeError{Err: ErrTruncated, Field: "length", Value: strconv.Itoa(size)}
	}

	status, err := ParseStatus(strings.ToValidUTF8(string(body[:size]), "\uFFFD"))
	if err != nil {
		return nil, err
	}
	p.Status = status

	return p, nil
}

// ParseStatus maps a semicolon separated pong payload onto a Status.
func ParseStatus(payload string) (*Status, error) {
	fields := strings.Split(payload, ";")
	if len(fields) < minFields {
		return nil, &DecodeError{Err: ErrTooFewFields, Field: "fields", Value: strconv.Itoa(len(fields))}
	}

	protocol, err := parseInt("protocol", fields[2])
	if err != nil {
		return nil, err
	}
	players, err := parseInt("players", fields[4])
	if err != nil {
		return nil, err
	}
	maxPlayers, err := parseInt("max_players", fields[5])
	if err != nil {
		return nil, err
	}

	s := &Status{
		Edition:    fields[0],
		Name:       fields[1],
		Protocol:   protocol,
		Version:    fields[3],
		Players:    players,
		MaxPlayers: maxPlayers,
	}
	if len(fields) > 7 {
		s.WorldName = fields[7]
	}
	if len(fields) > 8 {
		s.GameMode = fields[8]
	}

	return s, nil
}

func parseInt(field, value string) (int, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 32)
	if err != nil {
		return 0, &DecodeError{Err: ErrMalformedInteger, Field: field, Value: value}
	}
	return int(n), nil
}
