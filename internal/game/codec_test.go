package game

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// pongWithPayload builds a pong around a raw payload string.
func pongWithPayload(pingID int64, payload string) []byte {
	var buf bytes.Buffer
	buf.WriteByte(IDUnconnectedPong)
	_ = binary.Write(&buf, binary.BigEndian, pingID)
	_ = binary.Write(&buf, binary.BigEndian, int64(0x0102030405060708))
	buf.Write(Magic[:])
	_ = binary.Write(&buf, binary.BigEndian, int16(len(payload)))
	buf.WriteString(payload)
	return buf.Bytes()
}

func TestEncodePing(t *testing.T) {
	b := EncodePing(0)
	require.Len(t, b, 25)

	want := []byte{
		0x01,
		0, 0, 0, 0, 0, 0, 0, 0,
		0x00, 0xff, 0xff, 0x00, 0xfe, 0xfe, 0xfe, 0xfe, 0xfd, 0xfd, 0xfd, 0xfd, 0x12, 0x34, 0x56, 0x78,
	}
	assert.Equal(t, want, b)

	b = EncodePing(0x1122334455667788)
	assert.Equal(t, []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}, b[1:9])
	assert.Equal(t, Magic[:], b[9:])
}

func TestEncodePingIsDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		id := rapid.Int64().Draw(t, "pingID")
		if !bytes.Equal(EncodePing(id), EncodePing(id)) {
			t.Fatalf("EncodePing(%d) differs between calls", id)
		}
	})
}

func TestDecodePong(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    *Status
		wantErr error
	}{
		{
			name:    "full payload",
			payload: "MCPE;My Server;422;1.18.0;3;10;1234567;My World;Survival",
			want: &Status{
				Edition:    "MCPE",
				Name:       "My Server",
				Protocol:   422,
				Version:    "1.18.0",
				Players:    3,
				MaxPlayers: 10,
				WorldName:  "My World",
				GameMode:   "Survival",
			},
		},
		{
			name:    "exactly six fields",
			payload: "MCPE;S;1;1.0;1;2",
			want:    &Status{Edition: "MCPE", Name: "S", Protocol: 1, Version: "1.0", Players: 1, MaxPlayers: 2},
		},
		{
			name:    "seven fields",
			payload: "MCPE;S;1;1.0;1;2;99",
			want:    &Status{Edition: "MCPE", Name: "S", Protocol: 1, Version: "1.0", Players: 1, MaxPlayers: 2},
		},
		{
			name:    "eight fields carry world only",
			payload: "MCPE;S;1;1.0;1;2;99;Bedrock level",
			want: &Status{
				Edition: "MCPE", Name: "S", Protocol: 1, Version: "1.0", Players: 1, MaxPlayers: 2,
				WorldName: "Bedrock level",
			},
		},
		{
			name:    "modern server trailing fields",
			payload: "MCPE;Dedicated Server;594;1.20.10;0;10;13253860892328930865;Bedrock level;Survival;1;19132;19133;",
			want: &Status{
				Edition: "MCPE", Name: "Dedicated Server", Protocol: 594, Version: "1.20.10", Players: 0, MaxPlayers: 10,
				WorldName: "Bedrock level", GameMode: "Survival",
			},
		},
		{
			name:    "integers padded with spaces",
			payload: "MCPE;S; 422 ;1.0; 3 ;\t10",
			want:    &Status{Edition: "MCPE", Name: "S", Protocol: 422, Version: "1.0", Players: 3, MaxPlayers: 10},
		},
		{
			name:    "players only spaces",
			payload: "MCPE;S;1;1.0;  ;2",
			wantErr: ErrMalformedInteger,
		},
		{
			name:    "five fields",
			payload: "MCPE;S;1;1.0;1",
			wantErr: ErrTooFewFields,
		},
		{
			name:    "empty payload",
			payload: "",
			wantErr: ErrTooFewFields,
		},
		{
			name:    "protocol not a number",
			payload: "MCPE;S;abc;1.0;1;2",
			wantErr: ErrMalformedInteger,
		},
		{
			name:    "players not a number",
			payload: "MCPE;S;1;1.0;;2",
			wantErr: ErrMalformedInteger,
		},
		{
			name:    "max players overflow",
			payload: "MCPE;S;1;1.0;1;99999999999",
			wantErr: ErrMalformedInteger,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pong, err := DecodePong(pongWithPayload(7, tt.payload))

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Nil(t, pong)
				assert.ErrorIs(t, err, tt.wantErr)

				var decodeErr *DecodeError
				assert.True(t, errors.As(err, &decodeErr))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, pong.Status)
			assert.Equal(t, IDUnconnectedPong, pong.ID)
			assert.Equal(t, int64(7), pong.PingID)
			assert.Equal(t, int64(0x0102030405060708), pong.ServerGUID)
			assert.Equal(t, Magic, pong.Magic)
		})
	}
}

func TestDecodePongTruncated(t *testing.T) {
	full := pongWithPayload(1, "MCPE;S;1;1.0;1;2")

	for _, size := range []int{0, 1, 9, 17, 33, 34, 35, len(full) - 1} {
		pong, err := DecodePong(full[:size])
		assert.Nil(t, pong, "size %d", size)
		assert.ErrorIs(t, err, ErrTruncated, "size %d", size)
	}
}

func TestDecodePongNegativeLength(t *testing.T) {
	b := pongWithPayload(1, "MCPE;S;1;1.0;1;2")
	binary.BigEndian.PutUint16(b[33:35], 0xffff)

	_, err := DecodePong(b)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodePongIgnoresTrailingBytes(t *testing.T) {
	b := append(pongWithPayload(1, "MCPE;S;1;1.0;1;2"), 0xde, 0xad)

	pong, err := DecodePong(b)
	require.NoError(t, err)
	assert.Equal(t, 2, pong.Status.MaxPlayers)
}

func TestDecodePongDoesNotValidateHeader(t *testing.T) {
	b := pongWithPayload(1, "MCPE;S;1;1.0;1;2")
	b[0] = 0x42
	b[20] = 0x00

	pong, err := DecodePong(b)
	require.NoError(t, err)
	assert.Equal(t, byte(0x42), pong.ID)
	assert.NotEqual(t, Magic, pong.Magic)
}

func TestDecodePongReplacesInvalidUTF8(t *testing.T) {
	pong, err := DecodePong(pongWithPayload(1, "MCPE;bad\xffname;1;1.0;1;2"))
	require.NoError(t, err)
	assert.Equal(t, "bad\uFFFDname", pong.Status.Name)
}

func TestFormatStatus(t *testing.T) {
	s := Status{Edition: "MCPE", Name: "S", Protocol: 1, Version: "1.0", Players: 1, MaxPlayers: 2}
	assert.Equal(t, "MCPE;S;1;1.0;1;2", FormatStatus(s, 5))

	s.GameMode = "Creative"
	assert.Equal(t, "MCPE;S;1;1.0;1;2;5;;Creative", FormatStatus(s, 5))
}

func genField() *rapid.Generator[string] {
	return rapid.StringMatching(`[a-zA-Z0-9 ._§\-]{0,24}`)
}

func genStatus() *rapid.Generator[Status] {
	return rapid.Custom(func(t *rapid.T) Status {
		return Status{
			Edition:    genField().Draw(t, "edition"),
			Name:       genField().Draw(t, "name"),
			WorldName:  genField().Draw(t, "world"),
			Version:    genField().Draw(t, "version"),
			GameMode:   genField().Draw(t, "gameMode"),
			Protocol:   int(rapid.Int32().Draw(t, "protocol")),
			Players:    int(rapid.Int32().Draw(t, "players")),
			MaxPlayers: int(rapid.Int32().Draw(t, "maxPlayers")),
		}
	})
}

func TestPongRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		status := genStatus().Draw(t, "status")
		pingID := rapid.Int64().Draw(t, "pingID")
		guid := rapid.Int64().Draw(t, "guid")

		pong, err := DecodePong(EncodePong(Pong{Status: &status, PingID: pingID, ServerGUID: guid}))
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if *pong.Status != status {
			t.Fatalf("status mismatch: got %+v, want %+v", *pong.Status, status)
		}
		if pong.PingID != pingID || pong.ServerGUID != guid {
			t.Fatalf("header mismatch: got %d/%d, want %d/%d", pong.PingID, pong.ServerGUID, pingID, guid)
		}
	})
}

func TestTooFewFieldsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		fields := rapid.SliceOfN(genField(), 1, 5).Draw(t, "fields")

		pong, err := DecodePong(pongWithPayload(1, strings.Join(fields, ";")))
		if pong != nil {
			t.Fatalf("partial pong returned: %+v", pong)
		}
		if !errors.Is(err, ErrTooFewFields) {
			t.Fatalf("got %v, want ErrTooFewFields", err)
		}
	})
}

func TestMalformedIntegerProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		fields := []string{"MCPE", "S", "1", "1.0", "1", "2"}
		idx := rapid.SampledFrom([]int{2, 4, 5}).Draw(t, "index")
		fields[idx] = rapid.StringMatching(`[a-zA-Z .]{1,12}`).Draw(t, "value")

		pong, err := DecodePong(pongWithPayload(1, strings.Join(fields, ";")))
		if pong != nil {
			t.Fatalf("partial pong returned: %+v", pong)
		}
		if !errors.Is(err, ErrMalformedInteger) {
			t.Fatalf("got %v, want ErrMalformedInteger", err)
		}
	})
}

func TestDecodePongNeverPanics(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 0, 128).Draw(t, "data")

		pong, err := DecodePong(data)
		if err == nil && pong.Status == nil {
			t.Fatalf("nil status without error")
		}
		if err != nil && pong != nil {
			t.Fatalf("pong returned together with error %v", err)
		}
	})
}

func TestKind(t *testing.T) {
	assert.Equal(t, "ok", Kind(nil))
	assert.Equal(t, "timeout", Kind(ErrTimeout))
	assert.Equal(t, "closed", Kind(ErrClosed))
	assert.Equal(t, "decode", Kind(&DecodeError{Err: ErrTooFewFields}))
	assert.Equal(t, "transport", Kind(&TransportError{Op: "send", Err: errors.New("unreachable")}))
	assert.Equal(t, "unknown", Kind(errors.New("other")))
}
