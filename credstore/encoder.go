package credstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const tokenRecordVersion1 = 1

const maxTokenFieldLen = 65535

var errTokenRecordCorrupt = errors.New("token record corrupt")

func encodeTokenSet(ts *TokenSet) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(tokenRecordVersion1)

	for _, field := range []string{ts.AccessToken, ts.RefreshToken, ts.GroupID} {
		if len(field) > maxTokenFieldLen {
			return nil, errors.New("token field too long")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}

	if err := binary.Write(&buf, binary.BigEndian, ts.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeTokenSet(data []byte) (*TokenSet, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, errTokenRecordCorrupt
	}
	if version != tokenRecordVersion1 {
		return nil, errTokenRecordCorrupt
	}

	fields := make([]string, 3)
	for i := range fields {
		var n uint16
		if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
			return nil, errTokenRecordCorrupt
		}
		raw := make([]byte, n)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, errTokenRecordCorrupt
		}
		fields[i] = string(raw)
	}

	ts := &TokenSet{
		AccessToken:  fields[0],
		RefreshToken: fields[1],
		GroupID:      fields[2],
	}
	if err := binary.Read(reader, binary.BigEndian, &ts.ExpiresAt); err != nil {
		return nil, errTokenRecordCorrupt
	}
	if reader.Len() != 0 {
		return nil, errTokenRecordCorrupt
	}

	return ts, nil
}
