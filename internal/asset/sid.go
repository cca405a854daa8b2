package asset

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	sidHeaderSize   = 0x76
	sidHeaderV2Size = 0x7c
)

// SID is a parsed PSID or RSID music file.
type SID struct {
	Version     uint16
	LoadAddress uint16
	InitAddress uint16
	PlayAddress uint16
	Songs       uint16
	StartSong   uint16
	Speed       uint32
	Name        string
	Author      string
	Released    string
	Flags       uint16
	RSID        bool

	Data []byte
}

// IsSID returns whether the data starts with a SID file magic.
func IsSID(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	magic := string(data[:4])
	return magic == "PSID" || magic == "RSID"
}

// ParseSID parses the header of a SID file. A load address of 0 in the
// header is read from the first two bytes of the data.
func ParseSID(data []byte) (*SID, error) {
	if len(data) < sidHeaderSize {
		return nil, errors.New("SID data too short")
	}
	if !IsSID(data) {
		return nil, fmt.Errorf("invalid SID magic %q", data[:4])
	}

	sid := &SID{
		Version:     binary.BigEndian.Uint16(data[0x04:0x06]),
		LoadAddress: binary.BigEndian.Uint16(data[0x08:0x0a]),
		InitAddress: binary.BigEndian.Uint16(data[0x0a:0x0c]),
		PlayAddress: binary.BigEndian.Uint16(data[0x0c:0x0e]),
		Songs:       binary.BigEndian.Uint16(data[0x0e:0x10]),
		StartSong:   binary.BigEndian.Uint16(data[0x10:0x12]),
		Speed:       binary.BigEndian.Uint32(data[0x12:0x16]),
		Name:        paddedString(data[0x16:0x36]),
		Author:      paddedString(data[0x36:0x56]),
		Released:    paddedString(data[0x56:0x76]),
		RSID:        data[0] == 'R',
	}

	offset := int(binary.BigEndian.Uint16(data[0x06:0x08]))
	if offset < sidHeaderSize || offset > len(data) {
		return nil, fmt.Errorf("invalid data offset $%04x", offset)
	}
	if offset >= sidHeaderV2Size {
		sid.Flags = binary.BigEndian.Uint16(data[0x76:0x78])
	}

	if sid.LoadAddress == 0 {
		if offset+2 > len(data) {
			return nil, errNoLoadAddress
		}
		sid.LoadAddress = binary.LittleEndian.Uint16(data[offset : offset+2])
		offset += 2
	}
	if sid.InitAddress == 0 {
		sid.InitAddress = sid.LoadAddress
	}

	sid.Data = make([]byte, len(data)-offset)
	copy(sid.Data, data[offset:])
	return sid, nil
}

func paddedString(data []byte) string {
	for i, b := range data {
		if b == 0 {
			return string(data[:i])
		}
	}
	return string(data)
}
