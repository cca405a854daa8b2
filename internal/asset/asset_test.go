package asset

import (
	"encoding/binary"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/spf13/afero"
)

func sidFile(load uint16, data ...byte) []byte {
	header := make([]byte, sidHeaderV2Size)
	copy(header, "PSID")
	binary.BigEndian.PutUint16(header[0x04:], 2)
	binary.BigEndian.PutUint16(header[0x06:], sidHeaderV2Size)
	binary.BigEndian.PutUint16(header[0x08:], load)
	binary.BigEndian.PutUint16(header[0x0a:], 0x1000)
	binary.BigEndian.PutUint16(header[0x0c:], 0x1003)
	binary.BigEndian.PutUint16(header[0x0e:], 3)
	binary.BigEndian.PutUint16(header[0x10:], 1)
	copy(header[0x16:], "Tune")
	copy(header[0x36:], "Composer")
	return append(header, data...)
}

func TestParseSID(t *testing.T) {
	sid, err := ParseSID(sidFile(0, 0x00, 0x10, 0x4c, 0x00, 0x10))
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x1000), sid.LoadAddress)
	assert.Equal(t, uint16(0x1000), sid.InitAddress)
	assert.Equal(t, uint16(0x1003), sid.PlayAddress)
	assert.Equal(t, uint16(3), sid.Songs)
	assert.Equal(t, "Tune", sid.Name)
	assert.Equal(t, "Composer", sid.Author)
	assert.Equal(t, "", sid.Released)
	assert.False(t, sid.RSID)
	assert.Equal(t, []byte{0x4c, 0x00, 0x10}, sid.Data)

	sid, err = ParseSID(sidFile(0x2000, 0x60))
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x2000), sid.LoadAddress)
	assert.Equal(t, []byte{0x60}, sid.Data)
}

func TestParseSIDErrors(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"short", []byte("PSID"), "SID data too short"},
		{"magic", append([]byte("XSID"), make([]byte, sidHeaderSize)...), "invalid SID magic"},
		{"missing load address", sidFile(0), "missing load address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSID(tt.data)
			assert.ErrorContains(t, err, tt.expected)
		})
	}
}

func TestStore(t *testing.T) {
	fs := afero.NewMemMapFs()
	assert.NoError(t, afero.WriteFile(fs, "/demo/assets/logo.prg", []byte{0x00, 0x20, 1, 2, 3}, 0o644))
	assert.NoError(t, afero.WriteFile(fs, "/demo/assets/music.sid", sidFile(0x1000, 0x60), 0o644))
	assert.NoError(t, afero.WriteFile(fs, "/demo/assets/font.bin", make([]byte, 0x800), 0o644))

	store := New(fs, "/demo/assets")

	address, data, err := store.Program("logo.prg")
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x2000), address)
	assert.Equal(t, []byte{1, 2, 3}, data)

	address, data, err = store.Program("music.sid")
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x1000), address)
	assert.Equal(t, []byte{0x60}, data)

	size, err := store.Size("font.bin")
	assert.NoError(t, err)
	assert.Equal(t, 0x800, size)

	// cached content survives the removal of the file
	assert.NoError(t, fs.Remove("/demo/assets/font.bin"))
	size, err = store.Size("font.bin")
	assert.NoError(t, err)
	assert.Equal(t, 0x800, size)

	_, err = store.Data("missing.bin")
	assert.ErrorContains(t, err, "reading asset 'missing.bin'")

	_, err = store.Data("../secret.bin")
	assert.ErrorContains(t, err, "outside of the asset directory")
}
