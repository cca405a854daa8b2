package emit

import (
	"fmt"
	"testing"

	"github.com/beevik/go6502/cpu"
	"github.com/retroenv/retrodemo/internal/instruction"
	"github.com/retroenv/retrogolib/assert"
)

type mapResolver map[string]uint16

func (m mapResolver) Resolve(name string) (uint16, error) {
	address, ok := m[name]
	if !ok {
		return 0, fmt.Errorf("symbol '%s' not found", name)
	}
	return address, nil
}

// assemble lays out the instructions at org and encodes them.
func assemble(t *testing.T, org uint16, ins []instruction.Instruction, symbols mapResolver) []byte {
	t.Helper()
	resolver := mapResolver{}
	for name, address := range symbols {
		resolver[name] = address
	}
	pc := org
	for _, i := range ins {
		if label := i.Label(); label != "" {
			resolver[label] = pc
		}
		pc += uint16(i.Size())
	}

	var code []byte
	pc = org
	for _, i := range ins {
		data, err := i.Encode(pc, resolver)
		assert.NoError(t, err)
		code = append(code, data...)
		pc += uint16(len(data))
	}
	return code
}

type recordingMemory struct {
	*cpu.FlatMemory
	writes []uint16
}

func newRecordingMemory() *recordingMemory {
	return &recordingMemory{FlatMemory: cpu.NewFlatMemory()}
}

func (m *recordingMemory) StoreByte(addr uint16, v byte) {
	m.writes = append(m.writes, addr)
	m.FlatMemory.StoreByte(addr, v)
}

// execute runs the code until the program counter leaves it and returns the
// number of cycles used.
func execute(t *testing.T, mem cpu.Memory, org uint16, code []byte) uint64 {
	t.Helper()
	mem.StoreBytes(org, code)
	c := cpu.NewCPU(cpu.NMOS, mem)
	c.SetPC(org)
	start := c.Cycles
	end := org + uint16(len(code))
	for steps := 0; c.Reg.PC != end; steps++ {
		if steps > 1_000_000 {
			t.Fatalf("code at $%04x did not finish", org)
		}
		c.Step()
	}
	return c.Cycles - start
}

// tickingMemory advances a 16 bit counter after every read of it, as if the
// frame interrupt fired between two instructions.
type tickingMemory struct {
	*cpu.FlatMemory
	address uint16
	counter uint16
}

func (m *tickingMemory) LoadByte(addr uint16) byte {
	switch addr {
	case m.address:
		v := byte(m.counter)
		m.counter++
		return v
	case m.address + 1:
		v := byte(m.counter >> 8)
		m.counter++
		return v
	default:
		return m.FlatMemory.LoadByte(addr)
	}
}
