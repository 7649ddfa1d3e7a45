package v2495

import (
	"fmt"
	"testing"
)

type op struct {
	write bool
	multi bool
	addr  uint32
	data  uint32
	words []uint32
	err   error
}

// fakeRegs replays a scripted sequence of register accesses.
type fakeRegs struct {
	t   *testing.T
	ops []op
}

func opstr(o *op) string {
	t := "read"
	if o.write {
		t = "write"
	}
	if o.multi {
		return fmt.Sprintf("{multi %s @ %08x, %d words}", t, o.addr, len(o.words))
	}
	return fmt.Sprintf("{%s @ %08x = %08x}", t, o.addr, o.data)
}

func (m *fakeRegs) next(desc string) (op, bool) {
	m.t.Helper()
	if len(m.ops) == 0 {
		m.t.Errorf("unexpected %s", desc)
		return op{}, false
	}
	o := m.ops[0]
	m.ops = m.ops[1:]
	return o, true
}

func (m *fakeRegs) Read32(a uint32) (uint32, error) {
	m.t.Helper()
	desc := fmt.Sprintf("read on %08x", a)
	o, ok := m.next(desc)
	if !ok {
		return 0, nil
	}
	if o.write || o.multi || o.addr != a {
		m.t.Errorf("Expected %s, got %s", opstr(&o), desc)
	}
	return o.data, o.err
}

func (m *fakeRegs) Write32(a, d uint32) error {
	m.t.Helper()
	desc := fmt.Sprintf("write of %08x on %08x", d, a)
	o, ok := m.next(desc)
	if !ok {
		return nil
	}
	if !o.write || o.multi || o.addr != a || o.data != d {
		m.t.Errorf("Expected %s, got %s", opstr(&o), desc)
	}
	return o.err
}

func (m *fakeRegs) MultiRead32(addrs, vals []uint32) error {
	m.t.Helper()
	desc := fmt.Sprintf("multi read of %d words on %08x", len(addrs), addrs[0])
	o, ok := m.next(desc)
	if !ok {
		return nil
	}
	if o.write || !o.multi || o.addr != addrs[0] || len(o.words) != len(addrs) {
		m.t.Errorf("Expected %s, got %s", opstr(&o), desc)
	}
	for i := range addrs {
		if addrs[i] != addrs[0]+4*uint32(i) {
			m.t.Errorf("multi read address %d = %08x, not contiguous", i, addrs[i])
		}
	}
	copy(vals, o.words)
	return o.err
}

func (m *fakeRegs) MultiWrite32(addrs, vals []uint32) error {
	m.t.Helper()
	desc := fmt.Sprintf("multi write of %d words on %08x", len(addrs), addrs[0])
	o, ok := m.next(desc)
	if !ok {
		return nil
	}
	if !o.write || !o.multi || o.addr != addrs[0] || len(o.words) != len(vals) {
		m.t.Errorf("Expected %s, got %s", opstr(&o), desc)
		return o.err
	}
	for i := range vals {
		if vals[i] != o.words[i] {
			m.t.Errorf("multi write word %d = %08x, want %08x", i, vals[i], o.words[i])
		}
	}
	return o.err
}

func (m *fakeRegs) ExpectWrite32(a, d uint32) {
	m.ops = append(m.ops, op{write: true, addr: a, data: d})
}

func (m *fakeRegs) FakeRead32(a, d uint32) {
	m.ops = append(m.ops, op{addr: a, data: d})
}

func (m *fakeRegs) ExpectMultiWrite32(a uint32, words []uint32) {
	m.ops = append(m.ops, op{write: true, multi: true, addr: a, words: words})
}

func (m *fakeRegs) FakeMultiRead32(a uint32, words []uint32) {
	m.ops = append(m.ops, op{multi: true, addr: a, words: words})
}

// FailLast makes the last scripted access return err.
func (m *fakeRegs) FailLast(err error) {
	m.ops[len(m.ops)-1].err = err
}

func (m *fakeRegs) Done() {
	m.t.Helper()
	for i := range m.ops {
		m.t.Errorf("Expected %s, never happened", opstr(&m.ops[i]))
	}
}

func fakeRegisters(t *testing.T) *fakeRegs {
	return &fakeRegs{t: t}
}
