// internal/poller/poller_test.go
package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	pmodbus "github.com/tamzrod/ups-poller/internal/poller/modbus"
	"github.com/tamzrod/ups-poller/internal/status"
	"github.com/tamzrod/ups-poller/internal/ups"
)

type fakeTransport struct {
	connectErr   error
	connected    bool
	panicConnect bool

	regs     map[uint16][]uint16 // keyed by block address
	failAddr map[uint16]error
	panicAt  map[uint16]bool

	reads    []uint16
	connects int
	closes   int
}

func newFakeTransport() *fakeTransport {
	regs := map[uint16][]uint16{}
	for _, b := range ups.Blocks() {
		regs[b.Address] = make([]uint16, b.Quantity)
	}
	return &fakeTransport{regs: regs, failAddr: map[uint16]error{}, panicAt: map[uint16]bool{}}
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.connects++
	if f.panicConnect {
		panic("connect boom")
	}
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeTransport) Connected() bool { return f.connected }

func (f *fakeTransport) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	f.reads = append(f.reads, addr)
	if f.panicAt[addr] {
		panic("boom")
	}
	if err := f.failAddr[addr]; err != nil {
		return nil, err
	}
	words := f.regs[addr]
	out := make([]uint16, len(words))
	copy(out, words)
	return out, nil
}

func (f *fakeTransport) Close() error {
	f.closes++
	f.connected = false
	return nil
}

func newTestPoller(t *testing.T, tr *fakeTransport) *Poller {
	t.Helper()
	p, err := New(Config{
		UnitID:   "ups",
		Endpoint: "fake:502",
		Blocks:   ups.Blocks(),
	}, func() (Transport, error) { return tr, nil })
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	return p
}

func TestNew_Validates(t *testing.T) {
	factory := func() (Transport, error) { return newFakeTransport(), nil }

	if _, err := New(Config{Blocks: ups.Blocks()}, factory); err == nil {
		t.Fatalf("expected error for missing unit id")
	}
	if _, err := New(Config{UnitID: "u"}, factory); err == nil {
		t.Fatalf("expected error for no blocks")
	}
	if _, err := New(Config{UnitID: "u", Blocks: ups.Blocks()}, nil); err == nil {
		t.Fatalf("expected error for nil factory")
	}
	bad := []ups.Block{{Name: "big", Address: 0, Quantity: 126}}
	if _, err := New(Config{UnitID: "u", Blocks: bad}, factory); !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("expected ErrInvalidGeometry, got %v", err)
	}
}

func TestPollOnce_Success(t *testing.T) {
	tr := newFakeTransport()
	tr.regs[0][0] = 2305     // UinA
	tr.regs[0][9] = 5001     // Fin
	tr.regs[0][16] = 0xFFF6  // Temp -1.0
	tr.regs[45][19] = 99     // PFoutA
	tr.regs[130][0] = 0x1234 // status word
	tr.regs[300][0] = 0x8001 // alert, unsigned

	p := newTestPoller(t, tr)

	res := p.PollOnce(context.Background())
	if res.Err != nil {
		t.Fatalf("PollOnce err=%v", res.Err)
	}
	if len(res.Blocks) != 4 {
		t.Fatalf("expected 4 blocks, got %d", len(res.Blocks))
	}

	wantOrder := []uint16{300, 130, 0, 45}
	if len(tr.reads) != len(wantOrder) {
		t.Fatalf("expected %d reads, got %v", len(wantOrder), tr.reads)
	}
	for i, a := range wantOrder {
		if tr.reads[i] != a {
			t.Fatalf("read %d: got addr=%d want=%d", i, tr.reads[i], a)
		}
	}

	s := res.Snapshot
	check := func(key string, want float64) {
		t.Helper()
		got, ok := s.Get(key)
		if !ok || got != want {
			t.Fatalf("%s: got=%v ok=%v want=%v", key, got, ok, want)
		}
	}
	check("UinA", 230.5)
	check("Fin", 50.01)
	check("Temp", -1.0)
	check("PFoutA", 0.99)
	check(ups.KeyAlert, 0x8001)
	check(ups.KeyPowerState, float64((0x1234>>7)&7))
	check(ups.KeyUPSRunState, float64((0x1234>>10)&7))
	check(ups.KeyBatteryState, float64((0x1234>>13)&7))

	if s.Len() != len(ups.Keys(false)) {
		t.Fatalf("snapshot has %d fields, want %d", s.Len(), len(ups.Keys(false)))
	}
	if _, ok := s.Get("PactiveA"); ok {
		t.Fatalf("dormant field published without extended fields")
	}
	if tr.closes != 1 {
		t.Fatalf("expected transport closed once, got %d", tr.closes)
	}
	if p.Connection().State() != Closed {
		t.Fatalf("expected closed state, got %s", p.Connection().State())
	}
}

func TestPollOnce_Extended(t *testing.T) {
	tr := newFakeTransport()
	tr.regs[45][10] = 1234

	p, err := New(Config{
		UnitID:   "ups",
		Blocks:   ups.Blocks(),
		Extended: true,
	}, func() (Transport, error) { return tr, nil })
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	res := p.PollOnce(context.Background())
	if res.Err != nil {
		t.Fatalf("PollOnce err=%v", res.Err)
	}
	if v, ok := res.Snapshot.Get("PactiveA"); !ok || v != 123.4 {
		t.Fatalf("PactiveA: got=%v ok=%v", v, ok)
	}
	if res.Snapshot.Len() != len(ups.Keys(true)) {
		t.Fatalf("snapshot has %d fields, want %d", res.Snapshot.Len(), len(ups.Keys(true)))
	}
}

func TestPollOnce_StatusReadFails(t *testing.T) {
	tr := newFakeTransport()
	tr.failAddr[130] = errors.New("i/o timeout")

	p := newTestPoller(t, tr)
	res := p.PollOnce(context.Background())

	var rf *ReadFailure
	if !errors.As(res.Err, &rf) {
		t.Fatalf("expected ReadFailure, got %v", res.Err)
	}
	if rf.Address != 130 || rf.Count != 1 || rf.Block != ups.BlockStatus {
		t.Fatalf("failure does not name the status block: %+v", rf)
	}
	if !rf.LinkLost {
		t.Fatalf("transport error should mark link lost")
	}
	if status.ErrorCode(res.Err) != status.ErrorCodeRead {
		t.Fatalf("error code: %d", status.ErrorCode(res.Err))
	}
	if !res.Snapshot.IsEmpty() || res.Blocks != nil {
		t.Fatalf("failed cycle must not produce a snapshot")
	}
	// aborted after the failing read
	if len(tr.reads) != 2 {
		t.Fatalf("expected 2 reads, got %v", tr.reads)
	}
	if tr.closes != 1 {
		t.Fatalf("transport must be closed on failure, closes=%d", tr.closes)
	}
}

func TestPollOnce_ExceptionCode(t *testing.T) {
	tr := newFakeTransport()
	tr.failAddr[45] = &pmodbus.ExceptionError{Function: 3, Exception: 2}

	p := newTestPoller(t, tr)
	res := p.PollOnce(context.Background())

	var rf *ReadFailure
	if !errors.As(res.Err, &rf) {
		t.Fatalf("expected ReadFailure, got %v", res.Err)
	}
	if rf.LinkLost {
		t.Fatalf("device exception is not a lost link")
	}
	if got := status.ErrorCode(res.Err); got != 0x102 {
		t.Fatalf("error code: got=%#x want=0x102", got)
	}
}

func TestPollOnce_ShortBlockIsDecodeFailure(t *testing.T) {
	tr := newFakeTransport()
	tr.regs[0] = make([]uint16, 16)

	p := newTestPoller(t, tr)
	res := p.PollOnce(context.Background())

	var df *DecodeFailure
	if !errors.As(res.Err, &df) {
		t.Fatalf("expected DecodeFailure, got %v", res.Err)
	}
	if df.Address != 0 || df.Count != 17 {
		t.Fatalf("decode failure: %+v", df)
	}
	if status.ErrorCode(res.Err) != status.ErrorCodeDecode {
		t.Fatalf("error code: %d", status.ErrorCode(res.Err))
	}
}

func TestPollOnce_LinkDown(t *testing.T) {
	tr := newFakeTransport()
	tr.connectErr = errors.New("connection refused")

	p := newTestPoller(t, tr)
	res := p.PollOnce(context.Background())

	var ld *LinkDownFailure
	if !errors.As(res.Err, &ld) {
		t.Fatalf("expected LinkDownFailure, got %v", res.Err)
	}
	if ld.Endpoint != "fake:502" {
		t.Fatalf("endpoint: %s", ld.Endpoint)
	}
	if len(tr.reads) != 0 {
		t.Fatalf("no read may be attempted when the link is down: %v", tr.reads)
	}
	if status.ErrorCode(res.Err) != status.ErrorCodeLinkDown {
		t.Fatalf("error code: %d", status.ErrorCode(res.Err))
	}

	// next cycle dials again from scratch
	tr.connectErr = nil
	if res := p.PollOnce(context.Background()); res.Err != nil {
		t.Fatalf("recovery cycle err=%v", res.Err)
	}
	if tr.connects != 2 {
		t.Fatalf("expected 2 connect attempts, got %d", tr.connects)
	}
}

func TestPollOnce_FactoryError(t *testing.T) {
	p, err := New(Config{UnitID: "u", Endpoint: "x:1", Blocks: ups.Blocks()},
		func() (Transport, error) { return nil, errors.New("no endpoint") })
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	var ld *LinkDownFailure
	if res := p.PollOnce(context.Background()); !errors.As(res.Err, &ld) {
		t.Fatalf("expected LinkDownFailure, got %v", res.Err)
	}
}

func TestPollOnce_PanicStillCloses(t *testing.T) {
	tr := newFakeTransport()
	tr.panicAt[0] = true

	p := newTestPoller(t, tr)
	res := p.PollOnce(context.Background())

	var df *DecodeFailure
	if !errors.As(res.Err, &df) {
		t.Fatalf("expected DecodeFailure from recovered panic, got %v", res.Err)
	}
	if !res.Snapshot.IsEmpty() {
		t.Fatalf("panicking cycle must not produce a snapshot")
	}
	if tr.closes != 1 {
		t.Fatalf("transport must be closed after panic, closes=%d", tr.closes)
	}
}

func TestPollOnce_FactoryPanicIsContained(t *testing.T) {
	p, err := New(Config{UnitID: "u", Endpoint: "x:1", Blocks: ups.Blocks()},
		func() (Transport, error) { panic("factory boom") })
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	res := p.PollOnce(context.Background())
	var df *DecodeFailure
	if !errors.As(res.Err, &df) {
		t.Fatalf("expected DecodeFailure from recovered panic, got %v", res.Err)
	}
	if res.CloseErr != nil {
		t.Fatalf("close with no transport: %v", res.CloseErr)
	}
}

func TestPollOnce_ConnectPanicClosesAndRedials(t *testing.T) {
	first := newFakeTransport()
	first.panicConnect = true
	second := newFakeTransport()

	dials := 0
	p, err := New(Config{UnitID: "u", Endpoint: "x:1", Blocks: ups.Blocks()},
		func() (Transport, error) {
			dials++
			if dials == 1 {
				return first, nil
			}
			return second, nil
		})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	if res := p.PollOnce(context.Background()); res.OK() {
		t.Fatalf("panicking connect must fail the cycle")
	}
	if first.closes != 1 {
		t.Fatalf("half-built transport must be closed, closes=%d", first.closes)
	}

	if res := p.PollOnce(context.Background()); !res.OK() {
		t.Fatalf("second cycle: %v", res.Err)
	}
	if dials != 2 {
		t.Fatalf("expected a fresh dial, dials=%d", dials)
	}
}

func TestPollOnce_Cancelled(t *testing.T) {
	tr := newFakeTransport()
	p := newTestPoller(t, tr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := p.PollOnce(ctx)
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", res.Err)
	}
	if len(tr.reads) != 0 {
		t.Fatalf("cancelled cycle must not read: %v", tr.reads)
	}
	if tr.closes != 1 {
		t.Fatalf("transport must be closed, closes=%d", tr.closes)
	}
}

func TestAssemble_Idempotent(t *testing.T) {
	tr := newFakeTransport()
	tr.regs[0][0] = 2305
	tr.regs[130][0] = 0xFF80

	p := newTestPoller(t, tr)
	res := p.PollOnce(context.Background())
	if res.Err != nil {
		t.Fatalf("PollOnce err=%v", res.Err)
	}

	at := time.Unix(10, 0)
	a, err := Assemble(ups.Blocks(), res.Blocks, at, false)
	if err != nil {
		t.Fatalf("Assemble err=%v", err)
	}
	b, err := Assemble(ups.Blocks(), res.Blocks, at, false)
	if err != nil {
		t.Fatalf("Assemble err=%v", err)
	}
	if !a.Equal(b) || !a.Equal(res.Snapshot) {
		t.Fatalf("assembly is not idempotent")
	}
	if v, _ := a.Get(ups.KeyBatteryState); v != 7 {
		t.Fatalf("BatteryState from 0xFF80: got=%v", v)
	}
}

func TestAssemble_WrongBlockCount(t *testing.T) {
	if _, err := Assemble(ups.Blocks(), nil, time.Now(), false); err == nil {
		t.Fatalf("expected error for missing blocks")
	}
}
