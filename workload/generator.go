package workload

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strconv"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sarchlab/ringdist/sim"
)

// ErrAddressSpaceFull is returned when a join finds every address taken.
var ErrAddressSpaceFull = errors.New("workload: address space full")

// HookPosOpEmitted triggers for every operation written. The hook item is an
// Op.
var HookPosOpEmitted = &sim.HookPos{Name: "OpEmitted"}

// Operation kinds.
const (
	OpInit    = "init"
	OpSearch  = "search"
	OpFailure = "failure"
	OpLeave   = "leave"
	OpRecover = "recover"
)

// An Op is one operation of a workload.
type Op struct {
	Time   sim.VTimeInSec
	Node   int64
	Kind   string
	Arg    int64
	HasArg bool
}

func (op Op) String() string {
	if op.HasArg {
		return fmt.Sprintf("%d %s %d", op.Node, op.Kind, op.Arg)
	}

	return fmt.Sprintf("%d %s", op.Node, op.Kind)
}

type eventKind int

const (
	evtJoin eventKind = iota
	evtSearch
	evtFailure
	evtLeave
	evtRecover
)

type workloadEvent struct {
	*sim.EventBase
	kind eventKind
}

// A Generator writes a workload by running a discrete event simulation of
// node churn.
type Generator struct {
	sim.HookableBase

	settings Settings
	engine   *sim.SerialEngine
	out      *bufio.Writer
	lastTime sim.VTimeInSec
	rng      *rand.Rand

	joinDelay  distuv.Poisson
	active     map[int64]bool
	joined     []*node
	joinsLeft  int
	opsByKind  map[string]int
	emitErr    error
	headerDone bool
}

// NewGenerator creates a Generator that writes to w.
func NewGenerator(s Settings, w io.Writer) (*Generator, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	g := &Generator{
		settings:  s,
		engine:    sim.NewSerialEngine(),
		out:       bufio.NewWriter(w),
		lastTime:  -1,
		rng:       rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15)),
		active:    make(map[int64]bool),
		joinsLeft: s.NumNodes,
		opsByKind: make(map[string]int),
	}
	g.joinDelay = g.poisson(s.MeanJoin)

	if s.NumNodes == 0 {
		g.joinsLeft = -1
	}

	return g, nil
}

// Engine returns the engine driving the generator.
func (g *Generator) Engine() *sim.SerialEngine {
	return g.engine
}

// Settings returns the settings of the generator.
func (g *Generator) Settings() Settings {
	return g.settings
}

// OpCounts returns how many operations of each kind were written.
func (g *Generator) OpCounts() map[string]int {
	counts := make(map[string]int, len(g.opsByKind))
	for k, v := range g.opsByKind {
		counts[k] = v
	}

	return counts
}

// ActiveNodes returns the number of joined nodes that have not left.
func (g *Generator) ActiveNodes() int {
	return len(g.active)
}

// Run writes the header and generates operations until the configured
// length, the end of all events, or the cancellation of ctx.
func (g *Generator) Run(ctx context.Context) error {
	if !g.headerDone {
		if err := g.settings.writeHeader(g.out); err != nil {
			return err
		}

		g.headerDone = true
		g.schedule(g, evtJoin, g.sample(g.joinDelay))
	}

	end := sim.VTimeInSec(math.Inf(1))
	if g.settings.Length > 0 {
		end = sim.VTimeInSec(g.settings.Length)
	} else {
		packageLogger.Warn("generating an unbounded workload")
	}

	runErr := g.engine.RunUntil(ctx, end)

	if err := g.out.Flush(); err != nil && runErr == nil {
		runErr = err
	}

	if runErr == nil {
		runErr = g.emitErr
	}

	packageLogger.
		WithField("now", g.engine.CurrentTime()).
		WithField("ops", g.opsByKind).
		Info("workload generated")

	return runErr
}

// Handle processes the join events of the node factory.
func (g *Generator) Handle(e sim.Event) error {
	if len(g.active) >= int(g.settings.AddrSpace) {
		return ErrAddressSpaceFull
	}

	id := g.rng.Int64N(g.settings.AddrSpace)
	for g.active[id] {
		id = g.rng.Int64N(g.settings.AddrSpace)
	}

	g.active[id] = true
	g.emit(Op{Node: id, Kind: OpInit, Arg: id, HasArg: true})

	n := &node{id: id, gen: g}
	g.joined = append(g.joined, n)

	if !g.settings.JoinFirst {
		n.start()
	}

	if g.joinsLeft > 0 {
		g.joinsLeft--
	}

	switch {
	case g.joinsLeft != 0:
		g.schedule(g, evtJoin, g.sample(g.joinDelay))
	case g.settings.JoinFirst:
		for _, n := range g.joined {
			n.start()
		}
	}

	return nil
}

func (g *Generator) poisson(mean float64) distuv.Poisson {
	return distuv.Poisson{Lambda: mean, Src: g.rng}
}

func (g *Generator) sample(p distuv.Poisson) sim.VTimeInSec {
	return sim.VTimeInSec(math.Round(p.Rand()))
}

func (g *Generator) schedule(
	h sim.Handler,
	kind eventKind,
	delay sim.VTimeInSec,
) {
	evt := &workloadEvent{
		EventBase: sim.NewEventBase(g.engine.CurrentTime()+delay, h),
		kind:      kind,
	}
	g.engine.Schedule(evt)
}

func (g *Generator) emit(op Op) {
	now := g.engine.CurrentTime()
	op.Time = now

	if now > g.lastTime {
		g.lastTime = now
		g.write("time " + strconv.FormatFloat(float64(now), 'f', -1, 64))
	}

	g.write(op.String())
	g.opsByKind[op.Kind]++

	g.InvokeHook(sim.HookCtx{
		Domain: g,
		Now:    now,
		Pos:    HookPosOpEmitted,
		Item:   op,
	})
}

func (g *Generator) write(line string) {
	if g.emitErr != nil {
		return
	}

	if _, err := g.out.WriteString(line + "\n"); err != nil {
		g.emitErr = err
	}
}

type node struct {
	id   int64
	gen  *Generator
	left bool
	gone bool
}

func (n *node) start() {
	s := n.gen.settings

	if s.MeanFailure != 0 {
		n.after(evtFailure, s.MeanFailure)
	}

	if s.MeanLeave != 0 {
		n.after(evtLeave, s.MeanLeave)
	}

	if s.MeanSearch != 0 {
		n.after(evtSearch, s.MeanSearch)
	}
}

func (n *node) after(kind eventKind, mean float64) {
	n.gen.schedule(n, kind, n.gen.sample(n.gen.poisson(mean)))
}

func (n *node) Handle(e sim.Event) error {
	evt, ok := e.(*workloadEvent)
	if !ok {
		return fmt.Errorf("node %d cannot handle %T", n.id, e)
	}

	switch evt.kind {
	case evtSearch:
		n.search()
	case evtFailure:
		n.fail()
	case evtLeave:
		n.leave()
	case evtRecover:
		n.recover()
	default:
		return fmt.Errorf("node %d cannot handle event kind %d", n.id, evt.kind)
	}

	return nil
}

func (n *node) search() {
	if n.gone {
		return
	}

	if !n.left {
		n.gen.emit(Op{
			Node:   n.id,
			Kind:   OpSearch,
			Arg:    n.gen.rng.Int64N(n.gen.settings.AddrSpace),
			HasArg: true,
		})
	}

	n.after(evtSearch, n.gen.settings.MeanSearch)
}

func (n *node) fail() {
	if n.left {
		return
	}

	n.gen.emit(Op{Node: n.id, Kind: OpFailure})
	n.left = true

	if n.gen.settings.MeanRejoin != 0 {
		n.after(evtRecover, n.gen.settings.MeanRejoin)
	}
}

func (n *node) leave() {
	if n.gone {
		return
	}

	n.gen.emit(Op{Node: n.id, Kind: OpLeave})
	n.left = true
	n.gone = true
	delete(n.gen.active, n.id)
}

func (n *node) recover() {
	if n.gone {
		return
	}

	n.gen.emit(Op{Node: n.id, Kind: OpRecover})
	n.left = false

	if n.gen.settings.MeanFailure != 0 {
		n.after(evtFailure, n.gen.settings.MeanFailure)
	}
}
