package recording

import (
	"github.com/sarchlab/ringdist/sim"
	"github.com/sarchlab/ringdist/topology"
	"github.com/sarchlab/ringdist/workload"
)

// Table names used by the recording hooks.
const (
	EdgeTable = "edge_metrics"
	OpTable   = "workload_ops"
)

// EdgeRecord is a row of the edge metrics table.
type EdgeRecord struct {
	Source       int64
	Target       int64
	Distance     int64
	Edit         int
	ZeroDistance bool
}

// OpRecord is a row of the workload operation table.
type OpRecord struct {
	Time   float64
	Node   int64
	Op     string
	Arg    int64
	HasArg bool
}

// EdgeHook records every annotated edge.
type EdgeHook struct {
	recorder DataRecorder
}

// NewEdgeHook creates the edge table and returns a hook that fills it.
func NewEdgeHook(recorder DataRecorder) *EdgeHook {
	recorder.CreateTable(EdgeTable, EdgeRecord{})

	return &EdgeHook{recorder: recorder}
}

// Func implements sim.Hook.
func (h *EdgeHook) Func(ctx sim.HookCtx) {
	if ctx.Pos != topology.HookPosEdgeAnnotated {
		return
	}

	ann, ok := ctx.Item.(topology.Annotation)
	if !ok {
		return
	}

	h.recorder.InsertData(EdgeTable, EdgeRecord{
		Source:       ann.Source,
		Target:       ann.Target,
		Distance:     ann.Distance,
		Edit:         ann.Edit,
		ZeroDistance: ann.ZeroDistance,
	})
}

// OpHook records every generated workload operation.
type OpHook struct {
	recorder DataRecorder
}

// NewOpHook creates the operation table and returns a hook that fills it.
func NewOpHook(recorder DataRecorder) *OpHook {
	recorder.CreateTable(OpTable, OpRecord{})

	return &OpHook{recorder: recorder}
}

// Func implements sim.Hook.
func (h *OpHook) Func(ctx sim.HookCtx) {
	if ctx.Pos != workload.HookPosOpEmitted {
		return
	}

	op, ok := ctx.Item.(workload.Op)
	if !ok {
		return
	}

	h.recorder.InsertData(OpTable, OpRecord{
		Time:   float64(op.Time),
		Node:   op.Node,
		Op:     op.Kind,
		Arg:    op.Arg,
		HasArg: op.HasArg,
	})
}
