package topology

import (
	"fmt"
	"strconv"

	"github.com/sarchlab/ringdist/ring"
	"github.com/sarchlab/ringdist/sim"
)

// HookPosEdgeAnnotated triggers after an edge receives its metrics. The hook
// item is an Annotation.
var HookPosEdgeAnnotated = &sim.HookPos{Name: "EdgeAnnotated"}

// HookPosEdgeFailed triggers when an edge cannot be annotated. The hook item
// is an *EdgeError.
var HookPosEdgeFailed = &sim.HookPos{Name: "EdgeFailed"}

// An Annotation holds the metrics computed for one edge.
type Annotation struct {
	Source       int64
	Target       int64
	Distance     int64
	Edit         int
	ZeroDistance bool
}

// EdgeError reports which edge failed to be annotated.
type EdgeError struct {
	Source int64
	Target int64
	Err    error
}

func (e *EdgeError) Error() string {
	return fmt.Sprintf("edge %d -> %d: %v", e.Source, e.Target, e.Err)
}

func (e *EdgeError) Unwrap() error {
	return e.Err
}

// AnnotationSummary aggregates the metrics of an annotated graph.
type AnnotationSummary struct {
	Edges         int
	ZeroDistance  int
	MinEdit       int
	MaxEdit       int
	EditHistogram map[int]int
}

// An Annotator writes dist and edit properties onto the edges of a graph.
type Annotator struct {
	sim.HookableBase

	zeroPolicy ring.ZeroDistancePolicy
}

// AnnotatorBuilder builds Annotators.
type AnnotatorBuilder struct {
	zeroPolicy ring.ZeroDistancePolicy
}

// MakeAnnotatorBuilder creates an AnnotatorBuilder. Identical endpoints are
// an error by default.
func MakeAnnotatorBuilder() AnnotatorBuilder {
	return AnnotatorBuilder{
		zeroPolicy: ring.ZeroDistanceError,
	}
}

// WithZeroDistancePolicy sets how edges between identical ids are handled.
func (b AnnotatorBuilder) WithZeroDistancePolicy(
	p ring.ZeroDistancePolicy,
) AnnotatorBuilder {
	b.zeroPolicy = p
	return b
}

func (b AnnotatorBuilder) parametersMustBeValid() {
	if !b.zeroPolicy.IsValid() {
		panic("unknown zero distance policy")
	}
}

// Build creates the Annotator.
func (b AnnotatorBuilder) Build() *Annotator {
	b.parametersMustBeValid()

	return &Annotator{
		zeroPolicy: b.zeroPolicy,
	}
}

// Annotate computes the metrics of every edge. It stops at the first edge
// that fails and returns an *EdgeError wrapping the cause.
func (a *Annotator) Annotate(g *MemGraph) (AnnotationSummary, error) {
	summary := AnnotationSummary{
		EditHistogram: make(map[int]int),
	}

	for _, e := range g.Edges() {
		ann, err := a.annotateEdge(g, e)
		if err != nil {
			edgeErr := &EdgeError{
				Source: e.SourceID(),
				Target: e.TargetID(),
				Err:    err,
			}
			a.InvokeHook(sim.HookCtx{
				Domain: a,
				Pos:    HookPosEdgeFailed,
				Item:   edgeErr,
			})

			return summary, edgeErr
		}

		summary.add(ann)

		a.InvokeHook(sim.HookCtx{
			Domain: a,
			Pos:    HookPosEdgeAnnotated,
			Item:   ann,
		})
	}

	packageLogger.
		WithField("edges", summary.Edges).
		WithField("zero_distance", summary.ZeroDistance).
		Info("graph annotated")

	return summary, nil
}

func (a *Annotator) annotateEdge(g *MemGraph, e *MemEdge) (Annotation, error) {
	dist, err := DistFunction(GraphAddressSpace(g), EdgeEndpoints(e))
	if err != nil {
		return Annotation{}, err
	}

	edit, err := EditFunction(
		GraphAddressSpace(g), EdgeEndpoints(e), a.zeroPolicy)
	if err != nil {
		return Annotation{}, err
	}

	e.SetProperty(PropDist, strconv.FormatInt(dist, 10))
	e.SetProperty(PropEdit, strconv.Itoa(edit))

	return Annotation{
		Source:       e.SourceID(),
		Target:       e.TargetID(),
		Distance:     dist,
		Edit:         edit,
		ZeroDistance: dist == 0,
	}, nil
}

func (s *AnnotationSummary) add(ann Annotation) {
	if s.Edges == 0 || ann.Edit < s.MinEdit {
		s.MinEdit = ann.Edit
	}

	if s.Edges == 0 || ann.Edit > s.MaxEdit {
		s.MaxEdit = ann.Edit
	}

	s.Edges++
	s.EditHistogram[ann.Edit]++

	if ann.ZeroDistance {
		s.ZeroDistance++
	}
}
