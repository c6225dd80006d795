package topology_test

import (
	"bytes"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ringdist/ring"
	"github.com/sarchlab/ringdist/sim"
	"github.com/sarchlab/ringdist/topology"
)

var _ = Describe("ReadRouteTables", func() {
	It("should read nodes and peers", func() {
		src := `# two nodes
2:[3],[5,6],[]
5:[],[2]

`
		g, err := topology.ReadRouteTables(strings.NewReader(src), 16)

		Expect(err).NotTo(HaveOccurred())
		Expect(g.Nodes()).To(HaveLen(4))
		Expect(g.Edges()).To(HaveLen(4))
		Expect(g.OutEdges(2)).To(HaveLen(3))
		Expect(g.OutEdges(5)).To(HaveLen(1))

		v, ok := g.GetProperty("addr_space")
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal("16"))

		n, ok := g.Node(6)
		Expect(ok).To(BeTrue())
		Expect(topology.IntProperty(n, "id")).To(Equal(int64(6)))
	})

	It("should name the malformed line", func() {
		src := "2:[3]\nnonsense\n"

		_, err := topology.ReadRouteTables(strings.NewReader(src), 16)

		Expect(err).To(MatchError(ContainSubstring("line 2")))
	})

	It("should reject malformed peers", func() {
		src := "2:[3,x]\n"

		_, err := topology.ReadRouteTables(strings.NewReader(src), 16)

		Expect(err).To(MatchError(ContainSubstring("peer of node 2")))
	})
})

var _ = Describe("Annotator", func() {
	var (
		g      *topology.MemGraph
		events []sim.HookCtx
	)

	BeforeEach(func() {
		g = topology.NewMemGraph(16)
		g.AddEdge(2, 5)
		g.AddEdge(1, 15)
		g.AddEdge(0, 8)
		events = nil
	})

	recordHook := sim.HookFunc(func(ctx sim.HookCtx) {
		events = append(events, ctx)
	})

	It("should write dist and edit on every edge", func() {
		a := topology.MakeAnnotatorBuilder().Build()
		a.AcceptHook(recordHook)

		summary, err := a.Annotate(g)

		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Edges).To(Equal(3))
		Expect(summary.MinEdit).To(Equal(1))
		Expect(summary.MaxEdit).To(Equal(3))
		Expect(summary.EditHistogram).To(Equal(map[int]int{2: 1, 3: 1, 1: 1}))

		e := g.Edges()[0]
		Expect(topology.IntProperty(e, "dist")).To(Equal(int64(3)))
		Expect(topology.IntProperty(e, "edit")).To(Equal(int64(2)))

		Expect(events).To(HaveLen(3))
		Expect(events[1].Pos).To(BeIdenticalTo(topology.HookPosEdgeAnnotated))
		Expect(events[1].Item).To(Equal(topology.Annotation{
			Source:   1,
			Target:   15,
			Distance: 2,
			Edit:     3,
		}))
	})

	It("should stop at a self edge by default", func() {
		g.AddEdge(4, 4)
		a := topology.MakeAnnotatorBuilder().Build()
		a.AcceptHook(recordHook)

		summary, err := a.Annotate(g)

		Expect(summary.Edges).To(Equal(3))
		Expect(err).To(MatchError(ring.ErrDomain))

		var edgeErr *topology.EdgeError
		Expect(errors.As(err, &edgeErr)).To(BeTrue())
		Expect(edgeErr.Source).To(Equal(int64(4)))

		last := events[len(events)-1]
		Expect(last.Pos).To(BeIdenticalTo(topology.HookPosEdgeFailed))
	})

	It("should count self edges under the max edit policy", func() {
		g.AddEdge(4, 4)
		a := topology.MakeAnnotatorBuilder().
			WithZeroDistancePolicy(ring.ZeroDistanceMaxEdit).
			Build()

		summary, err := a.Annotate(g)

		Expect(err).NotTo(HaveOccurred())
		Expect(summary.ZeroDistance).To(Equal(1))
		Expect(summary.MaxEdit).To(Equal(4))
	})

	It("should panic with an unknown policy", func() {
		Expect(func() {
			topology.MakeAnnotatorBuilder().
				WithZeroDistancePolicy(ring.ZeroDistancePolicy(7)).
				Build()
		}).To(Panic())
	})

	It("should fail on a malformed address space", func() {
		g.SetProperty("addr_space", "big")
		a := topology.MakeAnnotatorBuilder().Build()

		_, err := a.Annotate(g)

		var malformed *topology.MalformedPropertyError
		Expect(errors.As(err, &malformed)).To(BeTrue())
	})

	It("should write annotated graphs as DOT", func() {
		_, err := topology.MakeAnnotatorBuilder().Build().Annotate(g)
		Expect(err).NotTo(HaveOccurred())

		buf := new(bytes.Buffer)
		Expect(topology.WriteDOT(buf, g)).To(Succeed())

		out := buf.String()
		Expect(out).To(HavePrefix("digraph G {\n"))
		Expect(out).To(ContainSubstring(`addr_space="16";`))
		Expect(out).To(ContainSubstring(`2 -> 5 [dist="3", edit="2"];`))
		Expect(out).To(HaveSuffix("}\n"))
	})
})
