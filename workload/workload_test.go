package workload_test

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/klauspost/compress/gzip"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ringdist/sim"
	"github.com/sarchlab/ringdist/workload"
)

func generate(s workload.Settings) (*bytes.Buffer, []workload.Op, error) {
	buf := new(bytes.Buffer)

	g, err := workload.NewGenerator(s, buf)
	if err != nil {
		return nil, nil, err
	}

	var ops []workload.Op
	g.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
		if ctx.Pos == workload.HookPosOpEmitted {
			ops = append(ops, ctx.Item.(workload.Op))
		}
	}))

	err = g.Run(context.Background())

	return buf, ops, err
}

var _ = Describe("Settings", func() {
	valid := workload.Settings{AddrSpace: 100, MeanJoin: 1}

	It("should accept minimal settings", func() {
		Expect(valid.Validate()).To(Succeed())
	})

	DescribeTable("invalid settings",
		func(modify func(s *workload.Settings)) {
			s := valid
			modify(&s)
			Expect(s.Validate()).NotTo(Succeed())
		},
		Entry("no address space", func(s *workload.Settings) { s.AddrSpace = 0 }),
		Entry("no join time", func(s *workload.Settings) { s.MeanJoin = 0 }),
		Entry("join first without nodes", func(s *workload.Settings) { s.JoinFirst = true }),
		Entry("negative search time", func(s *workload.Settings) { s.MeanSearch = -1 }),
	)
})

var _ = Describe("Generator", func() {
	It("should join the requested number of distinct nodes", func() {
		buf, _, err := generate(workload.Settings{
			AddrSpace: 100,
			NumNodes:  5,
			MeanJoin:  2,
			Seed:      1,
		})
		Expect(err).NotTo(HaveOccurred())

		w, err := workload.Parse(buf)
		Expect(err).NotTo(HaveOccurred())

		ids := w.JoinedNodes()
		Expect(ids).To(HaveLen(5))

		seen := map[int64]bool{}
		for _, op := range w.Ops {
			Expect(op.Kind).To(Equal(workload.OpInit))
			Expect(op.Arg).To(Equal(op.Node))
			Expect(op.Node).To(BeNumerically(">=", 0))
			Expect(op.Node).To(BeNumerically("<", 100))
			seen[op.Node] = true
		}
		Expect(seen).To(HaveLen(5))

		Expect(w.AddrSpace()).To(Equal(int64(100)))
		Expect(w.Settings).To(HaveKeyWithValue("num_nodes", "5"))
	})

	It("should be deterministic for a seed", func() {
		s := workload.Settings{
			AddrSpace:  1000,
			NumNodes:   8,
			MeanJoin:   3,
			MeanSearch: 4,
			Length:     60,
			Seed:       42,
		}

		first, _, err := generate(s)
		Expect(err).NotTo(HaveOccurred())
		second, _, err := generate(s)
		Expect(err).NotTo(HaveOccurred())

		Expect(first.String()).To(Equal(second.String()))
	})

	It("should fail when the address space is full", func() {
		_, _, err := generate(workload.Settings{
			AddrSpace: 3,
			NumNodes:  4,
			MeanJoin:  1,
		})

		Expect(errors.Is(err, workload.ErrAddressSpaceFull)).To(BeTrue())
	})

	It("should fill a small address space exactly", func() {
		buf, _, err := generate(workload.Settings{
			AddrSpace: 3,
			NumNodes:  3,
			MeanJoin:  1,
		})
		Expect(err).NotTo(HaveOccurred())

		w, err := workload.Parse(buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(w.JoinedNodes()).To(ConsistOf(int64(0), int64(1), int64(2)))
	})

	It("should write the same ops it reports through hooks", func() {
		buf, ops, err := generate(workload.Settings{
			AddrSpace:   1000,
			NumNodes:    10,
			MeanJoin:    1,
			MeanSearch:  3,
			MeanFailure: 20,
			MeanRejoin:  5,
			MeanLeave:   50,
			Length:      100,
			Seed:        7,
		})
		Expect(err).NotTo(HaveOccurred())

		w, err := workload.Parse(buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Ops).To(Equal(ops))

		joined := map[int64]bool{}
		gone := map[int64]bool{}
		last := sim.VTimeInSec(0)
		for _, op := range w.Ops {
			Expect(op.Time).To(BeNumerically(">=", last))
			Expect(op.Time).To(BeNumerically("<=", 100))
			last = op.Time

			if op.Kind == workload.OpInit {
				joined[op.Node] = true
				continue
			}

			Expect(joined).To(HaveKey(op.Node))
			Expect(gone).NotTo(HaveKey(op.Node))

			if op.Kind == workload.OpLeave {
				gone[op.Node] = true
			}
		}

		Expect(w.CountByKind()[workload.OpSearch]).To(BeNumerically(">", 0))
	})

	It("should start nodes after all joins with join first", func() {
		buf, _, err := generate(workload.Settings{
			AddrSpace:  500,
			NumNodes:   4,
			JoinFirst:  true,
			MeanJoin:   2,
			MeanSearch: 1,
			Length:     40,
			Seed:       3,
		})
		Expect(err).NotTo(HaveOccurred())

		w, err := workload.Parse(buf)
		Expect(err).NotTo(HaveOccurred())

		for i, op := range w.Ops {
			if i < 4 {
				Expect(op.Kind).To(Equal(workload.OpInit))
			} else {
				Expect(op.Kind).To(Equal(workload.OpSearch))
			}
		}
	})

	It("should stop when the context is cancelled", func() {
		g, err := workload.NewGenerator(workload.Settings{
			AddrSpace: 100,
			MeanJoin:  1,
		}, new(bytes.Buffer))
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		g.AcceptHook(sim.HookFunc(func(hc sim.HookCtx) {
			if g.ActiveNodes() >= 10 {
				cancel()
			}
		}))

		Expect(g.Run(ctx)).To(MatchError(context.Canceled))
		Expect(g.OpCounts()[workload.OpInit]).To(Equal(10))
	})
})

var _ = Describe("Parse", func() {
	const trace = `# Settings:
# addr_space: 16
time 0
3 init 3
time 2.5
3 search 9
7 init 7
3 failure
`

	It("should read settings, times and ops", func() {
		w, err := workload.Parse(strings.NewReader(trace))

		Expect(err).NotTo(HaveOccurred())
		Expect(w.AddrSpace()).To(Equal(int64(16)))
		Expect(w.Ops).To(Equal([]workload.Op{
			{Time: 0, Node: 3, Kind: "init", Arg: 3, HasArg: true},
			{Time: 2.5, Node: 3, Kind: "search", Arg: 9, HasArg: true},
			{Time: 2.5, Node: 7, Kind: "init", Arg: 7, HasArg: true},
			{Time: 2.5, Node: 3, Kind: "failure"},
		}))
		Expect(w.JoinedNodes()).To(Equal([]int64{3, 7}))
	})

	It("should read gzip compressed traces", func() {
		buf := new(bytes.Buffer)
		zw := gzip.NewWriter(buf)
		_, err := zw.Write([]byte(trace))
		Expect(err).NotTo(HaveOccurred())
		Expect(zw.Close()).To(Succeed())

		w, err := workload.Parse(buf)

		Expect(err).NotTo(HaveOccurred())
		Expect(w.Ops).To(HaveLen(4))
	})

	It("should name malformed lines", func() {
		_, err := workload.Parse(strings.NewReader("time 1\n3 search x\n"))

		Expect(err).To(MatchError(ContainSubstring("line 2")))
	})

	It("should read headers with spaced keys", func() {
		w, err := workload.Parse(strings.NewReader(
			"# Settings:\n# Addr space: 16\ntime 0\n3 init 3\n"))

		Expect(err).NotTo(HaveOccurred())
		Expect(w.AddrSpace()).To(Equal(int64(16)))
		Expect(w.Settings).To(HaveKeyWithValue("settings", ""))
	})

	It("should report a missing address space", func() {
		w, err := workload.Parse(strings.NewReader("3 init 3\n"))
		Expect(err).NotTo(HaveOccurred())

		_, err = w.AddrSpace()
		Expect(err).To(HaveOccurred())
	})
})
