package sim

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

var _ = Describe("EventLogger", func() {
	It("should log each event once", func() {
		logger, hook := test.NewNullLogger()
		logger.SetLevel(log.TraceLevel)

		engine := NewSerialEngine()
		engine.AcceptHook(NewEventLogger(logger))

		handler := HandlerFunc(func(Event) error { return nil })
		engine.Schedule(NewEventBase(1, handler))
		engine.Schedule(NewEventBase(3, handler))

		Expect(engine.Run(context.Background())).To(Succeed())

		Expect(hook.AllEntries()).To(HaveLen(2))
		entry := hook.LastEntry()
		Expect(entry.Level).To(Equal(log.TraceLevel))
		Expect(entry.Data).To(HaveKeyWithValue("time", 3.0))
		Expect(entry.Data).To(HaveKeyWithValue("event", "*sim.EventBase"))
	})
})
