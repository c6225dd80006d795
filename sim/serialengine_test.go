package sim

import (
	"context"
	"errors"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("EventQueueImpl", func() {
	var (
		mockCtrl *gomock.Controller
		queue    *EventQueueImpl
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		queue = NewEventQueue()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should pop in order", func() {
		numEvents := 100
		for i := 0; i < numEvents; i++ {
			event := NewMockEvent(mockCtrl)
			event.EXPECT().
				Time().
				Return(VTimeInSec(rand.Float64() / 1e8)).
				AnyTimes()
			queue.Push(event)
		}

		now := VTimeInSec(-1)
		for i := 0; i < numEvents; i++ {
			event := queue.Pop()
			Expect(event.Time() >= now).To(BeTrue())
			now = event.Time()
		}
		Expect(queue.Len()).To(BeZero())
	})

	It("should keep push order among same-time events", func() {
		events := make([]*MockEvent, 10)
		for i := range events {
			events[i] = NewMockEvent(mockCtrl)
			events[i].EXPECT().Time().Return(VTimeInSec(1)).AnyTimes()
			queue.Push(events[i])
		}

		Expect(queue.Peek()).To(BeIdenticalTo(events[0]))
		for i := range events {
			Expect(queue.Pop()).To(BeIdenticalTo(events[i]))
		}
	})
})

var _ = Describe("SerialEngine", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *SerialEngine
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewSerialEngine()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should schedule events", func() {
		handler1 := NewMockHandler(mockCtrl)
		handler2 := NewMockHandler(mockCtrl)
		evt1 := NewMockEvent(mockCtrl)
		evt2 := NewMockEvent(mockCtrl)
		evt3 := NewMockEvent(mockCtrl)
		evt4 := NewMockEvent(mockCtrl)

		evt1.EXPECT().Time().Return(VTimeInSec(4.0)).AnyTimes()
		evt1.EXPECT().Handler().Return(handler1).AnyTimes()
		evt2.EXPECT().Time().Return(VTimeInSec(2.0)).AnyTimes()
		evt2.EXPECT().Handler().Return(handler2).AnyTimes()
		evt3.EXPECT().Time().Return(VTimeInSec(3.0)).AnyTimes()
		evt3.EXPECT().Handler().Return(handler1).AnyTimes()
		evt4.EXPECT().Time().Return(VTimeInSec(5.0)).AnyTimes()
		evt4.EXPECT().Handler().Return(handler1).AnyTimes()
		handleEvt2 := handler2.EXPECT().Handle(evt2).Do(func(e Event) {
			engine.Schedule(evt3)
			engine.Schedule(evt4)
		})
		handleEvt3 := handler1.EXPECT().
			Handle(evt3).After(handleEvt2)
		handleEvt1 := handler1.EXPECT().
			Handle(evt1).After(handleEvt3)
		handler1.EXPECT().
			Handle(evt4).After(handleEvt1)

		engine.Schedule(evt1)
		engine.Schedule(evt2)

		Expect(engine.Run(context.Background())).To(Succeed())
		Expect(engine.CurrentTime()).To(Equal(VTimeInSec(5.0)))
	})

	It("should invoke hooks around every event", func() {
		handler := NewMockHandler(mockCtrl)
		evt := NewMockEvent(mockCtrl)
		hook := NewMockHook(mockCtrl)
		evt.EXPECT().Time().Return(VTimeInSec(1.5)).AnyTimes()
		evt.EXPECT().Handler().Return(handler).AnyTimes()
		engine.AcceptHook(hook)

		before := hook.EXPECT().Func(gomock.Any()).Do(func(ctx HookCtx) {
			Expect(ctx.Pos).To(BeIdenticalTo(HookPosBeforeEvent))
			Expect(ctx.Item).To(BeIdenticalTo(evt))
			Expect(ctx.Now).To(Equal(VTimeInSec(1.5)))
		})
		handle := handler.EXPECT().Handle(evt).After(before)
		hook.EXPECT().Func(gomock.Any()).Do(func(ctx HookCtx) {
			Expect(ctx.Pos).To(BeIdenticalTo(HookPosAfterEvent))
		}).After(handle)

		engine.Schedule(evt)
		Expect(engine.Run(context.Background())).To(Succeed())
	})

	It("should stop at the end time", func() {
		handler := NewMockHandler(mockCtrl)
		early := NewMockEvent(mockCtrl)
		late := NewMockEvent(mockCtrl)
		early.EXPECT().Time().Return(VTimeInSec(1)).AnyTimes()
		early.EXPECT().Handler().Return(handler).AnyTimes()
		late.EXPECT().Time().Return(VTimeInSec(10)).AnyTimes()
		handler.EXPECT().Handle(early)

		engine.Schedule(early)
		engine.Schedule(late)

		Expect(engine.RunUntil(context.Background(), 5)).To(Succeed())
		Expect(engine.Pending()).To(Equal(1))
	})

	It("should stop when the context is cancelled", func() {
		evt := NewMockEvent(mockCtrl)
		evt.EXPECT().Time().Return(VTimeInSec(1)).AnyTimes()
		engine.Schedule(evt)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Expect(engine.Run(ctx)).To(MatchError(context.Canceled))
		Expect(engine.Pending()).To(Equal(1))
	})

	It("should return handler errors", func() {
		handlerErr := errors.New("handler failed")
		handler := NewMockHandler(mockCtrl)
		evt := NewMockEvent(mockCtrl)
		evt.EXPECT().Time().Return(VTimeInSec(1)).AnyTimes()
		evt.EXPECT().Handler().Return(handler).AnyTimes()
		handler.EXPECT().Handle(evt).Return(handlerErr)

		engine.Schedule(evt)

		Expect(engine.Run(context.Background())).To(MatchError(handlerErr))
	})

	It("should panic when scheduling in the past", func() {
		handler := NewMockHandler(mockCtrl)
		evt := NewMockEvent(mockCtrl)
		past := NewMockEvent(mockCtrl)
		evt.EXPECT().Time().Return(VTimeInSec(2)).AnyTimes()
		evt.EXPECT().Handler().Return(handler).AnyTimes()
		past.EXPECT().Time().Return(VTimeInSec(1)).AnyTimes()
		handler.EXPECT().Handle(evt)

		engine.Schedule(evt)
		Expect(engine.Run(context.Background())).To(Succeed())

		Expect(func() { engine.Schedule(past) }).To(Panic())
	})

	It("should run plain function handlers", func() {
		count := 0
		h := HandlerFunc(func(e Event) error {
			count++
			if e.Time() < 3 {
				engine.Schedule(NewEventBase(e.Time()+1, e.Handler()))
			}
			return nil
		})

		engine.Schedule(NewEventBase(0, h))
		Expect(engine.Run(context.Background())).To(Succeed())
		Expect(count).To(Equal(4))
	})
})
