package frontend_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/boomsim/timing/frontend"
)

var _ = Describe("Predictor", func() {
	var bp *frontend.Predictor

	BeforeEach(func() {
		bp = frontend.NewPredictor(frontend.DefaultPredictorConfig())
	})

	It("should start weakly taken with an empty BTB", func() {
		pred := bp.Predict(0x1000)
		Expect(pred.Taken).To(BeTrue())
		Expect(pred.TargetKnown).To(BeFalse())
		Expect(bp.Stats().BTBMisses).To(Equal(uint64(1)))
	})

	It("should learn a not-taken branch after one update", func() {
		bp.Update(0x1000, false, 0)
		Expect(bp.Predict(0x1000).Taken).To(BeFalse())
		Expect(bp.Stats().Mispredictions).To(Equal(uint64(1)))
	})

	It("should saturate", func() {
		for i := 0; i < 5; i++ {
			bp.Update(0x1000, true, 0x2000)
		}
		bp.Update(0x1000, false, 0)
		Expect(bp.Predict(0x1000).Taken).To(BeTrue())
	})

	It("should remember taken targets", func() {
		bp.Update(0x1000, true, 0x2000)
		pred := bp.Predict(0x1000)
		Expect(pred.TargetKnown).To(BeTrue())
		Expect(pred.Target).To(Equal(uint32(0x2000)))
		Expect(bp.Stats().BTBHitRate()).To(BeNumerically("~", 100))
	})

	It("should not confuse aliasing PCs in the BTB", func() {
		bp.Update(0x1000, true, 0x2000)
		Expect(bp.Predict(0x1000 + 256*4).TargetKnown).To(BeFalse())
	})

	It("should report accuracy over resolved branches", func() {
		bp.Update(0x1000, true, 0x2000)
		bp.Update(0x1000, false, 0)
		Expect(bp.Stats().Accuracy()).To(BeNumerically("~", 50))
		Expect(bp.Stats().MispredictionRate()).To(BeNumerically("~", 50))
	})
})

var _ = Describe("RAS", func() {
	It("should pop in reverse push order", func() {
		r := frontend.NewRAS(4)
		r.Push(0x10)
		r.Push(0x20)
		addr, ok := r.Pop()
		Expect(ok).To(BeTrue())
		Expect(addr).To(Equal(uint32(0x20)))
		addr, _ = r.Pop()
		Expect(addr).To(Equal(uint32(0x10)))
		_, ok = r.Pop()
		Expect(ok).To(BeFalse())
	})

	It("should undo wrong-path pushes and pops on restore", func() {
		r := frontend.NewRAS(4)
		r.Push(0x10)
		saved := r.Pointer()
		r.Pop()
		r.Push(0x30)
		r.Push(0x40)
		r.Restore(saved)
		addr, ok := r.Pop()
		Expect(ok).To(BeTrue())
		Expect(addr).To(Equal(uint32(0x10)))
	})

	It("should overwrite the oldest entry when it wraps", func() {
		r := frontend.NewRAS(2)
		r.Push(1)
		r.Push(2)
		r.Push(3)
		a, _ := r.Pop()
		b, _ := r.Pop()
		c, _ := r.Pop()
		Expect([]uint32{a, b, c}).To(Equal([]uint32{3, 2, 3}))
	})
})
