package affinity

import (
	"math/bits"
	"math/rand/v2"

	. "github.com/onsi/ginkgo/v2/dsl/core"
	. "github.com/onsi/ginkgo/v2/dsl/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("execution units", func() {

	DescribeTable("flattening group masks",
		func(group uint16, mask uint64, expected []Unit) {
			Expect(Flatten(group, mask)).To(Equal(expected))
		},
		Entry("empty mask", uint16(0), uint64(0), []Unit{}),
		Entry("single bit", uint16(0), uint64(1<<5), []Unit{{0, 1 << 5}}),
		Entry("two bits", uint16(1), uint64(0x3), []Unit{{1, 1}, {1, 2}}),
		Entry("top bit", uint16(2), uint64(1<<63), []Unit{{2, 1 << 63}}),
		Entry("sparse", uint16(0), uint64(0x8000_0000_0000_0101), []Unit{{0, 1}, {0, 1 << 8}, {0, 1 << 63}}),
	)

	It("yields one single-bit unit per set bit for arbitrary masks", func() {
		r := rand.New(rand.NewPCG(1, 2))
		for range 1000 {
			group := uint16(r.IntN(8))
			mask := r.Uint64()
			units := Flatten(group, mask)
			Expect(units).To(HaveLen(bits.OnesCount64(mask)))
			var union uint64
			for _, u := range units {
				Expect(u.Valid()).To(BeTrue())
				Expect(u.Group).To(Equal(group))
				Expect(union & u.Mask).To(BeZero())
				union |= u.Mask
			}
			Expect(union).To(Equal(mask))
		}
	})

	It("orders by group first, then mask", func() {
		a := Unit{Group: 0, Mask: 1 << 40}
		b := Unit{Group: 1, Mask: 1}
		c := Unit{Group: 1, Mask: 2}
		Expect(a.Less(b)).To(BeTrue())
		Expect(b.Less(c)).To(BeTrue())
		Expect(c.Less(a)).To(BeFalse())
		Expect(a.Compare(a)).To(BeZero())
		Expect(Min(c, a)).To(Equal(a))

		units := []Unit{c, a, b}
		Sort(units)
		Expect(units).To(Equal([]Unit{a, b, c}))
	})

	It("maps flat CPU numbers to units and back", func() {
		for _, cpu := range []int{0, 1, 63, 64, 130} {
			u := UnitOf(cpu)
			Expect(u.Valid()).To(BeTrue())
			Expect(u.CPU()).To(Equal(cpu))
		}
		Expect(Unit{Group: 0, Mask: 3}.Valid()).To(BeFalse())
		Expect(Unit{}.Valid()).To(BeFalse())
	})

	Context("masks", func() {

		It("flattens multi-word masks", func() {
			m := Mask{0x5, 0, 0x1}
			Expect(m.Units()).To(Equal([]Unit{{0, 1}, {0, 4}, {2, 1}}))
		})

		It("compares ignoring trailing zero words", func() {
			Expect(Mask{1}.Equal(Mask{1, 0, 0})).To(BeTrue())
			Expect(Mask{1}.Equal(Mask{1, 1})).To(BeFalse())
			Expect(Mask{}.Empty()).To(BeTrue())
			Expect(Mask{0, 0}.Empty()).To(BeTrue())
		})

		It("builds the single-unit mask", func() {
			Expect(Unit{Group: 2, Mask: 8}.AffinityMask()).To(Equal(Mask{0, 0, 8}))
		})

		It("intersects", func() {
			Expect(Mask{0xf, 0xff}.Intersect(Mask{0x3})).To(Equal(Mask{0x3}))
		})

	})

})
