//go:build linux

package affinity

import (
	"bufio"
	"bytes"
	"os"
	"runtime"
	"strings"

	. "github.com/onsi/ginkgo/v2/dsl/core"
	. "github.com/onsi/ginkgo/v2/dsl/table"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

var _ = Describe("linux affinity", func() {

	DescribeTable("parsing CPU lists",
		func(text string, expected Mask) {
			Expect(Successful(parseList([]byte(text))).Equal(expected)).To(BeTrue())
		},
		Entry("single", "0", Mask{1}),
		Entry("range", "0-3", Mask{0xf}),
		Entry("mixed", "0-1,4,6-7", Mask{0xd3}),
		Entry("beyond first word", "63-64", Mask{1 << 63, 1}),
	)

	DescribeTable("rejecting malformed CPU lists",
		func(text string) {
			_, err := parseList([]byte(text))
			Expect(err).To(HaveOccurred())
		},
		Entry("dangling dash", "1-"),
		Entry("garbage", "a"),
		Entry("bad separator", "1;2"),
		Entry("inverted range", "3-1"),
	)

	It("enumerates the processors this process may run on", func() {
		units := Successful(Enumerate())
		Expect(units).NotTo(BeEmpty())
		for i, u := range units {
			Expect(u.Valid()).To(BeTrue())
			if i > 0 {
				Expect(units[i-1].Less(u)).To(BeTrue())
			}
		}
	})

	It("agrees with the allowed and online CPU lists of the kernel", func() {
		status := Successful(os.Open("/proc/self/status"))
		defer status.Close()
		var allowed Mask
		scanner := bufio.NewScanner(status)
		for scanner.Scan() {
			if list, ok := strings.CutPrefix(scanner.Text(), "Cpus_allowed_list:"); ok {
				allowed = Successful(parseList([]byte(strings.TrimSpace(list))))
				break
			}
		}
		Expect(allowed).NotTo(BeNil())
		online := Successful(parseList(bytes.TrimSpace(Successful(os.ReadFile(onlinePath)))))

		Expect(Successful(Enumerate())).To(Equal(allowed.Intersect(online).Units()))
	})

	It("pins the calling thread and restores it", func() {
		runtime.LockOSThread() // don't unlock, throw away the tainted thread

		before := Successful(OS{}.ThreadAffinity())
		units := before.Units()
		Expect(units).NotTo(BeEmpty())
		target := units[len(units)-1]

		restore := Successful(Pin(OS{}, target))
		Expect(Successful(OS{}.ThreadAffinity()).Equal(target.AffinityMask())).To(BeTrue())
		Expect(restore()).To(Succeed())
		Expect(Successful(OS{}.ThreadAffinity()).Equal(before)).To(BeTrue())
	})

	It("restores the thread affinity when the pinned function panics", func() {
		runtime.LockOSThread()
		before := Successful(OS{}.ThreadAffinity())
		target := before.Units()[0]

		Expect(func() {
			_, _ = Run(OS{}, target, func() (int, error) { panic("boom") })
		}).To(Panic())
		runtime.LockOSThread()
		Expect(Successful(OS{}.ThreadAffinity()).Equal(before)).To(BeTrue())
	})

	It("refuses empty masks and multi-bit units", func() {
		Expect(OS{}.SetThreadAffinity(Mask{})).NotTo(Succeed())
		_, err := Pin(OS{}, Unit{Mask: 3})
		Expect(err).To(HaveOccurred())
	})

})
