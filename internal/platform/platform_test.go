package platform

import (
	"runtime"

	. "github.com/onsi/ginkgo/v2/dsl/core"
	. "github.com/onsi/gomega"
)

var _ = Describe("platform", func() {

	It("validates the platform", func() {
		if IsSupported() {
			Expect(ValidateSupport()).To(Succeed())
			return
		}
		Expect(ValidateSupport()).To(MatchError(ContainSubstring(runtime.GOOS)))
	})

	It("summarises the host processor", func() {
		if runtime.GOARCH != "amd64" {
			Skip("needs CPUID")
		}
		h := HostCPU()
		Expect(h.Vendor).NotTo(BeEmpty())
		Expect(h.LogicalCores).To(BeNumerically(">", 0))
	})

	It("only claims telemetry for Intel", func() {
		Expect(Host{Vendor: "Intel"}.HasTelemetry()).To(BeTrue())
		Expect(Host{Vendor: "AMD"}.HasTelemetry()).To(BeFalse())
	})

})
