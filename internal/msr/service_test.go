package msr

import (
	"errors"

	. "github.com/onsi/ginkgo/v2/dsl/core"
	. "github.com/onsi/gomega"
)

// fakeSCM is an in-memory service control manager.
type fakeSCM struct {
	services map[string]bool // name -> running
	calls    []string

	failStart, failDelete error
}

func newFakeSCM(existing ...string) *fakeSCM {
	f := &fakeSCM{services: map[string]bool{}}
	for _, name := range existing {
		f.services[name] = true
	}
	return f
}

func (f *fakeSCM) Exists(name string) (bool, error) {
	f.calls = append(f.calls, "exists")
	_, ok := f.services[name]
	return ok, nil
}

func (f *fakeSCM) Create(name, imagePath string) error {
	f.calls = append(f.calls, "create "+imagePath)
	f.services[name] = false
	return nil
}

func (f *fakeSCM) Start(name string) error {
	f.calls = append(f.calls, "start")
	if f.failStart != nil {
		return f.failStart
	}
	f.services[name] = true
	return nil
}

func (f *fakeSCM) Stop(name string) error {
	f.calls = append(f.calls, "stop")
	f.services[name] = false
	return nil
}

func (f *fakeSCM) Delete(name string) error {
	f.calls = append(f.calls, "delete")
	if f.failDelete != nil {
		return f.failDelete
	}
	delete(f.services, name)
	return nil
}

var _ = Describe("kernel driver service", func() {

	It("removes a service it registered itself", func() {
		scm := newFakeSCM()
		d := &driverService{ctl: scm, name: "WinRing0_1_2_0", imagePath: `C:\drv\WinRing0x64.sys`}
		Expect(d.install()).To(Succeed())
		Expect(scm.services).To(HaveKeyWithValue("WinRing0_1_2_0", true))
		Expect(d.uninstall()).To(Succeed())
		Expect(scm.services).To(BeEmpty())
		Expect(scm.calls).To(Equal([]string{
			"exists", `create C:\drv\WinRing0x64.sys`, "start", "stop", "delete",
		}))
		Expect(d.uninstall()).To(Succeed())
		Expect(scm.calls).To(HaveLen(5))
	})

	It("leaves a service registered by another tool in place", func() {
		scm := newFakeSCM("WinRing0_1_2_0")
		d := &driverService{ctl: scm, name: "WinRing0_1_2_0", imagePath: `C:\drv\WinRing0x64.sys`}
		Expect(d.install()).To(Succeed())
		Expect(d.uninstall()).To(Succeed())
		Expect(scm.services).To(HaveKeyWithValue("WinRing0_1_2_0", true))
		Expect(scm.calls).To(Equal([]string{"exists", "start"}))
	})

	It("refuses to install without a driver image", func() {
		scm := newFakeSCM()
		d := &driverService{ctl: scm, name: "WinRing0_1_2_0"}
		var lerr *LifecycleError
		Expect(d.install()).To(BeAssignableToTypeOf(lerr))
		Expect(scm.calls).To(BeEmpty())
	})

	It("deletes a freshly registered service that fails to start", func() {
		scm := newFakeSCM()
		scm.failStart = errors.New("driver blocked")
		d := &driverService{ctl: scm, name: "WinRing0_1_2_0", imagePath: "drv.sys"}
		err := d.install()
		Expect(err).To(MatchError(scm.failStart))
		Expect(scm.services).To(BeEmpty())
		Expect(d.created).To(BeFalse())
	})

	It("keeps ownership when the cleanup after a failed start fails", func() {
		scm := newFakeSCM()
		scm.failStart = errors.New("driver blocked")
		scm.failDelete = errors.New("marked for deletion")
		d := &driverService{ctl: scm, name: "WinRing0_1_2_0", imagePath: "drv.sys"}
		err := d.install()
		Expect(err).To(MatchError(scm.failStart))
		Expect(err).To(MatchError(scm.failDelete))
		Expect(d.created).To(BeTrue())
	})

})
