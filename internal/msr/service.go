package msr

import (
	"errors"
	"fmt"
)

// serviceControl is the part of a service control manager the kernel driver
// lifecycle uses.
type serviceControl interface {
	Exists(name string) (bool, error)
	Create(name, imagePath string) error
	Start(name string) error
	Stop(name string) error
	Delete(name string) error
}

// driverService installs a kernel driver as a service and removes it again,
// but only if it was this lifecycle that registered it. A service already
// present belongs to another tool and is left alone.
type driverService struct {
	ctl       serviceControl
	name      string
	imagePath string
	created   bool
}

func (d *driverService) install() error {
	if d.imagePath == "" {
		return &LifecycleError{Op: "install", Err: errors.New("no driver image configured")}
	}
	exists, err := d.ctl.Exists(d.name)
	if err != nil {
		return &LifecycleError{Op: "install", Err: fmt.Errorf("looking up service %s: %w", d.name, err)}
	}
	if !exists {
		if err := d.ctl.Create(d.name, d.imagePath); err != nil {
			return &LifecycleError{Op: "install", Err: fmt.Errorf("creating service %s: %w", d.name, err)}
		}
		d.created = true
	}
	if err := d.ctl.Start(d.name); err != nil {
		err = fmt.Errorf("starting service %s: %w", d.name, err)
		if d.created {
			if derr := d.ctl.Delete(d.name); derr != nil {
				err = errors.Join(err, fmt.Errorf("deleting service %s: %w", d.name, derr))
			} else {
				d.created = false
			}
		}
		return &LifecycleError{Op: "install", Err: err}
	}
	return nil
}

func (d *driverService) uninstall() error {
	if !d.created {
		return nil
	}
	if err := d.ctl.Stop(d.name); err != nil {
		return &LifecycleError{Op: "uninstall", Err: fmt.Errorf("stopping service %s: %w", d.name, err)}
	}
	if err := d.ctl.Delete(d.name); err != nil {
		return &LifecycleError{Op: "uninstall", Err: fmt.Errorf("deleting service %s: %w", d.name, err)}
	}
	d.created = false
	return nil
}
