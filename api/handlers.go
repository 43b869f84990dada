package api

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/CristiGvl/picoCoreTemp/internal/backend"
	"github.com/CristiGvl/picoCoreTemp/internal/system"
	"github.com/gofiber/fiber/v2"
)

// packageID parses the :package route parameter
func packageID(c *fiber.Ctx) (uint32, error) {
	id, err := strconv.ParseUint(c.Params("package"), 10, 32)
	if err != nil {
		return 0, errors.New("invalid package ID")
	}
	return uint32(id), nil
}

// fail maps err to an HTTP status and a JSON error body
func fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, system.ErrNoPackage):
		status = fiber.StatusNotFound
	case errors.Is(err, backend.ErrUnsupported):
		status = fiber.StatusNotImplemented
	case errors.Is(err, system.ErrClosed), errors.Is(err, system.ErrNotGathered),
		errors.Is(err, backend.ErrUnknownValue):
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// CPU list endpoint
func (s *Server) getCpus(c *fiber.Ctx) error {
	return c.JSON(s.telemetry.Cpus())
}

// Single CPU endpoint
func (s *Server) getCpu(c *fiber.Ctx) error {
	pkg, err := packageID(c)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}
	info, err := s.telemetry.Cpu(pkg)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(info)
}

// Package temperature endpoint
func (s *Server) getPackageTemperature(c *fiber.Ctx) error {
	pkg, err := packageID(c)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}
	t, err := s.telemetry.PackageTemperature(pkg)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"package_id": pkg,
		"celsius":    t,
		"timestamp":  time.Now().Unix(),
	})
}

// Core temperatures endpoint
func (s *Server) getCoreTemperatures(c *fiber.Ctx) error {
	pkg, err := packageID(c)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}
	cores, err := s.telemetry.CoreTemperatures(pkg)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"package_id": pkg,
		"cores":      cores,
		"timestamp":  time.Now().Unix(),
	})
}

// OS sensors endpoint
func (s *Server) getSensors(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := s.tempsReader.GetInfo(ctx)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(info)
}
