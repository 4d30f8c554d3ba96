package server

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/meikuraledutech/supplychain"
	"go.uber.org/zap"
)

func (s *Server) createSchema(c fiber.Ctx) error {
	if err := s.store.CreateSchema(c.Context()); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "schema created"})
}

func (s *Server) dropSchema(c fiber.Ctx) error {
	if err := s.store.DropSchema(c.Context()); err != nil {
		return s.fail(c, err)
	}
	s.close("")
	return c.JSON(fiber.Map{"message": "schema dropped"})
}

func (s *Server) createSystem(c fiber.Ctx) error {
	var ps supplychain.ProductSystem
	if err := c.Bind().JSON(&ps); err != nil {
		return badRequest(c, "invalid body")
	}
	result, err := s.store.CreateSystem(c.Context(), &ps)
	if err != nil {
		return s.fail(c, err)
	}
	s.close(result.ID)
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (s *Server) getSystem(c fiber.Ctx) error {
	sess, err := s.session(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"system": sess.System(), "dirty": sess.Dirty()})
}

func (s *Server) deleteSystem(c fiber.Ctx) error {
	id := c.Params("id")
	if err := s.store.DeleteSystem(c.Context(), id); err != nil {
		return s.fail(c, err)
	}
	s.close(id)
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) saveSystem(c fiber.Ctx) error {
	sess, err := s.session(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	if err := sess.Save(c.Context(), s.store); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) undo(c fiber.Ctx) error {
	sess, err := s.session(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	if err := sess.Undo(); err != nil {
		return s.fail(c, err)
	}
	s.metrics.Undos.Inc()
	return c.JSON(sess.System())
}

func (s *Server) redo(c fiber.Ctx) error {
	sess, err := s.session(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	if err := sess.Redo(); err != nil {
		return s.fail(c, err)
	}
	s.metrics.Redos.Inc()
	return c.JSON(sess.System())
}

// ── Processes ─────────────────────────────────────────────────────────

func (s *Server) addProcess(c fiber.Ctx) error {
	var body struct {
		ID supplychain.ProcessID `json:"id"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid body")
	}
	sess, err := s.session(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	sess.AddProcess(body.ID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": body.ID})
}

func (s *Server) removeProcess(c fiber.Ctx) error {
	pid, err := processParam(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	sess, err := s.session(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	if err := sess.RemoveProcess(pid); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) listLinks(c fiber.Ctx) error {
	pid, err := processParam(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	sess, err := s.session(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	if !sess.HasProcess(pid) {
		return s.fail(c, supplychain.ErrProcessNotFound)
	}

	var links []supplychain.ProcessLink
	switch c.Query("role", "all") {
	case "all":
		links = sess.Links(pid)
	case "provider":
		links = sess.ProviderLinks(pid)
	case "consumer":
		links = sess.ConsumerLinks(pid)
	default:
		return badRequest(c, "role must be all, provider or consumer")
	}
	if links == nil {
		links = []supplychain.ProcessLink{}
	}
	return c.JSON(links)
}

func (s *Server) canRemoveSupplyChain(c fiber.Ctx) error {
	pid, err := processParam(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	sess, err := s.session(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	ok, err := sess.CanRemoveSupplyChain(pid)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"removable": ok})
}

// removeSupplyChain cuts the supply chain of a process. An optional body
// {"seed": [...]} limits the cut to the given input links.
func (s *Server) removeSupplyChain(c fiber.Ctx) error {
	pid, err := processParam(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	var body struct {
		Seed []supplychain.ProcessLink `json:"seed"`
	}
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&body); err != nil {
			return badRequest(c, "invalid body")
		}
	}
	sess, err := s.session(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}

	removal, err := sess.RemoveSupplyChain(pid, body.Seed...)
	if errors.Is(err, supplychain.ErrUnsafeRemoval) {
		s.metrics.RejectedRemovals.Inc()
	}
	if err != nil {
		return s.fail(c, err)
	}
	s.metrics.ObserveRemoval(removal)
	s.log.Info("supply chain removed over http",
		zap.String("system", sess.ID()),
		zap.Int64("host", int64(pid)),
		zap.Int("processes", len(removal.Processes)),
		zap.Int("links", len(removal.Links)),
	)
	return c.JSON(removal)
}

// ── Links ─────────────────────────────────────────────────────────────

func (s *Server) addLink(c fiber.Ctx) error {
	var link supplychain.ProcessLink
	if err := c.Bind().JSON(&link); err != nil {
		return badRequest(c, "invalid body")
	}
	sess, err := s.session(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	sess.AddLink(link)
	return c.Status(fiber.StatusCreated).JSON(link)
}

func (s *Server) removeLink(c fiber.Ctx) error {
	var link supplychain.ProcessLink
	if err := c.Bind().JSON(&link); err != nil {
		return badRequest(c, "invalid body")
	}
	sess, err := s.session(c.Context(), c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	if !sess.RemoveLink(link) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "link not found"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
