package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/madiyar29925/UavHealthTracker12/internal/fleet"
)

// defaultUpcomingDays is the window of /maintenance/upcoming without ?days
const defaultUpcomingDays = 7

func (s *Server) listMaintenance(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		s.fail(c, err, "", "")
		return
	}
	records, err := s.fleet.Store().ListMaintenance(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err, "", "Error fetching maintenance records")
		return
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) uavMaintenance(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err, "", "")
		return
	}
	records, err := s.fleet.Store().ListMaintenanceByUAV(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err, "UAV not found", "Error fetching maintenance records for this drone")
		return
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) upcomingMaintenance(c *gin.Context) {
	days, err := queryInt(c, "days", defaultUpcomingDays)
	if err != nil {
		s.fail(c, err, "", "")
		return
	}
	records, err := s.fleet.UpcomingMaintenance(c.Request.Context(), days)
	if err != nil {
		s.fail(c, err, "", "Error fetching upcoming maintenance records")
		return
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) createMaintenance(c *gin.Context) {
	var in fleet.NewMaintenance
	if err := bind(c, &in); err != nil {
		s.fail(c, err, "", "")
		return
	}
	m, err := s.fleet.CreateMaintenance(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err, "UAV not found", "Error creating maintenance record")
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (s *Server) updateMaintenance(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err, "", "")
		return
	}
	var p fleet.MaintenancePatch
	if err := bind(c, &p); err != nil {
		s.fail(c, err, "", "")
		return
	}
	m, err := s.fleet.UpdateMaintenance(c.Request.Context(), id, p)
	if err != nil {
		s.fail(c, err, "Maintenance record not found", "Error updating maintenance record")
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) completeMaintenance(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err, "", "")
		return
	}
	m, err := s.fleet.CompleteMaintenance(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err, "Maintenance record not found", "Error completing maintenance record")
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) deleteMaintenance(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err, "", "")
		return
	}
	if err := s.fleet.DeleteMaintenance(c.Request.Context(), id); err != nil {
		s.fail(c, err, "Maintenance record not found", "Error deleting maintenance record")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
