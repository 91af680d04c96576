package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/madiyar29925/UavHealthTracker12/internal/fleet"
)

func (s *Server) listUAVs(c *gin.Context) {
	uavs, err := s.fleet.Store().ListUAVs(c.Request.Context())
	if err != nil {
		s.fail(c, err, "", "Error fetching UAVs data")
		return
	}
	c.JSON(http.StatusOK, uavs)
}

func (s *Server) getUAV(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err, "", "")
		return
	}
	u, err := s.fleet.Store().GetUAV(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err, "UAV not found", "Error fetching UAV data")
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) deleteUAV(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err, "", "")
		return
	}
	d, err := s.fleet.DeleteUAV(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err, "UAV not found", "Error deleting UAV")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": d.Message()})
}

func (s *Server) uavTelemetry(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err, "", "")
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		s.fail(c, err, "", "")
		return
	}
	t, err := s.fleet.Store().ListTelemetry(c.Request.Context(), id, limit)
	if err != nil {
		s.fail(c, err, "UAV not found", "Error fetching telemetry data")
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) uavComponents(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err, "", "")
		return
	}
	comps, err := s.fleet.Store().ListComponents(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err, "UAV not found", "Error fetching component data")
		return
	}
	c.JSON(http.StatusOK, comps)
}

func (s *Server) uavAlerts(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err, "", "")
		return
	}
	alerts, err := s.fleet.Store().ListAlertsByUAV(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err, "UAV not found", "Error fetching alerts data")
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (s *Server) listAlerts(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		s.fail(c, err, "", "")
		return
	}
	alerts, err := s.fleet.Store().ListAlerts(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err, "", "Error fetching alerts data")
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (s *Server) updateUAV(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err, "", "")
		return
	}
	var p fleet.UAVPatch
	if err := bind(c, &p); err != nil {
		s.fail(c, err, "", "")
		return
	}
	u, err := s.fleet.UpdateUAV(c.Request.Context(), id, p)
	if err != nil {
		s.fail(c, err, "UAV not found", "Error updating UAV")
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) updateComponent(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err, "", "")
		return
	}
	var p fleet.ComponentPatch
	if err := bind(c, &p); err != nil {
		s.fail(c, err, "", "")
		return
	}
	comp, err := s.fleet.UpdateComponent(c.Request.Context(), id, p)
	if err != nil {
		s.fail(c, err, "Component not found", "Error updating component")
		return
	}
	c.JSON(http.StatusOK, comp)
}

func (s *Server) updateAlert(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err, "", "")
		return
	}
	var p fleet.AlertPatch
	if err := bind(c, &p); err != nil {
		s.fail(c, err, "", "")
		return
	}
	a, err := s.fleet.UpdateAlert(c.Request.Context(), id, p)
	if err != nil {
		s.fail(c, err, "Alert not found", "Error updating alert")
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) dashboardStats(c *gin.Context) {
	stats, err := s.fleet.Store().DashboardStats(c.Request.Context())
	if err != nil {
		s.fail(c, err, "", "Error fetching dashboard stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) simulateTelemetry(c *gin.Context) {
	var in fleet.NewTelemetry
	if err := bind(c, &in); err != nil {
		s.fail(c, err, "", "")
		return
	}
	t, err := s.fleet.IngestTelemetry(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err, "UAV not found", "Error creating telemetry data")
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) simulateAlert(c *gin.Context) {
	var in fleet.NewAlert
	if err := bind(c, &in); err != nil {
		s.fail(c, err, "", "")
		return
	}
	a, err := s.fleet.CreateAlert(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err, "UAV not found", "Error creating alert")
		return
	}
	c.JSON(http.StatusOK, a)
}
