package router

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/juanse07/nexa-sub001/config"
	"github.com/juanse07/nexa-sub001/internal/api/handler"
	"github.com/juanse07/nexa-sub001/internal/api/middleware"
	"github.com/juanse07/nexa-sub001/pkg/jwt"
	"github.com/juanse07/nexa-sub001/pkg/redis"
)

// maxBodyBytes caps JSON bodies; the calendar upload route raises it.
const (
	maxBodyBytes   = 1 << 20
	maxUploadBytes = 6 << 20
)

// Setup builds the gin engine. rdb may be nil.
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── global middleware ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders(strings.HasPrefix(cfg.Server.BaseURL, "https://")))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	respondLimit := middleware.RateLimit(rdb, cfg.RateLimit.Respond, cfg.RateLimit.Window)
	manager := middleware.RequireManager()
	jsonBody := middleware.BodyLimit(maxBodyBytes)

	v1 := r.Group("/api/v1")
	authorized := v1.Group("")
	authorized.Use(middleware.JWTAuth(jwtMgr, rdb))
	{
		// events
		events := authorized.Group("/events")
		{
			events.POST("", jsonBody, manager, h.Event.CreateEvent)
			events.GET("", manager, h.Event.ListMyEvents)
			events.GET("/available", h.Event.ListAvailable)
			events.POST("/import", middleware.BodyLimit(maxUploadBytes), manager, h.Calendar.ImportEvents)
			events.GET("/:id", h.Event.GetEvent)
			events.PUT("/:id/roles", jsonBody, manager, h.Event.UpdateRoles)
			events.POST("/:id/publish", manager, h.Event.Publish)
			events.POST("/:id/status", jsonBody, manager, h.Event.Transition)
			events.POST("/:id/respond", jsonBody, respondLimit, h.Event.Respond)
			events.POST("/:id/repair-stats", manager, h.Event.RepairStats)
			events.GET("/:id/timesheet", manager, h.Export.ExportTimesheet)

			// attendance
			events.GET("/:id/attendance/me", h.Attendance.GetMyAttendance)
			events.POST("/:id/clock-in", respondLimit, h.Attendance.ClockIn)
			events.POST("/:id/clock-out", respondLimit, h.Attendance.ClockOut)
			events.POST("/:id/attendance/approve", jsonBody, manager, h.Attendance.ApproveHours)
		}

		authorized.GET("/me/calendar.ics", h.Calendar.MyCalendar)

		notifications := authorized.Group("/notifications")
		{
			notifications.GET("", h.Notification.List)
			notifications.POST("/:id/read", h.Notification.MarkRead)
		}

		// organizations
		orgs := authorized.Group("/organizations", manager)
		{
			orgs.POST("", jsonBody, h.Organization.CreateOrganization)
			orgs.GET("/mine", h.Organization.GetMine)
			orgs.POST("/join/:token", h.Organization.Join)
			orgs.GET("/:id", h.Organization.GetOrganization)
			orgs.PATCH("/:id", jsonBody, h.Organization.RenameOrganization)
			orgs.POST("/:id/members", jsonBody, h.Organization.InviteMember)
			orgs.DELETE("/:id/members/:managerId", h.Organization.RemoveMember)
			orgs.POST("/:id/transfer", jsonBody, h.Organization.TransferOwnership)
			orgs.GET("/:id/staff", h.Organization.ListApprovedStaff)
			orgs.POST("/:id/staff", jsonBody, h.Organization.AddApprovedStaff)
			orgs.DELETE("/:id/staff/:provider/:subject", h.Organization.RemoveApprovedStaff)
			orgs.PATCH("/:id/policy", jsonBody, h.Organization.UpdateStaffPolicy)
			orgs.POST("/:id/seats/sync", h.Organization.SyncSeats)
		}

		// managers
		authorized.PUT("/managers/me", jsonBody, h.Manager.UpsertMe)
		authorized.GET("/managers/me/tier", manager, h.Manager.GetMyTier)

		// teams
		teams := authorized.Group("/teams", manager)
		{
			teams.POST("", jsonBody, h.Team.CreateTeam)
			teams.GET("", h.Team.ListTeams)
			teams.GET("/:id/members", h.Team.ListMembers)
			teams.POST("/:id/members", jsonBody, h.Team.AddMember)
			teams.DELETE("/:id/members/:provider/:subject", h.Team.RemoveMember)
		}
	}

	return r
}
